// Package outbox buffers roster events in memory and delivers them to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/enrollment/internal/events"
)

// ErrQueueFull is returned by Publish when the buffer has no room; the event is dropped.
var ErrQueueFull = errors.New("outbox queue full")

// ErrClosed is returned by Publish after the dispatcher has stopped.
var ErrClosed = errors.New("outbox closed")

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Config holds dispatcher tunables.
type Config struct {
	Topic         string
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	DrainTimeout  time.Duration
}

// Dispatcher accepts events from the request path without blocking and
// publishes them to Kafka in batches from a single goroutine.
type Dispatcher struct {
	cfg              Config
	producer         messageWriter
	logger           *zap.Logger
	queue            chan events.RosterChanged
	shutdownComplete chan struct{}

	// mu orders Publish against shutdown: once closed is set under the write
	// lock no further event can enter the queue, so drain sees all of them.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg Config, producer messageWriter, logger *zap.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:              cfg,
		producer:         producer,
		logger:           logger,
		queue:            make(chan events.RosterChanged, cfg.BufferSize),
		shutdownComplete: make(chan struct{}),
	}
}

// Publish enqueues event. It never blocks.
func (d *Dispatcher) Publish(_ context.Context, event events.RosterChanged) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		droppedCounter.WithLabelValues("closed").Inc()
		return ErrClosed
	}

	select {
	case d.queue <- event:
		queueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		droppedCounter.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

// Start runs the delivery loop until ctx is cancelled, then drains what is
// left in the queue. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	batch := make([]events.RosterChanged, 0, d.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()
			d.drain(batch)
			return
		case event := <-d.queue:
			batch = append(batch, event)
			if len(batch) >= d.cfg.BatchSize {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) drain(batch []events.RosterChanged) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.queue:
			batch = append(batch, event)
		default:
			if len(batch) > 0 {
				d.flush(ctx, batch)
			}
			return
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context, batch []events.RosterChanged) {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
		queueDepth.Set(float64(len(d.queue)))
	}()

	messages := make([]kafka.Message, 0, len(batch))
	for _, event := range batch {
		msg, err := encodeMessage(event)
		if err != nil {
			d.logger.Error("roster event encode failed", zap.String("event_id", event.EventID), zap.Error(err))
			failedCounter.Inc()
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return
	}

	if err := d.producer.WriteMessages(ctx, d.cfg.Topic, messages...); err != nil {
		failedCounter.Add(float64(len(messages)))
		d.logger.Error("roster events not delivered",
			zap.String("topic", d.cfg.Topic),
			zap.Int("count", len(messages)),
			zap.Error(err),
		)
		return
	}
	deliveredCounter.Add(float64(len(messages)))
}

// encodeMessage keys by activity so each activity's events stay ordered within a partition.
func encodeMessage(event events.RosterChanged) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", event.EventType, err)
	}
	return kafka.Message{
		Key:   []byte(event.Activity),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}, nil
}
