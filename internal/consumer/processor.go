// Package consumer reads roster events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/enrollment/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded roster events.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is a decoded roster event plus its Kafka coordinates.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Event     events.RosterChanged
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry sets how many times a failing handler is called for one message
// and the delay before the second attempt. The delay doubles per attempt up to maxDelay.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(p *Processor) {
		p.attempts = attempts
		p.baseDelay = baseDelay
		p.maxDelay = maxDelay
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader    Reader
	handler   Handler
	logger    *zap.Logger
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:    reader,
		handler:   handler,
		logger:    zap.NewNop(),
		attempts:  5,
		baseDelay: 200 * time.Millisecond,
		maxDelay:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.attempts < 1 {
		p.attempts = 1
	}
	return p
}

// Run processes messages until the context is cancelled. Malformed messages
// are committed and skipped. A failing handler is retried with backoff; once
// the attempts are exhausted the message is not committed, but the next
// successful commit on the partition moves past it, so the event is lost to
// the handler and counted in handler_errors_total.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			continue
		}

		decoded, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("dropping malformed roster event",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr),
			)
			recordDecodeError(msg.Topic)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Warn("commit after decode failure", zap.Error(commitErr))
			}
			continue
		}

		if handleErr := p.handle(ctx, decoded); handleErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("handler failed, skipping roster event",
				zap.String("event_type", decoded.Event.EventType),
				zap.String("event_id", decoded.Event.EventID),
				zap.Int("attempts", p.attempts),
				zap.Error(handleErr),
			)
			recordHandlerError(decoded)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Warn("commit failed", zap.Error(commitErr))
		} else {
			recordAudited(decoded)
		}
	}
}

// handle calls the handler up to p.attempts times with exponential backoff.
func (p *Processor) handle(ctx context.Context, msg Message) error {
	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay * time.Duration(1<<(attempt-1))
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
			recordRetry(msg)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = p.handler.Handle(ctx, msg)
		if lastErr == nil {
			return nil
		}
		p.logger.Warn("handler attempt failed",
			zap.String("event_id", msg.Event.EventID),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return lastErr
}

func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	if !events.Known(string(eventType)) {
		return Message{}, fmt.Errorf("unknown event_type %q", eventType)
	}

	var event events.RosterChanged
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return Message{}, fmt.Errorf("decode payload: %w", err)
	}
	if event.EventType != string(eventType) {
		return Message{}, fmt.Errorf("event_type header %q disagrees with payload %q", eventType, event.EventType)
	}
	if event.Activity == "" || event.Email == "" {
		return Message{}, errors.New("payload missing activity or email")
	}
	if _, err := uuid.Parse(event.EventID); err != nil {
		return Message{}, fmt.Errorf("event_id %q: %w", event.EventID, err)
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Event:     event,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
