package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaProducer writes roster event batches through a single kafka.Writer.
// The writer has no fixed topic; each message is stamped with the topic it is
// written to.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer for brokers. Writer errors are
// reported through logger.
func NewKafkaProducer(brokers []string, logger *zap.Logger) *KafkaProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Sugar()

	// Messages are keyed by activity name; hashing keeps one activity's roster
	// changes on one partition, in publish order. The dispatcher already
	// batches, so the writer should not wait for more.
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				sugar.Errorf(msg, args...)
			}),
		},
	}
}

// WriteMessages writes msgs to topic in one call.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Topic = topic
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending writes and closes the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
