package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

// Event is one message to publish. Key picks the partition and is also sent
// as the "event-type" header; Value is JSON-encoded.
type Event struct {
	Key   string
	Value any
}

// Producer publishes JSON events to one topic. Analytics are best-effort, so
// a write needs only the partition leader's acknowledgement.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireOne,
			Compression:            kafka.Snappy,
			AllowAutoTopicCreation: true,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch encodes events and writes them in one call. An event that
// cannot be encoded fails the whole batch before anything is sent.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages, err := encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publishing %d events to %s: %w", len(messages), p.writer.Topic, err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(events []Event) ([]kafka.Message, error) {
	messages := make([]kafka.Message, 0, len(events))
	for i, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding event %d (%s): %w", i, event.Key, err)
		}
		messages = append(messages, kafka.Message{
			Key:     []byte(event.Key),
			Value:   value,
			Headers: []kafka.Header{{Key: "event-type", Value: []byte(event.Key)}},
		})
	}
	return messages, nil
}
