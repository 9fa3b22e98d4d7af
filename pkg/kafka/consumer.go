// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer publishes query analytics as JSON; the
// consumer feeds job postings into a record source as a bounded drain before
// each rebuild.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Drain processes messages until none arrives for idle or ctx ends, and
// returns how many were handled. The reader stays open so the next drain
// resumes from the committed offset.
func (c *Consumer) Drain(ctx context.Context, idle time.Duration) (int, error) {
	handled := 0
	for {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		fetchCtx, cancel := context.WithTimeout(ctx, idle)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				c.logger.Debug("drain idle, stopping", "handled", handled)
				return handled, nil
			}
			return handled, fmt.Errorf("fetching message: %w", err)
		}
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Warn("skipping undecodable message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else {
			handled++
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return handled, fmt.Errorf("committing offset %d: %w", msg.Offset, err)
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
