// Package kafka provides producer and consumer clients backed by
// segmentio/kafka-go. Producers serialise events as JSON; consumers decode
// them through a MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/afscgap-dse/flatindex/pkg/config"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is invoked for each message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic as part of the configured consumer group.
type Consumer struct {
	reader  messageReader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler, resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 30 * time.Second})
}

func newConsumer(r messageReader, topic string, handler MessageHandler, retry resilience.RetryConfig) *Consumer {
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		retry:   retry,
	}
}

// Start consumes until ctx is cancelled. A message is committed only after
// the handler returns nil; handlers skip malformed messages by returning nil.
// A failing handler is retried in place. An integrity error, or a failure
// that outlasts the retries, stops the loop with the message uncommitted, so
// the group redelivers it to the next consumer.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)

		err = resilience.Retry(ctx, "kafka.handle "+string(msg.Key), c.retry, func() error {
			err := c.handler(ctx, msg.Key, msg.Value)
			if apperrors.IsIntegrity(err) {
				return resilience.Permanent(err)
			}
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to process message, stopping consumer uncommitted",
				"key", string(msg.Key),
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return fmt.Errorf("processing message %s at offset %d: %w", msg.Key, msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message", "offset", msg.Offset, "error", err)
		}
	}
}

// DecodeJSON unmarshals a message value into T. Decoding failures wrap
// ErrInvalidInput.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w: %v", apperrors.ErrInvalidInput, err)
	}
	return result, nil
}
