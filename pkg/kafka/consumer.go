// Package kafka provides the producer and consumer used for document
// lifecycle events, backed by segmentio/kafka-go. Values are JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/resilience"
)

// MessageHandler processes one message. Errors wrapped with
// resilience.Permanent are not retried.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer feeds the messages of a topic to a MessageHandler inside a
// consumer group. A message is committed once the handler succeeds or gives
// up, so a message that can never be handled does not stall the partition.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.Backoff
	fetch   resilience.Backoff
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	logger := slog.Default().With("component", "kafka-consumer", "topic", topic)
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1e3,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.FirstOffset,
			ErrorLogger: clientLogger(logger, slog.LevelWarn),
		}),
		logger:  logger,
		handler: handler,
		retry: resilience.Backoff{
			Attempts: 3,
			Base:     200 * time.Millisecond,
			Max:      2 * time.Second,
		},
		fetch: resilience.Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second},
	}
}

// Start consumes until ctx ends and then returns nil.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "group", c.reader.Config().GroupID)
	fetchFailures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		if err != nil {
			fetchFailures++
			delay := c.fetch.Delay(fetchFailures)
			c.logger.Error("fetch failed", "error", err, "consecutive_failures", fetchFailures, "backoff", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		fetchFailures = 0

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		log.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))

		err = resilience.Retry(ctx, "handle message", c.retry, func(ctx context.Context) error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("skipping message", "error", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("commit failed", "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
