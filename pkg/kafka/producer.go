package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
)

// Event is one message to publish. Key picks the partition, so events with
// the same key keep their order. Value is sent as JSON.
type Event struct {
	Key     string
	Value   any
	Headers map[string]string
}

type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	logger := slog.Default().With("component", "kafka-producer", "topic", topic)
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			Compression:            kafka.Snappy,
			AllowAutoTopicCreation: true,
			ErrorLogger:            clientLogger(logger, slog.LevelWarn),
		},
		logger: logger,
	}
}

// Publish writes events synchronously. On a partial failure the error
// reports how many of the events were not written.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		value, err := json.Marshal(ev.Value)
		if err != nil {
			return fmt.Errorf("encoding event %q: %w", ev.Key, err)
		}
		msgs[i] = kafka.Message{Key: []byte(ev.Key), Value: value, Headers: headers(ev.Headers)}
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	var partial kafka.WriteErrors
	switch {
	case err == nil:
		p.logger.Debug("published", "count", len(msgs))
		return nil
	case errors.As(err, &partial):
		p.logger.Error("publish partly failed", "failed", partial.Count(), "count", len(msgs), "error", err)
		return fmt.Errorf("publishing to kafka: %d of %d events failed: %w", partial.Count(), len(msgs), err)
	default:
		p.logger.Error("publish failed", "count", len(msgs), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func headers(h map[string]string) []kafka.Header {
	out := []kafka.Header{{Key: "content-type", Value: []byte("application/json")}}
	for k, v := range h {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

// clientLogger routes kafka-go's internal printf logging into slog.
func clientLogger(l *slog.Logger, level slog.Level) kafka.LoggerFunc {
	return func(format string, args ...any) {
		l.Log(context.Background(), level, fmt.Sprintf(format, args...))
	}
}
