package kafka

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Op string `json:"op"`
		ID string `json:"id"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"op":"delete","id":"42"}`))
	require.NoError(t, err)
	assert.Equal(t, payload{Op: "delete", ID: "42"}, got)

	_, err = DecodeJSON[payload]([]byte(`{"op":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestHeaders(t *testing.T) {
	got := headers(map[string]string{"event": "indexed"})
	require.Len(t, got, 2)
	assert.Equal(t, "content-type", got[0].Key)
	assert.Equal(t, "application/json", string(got[0].Value))
	assert.Equal(t, "event", got[1].Key)
	assert.Equal(t, "indexed", string(got[1].Value))
}

func TestClientLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	clientLogger(l, slog.LevelWarn)("leader for partition %d changed", 3)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "leader for partition 3 changed")
}

func TestProducer_PublishNothing(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "unused")
	defer p.Close()
	assert.NoError(t, p.Publish(context.Background()))
}
