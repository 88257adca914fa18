// Package dictionary provides the ordered key/value stores that hold the
// inverted indexes. A Provider hands out one named Dictionary per index
// collection; every backend iterates keys in ascending byte order.
package dictionary

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/postgres"
)

// ErrStop may be returned from a Scan callback to end the scan early
// without reporting an error.
var ErrStop = errors.New("stop scan")

// ScanFunc receives one key/value pair. The value must not be retained
// after the callback returns unless it is copied.
type ScanFunc func(key string, value []byte) error

// Dictionary is an ordered byte-keyed store.
type Dictionary interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Scan visits every key starting with prefix in ascending order.
	Scan(ctx context.Context, prefix string, fn ScanFunc) error
	// Batch applies deletes and then puts as a single atomic write.
	Batch(ctx context.Context, puts map[string][]byte, deletes []string) error
	// Clear removes every key.
	Clear(ctx context.Context) error
}

// Provider opens dictionaries by index-collection name.
type Provider interface {
	GetDictionary(ctx context.Context, name string) (Dictionary, error)
	Close() error
}

// Flusher is implemented by providers that keep data in memory and persist
// it on demand.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Open builds the provider selected by cfg.Backend.
func Open(ctx context.Context, cfg config.IndexConfig, pg config.PostgresConfig) (Provider, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		if cfg.DataDir == "" {
			return NewMemoryProvider(nil), nil
		}
		store, err := segment.OpenStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return NewMemoryProvider(store), nil
	case config.BackendBolt:
		return OpenBolt(cfg.DataDir)
	case config.BackendBadger:
		return OpenBadger(cfg.DataDir, false)
	case config.BackendPostgres:
		client, err := postgres.Open(ctx, pg)
		if err != nil {
			return nil, err
		}
		return NewPostgresProvider(ctx, client)
	default:
		return nil, fmt.Errorf("unknown dictionary backend %q", cfg.Backend)
	}
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or "" when no such key exists.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

func stopped(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
