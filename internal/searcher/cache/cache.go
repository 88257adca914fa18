// Package cache memoises complete ranked hit lists per index, order and
// canonical query. A local LRU sits in front of an optional shared Redis
// tier, and concurrent misses for the same key are computed once.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/resilience"
)

const (
	keyPrefix     = "fts:"
	remoteTimeout = 250 * time.Millisecond
)

type Options struct {
	// Size is the number of ranked lists kept locally.
	Size int
	// TTL applies to the Redis tier only.
	TTL     time.Duration
	Remote  *pkgredis.Client
	Metrics *metrics.Metrics
}

type QueryCache struct {
	local   *lru.Cache[string, []ranker.Hit]
	remote  *pkgredis.Client
	breaker *resilience.Breaker
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu          sync.Mutex
	generations map[string]uint64
	// clean marks indexes with nothing stored since their last complete
	// invalidation. An index without an entry may have entries in Redis
	// left by an earlier process.
	clean map[string]bool
	// remoteStale marks indexes whose last Redis invalidation failed.
	remoteStale map[string]bool
}

func New(opts Options) (*QueryCache, error) {
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	local, err := lru.New[string, []ranker.Hit](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	c := &QueryCache{
		local:       local,
		remote:      opts.Remote,
		ttl:         opts.TTL,
		metrics:     opts.Metrics,
		logger:      slog.Default().With("component", "query-cache"),
		generations: make(map[string]uint64),
		clean:       make(map[string]bool),
		remoteStale: make(map[string]bool),
	}
	if c.remote != nil {
		c.breaker = resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
			Failures:    5,
			Cooldown:    10 * time.Second,
			CallTimeout: remoteTimeout,
			OnStateChange: func(name string, s resilience.State) {
				c.metrics.BreakerState(name, int(s))
			},
		})
	}
	return c, nil
}

// Ranked returns the cached list for the key or computes and stores it.
// Returned slices are shared and must not be modified.
func (c *QueryCache) Ranked(ctx context.Context, indexName string, order ranker.Order, query string, compute executor.ComputeFunc) ([]ranker.Hit, error) {
	key := buildKey(indexName, order, query)
	if hits, ok := c.local.Get(key); ok {
		c.metrics.CacheHit("local")
		return hits, nil
	}

	gen := c.generation(indexName)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if hits, ok := c.local.Get(key); ok {
			c.metrics.CacheHit("local")
			return hits, nil
		}
		if hits, ok := c.getRemote(ctx, indexName, key); ok {
			c.metrics.CacheHit("redis")
			c.storeLocal(indexName, gen, key, hits)
			return hits, nil
		}
		c.metrics.CacheMiss()
		hits, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if c.storeLocal(indexName, gen, key, hits) {
			c.setRemote(ctx, indexName, gen, key, hits)
		}
		return hits, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]ranker.Hit), nil
}

// storeLocal keeps hits unless the index was invalidated after gen was
// read, in which case hits may predate the write that invalidated it.
func (c *QueryCache) storeLocal(indexName string, gen uint64, key string, hits []ranker.Hit) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[indexName] != gen {
		return false
	}
	c.local.Add(key, hits)
	delete(c.clean, indexName)
	return true
}

func (c *QueryCache) generation(indexName string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[indexName]
}

func (c *QueryCache) remoteUsable(indexName string) bool {
	if c.remote == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.remoteStale[indexName]
}

// Invalidate drops every cached list of indexName from both tiers. Lists
// being computed when it runs are not stored. If Redis cannot be reached
// the index stops using it until a later Invalidate gets through.
func (c *QueryCache) Invalidate(ctx context.Context, indexName string) error {
	prefix := indexPrefix(indexName)

	c.mu.Lock()
	c.generations[indexName]++
	gen := c.generations[indexName]
	if c.clean[indexName] && !c.remoteStale[indexName] {
		c.mu.Unlock()
		return nil
	}
	removed := 0
	for _, key := range c.local.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.local.Remove(key)
			removed++
		}
	}
	c.clean[indexName] = true
	c.mu.Unlock()

	var remoteDeleted int64
	if c.remote != nil {
		err := c.breaker.Do(ctx, "invalidate", func(ctx context.Context) error {
			var err error
			remoteDeleted, err = c.remote.DeletePrefix(ctx, prefix)
			return err
		})
		if err != nil {
			c.markRemoteStale(indexName)
			return fmt.Errorf("invalidating cache for %s: %w", indexName, err)
		}
		c.mu.Lock()
		if c.generations[indexName] == gen {
			delete(c.remoteStale, indexName)
		}
		c.mu.Unlock()
	}
	c.logger.Debug("cache invalidated", "index", indexName, "local_removed", removed, "remote_deleted", remoteDeleted)
	return nil
}

// Attach invalidates the lists of store's index on every write to it. The
// invalidation runs on the writer's goroutine before the write's index
// events are delivered, so a search made after an event never sees lists
// computed before the write.
func (c *QueryCache) Attach(store *index.Store) {
	store.OnWrite(func(ctx context.Context, indexName string) {
		if err := c.Invalidate(context.WithoutCancel(ctx), indexName); err != nil {
			c.logger.Warn("cache invalidation failed", "index", indexName, "error", err)
		}
	})
}

func (c *QueryCache) Len() int {
	return c.local.Len()
}

func (c *QueryCache) getRemote(ctx context.Context, indexName, key string) ([]ranker.Hit, bool) {
	if !c.remoteUsable(indexName) {
		return nil, false
	}
	var (
		data  []byte
		found bool
	)
	err := c.breaker.Do(ctx, "get", func(ctx context.Context) error {
		var err error
		data, found, err = c.remote.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var hits []ranker.Hit
	if err := json.Unmarshal(data, &hits); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return hits, true
}

// setRemote shares hits computed at generation gen. An invalidation that
// began before the write landed may have missed the key, so the key is
// taken back out if the generation has moved on.
func (c *QueryCache) setRemote(ctx context.Context, indexName string, gen uint64, key string, hits []ranker.Hit) {
	if !c.remoteUsable(indexName) {
		return
	}
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(ctx, "set", func(ctx context.Context) error {
		return c.remote.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
	if c.generation(indexName) == gen {
		return
	}
	err = c.breaker.Do(ctx, "del", func(ctx context.Context) error {
		return c.remote.Del(ctx, key)
	})
	if err != nil {
		c.logger.Warn("cache delete failed", "key", key, "error", err)
		c.markRemoteStale(indexName)
	}
}

func (c *QueryCache) markRemoteStale(indexName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clean, indexName)
	c.remoteStale[indexName] = true
}

// Index names are query-escaped so one index's prefix is never a prefix of
// another's.
func indexPrefix(indexName string) string {
	return keyPrefix + url.QueryEscape(indexName) + ":"
}

func buildKey(indexName string, order ranker.Order, query string) string {
	return indexPrefix(indexName) + order.String() + ":" + query
}

var _ executor.Cache = (*QueryCache)(nil)
