// Package executor evaluates parsed keyword lists against an index store,
// ranks the matching documents and pages the ranked list into typed objects.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/objectstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/tracing"
)

// Stores resolves index-collection names to index stores.
type Stores interface {
	Store(ctx context.Context, name string) (*index.Store, error)
}

// Objects loads the objects behind index hits.
type Objects interface {
	Load(ctx context.Context, collection, id string) (objectstore.Object, error)
}

// ComputeFunc produces a complete ranked hit list.
type ComputeFunc func(ctx context.Context) ([]ranker.Hit, error)

// Cache memoises complete ranked hit lists. Pages are always cut from a full
// list, so a cached list serves every offset and limit.
type Cache interface {
	Ranked(ctx context.Context, index string, order ranker.Order, query string, compute ComputeFunc) ([]ranker.Hit, error)
}

type Option func(*Executor)

func WithCache(c Cache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithRegexTimeout bounds each regular-expression dictionary scan. Zero
// leaves only the caller's context in charge.
func WithRegexTimeout(d time.Duration) Option {
	return func(e *Executor) { e.regexTimeout = d }
}

type Executor struct {
	stores       Stores
	objects      Objects
	cache        Cache
	metrics      *metrics.Metrics
	regexTimeout time.Duration
	logger       *slog.Logger
}

func New(stores Stores, objects Objects, opts ...Option) *Executor {
	e := &Executor{
		stores:  stores,
		objects: objects,
		logger:  slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank returns every document of indexName matching keywords, ordered by
// order. An empty keyword list, or one holding only prohibited keywords,
// matches nothing.
func (e *Executor) Rank(ctx context.Context, indexName string, order ranker.Order, keywords []parser.Keyword) ([]ranker.Hit, error) {
	if !hasPositive(keywords) {
		return nil, nil
	}
	store, err := e.stores.Store(ctx, indexName)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "rank", "")
	defer span.End()

	start := time.Now()
	query := parser.Canonical(keywords)
	span.Set("query", query)
	compute := func(ctx context.Context) ([]ranker.Hit, error) {
		hits, err := e.evaluate(ctx, store, keywords)
		if err != nil {
			return nil, err
		}
		ranker.Rank(hits, order)
		return hits, nil
	}

	var hits []ranker.Hit
	if e.cache != nil {
		hits, err = e.cache.Ranked(ctx, indexName, order, query, compute)
	} else {
		hits, err = compute(ctx)
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case len(hits) == 0:
		outcome = "empty"
	}
	span.Set("hits", len(hits))
	e.metrics.ObserveSearch(indexName, order.String(), outcome, len(hits), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("searching %s for %q: %w", indexName, query, err)
	}

	logger.FromContext(ctx).Debug("query executed",
		"index", indexName,
		"query", query,
		"order", order.String(),
		"hits", len(hits),
		"duration", time.Since(start),
	)
	return hits, nil
}

func hasPositive(keywords []parser.Keyword) bool {
	for _, k := range keywords {
		if k.Modifier() != parser.Prohibited {
			return true
		}
	}
	return false
}

// evaluate resolves every keyword concurrently inside one consistent view of
// the store and combines the per-keyword matches.
func (e *Executor) evaluate(ctx context.Context, store *index.Store, keywords []parser.Keyword) ([]ranker.Hit, error) {
	var hits []ranker.Hit
	err := store.View(ctx, func(r index.Reader) error {
		matches := make([]docMatches, len(keywords))
		g, gctx := errgroup.WithContext(ctx)
		for i, kw := range keywords {
			g.Go(func() error {
				m, err := e.resolve(gctx, r, kw)
				if err != nil {
					return fmt.Errorf("resolving %s: %w", kw, err)
				}
				matches[i] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		candidates := combine(keywords, matches)
		hits = make([]ranker.Hit, 0, len(candidates))
		for _, docKey := range candidates {
			ref, ok, err := r.Reference(ctx, docKey)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			hits = append(hits, score(docKey, ref, keywords, matches))
		}
		return nil
	})
	return hits, err
}

// combine applies required/optional/prohibited semantics. With required
// keywords a document must match all of them; otherwise it must match at
// least one optional keyword. Matching any prohibited keyword excludes it.
func combine(keywords []parser.Keyword, matches []docMatches) []string {
	var (
		required   []docMatches
		optional   []docMatches
		prohibited []docMatches
	)
	for i, kw := range keywords {
		switch kw.Modifier() {
		case parser.Required:
			required = append(required, matches[i])
		case parser.Prohibited:
			prohibited = append(prohibited, matches[i])
		default:
			optional = append(optional, matches[i])
		}
	}

	candidates := make(map[string]struct{})
	if len(required) > 0 {
		for docKey := range required[0] {
			inAll := true
			for _, m := range required[1:] {
				if _, ok := m[docKey]; !ok {
					inAll = false
					break
				}
			}
			if inAll {
				candidates[docKey] = struct{}{}
			}
		}
	} else {
		for _, m := range optional {
			for docKey := range m {
				candidates[docKey] = struct{}{}
			}
		}
	}
	for _, m := range prohibited {
		for docKey := range m {
			delete(candidates, docKey)
		}
	}

	out := make([]string, 0, len(candidates))
	for docKey := range candidates {
		out = append(out, docKey)
	}
	return out
}

// score builds the relevance tuple of one candidate from every
// non-prohibited keyword it matched.
func score(docKey string, ref index.ObjectReference, keywords []parser.Keyword, matches []docMatches) ranker.Hit {
	hit := ranker.Hit{
		DocKey:         docKey,
		Ref:            ref,
		KeywordMatches: make([]int, len(keywords)),
	}
	distinct := make(map[string]struct{})
	for i, kw := range keywords {
		if kw.Modifier() == parser.Prohibited {
			continue
		}
		m, ok := matches[i][docKey]
		if !ok {
			continue
		}
		hit.KeywordMatches[i] = m.occurrences
		hit.Occurrences += m.occurrences
		for t := range m.tokens {
			distinct[t] = struct{}{}
		}
	}
	hit.Distinct = len(distinct)
	return hit
}
