package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/registry"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/objectstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
)

// BenchmarkQueryParse measures query parsing latency for queries of varying
// complexity.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "distributed systems"},
		{"required", "+search +analytics platform"},
		{"prohibited", "distributed -monolithic"},
		{"sequence", "'distributed search engine'"},
		{"regex", "/index(ing|er)?/ +query"},
		{"prefix", "distrib* sea*"},
		{"long", "distributed search analytics platform indexing query processing ranking caching"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				keywords, err := parser.Parse(q.query, false)
				if err != nil {
					b.Fatal(err)
				}
				_ = keywords
			}
		})
	}
}

// BenchmarkRank measures sorting hit lists under every order.
func BenchmarkRank(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	orders := []ranker.Order{ranker.Relevance, ranker.Occurrences, ranker.Newest, ranker.Oldest}
	for _, n := range sizes {
		hits := make([]ranker.Hit, n)
		for i := range hits {
			hits[i] = ranker.Hit{
				DocKey:      fmt.Sprintf("posts\x1edoc-%d", i),
				Ref:         index.ObjectReference{Collection: "posts", ObjectID: fmt.Sprintf("doc-%d", i), Created: time.Unix(int64(i*7919%n), 0)},
				Occurrences: i%10 + 1,
				Distinct:    i%3 + 1,
			}
		}
		for _, order := range orders {
			b.Run(fmt.Sprintf("%s/hits_%d", order, n), func(b *testing.B) {
				work := make([]ranker.Hit, n)
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					copy(work, hits)
					ranker.Rank(work, order)
				}
			})
		}
	}
}

type corpus struct {
	objects *objectstore.Store
	reg     *registry.Registry
}

func newCorpus(b *testing.B, docs int) corpus {
	b.Helper()
	ctx := context.Background()
	reg := registry.New(dictionary.NewMemoryProvider(nil))
	b.Cleanup(func() { reg.Close() })
	objects := objectstore.New()
	engine := indexer.NewEngine(reg, objects)
	engine.SetFullTextSearchIndexCollection("posts", "articles")
	for i := 0; i < docs; i++ {
		rec := document.Text(fmt.Sprintf("doc-%d", i), time.Unix(int64(i), 0),
			"Title", fmt.Sprintf("document about %s and %s", terms[i%len(terms)], terms[(i+1)%len(terms)]),
			"Body", docText(i))
		if err := objects.Put(ctx, "posts", rec); err != nil {
			b.Fatal(err)
		}
	}
	return corpus{objects: objects, reg: reg}
}

func mustParse(b *testing.B, query string) []parser.Keyword {
	b.Helper()
	keywords, err := parser.Parse(query, false)
	if err != nil {
		b.Fatal(err)
	}
	return keywords
}

// BenchmarkExecutor measures ranking a full result list over 10 000
// documents for each keyword kind.
func BenchmarkExecutor(b *testing.B) {
	c := newCorpus(b, 10000)
	exec := executor.New(c.reg, c.objects)
	queries := []struct {
		name  string
		query string
	}{
		{"term", "ranking"},
		{"boolean", "+search analytics -platform"},
		{"prefix", "distrib*"},
		{"regex", "/(search|query)/"},
		{"sequence", "'distributed and search'"},
	}
	for _, q := range queries {
		keywords := mustParse(b, q.query)
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				hits, err := exec.Rank(context.Background(), "articles", ranker.Relevance, keywords)
				if err != nil {
					b.Fatal(err)
				}
				_ = hits
			}
		})
	}
}

func BenchmarkExecutorParallel(b *testing.B) {
	c := newCorpus(b, 10000)
	exec := executor.New(c.reg, c.objects)
	keywords := mustParse(b, "+search analytics")

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := exec.Rank(context.Background(), "articles", ranker.Relevance, keywords); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkSearchPage measures fetching one page of objects per
// pagination strategy, with and without the ranked-result cache.
func BenchmarkSearchPage(b *testing.B) {
	c := newCorpus(b, 10000)
	queryCache, err := cache.New(cache.Options{Size: 128})
	if err != nil {
		b.Fatal(err)
	}
	executors := map[string]*executor.Executor{
		"uncached": executor.New(c.reg, c.objects),
		"cached":   executor.New(c.reg, c.objects, executor.WithCache(queryCache)),
	}
	strategies := []executor.Strategy{
		executor.PaginateOverObjectsNullIfIncompatible,
		executor.PaginateOverObjectsOnlyCompatible,
		executor.PaginateOverCompatibleObjects,
	}
	keywords := mustParse(b, "search")

	for name, exec := range executors {
		for _, strategy := range strategies {
			b.Run(fmt.Sprintf("%s/%s", name, strategy), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					page, err := executor.Search[*document.Record](context.Background(), exec, "articles",
						100, 20, ranker.Newest, strategy, keywords)
					if err != nil {
						b.Fatal(err)
					}
					_ = page
				}
			})
		}
	}
}
