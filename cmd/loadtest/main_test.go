package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
)

func TestDefaultQueriesParse(t *testing.T) {
	for _, q := range defaultQueries {
		_, err := parser.Parse(q, false)
		assert.NoError(t, err, q)
	}
}

func TestSearchURL_Rotates(t *testing.T) {
	cfg := Config{BaseURL: "http://x", Index: "docs", Queries: []string{"a", "b"}, Orders: []string{"newest", "oldest", "relevance"}}

	u, err := url.Parse(searchURL(cfg, 4))
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/search", u.Path)
	q := u.Query()
	assert.Equal(t, "docs", q.Get("index"))
	assert.Equal(t, "a", q.Get("q"))
	assert.Equal(t, "oldest", q.Get("order"))
	assert.Equal(t, "10", q.Get("offset"))
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestSeedAndRunAgainstHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Index.Collections = map[string]config.CollectionConfig{"documents": {IndexCollection: "documents"}}
	svc, err := search.Open(context.Background(), cfg, search.WithProvider(dictionary.NewMemoryProvider(nil)))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	h, err := handler.New(svc, cfg.Search)
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	lc := Config{
		BaseURL:     srv.URL,
		Index:       "documents",
		Collection:  "documents",
		Concurrency: 2,
		Duration:    200 * time.Millisecond,
		Seed:        30,
		Queries:     defaultQueries,
		Orders:      []string{"relevance", "newest"},
	}
	client := newClient(lc.Concurrency)

	n, err := seedDocuments(context.Background(), client, lc)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Equal(t, 30, svc.Objects.Count("documents"))

	stats := runLoadTest(context.Background(), client, lc)
	assert.Positive(t, stats.success.Load())
	assert.Zero(t, stats.failed.Load())

	var out bytes.Buffer
	assert.True(t, printReport(&out, stats, lc.Duration))
	assert.Contains(t, out.String(), "200: ")
}

func TestPrintReport_NoRequests(t *testing.T) {
	var out bytes.Buffer
	assert.False(t, printReport(&out, NewStats(), time.Second))
	assert.Contains(t, out.String(), "No requests completed")
}
