package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearch("articles", "relevance", "ok", 3, time.Millisecond)
		m.CacheHit("local")
		m.CacheMiss()
		m.IndexEvent("articles", "indexed")
		m.Flush(nil)
		m.RegexTimeout()
		m.IndexSize("articles", 1, 1)
		m.BreakerState("redis", 1)
		m.RateLimited()
		m.RequestStarted("GET")("GET /", 200)
	})
}

func TestRecording(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSearch("articles", "relevance", "ok", 3, time.Millisecond)
	m.ObserveSearch("articles", "relevance", "error", 0, time.Millisecond)
	m.CacheHit("local")
	m.CacheHit("local")
	m.Flush(errors.New("disk full"))
	m.IndexSize("articles", 10, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("articles", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("articles", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexFlushesTotal.WithLabelValues("error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.IndexTokens.WithLabelValues("articles")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexDocuments.WithLabelValues("articles")))
}

func TestRequestStarted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done := m.RequestStarted("GET")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
	done("GET /api/v1/search", 200)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/v1/search", "200")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CacheMiss()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fts_cache_misses_total 1")
}
