// Package metrics defines the Prometheus collectors used by the search
// service and exposes an HTTP handler for scraping.
//
// Every recording method is safe to call on a nil *Metrics, so components can
// run without metrics in tests and in the CLI.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     prometheus.Counter
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	RegexTimeoutsTotal   prometheus.Counter
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     prometheus.Counter
	IndexEventsTotal     *prometheus.CounterVec
	IndexFlushesTotal    *prometheus.CounterVec
	IndexTokens          *prometheus.GaugeVec
	IndexDocuments       *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fts_search_queries_total",
				Help: "Total search queries by index and outcome (ok, empty, error).",
			},
			[]string{"index", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fts_search_latency_seconds",
				Help:    "Time to produce a ranked hit list, by order.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"order"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fts_search_hits",
				Help:    "Number of ranked hits per query before pagination.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		RegexTimeoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fts_regex_scan_timeouts_total",
				Help: "Regular expression keyword scans cut short by their deadline.",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fts_cache_hits_total",
				Help: "Ranked-result cache hits by tier (local, redis).",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fts_cache_misses_total",
				Help: "Ranked-result cache misses.",
			},
		),
		IndexEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fts_index_events_total",
				Help: "Completed index writes by index and event (indexed, deindexed).",
			},
			[]string{"index", "event"},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fts_index_flushes_total",
				Help: "Dictionary flush operations by status.",
			},
			[]string{"status"},
		),
		IndexTokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fts_index_tokens",
				Help: "Distinct tokens per index collection.",
			},
			[]string{"index"},
		),
		IndexDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fts_index_documents",
				Help: "Indexed documents per index collection.",
			},
			[]string{"index"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RateLimitedTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.RegexTimeoutsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexEventsTotal,
		m.IndexFlushesTotal,
		m.IndexTokens,
		m.IndexDocuments,
		m.CircuitBreakerState,
	)

	return m
}

func (m *Metrics) ObserveSearch(index, order, outcome string, hits int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(index, outcome).Inc()
	m.SearchLatency.WithLabelValues(order).Observe(elapsed.Seconds())
	if outcome != "error" {
		m.SearchResultsCount.Observe(float64(hits))
	}
}

func (m *Metrics) RegexTimeout() {
	if m == nil {
		return
	}
	m.RegexTimeoutsTotal.Inc()
}

func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) IndexEvent(index, event string) {
	if m == nil {
		return
	}
	m.IndexEventsTotal.WithLabelValues(index, event).Inc()
}

func (m *Metrics) Flush(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.IndexFlushesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IndexSize(index string, tokens, documents int) {
	if m == nil {
		return
	}
	m.IndexTokens.WithLabelValues(index).Set(float64(tokens))
	m.IndexDocuments.WithLabelValues(index).Set(float64(documents))
}

func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

// RequestStarted bumps the in-flight gauge and returns the func that
// records the finished request under its route label.
func (m *Metrics) RequestStarted(method string) func(route string, status int) {
	if m == nil {
		return func(string, int) {}
	}
	start := time.Now()
	m.HTTPRequestsInFlight.Inc()
	return func(route string, status int) {
		m.HTTPRequestsInFlight.Dec()
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
