// Package router wires the search service's HTTP surface: API routes,
// health probes and the middleware chain.
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/middleware"
)

type Options struct {
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	CORSOrigins    []string
	RateLimit      config.RateLimitConfig
}

func OptionsFromConfig(cfg *config.Config, m *metrics.Metrics) Options {
	return Options{
		Metrics:        m,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimit:      cfg.RateLimit,
	}
}

// NewChecker registers the readiness checks of svc. The index check is
// required; Redis and Kafka only degrade the service.
func NewChecker(svc *search.Service, kafkaEnabled bool) *health.Checker {
	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats, err := svc.Registry.Stats(ctx)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d index collections open", len(stats))}
	})
	if svc.Redis != nil {
		checker.Register("redis", health.Ping(svc.Redis.Ping, false))
	} else {
		checker.Register("redis", health.Disabled("not configured"))
	}
	if !kafkaEnabled {
		checker.Register("kafka", health.Disabled("no brokers configured"))
	}
	return checker
}

// New builds the full HTTP handler.
//
// Route table:
//
//	GET    /api/v1/search                                 ranked search
//	GET    /api/v1/parse                                  parse a query
//	POST   /api/v1/tokenize                               tokenize a document
//	GET    /api/v1/indexes                                list index collections
//	GET    /api/v1/indexes/{name}/stats                   token and document counts
//	POST   /api/v1/indexes/{name}/reindex                 rebuild from the object store
//	PUT    /api/v1/collections/{collection}/documents     insert or replace a document
//	DELETE /api/v1/collections/{collection}/documents/{id}
//	GET    /health/live, /health/ready
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → RateLimit → Timeout → mux
func New(h *handler.Handler, checker *health.Checker, opts Options) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(opts.RequestTimeout)(chain)
	if opts.RateLimit.Enabled {
		chain = middleware.NewRateLimiter(opts.RateLimit.RPS, opts.RateLimit.Burst, opts.Metrics).Middleware(chain)
	}
	chain = middleware.Metrics(opts.Metrics)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(opts.CORSOrigins...))(chain)
	chain = middleware.RequestID(chain)
	return chain
}
