// Package search wires the indexing engine and the query executor into one
// Service. It is the entry point used by the HTTP service, the CLI and by
// programs embedding the engine: ParseKeywords turns a query string into
// keywords, FullTextSearch returns one page of typed objects and Tokenize
// shows how a document would be indexed.
package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/registry"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/objectstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/redis"
)

type options struct {
	provider  dictionary.Provider
	metrics   *metrics.Metrics
	publisher indexer.Publisher
	objects   *objectstore.Store
}

type Option func(*options)

// WithProvider replaces the dictionary backend named in the configuration.
func WithProvider(p dictionary.Provider) Option {
	return func(o *options) { o.provider = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPublisher overrides the Kafka producer built from the configuration.
func WithPublisher(p indexer.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithObjectStore(s *objectstore.Store) Option {
	return func(o *options) { o.objects = s }
}

type Service struct {
	Objects  *objectstore.Store
	Registry *registry.Registry
	Indexer  *indexer.Engine
	Executor *executor.Executor
	// Cache is nil when Search.CacheSize is zero.
	Cache *cache.QueryCache
	// Redis is nil unless a reachable Redis address is configured.
	Redis *pkgredis.Client

	cfg      *config.Config
	producer *kafka.Producer
	logger   *slog.Logger
}

// Open builds a Service from cfg. An unreachable Redis only disables the
// shared cache tier; a dictionary backend that cannot be opened is fatal.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{
		cfg:    cfg,
		logger: slog.Default().With("component", "search"),
	}

	provider := o.provider
	if provider == nil {
		var err error
		provider, err = dictionary.Open(ctx, cfg.Index, cfg.Postgres)
		if err != nil {
			return nil, err
		}
	}
	s.Registry = registry.New(provider)

	s.Objects = o.objects
	if s.Objects == nil {
		s.Objects = objectstore.New()
	}

	if cfg.Redis.Addr != "" {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			s.logger.Warn("redis unavailable, shared cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			s.Redis = client
		}
	}

	execOpts := []executor.Option{
		executor.WithMetrics(o.metrics),
		executor.WithRegexTimeout(cfg.Index.RegexTimeout),
	}
	if cfg.Search.CacheSize > 0 {
		c, err := cache.New(cache.Options{
			Size:    cfg.Search.CacheSize,
			TTL:     cfg.Redis.CacheTTL,
			Remote:  s.Redis,
			Metrics: o.metrics,
		})
		if err != nil {
			s.closeClients()
			s.Registry.Close()
			return nil, err
		}
		s.Cache = c
		s.Registry.OnOpen(c.Attach)
		execOpts = append(execOpts, executor.WithCache(c))
	}

	indexOpts := []indexer.Option{indexer.WithMetrics(o.metrics)}
	switch {
	case o.publisher != nil:
		indexOpts = append(indexOpts, indexer.WithPublisher(o.publisher))
	case len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topics.Indexed != "":
		s.producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Indexed)
		indexOpts = append(indexOpts, indexer.WithPublisher(s.producer))
	}

	s.Indexer = indexer.NewEngine(s.Registry, s.Objects, indexOpts...)
	s.Indexer.Configure(cfg.Index.Collections)
	s.Executor = executor.New(s.Registry, s.Objects, execOpts...)

	s.logger.Info("search service opened",
		"backend", cfg.Index.Backend,
		"collections", len(cfg.Index.Collections),
		"cache", s.Cache != nil,
		"shared_cache", s.Redis != nil,
		"publisher", o.publisher != nil || s.producer != nil,
	)
	return s, nil
}

// Start runs the background work: index event forwarding and periodic
// flushing. It returns immediately; everything stops when ctx ends. The
// result cache does not depend on it.
func (s *Service) Start(ctx context.Context) {
	s.Indexer.Start(ctx, s.cfg.Index.FlushInterval)
}

// ParseKeywords parses a query. With treatAsPrefixes every bare word is
// matched as a prefix.
func ParseKeywords(query string, treatAsPrefixes bool) ([]parser.Keyword, error) {
	return parser.Parse(query, treatAsPrefixes)
}

// FullTextSearch returns one page of objects of type T from indexCollection
// matching keywords, in order, paginated by strategy.
func FullTextSearch[T any](ctx context.Context, s *Service, indexCollection string, offset, limit int, order ranker.Order, strategy executor.Strategy, keywords []parser.Keyword) ([]T, error) {
	return executor.Search[T](ctx, s.Executor, indexCollection, offset, limit, order, strategy, keywords)
}

// Tokenize returns the token counts obj would be indexed with as a member
// of collection.
func (s *Service) Tokenize(collection string, obj objectstore.Object) []tokenizer.TokenCount {
	return s.Indexer.Tokenize(collection, obj)
}

// Subscribe returns the notifications of indexCollection. An event arrives
// once per object after it has been completely indexed or removed, and a
// search made after receiving it sees the write. Writers to the index wait
// while the channel's buffer is full, so keep reading until cancel is
// called.
func (s *Service) Subscribe(ctx context.Context, indexCollection string, buffer int) (<-chan index.Event, func(), error) {
	store, err := s.Registry.Store(ctx, indexCollection)
	if err != nil {
		return nil, nil, err
	}
	events, cancel := store.Subscribe(buffer)
	return events, cancel, nil
}

// Close flushes and closes the indexes, then the external clients.
func (s *Service) Close() error {
	err := s.Indexer.Close()
	return errors.Join(err, s.closeClients())
}

func (s *Service) closeClients() error {
	var errs []error
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}
