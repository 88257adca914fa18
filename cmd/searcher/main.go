package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	go reloadLogLevel(*configPath)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"backend", cfg.Index.Backend,
		"data_dir", cfg.Index.DataDir,
	)

	g, ctx := errgroup.WithContext(ctx)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		g.Go(func() error { return metrics.Serve(ctx, cfg.Metrics.Port, reg) })
	}

	svc, err := search.Open(ctx, cfg, search.WithMetrics(m))
	if err != nil {
		stop()
		g.Wait()
		return fmt.Errorf("opening search service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("closing search service", "error", err)
		}
	}()
	svc.Start(ctx)

	kafkaEnabled := len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topics.Documents != ""
	if kafkaEnabled {
		docs := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents, consumer.HandleMessage(svc.Objects))
		defer docs.Close()
		g.Go(func() error { return docs.Start(ctx) })
		slog.Info("document consumer started", "topic", cfg.Kafka.Topics.Documents)
	}

	h, err := handler.New(svc, cfg.Search)
	if err != nil {
		stop()
		g.Wait()
		return err
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(h, router.NewChecker(svc, kafkaEnabled), router.OptionsFromConfig(cfg, m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	start := time.Now()
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("http server closed", "uptime", time.Since(start).Round(time.Second))
	return err
}

// reloadLogLevel re-reads the config file on SIGHUP and applies its log
// level. Other settings need a restart.
func reloadLogLevel(configPath string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		cfg, err := config.Load(configPath)
		if err != nil {
			slog.Error("reloading config", "error", err)
			continue
		}
		logger.Level.Set(logger.ParseLevel(cfg.Logging.Level))
		slog.Info("log level reloaded", "level", logger.Level.Level())
	}
}
