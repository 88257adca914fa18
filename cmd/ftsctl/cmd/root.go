// Package cmd provides the commands of the ftsctl CLI.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/logger"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	backend    string
	dataDir    string
	logLevel   string
	format     string

	cfg *config.Config
}

// NewRootCmd creates the root command for the ftsctl CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ftsctl",
		Short: "Inspect, build and query full-text indexes",
		Long: `ftsctl tokenizes documents, parses queries and builds and searches
full-text indexes using the same engine as the search service.

Documents are read as JSON lines, one record per line:
  {"id":"1","created":"2024-01-02T15:04:05Z","fields":[{"name":"Title","value":"..."}]}`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Dictionary backend: memory, bolt, badger, postgres")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Index data directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	cmd.AddCommand(newTokenizeCmd(opts))
	cmd.AddCommand(newParseCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) load(stderr io.Writer) error {
	slog.SetDefault(logger.New(stderr, o.logLevel, "text"))

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.backend != "" {
		cfg.Index.Backend = o.backend
	}
	if o.dataDir != "" {
		cfg.Index.DataDir = o.dataDir
	}
	// The CLI is short-lived: no flush loop, no publishing, no shared cache.
	cfg.Index.FlushInterval = 0
	cfg.Kafka.Brokers = nil
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch o.format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q: want text or json", o.format)
	}
	o.cfg = cfg
	return nil
}

// open opens the configured indexes. The caller must Close the service so
// memory dictionaries are flushed.
func (o *globalOptions) open(ctx context.Context) (*search.Service, error) {
	return search.Open(ctx, o.cfg)
}
