// Package postgres opens the lib/pq connection pool used by the postgres
// dictionary backend and runs work inside transactions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/resilience"
)

type Client struct {
	DB     *sql.DB
	logger *slog.Logger
}

// Open connects to the database in cfg. The first ping is retried so the
// service can start alongside a database that is still coming up.
func Open(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = resilience.Retry(ctx, "postgres ping", resilience.Backoff{Attempts: 3, Base: 250 * time.Millisecond}, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, 5*time.Second, "postgres ping", db.PingContext)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Client{
		DB:     db,
		logger: slog.Default().With("component", "postgres", "host", cfg.Host, "database", cfg.Database),
	}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// InTx runs fn in a transaction and commits if fn succeeds. Transactions
// aborted by a serialization failure or deadlock are run again from the
// start, so fn must not keep state across calls.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return resilience.Retry(ctx, "postgres transaction", resilience.Backoff{Attempts: 4, Base: 20 * time.Millisecond}, func(ctx context.Context) error {
		err := c.runTx(ctx, fn)
		if err != nil && !retryable(err) {
			return resilience.Permanent(err)
		}
		return err
	})
}

func (c *Client) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// retryable reports whether err aborted the transaction for reasons a
// fresh attempt can get past.
func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}
