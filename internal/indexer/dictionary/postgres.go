package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS fts_dictionary (
    name  TEXT  NOT NULL,
    key   BYTEA NOT NULL,
    value BYTEA NOT NULL,
    PRIMARY KEY (name, key)
)`

// PostgresProvider stores all dictionaries in the fts_dictionary table.
type PostgresProvider struct {
	client *postgres.Client
}

// NewPostgresProvider creates the dictionary table if it does not exist.
func NewPostgresProvider(ctx context.Context, client *postgres.Client) (*PostgresProvider, error) {
	if _, err := client.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating dictionary table: %w", err)
	}
	return &PostgresProvider{client: client}, nil
}

func (p *PostgresProvider) GetDictionary(_ context.Context, name string) (Dictionary, error) {
	return &Postgres{client: p.client, name: name}, nil
}

func (p *PostgresProvider) Close() error {
	return p.client.Close()
}

// Postgres is a Dictionary over the rows of one name. BYTEA keys compare
// bytewise, which gives the same ordering as the other backends.
type Postgres struct {
	client *postgres.Client
	name   string
}

func (d *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := d.client.DB.QueryRowContext(ctx,
		`SELECT value FROM fts_dictionary WHERE name = $1 AND key = $2`,
		d.name, []byte(key),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading key: %w", err)
	}
	return value, true, nil
}

func (d *Postgres) Set(ctx context.Context, key string, value []byte) error {
	return d.client.InTx(ctx, func(tx *sql.Tx) error {
		return upsert(ctx, tx, d.name, key, value)
	})
}

func (d *Postgres) Delete(ctx context.Context, key string) error {
	_, err := d.client.DB.ExecContext(ctx,
		`DELETE FROM fts_dictionary WHERE name = $1 AND key = $2`, d.name, []byte(key))
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	return nil
}

func (d *Postgres) Scan(ctx context.Context, prefix string, fn ScanFunc) error {
	var (
		rows *sql.Rows
		err  error
	)
	if end := prefixEnd(prefix); end != "" {
		rows, err = d.client.DB.QueryContext(ctx,
			`SELECT key, value FROM fts_dictionary
			 WHERE name = $1 AND key >= $2 AND key < $3 ORDER BY key`,
			d.name, []byte(prefix), []byte(end))
	} else {
		rows, err = d.client.DB.QueryContext(ctx,
			`SELECT key, value FROM fts_dictionary
			 WHERE name = $1 AND key >= $2 ORDER BY key`,
			d.name, []byte(prefix))
	}
	if err != nil {
		return fmt.Errorf("scanning prefix: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("reading row: %w", err)
		}
		if err := fn(string(key), value); err != nil {
			return stopped(err)
		}
	}
	return rows.Err()
}

func (d *Postgres) Batch(ctx context.Context, puts map[string][]byte, deletes []string) error {
	return d.client.InTx(ctx, func(tx *sql.Tx) error {
		for _, key := range deletes {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM fts_dictionary WHERE name = $1 AND key = $2`, d.name, []byte(key)); err != nil {
				return fmt.Errorf("deleting key: %w", err)
			}
		}
		for key, value := range puts {
			if err := upsert(ctx, tx, d.name, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Postgres) Clear(ctx context.Context) error {
	_, err := d.client.DB.ExecContext(ctx, `DELETE FROM fts_dictionary WHERE name = $1`, d.name)
	if err != nil {
		return fmt.Errorf("clearing dictionary: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, name, key string, value []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO fts_dictionary (name, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (name, key) DO UPDATE SET value = EXCLUDED.value`,
		name, []byte(key), nonNil(value))
	if err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}
