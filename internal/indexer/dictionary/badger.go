package dictionary

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerProvider keeps every dictionary in one badger database, each under
// its own key namespace.
type BadgerProvider struct {
	db *badger.DB
}

// OpenBadger opens a badger database in dataDir, or a purely in-memory one
// when inMemory is set.
func OpenBadger(dataDir string, inMemory bool) (*BadgerProvider, error) {
	opts := badger.DefaultOptions(dataDir).WithNumVersionsToKeep(1).WithLoggingLevel(badger.WARNING)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating badger directory: %w", err)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &BadgerProvider{db: db}, nil
}

func (p *BadgerProvider) GetDictionary(_ context.Context, name string) (Dictionary, error) {
	return &Badger{db: p.db, ns: name + "\x00"}, nil
}

func (p *BadgerProvider) Close() error {
	return p.db.Close()
}

// Badger is a Dictionary over one namespace of a badger database.
type Badger struct {
	db *badger.DB
	ns string
}

func (b *Badger) key(k string) []byte {
	return []byte(b.ns + k)
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), value)
	})
}

func (b *Badger) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
}

func (b *Badger) Scan(ctx context.Context, prefix string, fn ScanFunc) error {
	p := b.key(prefix)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key()[len(b.ns):])
			err := item.Value(func(v []byte) error {
				return fn(key, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return stopped(err)
}

// Batch commits in one transaction. A batch too large for a single badger
// transaction fails as a whole.
func (b *Badger) Batch(_ context.Context, puts map[string][]byte, deletes []string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range deletes {
			if err := txn.Delete(b.key(key)); err != nil {
				return err
			}
		}
		for key, value := range puts {
			if err := txn.Set(b.key(key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) Clear(_ context.Context) error {
	return b.db.DropPrefix([]byte(b.ns))
}
