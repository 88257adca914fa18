package dictionary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

const boltFile = "index.db"

// BoltProvider stores each dictionary in its own bucket of one bbolt file.
type BoltProvider struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) dataDir/index.db.
func OpenBolt(dataDir string) (*BoltProvider, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bolt directory: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dataDir, boltFile), 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	return &BoltProvider{db: db}, nil
}

func (p *BoltProvider) GetDictionary(_ context.Context, name string) (Dictionary, error) {
	bucket := []byte(name)
	err := p.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket %q: %w", name, err)
	}
	return &Bolt{db: p.db, bucket: bucket}, nil
}

func (p *BoltProvider) Close() error {
	return p.db.Close()
}

// Bolt is a Dictionary over one bbolt bucket.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

func (b *Bolt) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get([]byte(key)); v != nil {
			value = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (b *Bolt) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), nonNil(value))
	})
}

func (b *Bolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
}

func (b *Bolt) Scan(ctx context.Context, prefix string, fn ScanFunc) error {
	p := []byte(prefix)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(string(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	return stopped(err)
}

func (b *Bolt) Batch(_ context.Context, puts map[string][]byte, deletes []string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for _, key := range deletes {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		for key, value := range puts {
			if err := bucket.Put([]byte(key), nonNil(value)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Clear(_ context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(b.bucket); err != nil && !errors.Is(err, berrors.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(b.bucket)
		return err
	})
}

func nonNil(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}
