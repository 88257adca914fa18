package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFile = ".lock"

// Store owns a snapshot directory. It holds an exclusive file lock on the
// directory for its lifetime so two processes never write the same snapshots.
type Store struct {
	dir    string
	lock   *flock.Flock
	writer *Writer
	logger *slog.Logger
}

// OpenStore creates dir if needed and locks it.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking snapshot directory %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("snapshot directory %s is locked by another process", dir)
	}
	return &Store{
		dir:    dir,
		lock:   lock,
		writer: NewWriter(dir),
		logger: slog.Default().With("component", "segment-store"),
	}, nil
}

// Save replaces the snapshot of the named dictionary.
func (s *Store) Save(name string, entries []Entry) error {
	path, err := s.writer.Write(name, entries)
	if err != nil {
		return err
	}
	s.logger.Debug("snapshot written", "dictionary", name, "entries", len(entries), "path", path)
	return nil
}

// Load returns the snapshot of the named dictionary, or nil if none exists.
func (s *Store) Load(name string) ([]Entry, error) {
	r, err := OpenReader(filepath.Join(s.dir, FileName(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	s.logger.Info("snapshot loaded", "dictionary", name, "entries", r.Len())
	return r.Entries(), nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Close releases the directory lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}
