// Package registry maps index-collection names to their index stores. Stores
// are opened lazily on first use, each over its own named dictionary.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

// OpenFunc is called once for every store the registry opens.
type OpenFunc func(store *index.Store)

type Registry struct {
	provider dictionary.Provider
	mu       sync.RWMutex
	stores   map[string]*index.Store
	onOpen   []OpenFunc
	logger   *slog.Logger
}

func New(provider dictionary.Provider) *Registry {
	return &Registry{
		provider: provider,
		stores:   make(map[string]*index.Store),
		logger:   slog.Default().With("component", "index-registry"),
	}
}

// OnOpen registers fn for stores opened from now on and calls it for every
// store that is already open.
func (r *Registry) OnOpen(fn OpenFunc) {
	r.mu.Lock()
	r.onOpen = append(r.onOpen, fn)
	open := make([]*index.Store, 0, len(r.stores))
	for _, s := range r.stores {
		open = append(open, s)
	}
	r.mu.Unlock()

	for _, s := range open {
		fn(s)
	}
}

// Store returns the index store for name, opening it if needed.
func (r *Registry) Store(ctx context.Context, name string) (*index.Store, error) {
	if name == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "index collection name is required")
	}

	r.mu.RLock()
	s, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	if s, ok := r.stores[name]; ok {
		r.mu.Unlock()
		return s, nil
	}
	dict, err := r.provider.GetDictionary(ctx, name)
	if err != nil {
		r.mu.Unlock()
		return nil, apperrors.StoreErr(fmt.Sprintf("opening dictionary %q", name), err)
	}
	s = index.New(name, dict)
	r.stores[name] = s
	hooks := slices.Clone(r.onOpen)
	r.mu.Unlock()

	r.logger.Info("index store opened", "index", name)
	for _, fn := range hooks {
		fn(s)
	}
	return s, nil
}

// Names lists the open stores in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Flush persists in-memory dictionaries. It is a no-op for backends that
// write through.
func (r *Registry) Flush(ctx context.Context) error {
	f, ok := r.provider.(dictionary.Flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(ctx); err != nil {
		r.logger.Error("flush failed", "error", err)
		return fmt.Errorf("flushing dictionaries: %w", err)
	}
	return nil
}

// Stats reports statistics for every open store.
func (r *Registry) Stats(ctx context.Context) ([]index.Stats, error) {
	var (
		out  []index.Stats
		errs []error
	)
	for _, name := range r.Names() {
		s, err := r.Store(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		st, err := s.Stats(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("stats for %s: %w", name, err))
			continue
		}
		out = append(out, st)
	}
	return out, errors.Join(errs...)
}

// Close closes the underlying provider.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]*index.Store)
	return r.provider.Close()
}
