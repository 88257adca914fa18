// Package objectstore keeps objects in named collections ordered by id and
// notifies registered hooks whenever an object is inserted, updated or
// deleted. Queries are served through cursors.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/huandu/skiplist"
	farmhash "github.com/leemcloughlin/gofarmhash"

	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

const lockStripes = 64

// Object is anything stored in a collection.
type Object interface {
	ObjectID() string
}

type ChangeType int

const (
	ObjectInserted ChangeType = iota
	ObjectUpdated
	ObjectDeleted
)

func (c ChangeType) String() string {
	switch c {
	case ObjectInserted:
		return "inserted"
	case ObjectUpdated:
		return "updated"
	case ObjectDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change describes one committed write. Previous is set for updates and
// deletes.
type Change struct {
	Collection string
	Type       ChangeType
	Object     Object
	Previous   Object
}

// Hook is called after every committed write, in registration order.
// Writes to the same object are serialized until their hooks return, so a
// hook sees the changes of one object in commit order. A hook must not
// write the object it was called for.
type Hook func(ctx context.Context, change Change) error

// Store holds every collection in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*skiplist.SkipList
	locks       []sync.RWMutex
	objects     objectLocks
	hooksMu     sync.RWMutex
	hooks       []Hook
	logger      *slog.Logger
}

func New() *Store {
	return &Store{
		collections: make(map[string]*skiplist.SkipList),
		locks:       make([]sync.RWMutex, lockStripes),
		objects:     objectLocks{held: make(map[objectKey]*objectLock)},
		logger:      slog.Default().With("component", "object-store"),
	}
}

// getLock maps a collection onto one of the lock stripes.
func (s *Store) getLock(collection string) *sync.RWMutex {
	n := int(farmhash.Hash32WithSeed([]byte(collection), 0))
	return &s.locks[n%len(s.locks)]
}

func (s *Store) list(collection string, create bool) *skiplist.SkipList {
	s.mu.RLock()
	l, ok := s.collections[collection]
	s.mu.RUnlock()
	if ok || !create {
		return l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.collections[collection]; !ok {
		l = skiplist.New(skiplist.String)
		s.collections[collection] = l
	}
	return l
}

// AddHook registers h for every later write.
func (s *Store) AddHook(h Hook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, h)
}

func (s *Store) notify(ctx context.Context, change Change) error {
	s.hooksMu.RLock()
	hooks := append([]Hook(nil), s.hooks...)
	s.hooksMu.RUnlock()

	var errs []error
	for _, h := range hooks {
		if err := h(ctx, change); err != nil {
			s.logger.Error("object hook failed",
				"collection", change.Collection,
				"object_id", change.Object.ObjectID(),
				"change", change.Type.String(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validID(obj Object) error {
	if obj == nil || obj.ObjectID() == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "object id is required")
	}
	return nil
}

// Insert adds obj. It fails if the id is already taken.
func (s *Store) Insert(ctx context.Context, collection string, obj Object) error {
	if err := validID(obj); err != nil {
		return err
	}
	unlock := s.objects.lock(collection, obj.ObjectID())
	defer unlock()

	l := s.list(collection, true)
	lock := s.getLock(collection)
	lock.Lock()
	if l.Get(obj.ObjectID()) != nil {
		lock.Unlock()
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusConflict, "object %q already exists in %s", obj.ObjectID(), collection)
	}
	l.Set(obj.ObjectID(), obj)
	lock.Unlock()

	return s.notify(ctx, Change{Collection: collection, Type: ObjectInserted, Object: obj})
}

// Update replaces an existing object.
func (s *Store) Update(ctx context.Context, collection string, obj Object) error {
	if err := validID(obj); err != nil {
		return err
	}
	l := s.list(collection, false)
	if l == nil {
		return fmt.Errorf("updating %s/%s: %w", collection, obj.ObjectID(), apperrors.ErrDocumentNotFound)
	}
	unlock := s.objects.lock(collection, obj.ObjectID())
	defer unlock()

	lock := s.getLock(collection)
	lock.Lock()
	elem := l.Get(obj.ObjectID())
	if elem == nil {
		lock.Unlock()
		return fmt.Errorf("updating %s/%s: %w", collection, obj.ObjectID(), apperrors.ErrDocumentNotFound)
	}
	prev := elem.Value.(Object)
	elem.Value = obj
	lock.Unlock()

	return s.notify(ctx, Change{Collection: collection, Type: ObjectUpdated, Object: obj, Previous: prev})
}

// Put inserts obj or replaces the object with the same id.
func (s *Store) Put(ctx context.Context, collection string, obj Object) error {
	if err := validID(obj); err != nil {
		return err
	}
	unlock := s.objects.lock(collection, obj.ObjectID())
	defer unlock()

	l := s.list(collection, true)
	lock := s.getLock(collection)
	lock.Lock()
	change := Change{Collection: collection, Type: ObjectInserted, Object: obj}
	if elem := l.Get(obj.ObjectID()); elem != nil {
		change.Type = ObjectUpdated
		change.Previous = elem.Value.(Object)
		elem.Value = obj
	} else {
		l.Set(obj.ObjectID(), obj)
	}
	lock.Unlock()

	return s.notify(ctx, change)
}

// Delete removes the object with the given id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	l := s.list(collection, false)
	if l == nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, apperrors.ErrDocumentNotFound)
	}
	unlock := s.objects.lock(collection, id)
	defer unlock()

	lock := s.getLock(collection)
	lock.Lock()
	elem := l.Remove(id)
	lock.Unlock()
	if elem == nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, apperrors.ErrDocumentNotFound)
	}
	prev := elem.Value.(Object)
	return s.notify(ctx, Change{Collection: collection, Type: ObjectDeleted, Object: prev, Previous: prev})
}

// Load returns the object stored under id.
func (s *Store) Load(_ context.Context, collection, id string) (Object, error) {
	l := s.list(collection, false)
	if l != nil {
		lock := s.getLock(collection)
		lock.RLock()
		elem := l.Get(id)
		lock.RUnlock()
		if elem != nil {
			return elem.Value.(Object), nil
		}
	}
	return nil, fmt.Errorf("loading %s/%s: %w", collection, id, apperrors.ErrDocumentNotFound)
}

// Locked runs fn with the current version of the object under id while
// writes to that object wait. It reports ErrDocumentNotFound if the object
// is gone.
func (s *Store) Locked(ctx context.Context, collection, id string, fn func(obj Object) error) error {
	unlock := s.objects.lock(collection, id)
	defer unlock()
	obj, err := s.Load(ctx, collection, id)
	if err != nil {
		return err
	}
	return fn(obj)
}

// Count returns the number of objects in collection.
func (s *Store) Count(collection string) int {
	l := s.list(collection, false)
	if l == nil {
		return 0
	}
	lock := s.getLock(collection)
	lock.RLock()
	defer lock.RUnlock()
	return l.Len()
}

// Collections lists collection names in ascending order.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type objectKey struct{ collection, id string }

type objectLock struct {
	mu   sync.Mutex
	refs int
}

// objectLocks hands out one mutex per object that has a write in flight.
// Entries are dropped when the last holder or waiter leaves.
type objectLocks struct {
	mu   sync.Mutex
	held map[objectKey]*objectLock
}

func (o *objectLocks) lock(collection, id string) (unlock func()) {
	key := objectKey{collection, id}
	o.mu.Lock()
	l, ok := o.held[key]
	if !ok {
		l = &objectLock{}
		o.held[key] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(o.held, key)
		}
		o.mu.Unlock()
	}
}
