package objectstore

import (
	"context"
	"net/http"

	"github.com/huandu/skiplist"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/cursor"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

var idOrder = []cursor.SortField{{Name: "ID"}}

// Source adapts one collection to cursor.Source.
type Source[T any] struct {
	store      *Store
	collection string
}

func NewSource[T any](s *Store, collection string) Source[T] {
	return Source[T]{store: s, collection: collection}
}

// Find returns a cursor over the objects accepted by filter, in id order.
func (src Source[T]) Find(_ context.Context, filter cursor.Filter) (cursor.Cursor[T], error) {
	if filter == nil {
		filter = cursor.All{}
	}
	return &scanCursor[T]{
		store:      src.store,
		collection: src.collection,
		filter:     filter,
	}, nil
}

// Find plans a query over one collection. A FilterOr becomes a union of
// one scan per alternative; a sort order the resulting stream does not
// already satisfy is applied in memory.
func Find[T any](ctx context.Context, s *Store, collection string, filter cursor.Filter, sortOrder ...string) (cursor.Cursor[T], error) {
	src := NewSource[T](s, collection)
	var (
		c   cursor.Cursor[T]
		err error
	)
	if or, ok := filter.(cursor.FilterOr); ok && len(or.Filters) > 0 {
		c = cursor.NewUnion[T](src, or.Filters...)
	} else if c, err = src.Find(ctx, filter); err != nil {
		return nil, err
	}

	var constant []string
	if filter != nil {
		constant = filter.ConstantFields()
	}
	if len(sortOrder) == 0 || c.SameSortOrder(constant, sortOrder) {
		return c, nil
	}
	return cursor.Sort[T](ctx, c, sortOrder)
}

// FindFirst returns the first compatible object Find would yield.
func FindFirst[T any](ctx context.Context, s *Store, collection string, filter cursor.Filter, sortOrder ...string) (T, bool, error) {
	var zero T
	c, err := Find[T](ctx, s, collection, filter, sortOrder...)
	if err != nil {
		return zero, false, err
	}
	items, err := cursor.Collect(ctx, c, 1)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

type scanPos int

const (
	scanStart scanPos = iota
	scanAt
	scanEnd
)

// scanCursor walks a collection by id. It keeps only the last visited id,
// so concurrent writes to the collection never invalidate it.
type scanCursor[T any] struct {
	store      *Store
	collection string
	filter     cursor.Filter
	pos        scanPos
	lastID     string
	obj        Object
}

func (c *scanCursor[T]) Current() T {
	v, _ := c.obj.(T)
	return v
}

func (c *scanCursor[T]) CurrentObjectID() string {
	if c.obj == nil {
		return ""
	}
	return c.obj.ObjectID()
}

func (c *scanCursor[T]) CurrentTypeCompatible() bool {
	if c.obj == nil {
		return false
	}
	_, ok := c.obj.(T)
	return ok
}

func (c *scanCursor[T]) MoveNext(ctx context.Context) (bool, error) {
	return c.move(ctx, true)
}

func (c *scanCursor[T]) MovePrevious(ctx context.Context) (bool, error) {
	return c.move(ctx, false)
}

func (c *scanCursor[T]) move(ctx context.Context, forward bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if (forward && c.pos == scanEnd) || (!forward && c.pos == scanStart) {
		return false, nil
	}
	l := c.store.list(c.collection, false)
	if l == nil {
		c.settle(nil, forward)
		return false, nil
	}
	lock := c.store.getLock(c.collection)
	lock.RLock()
	defer lock.RUnlock()

	elem := c.first(l, forward)
	for elem != nil && !c.filter.AppliesTo(elem.Value) {
		elem = step(elem, forward)
	}
	c.settle(elem, forward)
	return elem != nil, nil
}

// first finds the element adjacent to the current position in the
// direction of travel.
func (c *scanCursor[T]) first(l *skiplist.SkipList, forward bool) *skiplist.Element {
	if c.pos != scanAt {
		if forward {
			return l.Front()
		}
		return l.Back()
	}
	elem := l.Find(c.lastID)
	if forward {
		if elem != nil && elem.Key().(string) == c.lastID {
			elem = elem.Next()
		}
		return elem
	}
	if elem == nil {
		return l.Back()
	}
	return elem.Prev()
}

func step(elem *skiplist.Element, forward bool) *skiplist.Element {
	if forward {
		return elem.Next()
	}
	return elem.Prev()
}

func (c *scanCursor[T]) settle(elem *skiplist.Element, forward bool) {
	if elem == nil {
		c.obj = nil
		if forward {
			c.pos = scanEnd
		} else {
			c.pos = scanStart
		}
		return
	}
	c.pos = scanAt
	c.obj = elem.Value.(Object)
	c.lastID = c.obj.ObjectID()
}

func (c *scanCursor[T]) SameSortOrder(constantFields, sortOrder []string) bool {
	return cursor.OrderSatisfies(idOrder, constantFields, sortOrder)
}

func (c *scanCursor[T]) ReverseSortOrder(constantFields, sortOrder []string) bool {
	return cursor.OrderSatisfies(idOrder, constantFields, cursor.ReverseOrder(sortOrder))
}

func (c *scanCursor[T]) ContinueAfter(_ context.Context, item T) error {
	return c.continueAt(item)
}

func (c *scanCursor[T]) ContinueBefore(_ context.Context, item T) error {
	return c.continueAt(item)
}

func (c *scanCursor[T]) continueAt(item T) error {
	id, ok := any(item).(cursor.Identifiable)
	if !ok {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "continuation item of type %T has no object id", item)
	}
	c.pos = scanAt
	c.lastID = id.ObjectID()
	c.obj, _ = any(item).(Object)
	return nil
}
