package cursor

import (
	"context"
	"strings"

	"github.com/huandu/skiplist"

	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

type sortedKey struct {
	obj any
	id  string
}

type sortedEntry[T any] struct {
	item T
	id   string
}

type position int

const (
	beforeFirst position = iota
	onElement
	afterLast
)

// SortedCursor serves a fully loaded result set in sort order. It can walk
// in both directions but cannot resume from a keyset, since the order only
// exists after the whole set has been loaded.
type SortedCursor[T any] struct {
	list  *skiplist.SkipList
	order []SortField
	pos   position
	elem  *skiplist.Element
}

// Sort drains src and returns its compatible items ordered by sortOrder.
// Ties are broken by object id so the order is total.
func Sort[T any](ctx context.Context, src Cursor[T], sortOrder []string) (*SortedCursor[T], error) {
	byFields := CompareBy(sortOrder)
	list := skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
		a, b := lhs.(sortedKey), rhs.(sortedKey)
		if c := byFields(a.obj, b.obj); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	}))

	for {
		ok, err := src.MoveNext(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if !src.CurrentTypeCompatible() {
			continue
		}
		item, id := src.Current(), src.CurrentObjectID()
		list.Set(sortedKey{obj: item, id: id}, sortedEntry[T]{item: item, id: id})
	}
	return &SortedCursor[T]{list: list, order: ParseSortOrder(sortOrder)}, nil
}

func (s *SortedCursor[T]) Len() int {
	return s.list.Len()
}

func (s *SortedCursor[T]) entry() (sortedEntry[T], bool) {
	if s.pos != onElement || s.elem == nil {
		return sortedEntry[T]{}, false
	}
	return s.elem.Value.(sortedEntry[T]), true
}

func (s *SortedCursor[T]) Current() T {
	e, _ := s.entry()
	return e.item
}

func (s *SortedCursor[T]) CurrentObjectID() string {
	e, _ := s.entry()
	return e.id
}

func (s *SortedCursor[T]) CurrentTypeCompatible() bool {
	_, ok := s.entry()
	return ok
}

func (s *SortedCursor[T]) MoveNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	switch s.pos {
	case beforeFirst:
		s.elem = s.list.Front()
	case onElement:
		s.elem = s.elem.Next()
	case afterLast:
		return false, nil
	}
	return s.settle(afterLast), nil
}

func (s *SortedCursor[T]) MovePrevious(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	switch s.pos {
	case afterLast:
		s.elem = s.list.Back()
	case onElement:
		s.elem = s.elem.Prev()
	case beforeFirst:
		return false, nil
	}
	return s.settle(beforeFirst), nil
}

func (s *SortedCursor[T]) settle(end position) bool {
	if s.elem == nil {
		s.pos = end
		return false
	}
	s.pos = onElement
	return true
}

func (s *SortedCursor[T]) SameSortOrder(constantFields, sortOrder []string) bool {
	return OrderSatisfies(s.order, constantFields, sortOrder)
}

func (s *SortedCursor[T]) ReverseSortOrder(constantFields, sortOrder []string) bool {
	return OrderSatisfies(s.order, constantFields, ReverseOrder(sortOrder))
}

func (s *SortedCursor[T]) ContinueAfter(context.Context, T) error {
	return apperrors.Unsupported("sorted cursor", "ContinueAfter")
}

func (s *SortedCursor[T]) ContinueBefore(context.Context, T) error {
	return apperrors.Unsupported("sorted cursor", "ContinueBefore")
}
