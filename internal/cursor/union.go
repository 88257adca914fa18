package cursor

import (
	"context"

	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

// UnionCursor yields the objects matched by any of several filters over the
// same source. Children are drained one after another, leftmost first, and
// each object id is yielded once, from the first child that produces it.
// Type-incompatible entries are skipped.
//
// The stream has no global order, so MovePrevious moves forwards and keyset
// continuation is refused.
type UnionCursor[T any] struct {
	source  Source[T]
	filters []Filter
	next    int
	child   Cursor[T]
	seen    map[string]struct{}
	current T
	id      string
}

func NewUnion[T any](source Source[T], filters ...Filter) *UnionCursor[T] {
	return &UnionCursor[T]{
		source:  source,
		filters: filters,
		seen:    make(map[string]struct{}),
	}
}

func (u *UnionCursor[T]) Current() T {
	return u.current
}

func (u *UnionCursor[T]) CurrentObjectID() string {
	return u.id
}

func (u *UnionCursor[T]) CurrentTypeCompatible() bool {
	return true
}

func (u *UnionCursor[T]) MoveNext(ctx context.Context) (bool, error) {
	for {
		if u.child == nil {
			if u.next >= len(u.filters) {
				var zero T
				u.current, u.id = zero, ""
				return false, nil
			}
			child, err := u.source.Find(ctx, u.filters[u.next])
			if err != nil {
				return false, err
			}
			u.child = child
			u.next++
		}

		ok, err := u.child.MoveNext(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			u.child = nil
			continue
		}
		if !u.child.CurrentTypeCompatible() {
			continue
		}
		id := u.child.CurrentObjectID()
		if _, dup := u.seen[id]; dup {
			continue
		}
		u.seen[id] = struct{}{}
		u.current, u.id = u.child.Current(), id
		return true, nil
	}
}

func (u *UnionCursor[T]) MovePrevious(ctx context.Context) (bool, error) {
	return u.MoveNext(ctx)
}

func (u *UnionCursor[T]) SameSortOrder(_, sortOrder []string) bool {
	return len(sortOrder) == 0
}

func (u *UnionCursor[T]) ReverseSortOrder(_, sortOrder []string) bool {
	return len(sortOrder) == 0
}

func (u *UnionCursor[T]) ContinueAfter(context.Context, T) error {
	return apperrors.Unsupported("union cursor", "ContinueAfter")
}

func (u *UnionCursor[T]) ContinueBefore(context.Context, T) error {
	return apperrors.Unsupported("union cursor", "ContinueBefore")
}
