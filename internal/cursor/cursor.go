// Package cursor defines the enumeration contract shared by every query path
// and the combinators that compose result streams: filter intersection,
// deduplicated union and in-memory sorting.
package cursor

import (
	"context"
)

// Cursor walks a result stream. A new cursor is positioned before the first
// item; Current is only meaningful after a successful move.
type Cursor[T any] interface {
	Current() T
	CurrentObjectID() string
	// CurrentTypeCompatible reports whether the current stored object is a T.
	// Incompatible entries still occupy a position in the stream.
	CurrentTypeCompatible() bool

	MoveNext(ctx context.Context) (bool, error)
	// MovePrevious steps backwards. Cursors over one-directional sources
	// step forwards instead.
	MovePrevious(ctx context.Context) (bool, error)

	// SameSortOrder reports whether the stream is already ordered by
	// sortOrder, ignoring fields known to be constant over the stream.
	SameSortOrder(constantFields, sortOrder []string) bool
	// ReverseSortOrder reports whether the stream is ordered by the exact
	// reverse of sortOrder.
	ReverseSortOrder(constantFields, sortOrder []string) bool

	// ContinueAfter repositions the cursor so the next MoveNext returns the
	// item following item. ContinueBefore is the MovePrevious counterpart.
	ContinueAfter(ctx context.Context, item T) error
	ContinueBefore(ctx context.Context, item T) error
}

// Source opens cursors over the objects matching a filter.
type Source[T any] interface {
	Find(ctx context.Context, filter Filter) (Cursor[T], error)
}

// Identifiable objects expose the id they are stored under. Keyset
// continuation needs it to locate the last-seen item.
type Identifiable interface {
	ObjectID() string
}

// Collect drains c forwards, keeping compatible items only. A limit <= 0
// collects everything.
func Collect[T any](ctx context.Context, c Cursor[T], limit int) ([]T, error) {
	var out []T
	for limit <= 0 || len(out) < limit {
		ok, err := c.MoveNext(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		if c.CurrentTypeCompatible() {
			out = append(out, c.Current())
		}
	}
	return out, nil
}
