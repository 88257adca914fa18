package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/cursor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/tracing"
)

// Strategy decides how hits whose object is missing or not a T are paged.
type Strategy int

const (
	// PaginateOverObjectsNullIfIncompatible pages over hits and returns the
	// zero T in the slot of an incompatible hit.
	PaginateOverObjectsNullIfIncompatible Strategy = iota
	// PaginateOverObjectsOnlyCompatible pages over hits and drops
	// incompatible ones, so a page can come back short.
	PaginateOverObjectsOnlyCompatible
	// PaginateOverCompatibleObjects pages over compatible objects only;
	// offset and limit count T values and pages are filled up to limit.
	PaginateOverCompatibleObjects
)

func (s Strategy) String() string {
	switch s {
	case PaginateOverObjectsNullIfIncompatible:
		return "null-if-incompatible"
	case PaginateOverObjectsOnlyCompatible:
		return "only-compatible"
	case PaginateOverCompatibleObjects:
		return "compatible-objects"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null-if-incompatible":
		return PaginateOverObjectsNullIfIncompatible, nil
	case "only-compatible":
		return PaginateOverObjectsOnlyCompatible, nil
	case "", "compatible-objects":
		return PaginateOverCompatibleObjects, nil
	default:
		return 0, fmt.Errorf("unknown pagination strategy %q", s)
	}
}

// Search ranks the documents of indexName matching keywords and returns the
// page [offset, offset+limit) as T values. A limit <= 0 returns everything
// from offset on. For a fixed limit, the pages at offsets 0, limit, 2*limit
// and so on concatenate to the unpaginated result.
func Search[T any](ctx context.Context, e *Executor, indexName string, offset, limit int, order ranker.Order, strategy Strategy, keywords []parser.Keyword) ([]T, error) {
	if offset < 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "offset must not be negative")
	}
	hits, err := e.Rank(ctx, indexName, order, keywords)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "paginate", "")
	span.Set("strategy", strategy.String())
	defer span.End()

	switch strategy {
	case PaginateOverObjectsNullIfIncompatible, PaginateOverObjectsOnlyCompatible:
		window := ranker.Window(hits, offset, limit)
		c := NewHitCursor[T](e.objects, window, order)
		out := make([]T, 0, len(window))
		for {
			ok, err := c.MoveNext(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return out, nil
			}
			if c.CurrentTypeCompatible() {
				out = append(out, c.Current())
			} else if strategy == PaginateOverObjectsNullIfIncompatible {
				var zero T
				out = append(out, zero)
			}
		}
	case PaginateOverCompatibleObjects:
		c := NewHitCursor[T](e.objects, hits, order)
		skipped := 0
		var out []T
		for limit <= 0 || len(out) < limit {
			ok, err := c.MoveNext(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if !c.CurrentTypeCompatible() {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, c.Current())
		}
		if out == nil {
			out = []T{}
		}
		return out, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown pagination strategy %d", int(strategy))
	}
}

// HitCursor walks a ranked hit list, loading each hit's object on arrival.
// Hits whose object is gone or is not a T stay in the stream as
// incompatible entries.
type HitCursor[T any] struct {
	objects    Objects
	hits       []ranker.Hit
	order      ranker.Order
	pos        int
	cur        T
	compatible bool
}

func NewHitCursor[T any](objects Objects, hits []ranker.Hit, order ranker.Order) *HitCursor[T] {
	return &HitCursor[T]{objects: objects, hits: hits, order: order, pos: -1}
}

func (c *HitCursor[T]) Current() T {
	return c.cur
}

func (c *HitCursor[T]) CurrentObjectID() string {
	if c.pos < 0 || c.pos >= len(c.hits) {
		return ""
	}
	return c.hits[c.pos].Ref.ObjectID
}

func (c *HitCursor[T]) CurrentTypeCompatible() bool {
	return c.compatible
}

// Hit returns the ranked hit under the cursor.
func (c *HitCursor[T]) Hit() (ranker.Hit, bool) {
	if c.pos < 0 || c.pos >= len(c.hits) {
		return ranker.Hit{}, false
	}
	return c.hits[c.pos], true
}

func (c *HitCursor[T]) MoveNext(ctx context.Context) (bool, error) {
	return c.moveTo(ctx, c.pos+1)
}

func (c *HitCursor[T]) MovePrevious(ctx context.Context) (bool, error) {
	return c.moveTo(ctx, c.pos-1)
}

func (c *HitCursor[T]) moveTo(ctx context.Context, pos int) (bool, error) {
	var zero T
	c.cur, c.compatible = zero, false
	switch {
	case pos < 0:
		c.pos = -1
		return false, nil
	case pos >= len(c.hits):
		c.pos = len(c.hits)
		return false, nil
	}
	c.pos = pos

	ref := c.hits[pos].Ref
	obj, err := c.objects.Load(ctx, ref.Collection, ref.ObjectID)
	if errors.Is(err, apperrors.ErrDocumentNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if v, ok := obj.(T); ok {
		c.cur, c.compatible = v, true
	}
	return true, nil
}

// sortFields describes the ranked order as object fields where it has such
// a description. Relevance orders are not field orders.
func (c *HitCursor[T]) sortFields() ([]cursor.SortField, bool) {
	switch c.order {
	case ranker.Newest:
		return []cursor.SortField{{Name: "Created", Descending: true}}, true
	case ranker.Oldest:
		return []cursor.SortField{{Name: "Created"}}, true
	default:
		return nil, false
	}
}

func (c *HitCursor[T]) SameSortOrder(constantFields, sortOrder []string) bool {
	if len(sortOrder) == 0 {
		return true
	}
	fields, ok := c.sortFields()
	return ok && cursor.OrderSatisfies(fields, constantFields, sortOrder)
}

func (c *HitCursor[T]) ReverseSortOrder(constantFields, sortOrder []string) bool {
	if len(sortOrder) == 0 {
		return true
	}
	fields, ok := c.sortFields()
	return ok && cursor.OrderSatisfies(fields, constantFields, cursor.ReverseOrder(sortOrder))
}

// ContinueAfter positions the cursor on item, so MoveNext returns the hit
// after it.
func (c *HitCursor[T]) ContinueAfter(_ context.Context, item T) error {
	return c.continueAt(item)
}

// ContinueBefore positions the cursor on item, so MovePrevious returns the
// hit before it.
func (c *HitCursor[T]) ContinueBefore(_ context.Context, item T) error {
	return c.continueAt(item)
}

func (c *HitCursor[T]) continueAt(item T) error {
	id, ok := any(item).(cursor.Identifiable)
	if !ok {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "continuation item of type %T has no object id", item)
	}
	for i, h := range c.hits {
		if h.Ref.ObjectID == id.ObjectID() {
			c.pos = i
			c.cur, c.compatible = item, true
			return nil
		}
	}
	return fmt.Errorf("continuing after %s: %w", id.ObjectID(), apperrors.ErrDocumentNotFound)
}

var _ cursor.Cursor[any] = (*HitCursor[any])(nil)
