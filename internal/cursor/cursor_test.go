package cursor

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

type item struct {
	id     string
	fields map[string]any
}

func (i item) ObjectID() string { return i.id }

func (i item) FieldValue(name string) (any, bool) {
	v, ok := i.fields[name]
	return v, ok
}

type other struct{ id string }

// sliceSource filters a fixed slice in id order. Entries of type other are
// reported as type-incompatible.
type sliceSource struct {
	objs  []any
	finds int
}

func (s *sliceSource) Find(_ context.Context, f Filter) (Cursor[item], error) {
	s.finds++
	var matched []any
	for _, o := range s.objs {
		if f.AppliesTo(o) {
			matched = append(matched, o)
		}
	}
	if f, ok := f.(FieldEquals); ok && f.Field == "incompatible" {
		matched = append(matched, other{id: "x"})
	}
	return &sliceCursor{objs: matched, pos: -1}, nil
}

type sliceCursor struct {
	objs []any
	pos  int
}

func (c *sliceCursor) Current() item {
	it, _ := c.objs[c.pos].(item)
	return it
}

func (c *sliceCursor) CurrentObjectID() string {
	switch o := c.objs[c.pos].(type) {
	case item:
		return o.id
	case other:
		return o.id
	}
	return ""
}

func (c *sliceCursor) CurrentTypeCompatible() bool {
	_, ok := c.objs[c.pos].(item)
	return ok
}

func (c *sliceCursor) MoveNext(context.Context) (bool, error) {
	if c.pos+1 >= len(c.objs) {
		return false, nil
	}
	c.pos++
	return true, nil
}

func (c *sliceCursor) MovePrevious(ctx context.Context) (bool, error) { return c.MoveNext(ctx) }
func (c *sliceCursor) SameSortOrder(_, _ []string) bool               { return false }
func (c *sliceCursor) ReverseSortOrder(_, _ []string) bool            { return false }
func (c *sliceCursor) ContinueAfter(context.Context, item) error      { return nil }
func (c *sliceCursor) ContinueBefore(context.Context, item) error     { return nil }

func newItem(id string, kv ...any) item {
	fields := map[string]any{"ID": id}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i].(string)] = kv[i+1]
	}
	return item{id: id, fields: fields}
}

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestFilterAnd_ShortCircuits(t *testing.T) {
	calls := 0
	counting := countingFilter{calls: &calls}
	f := And(FieldEquals{Field: "Kind", Value: "a"}, counting)

	assert.False(t, f.AppliesTo(newItem("1", "Kind", "b")))
	assert.Equal(t, 0, calls)
	assert.True(t, f.AppliesTo(newItem("2", "Kind", "a")))
	assert.Equal(t, 1, calls)
}

type countingFilter struct{ calls *int }

func (c countingFilter) AppliesTo(any) bool {
	*c.calls++
	return true
}

func (c countingFilter) ConstantFields() []string { return nil }

func TestFilterAnd_ConstantFieldsAreUnion(t *testing.T) {
	f := And(FieldEquals{Field: "Owner", Value: "x"}, FieldEquals{Field: "Kind", Value: "y"})
	assert.ElementsMatch(t, []string{"Owner", "Kind"}, f.ConstantFields())

	nested := And(f, FieldEquals{Field: "Kind", Value: "z"}, FieldRange{Field: "Size", Min: 1})
	assert.Equal(t, []string{"Kind", "Owner"}, nested.ConstantFields())

	assert.Nil(t, Or(FieldEquals{Field: "A", Value: 1}).ConstantFields())
	assert.Nil(t, Not(FieldEquals{Field: "A", Value: 1}).ConstantFields())
}

func TestFilters(t *testing.T) {
	it := newItem("1", "Size", 5, "Name", "box")
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"equals int against float", FieldEquals{Field: "Size", Value: 5.0}, true},
		{"equals miss", FieldEquals{Field: "Name", Value: "bag"}, false},
		{"missing field", FieldEquals{Field: "Color", Value: "red"}, false},
		{"range inside", FieldRange{Field: "Size", Min: 1, Max: 10}, true},
		{"range max exclusive", FieldRange{Field: "Size", Max: 5}, false},
		{"range open min", FieldRange{Field: "Size", Max: 6}, true},
		{"or", Or(FieldEquals{Field: "Name", Value: "bag"}, FieldEquals{Field: "Name", Value: "box"}), true},
		{"not", Not(FieldEquals{Field: "Name", Value: "box"}), false},
		{"all", All{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.AppliesTo(it))
		})
	}
}

func TestUnionCursor_YieldsEachIDOnce(t *testing.T) {
	src := &sliceSource{}
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		src.objs = append(src.objs, newItem(id, "Tag", id))
	}
	in := func(tags ...string) Filter {
		fs := make([]Filter, len(tags))
		for i, tag := range tags {
			fs[i] = FieldEquals{Field: "Tag", Value: tag}
		}
		return Or(fs...)
	}

	u := NewUnion[item](src, in("2", "3", "4"), in("1", "3", "5"), in("4", "5", "6", "2"))
	got, err := Collect[item](context.Background(), u, 0)
	require.NoError(t, err)

	// Given leftmost-first draining, ids appear in first-producer order.
	assert.Equal(t, []string{"2", "3", "4", "1", "5", "6"}, ids(got))
	assert.Equal(t, 3, src.finds)
}

func TestUnionCursor_LazyChildren(t *testing.T) {
	src := &sliceSource{objs: []any{newItem("1", "Tag", "a")}}
	u := NewUnion[item](src, FieldEquals{Field: "Tag", Value: "a"}, FieldEquals{Field: "Tag", Value: "b"})

	ok, err := u.MoveNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, src.finds)
	assert.Equal(t, "1", u.CurrentObjectID())
}

func TestUnionCursor_SkipsIncompatible(t *testing.T) {
	src := &sliceSource{objs: []any{newItem("1", "incompatible", "y")}}
	u := NewUnion[item](src, FieldEquals{Field: "incompatible", Value: "y"})

	got, err := Collect[item](context.Background(), u, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestUnionCursor_PreviousMovesForward(t *testing.T) {
	src := &sliceSource{objs: []any{newItem("1"), newItem("2")}}
	u := NewUnion[item](src, All{})
	ctx := context.Background()

	ok, _ := u.MovePrevious(ctx)
	require.True(t, ok)
	assert.Equal(t, "1", u.CurrentObjectID())
	ok, _ = u.MovePrevious(ctx)
	require.True(t, ok)
	assert.Equal(t, "2", u.CurrentObjectID())
}

func TestUnionCursor_ContinuationUnsupported(t *testing.T) {
	u := NewUnion[item](&sliceSource{}, All{})
	assert.ErrorIs(t, u.ContinueAfter(context.Background(), item{}), apperrors.ErrUnsupportedOperation)
	assert.ErrorIs(t, u.ContinueBefore(context.Background(), item{}), apperrors.ErrUnsupportedOperation)
	assert.True(t, u.SameSortOrder(nil, nil))
	assert.False(t, u.SameSortOrder(nil, []string{"ID"}))
}

func sortedFixture(t *testing.T, order ...string) *SortedCursor[item] {
	t.Helper()
	src := &sliceSource{objs: []any{
		newItem("a", "Size", 3, "Name", "pear"),
		newItem("b", "Size", 1, "Name", "fig"),
		newItem("c", "Size", 2, "Name", "apple"),
		newItem("d", "Size", 2, "Name", "kiwi"),
		other{id: "z"},
	}}
	c, err := src.Find(context.Background(), All{})
	require.NoError(t, err)
	s, err := Sort[item](context.Background(), c, order)
	require.NoError(t, err)
	return s
}

func TestSortedCursor_Order(t *testing.T) {
	ctx := context.Background()

	got, err := Collect[item](ctx, sortedFixture(t, "Size"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(got))

	got, err = Collect[item](ctx, sortedFixture(t, "-Size", "-Name"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids(got))
}

func TestSortedCursor_BothDirections(t *testing.T) {
	ctx := context.Background()
	s := sortedFixture(t, "Name")
	require.Equal(t, 4, s.Len())

	var backwards []string
	for {
		ok, err := s.MovePrevious(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		backwards = append(backwards, s.CurrentObjectID())
	}
	// A fresh cursor sits before the first item, so moving back finds nothing.
	assert.Empty(t, backwards)

	for {
		ok, _ := s.MoveNext(ctx)
		if !ok {
			break
		}
	}
	for {
		ok, _ := s.MovePrevious(ctx)
		if !ok {
			break
		}
		backwards = append(backwards, s.CurrentObjectID())
	}
	want := []string{"c", "b", "d", "a"}
	slices.Reverse(want)
	assert.Equal(t, want, backwards)
}

func TestSortedCursor_SortOrderDescription(t *testing.T) {
	s := sortedFixture(t, "Owner", "-Size", "Name")

	assert.True(t, s.SameSortOrder(nil, []string{"Owner", "-Size"}))
	assert.True(t, s.SameSortOrder([]string{"Owner"}, []string{"-Size", "Name"}))
	assert.False(t, s.SameSortOrder(nil, []string{"-Size"}))
	assert.True(t, s.ReverseSortOrder([]string{"Owner"}, []string{"Size", "-Name"}))
	assert.False(t, s.ReverseSortOrder(nil, []string{"Owner"}))
}

func TestSortedCursor_ContinuationUnsupported(t *testing.T) {
	s := sortedFixture(t, "Size")
	assert.ErrorIs(t, s.ContinueAfter(context.Background(), item{}), apperrors.ErrUnsupportedOperation)
	assert.ErrorIs(t, s.ContinueBefore(context.Background(), item{}), apperrors.ErrUnsupportedOperation)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, compareValues(int64(2), 2.0))
	assert.Equal(t, -1, compareValues(nil, "a"))
	assert.Equal(t, 1, compareValues(true, false))
	assert.Equal(t, -1, compareValues("a", "b"))
}
