package cursor

import (
	"slices"
)

// Filter decides which objects belong to a result set.
type Filter interface {
	AppliesTo(obj any) bool
	// ConstantFields names the fields that hold the same value on every
	// object the filter accepts.
	ConstantFields() []string
}

// FieldReader gives filters and sorts access to object fields by name.
type FieldReader interface {
	FieldValue(name string) (any, bool)
}

func fieldValue(obj any, name string) (any, bool) {
	if r, ok := obj.(FieldReader); ok {
		return r.FieldValue(name)
	}
	return nil, false
}

// All accepts every object.
type All struct{}

func (All) AppliesTo(any) bool       { return true }
func (All) ConstantFields() []string { return nil }

// FieldEquals accepts objects whose Field equals Value.
type FieldEquals struct {
	Field string
	Value any
}

func (f FieldEquals) AppliesTo(obj any) bool {
	v, ok := fieldValue(obj, f.Field)
	return ok && compareValues(v, f.Value) == 0
}

func (f FieldEquals) ConstantFields() []string {
	return []string{f.Field}
}

// FieldRange accepts objects whose Field lies in [Min, Max). A nil bound is
// open.
type FieldRange struct {
	Field string
	Min   any
	Max   any
}

func (f FieldRange) AppliesTo(obj any) bool {
	v, ok := fieldValue(obj, f.Field)
	if !ok {
		return false
	}
	if f.Min != nil && compareValues(v, f.Min) < 0 {
		return false
	}
	if f.Max != nil && compareValues(v, f.Max) >= 0 {
		return false
	}
	return true
}

func (FieldRange) ConstantFields() []string { return nil }

// FilterAnd accepts objects every child accepts, stopping at the first
// rejection.
type FilterAnd struct {
	Filters []Filter
}

func And(filters ...Filter) FilterAnd {
	return FilterAnd{Filters: filters}
}

func (f FilterAnd) AppliesTo(obj any) bool {
	for _, child := range f.Filters {
		if !child.AppliesTo(obj) {
			return false
		}
	}
	return true
}

// ConstantFields is the union of the children's constant fields, sorted and
// without duplicates.
func (f FilterAnd) ConstantFields() []string {
	var fields []string
	for _, child := range f.Filters {
		for _, name := range child.ConstantFields() {
			if !slices.Contains(fields, name) {
				fields = append(fields, name)
			}
		}
	}
	slices.Sort(fields)
	return fields
}

// FilterOr accepts objects at least one child accepts. Stores evaluate it
// as a union of one cursor per child.
type FilterOr struct {
	Filters []Filter
}

func Or(filters ...Filter) FilterOr {
	return FilterOr{Filters: filters}
}

func (f FilterOr) AppliesTo(obj any) bool {
	for _, child := range f.Filters {
		if child.AppliesTo(obj) {
			return true
		}
	}
	return false
}

func (FilterOr) ConstantFields() []string { return nil }

// FilterNot inverts a filter.
type FilterNot struct {
	Filter Filter
}

func Not(f Filter) FilterNot {
	return FilterNot{Filter: f}
}

func (f FilterNot) AppliesTo(obj any) bool {
	return !f.Filter.AppliesTo(obj)
}

func (FilterNot) ConstantFields() []string { return nil }
