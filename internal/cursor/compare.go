package cursor

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// SortField is one component of a sort order. "Title" sorts ascending by
// Title; "-Title" sorts descending.
type SortField struct {
	Name       string
	Descending bool
}

func ParseSortOrder(order []string) []SortField {
	fields := make([]SortField, 0, len(order))
	for _, s := range order {
		if name, ok := strings.CutPrefix(s, "-"); ok {
			fields = append(fields, SortField{Name: name, Descending: true})
		} else {
			fields = append(fields, SortField{Name: strings.TrimPrefix(s, "+")})
		}
	}
	return fields
}

func (f SortField) String() string {
	if f.Descending {
		return "-" + f.Name
	}
	return f.Name
}

func (f SortField) reversed() SortField {
	return SortField{Name: f.Name, Descending: !f.Descending}
}

// withoutConstant drops fields that cannot influence the order because
// their value never changes.
func withoutConstant(order []SortField, constantFields []string) []SortField {
	out := make([]SortField, 0, len(order))
	for _, f := range order {
		constant := false
		for _, c := range constantFields {
			if c == f.Name {
				constant = true
				break
			}
		}
		if !constant {
			out = append(out, f)
		}
	}
	return out
}

// OrderSatisfies reports whether a stream ordered by have is also ordered
// by want once constant fields are ignored.
func OrderSatisfies(have []SortField, constantFields, want []string) bool {
	w := withoutConstant(ParseSortOrder(want), constantFields)
	h := withoutConstant(have, constantFields)
	if len(w) > len(h) {
		return false
	}
	for i := range w {
		if w[i] != h[i] {
			return false
		}
	}
	return true
}

// ReverseOrder flips the direction of every field of order.
func ReverseOrder(order []string) []string {
	out := make([]string, len(order))
	for i, f := range ParseSortOrder(order) {
		out[i] = f.reversed().String()
	}
	return out
}

// compareValues orders field values. nil sorts first; numbers compare
// numerically across integer and float kinds; values of unrelated types
// fall back to comparing their printed form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// CompareBy returns a comparator applying order to objects through
// FieldReader, with missing fields treated as nil.
func CompareBy(order []string) func(a, b any) int {
	fields := ParseSortOrder(order)
	return func(a, b any) int {
		for _, f := range fields {
			va, _ := fieldValue(a, f.Name)
			vb, _ := fieldValue(b, f.Name)
			c := compareValues(va, vb)
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}
