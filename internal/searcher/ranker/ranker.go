// Package ranker orders search hits. Every order ends with a tie-break on
// the document key, so rankings are total and pages never overlap.
package ranker

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
)

type Order int

const (
	// Relevance ranks by total occurrences, then distinct tokens matched,
	// then newest first.
	Relevance Order = iota
	// Occurrences ranks by distinct tokens matched, then total occurrences,
	// then newest first.
	Occurrences
	Newest
	Oldest
)

func (o Order) String() string {
	switch o {
	case Relevance:
		return "relevance"
	case Occurrences:
		return "occurrences"
	case Newest:
		return "newest"
	case Oldest:
		return "oldest"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relevance":
		return Relevance, nil
	case "occurrences":
		return Occurrences, nil
	case "newest":
		return Newest, nil
	case "oldest":
		return Oldest, nil
	default:
		return 0, fmt.Errorf("unknown order %q", s)
	}
}

// Hit is one matching document with its relevance tuple.
type Hit struct {
	DocKey      string                `json:"doc_key"`
	Ref         index.ObjectReference `json:"ref"`
	Occurrences int                   `json:"occurrences"`
	Distinct    int                   `json:"distinct"`
	// KeywordMatches holds the occurrence count per query keyword, in query
	// order. Prohibited keywords always count zero.
	KeywordMatches []int `json:"keyword_matches"`
}

func (h Hit) Created() time.Time {
	return h.Ref.Created
}

// Compare returns the comparison function for order.
func Compare(order Order) func(a, b Hit) int {
	return func(a, b Hit) int {
		var c int
		switch order {
		case Relevance:
			c = cmp.Or(
				cmp.Compare(b.Occurrences, a.Occurrences),
				cmp.Compare(b.Distinct, a.Distinct),
				b.Created().Compare(a.Created()),
			)
		case Occurrences:
			c = cmp.Or(
				cmp.Compare(b.Distinct, a.Distinct),
				cmp.Compare(b.Occurrences, a.Occurrences),
				b.Created().Compare(a.Created()),
			)
		case Newest:
			c = b.Created().Compare(a.Created())
		case Oldest:
			c = a.Created().Compare(b.Created())
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.DocKey, b.DocKey)
	}
}

// Rank sorts hits in place.
func Rank(hits []Hit, order Order) {
	slices.SortFunc(hits, Compare(order))
}

// Window returns the [offset, offset+limit) slice of items, clamped to its
// bounds. A limit <= 0 means no upper bound.
func Window[E any](items []E, offset, limit int) []E {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0:0]
	}
	end := len(items)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return items[offset:end]
}
