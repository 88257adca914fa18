// Package document defines Record, the schemaless document type accepted by
// the ingestion paths. A record is a list of named fields kept in the order
// they were supplied, which is also the order they are tokenised in.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
)

// Field is one named value of a record.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Record is a document stored in a collection.
type Record struct {
	ID      string    `json:"id"`
	Fields  []Field   `json:"fields"`
	Created time.Time `json:"created"`
}

// Validate checks a record before it is stored.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	seen := make(map[string]struct{}, len(r.Fields))
	for i, f := range r.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("field %q appears more than once", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

func (r *Record) ObjectID() string {
	return r.ID
}

func (r *Record) CreatedAt() time.Time {
	return r.Created
}

// FieldValue resolves ID, Created and then the named fields.
func (r *Record) FieldValue(name string) (any, bool) {
	switch name {
	case "ID":
		return r.ID, true
	case "Created":
		return r.Created, true
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// FullTextFields exposes every field for indexing.
func (r *Record) FullTextFields() []tokenizer.Field {
	out := make([]tokenizer.Field, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = tokenizer.Field{Name: f.Name, Value: f.Value}
	}
	return out
}

// Text returns a record with string fields given as name/value pairs.
func Text(id string, created time.Time, nameValues ...string) *Record {
	r := &Record{ID: id, Created: created}
	for i := 0; i+1 < len(nameValues); i += 2 {
		r.Fields = append(r.Fields, Field{Name: nameValues[i], Value: nameValues[i+1]})
	}
	return r
}
