package document

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
)

func TestRecord_JSONKeepsFieldOrder(t *testing.T) {
	raw := `{"id":"a1","created":"2024-05-01T10:00:00Z","fields":[{"name":"Title","value":"Zebra"},{"name":"Body","value":"apple"}]}`
	var r Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	require.NoError(t, r.Validate())

	assert.Equal(t, []tokenizer.Field{
		{Name: "Title", Value: "Zebra"},
		{Name: "Body", Value: "apple"},
	}, r.FullTextFields())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), r.CreatedAt())
}

func TestRecord_FieldValue(t *testing.T) {
	r := Text("x", time.Unix(10, 0), "Title", "hello")

	v, ok := r.FieldValue("Title")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	v, ok = r.FieldValue("ID")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = r.FieldValue("Nope")
	assert.False(t, ok)
}

func TestRecord_Validate(t *testing.T) {
	assert.Error(t, (&Record{}).Validate())
	assert.Error(t, (&Record{ID: "a", Fields: []Field{{Name: ""}}}).Validate())
	assert.Error(t, (&Record{ID: "a", Fields: []Field{{Name: "x"}, {Name: "x"}}}).Validate())
	assert.NoError(t, Text("a", time.Time{}, "x", "1").Validate())
}
