package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
)

type fixture struct {
	svc *search.Service
	mux *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Search.MaxResults = 3
	cfg.Index.Collections = map[string]config.CollectionConfig{
		"posts": {IndexCollection: "articles"},
	}
	svc, err := search.Open(context.Background(), cfg, search.WithProvider(dictionary.NewMemoryProvider(nil)))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	h, err := New(svc, cfg.Search)
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)

	ctx := context.Background()
	for i, body := range []string{"alpha beta", "alpha gamma", "alpha alpha delta", "beta", "alpha"} {
		id := string(rune('a' + i))
		rec := document.Text(id, time.Unix(int64(i+1), 0), "Body", body)
		require.NoError(t, svc.Objects.Put(ctx, "posts", rec))
	}
	return &fixture{svc: svc, mux: mux}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func resultIDs(resp SearchResponse) []string {
	out := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		query url.Values
		want  []string
		limit int
	}{
		{"relevance", url.Values{"q": {"alpha"}}, []string{"c", "e", "b"}, 3},
		{"limit clamped", url.Values{"q": {"alpha"}, "limit": {"50"}}, []string{"c", "e", "b"}, 3},
		{"second page", url.Values{"q": {"alpha"}, "limit": {"2"}, "offset": {"2"}}, []string{"b", "a"}, 2},
		{"oldest", url.Values{"q": {"alpha"}, "order": {"oldest"}, "limit": {"2"}}, []string{"a", "b"}, 2},
		{"boolean", url.Values{"q": {"+alpha -beta"}}, []string{"c", "e", "b"}, 3},
		{"prefixes", url.Values{"q": {"gam"}, "prefixes": {"true"}}, []string{"b"}, 3},
		{"no match", url.Values{"q": {"omega"}}, []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.query.Set("index", "articles")
			rec := f.do(t, http.MethodGet, "/api/v1/search?"+tt.query.Encode(), "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			resp := decodeBody[SearchResponse](t, rec)
			assert.Equal(t, tt.want, resultIDs(resp))
			assert.Equal(t, tt.limit, resp.Limit)
			assert.Equal(t, "articles", resp.Index)
		})
	}
}

func TestSearch_BadRequests(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing index", "q=alpha", http.StatusBadRequest},
		{"missing query", "index=articles", http.StatusBadRequest},
		{"negative offset", "index=articles&q=alpha&offset=-1", http.StatusBadRequest},
		{"bad limit", "index=articles&q=alpha&limit=x", http.StatusBadRequest},
		{"bad order", "index=articles&q=alpha&order=random", http.StatusBadRequest},
		{"bad strategy", "index=articles&q=alpha&strategy=all", http.StatusBadRequest},
		{"unbalanced quote", "index=articles&q=" + url.QueryEscape(`'alpha`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/v1/search?"+tt.query, "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decodeBody[map[string]string](t, rec), "error")
		})
	}
}

func TestParse(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/parse?q="+url.QueryEscape(`+new 'york city' -/bo.*/`), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Keywords []KeywordView `json:"keywords"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Keywords, 3)
	assert.Equal(t, "term", resp.Keywords[0].Type)
	assert.Equal(t, "required", resp.Keywords[0].Modifier)
	assert.Equal(t, "sequence", resp.Keywords[1].Type)
	assert.Len(t, resp.Keywords[1].Parts, 2)
	assert.Equal(t, "regex", resp.Keywords[2].Type)
	assert.Equal(t, "prohibited", resp.Keywords[2].Modifier)
}

func TestTokenize(t *testing.T) {
	f := newFixture(t)
	body := `{"document":{"id":"x","fields":[{"name":"Title","value":"Pelé"},{"name":"Body","value":"pele scores"}]}}`
	rec := f.do(t, http.MethodPost, "/api/v1/tokenize", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tokens":[{"token":"pele","docIndex":[0,1]},{"token":"scores","docIndex":[2]}]}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/tokenize", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndIndexes(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/indexes/articles/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[index.Stats](t, rec)
	assert.Equal(t, index.Stats{Name: "articles", Tokens: 4, Documents: 5}, stats)

	rec = f.do(t, http.MethodGet, "/api/v1/indexes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"articles"`)
}

func TestDocumentLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/collections/posts/documents",
		`{"id":"z","created":"2030-01-01T00:00:00Z","fields":[{"name":"Body","value":"omega"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/search?index=articles&q=omega", "")
	assert.Equal(t, []string{"z"}, resultIDs(decodeBody[SearchResponse](t, rec)))

	rec = f.do(t, http.MethodDelete, "/api/v1/collections/posts/documents/z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/v1/search?index=articles&q=omega", "")
	assert.Empty(t, resultIDs(decodeBody[SearchResponse](t, rec)))

	rec = f.do(t, http.MethodPut, "/api/v1/collections/posts/documents", `{"fields":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReindex(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/indexes/articles/reindex", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"index":"articles","indexed":5}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/search?index=articles&q=delta", "")
	assert.Equal(t, []string{"c"}, resultIDs(decodeBody[SearchResponse](t, rec)))
}

func TestNew_RejectsUnknownDefaults(t *testing.T) {
	cfg := config.Default().Search
	cfg.DefaultOrder = "random"
	_, err := New(nil, cfg)
	assert.Error(t, err)
}
