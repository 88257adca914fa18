// Package handler serves the search API over HTTP: ranked search, query
// parsing, tokenisation, index statistics and document ingestion.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/tracing"
)

const maxBodyBytes = 4 << 20

type Handler struct {
	svc             *search.Service
	defaultLimit    int
	maxResults      int
	defaultOrder    ranker.Order
	defaultStrategy executor.Strategy
	logger          *slog.Logger
}

// New validates the configured defaults and returns a Handler.
func New(svc *search.Service, cfg config.SearchConfig) (*Handler, error) {
	order, err := ranker.ParseOrder(cfg.DefaultOrder)
	if err != nil {
		return nil, fmt.Errorf("search.defaultOrder: %w", err)
	}
	strategy, err := executor.ParseStrategy(cfg.DefaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("search.defaultStrategy: %w", err)
	}
	return &Handler{
		svc:             svc,
		defaultLimit:    cfg.DefaultLimit,
		maxResults:      cfg.MaxResults,
		defaultOrder:    order,
		defaultStrategy: strategy,
		logger:          slog.Default().With("component", "search-handler"),
	}, nil
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/parse", h.Parse)
	mux.HandleFunc("POST /api/v1/tokenize", h.Tokenize)
	mux.HandleFunc("GET /api/v1/indexes", h.ListIndexes)
	mux.HandleFunc("GET /api/v1/indexes/{name}/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/indexes/{name}/reindex", h.Reindex)
	mux.HandleFunc("PUT /api/v1/collections/{collection}/documents", h.PutDocument)
	mux.HandleFunc("DELETE /api/v1/collections/{collection}/documents/{id}", h.DeleteDocument)
}

// SearchResponse is one page of matching documents. With the
// null-if-incompatible strategy Results may hold nulls.
type SearchResponse struct {
	Index     string             `json:"index"`
	Query     string             `json:"query"`
	Canonical string             `json:"canonical"`
	Order     string             `json:"order"`
	Strategy  string             `json:"strategy"`
	Offset    int                `json:"offset"`
	Limit     int                `json:"limit"`
	Results   []*document.Record `json:"results"`
	TookMs    int64              `json:"took_ms"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	q := r.URL.Query()

	indexName := q.Get("index")
	if indexName == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'index' is required")
		return
	}
	query := q.Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(q.Get("limit"), h.defaultLimit)
	if err != nil || limit < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if h.maxResults > 0 && (limit == 0 || limit > h.maxResults) {
		limit = h.maxResults
	}
	order := h.defaultOrder
	if v := q.Get("order"); v != "" {
		if order, err = ranker.ParseOrder(v); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	strategy := h.defaultStrategy
	if v := q.Get("strategy"); v != "" {
		if strategy, err = executor.ParseStrategy(v); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	prefixes, _ := strconv.ParseBool(q.Get("prefixes"))

	ctx, span := tracing.Start(ctx, "search", middleware.GetRequestID(ctx))
	span.Set("index", indexName)
	defer func() {
		span.End()
		span.Log(ctx)
	}()

	keywords, err := search.ParseKeywords(query, prefixes)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	results, err := search.FullTextSearch[*document.Record](ctx, h.svc, indexName, offset, limit, order, strategy, keywords)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	span.Set("returned", len(results))
	took := time.Since(start)
	logger.FromContext(ctx).Info("search completed",
		"index", indexName,
		"query", query,
		"order", order.String(),
		"returned", len(results),
		"latency_ms", took.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Index:     indexName,
		Query:     query,
		Canonical: parser.Canonical(keywords),
		Order:     order.String(),
		Strategy:  strategy.String(),
		Offset:    offset,
		Limit:     limit,
		Results:   results,
		TookMs:    took.Milliseconds(),
	})
}

// KeywordView describes one parsed keyword.
type KeywordView struct {
	Type     string        `json:"type"`
	Modifier string        `json:"modifier"`
	Text     string        `json:"text"`
	Parts    []KeywordView `json:"parts,omitempty"`
}

func describe(k parser.Keyword) KeywordView {
	v := KeywordView{Modifier: k.Modifier().String(), Text: k.String()}
	switch k := k.(type) {
	case *parser.Term:
		v.Type = "term"
	case *parser.Prefix:
		v.Type = "prefix"
	case *parser.Regex:
		v.Type = "regex"
	case *parser.Sequence:
		v.Type = "sequence"
		for _, p := range k.Parts {
			v.Parts = append(v.Parts, describe(p))
		}
	}
	return v
}

func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefixes, _ := strconv.ParseBool(q.Get("prefixes"))
	keywords, err := search.ParseKeywords(q.Get("q"), prefixes)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	views := make([]KeywordView, len(keywords))
	for i, k := range keywords {
		views[i] = describe(k)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":     q.Get("q"),
		"canonical": parser.Canonical(keywords),
		"keywords":  views,
	})
}

// TokenizeRequest names the collection whose indexing rules apply. Without
// a collection every field of the document is tokenised.
type TokenizeRequest struct {
	Collection string           `json:"collection"`
	Document   *document.Record `json:"document"`
}

func (h *Handler) Tokenize(w http.ResponseWriter, r *http.Request) {
	var req TokenizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Document == nil {
		h.writeError(w, http.StatusBadRequest, "document is required")
		return
	}
	var counts []tokenizer.TokenCount
	if req.Collection == "" {
		counts = tokenizer.Count(req.Document.ID, req.Document.FullTextFields(), nil)
	} else {
		counts = h.svc.Tokenize(req.Collection, req.Document)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tokens": counts})
}

func (h *Handler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Registry.Stats(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"indexes": stats})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	store, err := h.svc.Registry.Store(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	stats, err := store.Stats(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	n, err := h.svc.Indexer.ReindexCollection(r.Context(), name)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"index": name, "indexed": n})
}

func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	var rec document.Record
	if !h.decode(w, r, &rec) {
		return
	}
	ev := consumer.DocumentEvent{Op: consumer.OpPut, Collection: r.PathValue("collection"), Record: &rec}
	if err := consumer.Apply(r.Context(), h.svc.Objects, ev); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"collection": ev.Collection, "id": rec.ID, "status": "indexed"})
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ev := consumer.DocumentEvent{Op: consumer.OpDelete, Collection: r.PathValue("collection"), ID: r.PathValue("id")}
	if err := consumer.Apply(r.Context(), h.svc.Objects, ev); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"collection": ev.Collection, "id": ev.ID, "status": "deleted"})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeErr maps err onto a status code. Server-side failures are logged
// and their detail withheld from the client.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
