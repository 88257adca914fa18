package tracing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/logger"
)

func TestStart_NestsAndInheritsTraceID(t *testing.T) {
	ctx, root := Start(context.Background(), "search", "req-1")
	assert.Nil(t, FromContext(context.Background()))
	assert.Same(t, root, FromContext(ctx))

	childCtx, rank := Start(ctx, "rank", "ignored")
	_, page := Start(ctx, "paginate", "")
	_, deep := Start(childCtx, "resolve", "")

	assert.Equal(t, "req-1", rank.TraceID())
	assert.Equal(t, "req-1", deep.TraceID())
	require.Len(t, root.Children(), 2)
	assert.Same(t, rank, root.Children()[0])
	assert.Same(t, page, root.Children()[1])
	assert.Same(t, deep, rank.Children()[0])
}

func TestLog_SilentAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logger.New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, span := Start(context.Background(), "search", "req-1")
	span.End()
	span.Log(ctx)
	assert.Empty(t, buf.String())
}

func TestEnd_IsIdempotent(t *testing.T) {
	_, span := Start(context.Background(), "rank", "t")
	assert.Zero(t, span.Duration())
	span.End()
	first := span.Duration()
	span.End()
	assert.Equal(t, first, span.Duration())
}

func TestLog_WritesTreeDepthFirst(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logger.New(&buf, "debug", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, root := Start(context.Background(), "search", "req-9")
	root.Set("index", "articles")
	rankCtx, rank := Start(ctx, "rank", "")
	rank.Set("hits", 3)
	_, resolve := Start(rankCtx, "resolve", "")
	resolve.End()
	rank.End()
	_, page := Start(ctx, "paginate", "")
	page.End()
	root.End()

	root.Log(ctx)
	raw := buf.String()

	type line struct {
		Span    string `json:"span"`
		TraceID string `json:"trace_id"`
		Depth   int    `json:"depth"`
	}
	var got []line
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		var l line
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		got = append(got, l)
	}
	assert.Equal(t, []line{
		{"search", "req-9", 0},
		{"rank", "req-9", 1},
		{"resolve", "req-9", 2},
		{"paginate", "req-9", 1},
	}, got)
	assert.Contains(t, raw, `"index":"articles"`)
}
