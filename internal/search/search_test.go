package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

func newService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Index.FlushInterval = 0
	cfg.Index.Collections = map[string]config.CollectionConfig{
		"posts": {IndexCollection: "articles"},
		"notes": {IndexCollection: "articles"},
	}
	s, err := Open(context.Background(), cfg, WithProvider(dictionary.NewMemoryProvider(nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ids(records []*document.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		if r == nil {
			out[i] = ""
			continue
		}
		out[i] = r.ID
	}
	return out
}

func find(t *testing.T, s *Service, query string) []string {
	t.Helper()
	keywords, err := ParseKeywords(query, false)
	require.NoError(t, err)
	got, err := FullTextSearch[*document.Record](context.Background(), s, "articles", 0, 0,
		ranker.Relevance, executor.PaginateOverCompatibleObjects, keywords)
	require.NoError(t, err)
	return ids(got)
}

func TestService_IndexesOnInsertAndSearches(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	require.NoError(t, s.Objects.Insert(ctx, "posts", document.Text("p1", time.Unix(10, 0), "Title", "Go search engines")))
	require.NoError(t, s.Objects.Insert(ctx, "posts", document.Text("p2", time.Unix(20, 0), "Title", "Java search engines")))
	require.NoError(t, s.Objects.Insert(ctx, "notes", document.Text("n1", time.Unix(30, 0), "Body", "go go go")))

	assert.Equal(t, []string{"n1", "p1"}, find(t, s, "go"))
	assert.Equal(t, []string{"p1"}, find(t, s, "+search -java go"))
	assert.Equal(t, []string{"p2", "p1"}, find(t, s, "'search engines'"))

	require.NoError(t, s.Objects.Delete(ctx, "notes", "n1"))
	assert.Equal(t, []string{"p1"}, find(t, s, "go"))
}

func TestService_SubscribeReportsCompletedIndexing(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	events, cancel, err := s.Subscribe(ctx, "articles", 8)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.Objects.Insert(ctx, "posts", document.Text("p1", time.Unix(1, 0), "Title", "hello")))
	select {
	case ev := <-events:
		assert.Equal(t, index.EventIndexed, ev.Type)
		assert.Equal(t, "posts", ev.Ref.Collection)
		assert.Equal(t, "p1", ev.Ref.ObjectID)
	case <-time.After(time.Second):
		t.Fatal("no index event received")
	}
}

func TestService_CacheFollowsIndexChanges(t *testing.T) {
	s := newService(t)
	require.NotNil(t, s.Cache)
	ctx := context.Background()

	require.NoError(t, s.Objects.Insert(ctx, "posts", document.Text("p1", time.Unix(1, 0), "Title", "cached words")))
	assert.Equal(t, []string{"p1"}, find(t, s, "cached"))

	require.NoError(t, s.Objects.Insert(ctx, "posts", document.Text("p2", time.Unix(2, 0), "Title", "cached again")))
	assert.ElementsMatch(t, []string{"p1", "p2"}, find(t, s, "cached"))

	require.NoError(t, s.Objects.Delete(ctx, "posts", "p1"))
	assert.Equal(t, []string{"p2"}, find(t, s, "cached"))
}

func TestService_SearchAfterEventSeesTheWrite(t *testing.T) {
	for _, started := range []bool{false, true} {
		t.Run(fmt.Sprintf("started=%v", started), func(t *testing.T) {
			s := newService(t)
			ctx, stop := context.WithCancel(context.Background())
			defer stop()
			if started {
				s.Start(ctx)
			}
			events, cancel, err := s.Subscribe(ctx, "articles", 1)
			require.NoError(t, err)
			defer cancel()

			assert.Empty(t, find(t, s, "fresh"))
			for i := 1; i <= 50; i++ {
				id := fmt.Sprintf("p%d", i)
				require.NoError(t, s.Objects.Insert(ctx, "posts", document.Text(id, time.Unix(int64(i), 0), "Title", "fresh")))
				ev := <-events
				require.Equal(t, id, ev.Ref.ObjectID)
				require.Len(t, find(t, s, "fresh"), i, "search right after the event for %s", id)
			}
		})
	}
}

func TestService_RegexMatchesAccentedText(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	require.NoError(t, s.Objects.Insert(ctx, "posts", document.Text("p1", time.Unix(1, 0), "Title", "Pelé scores")))

	assert.Equal(t, []string{"p1"}, find(t, s, "/pelé/"))
	assert.Equal(t, []string{"p1"}, find(t, s, "/PEL[ÉE]/"))
	assert.Equal(t, []string{"p1"}, find(t, s, "pelé"))
}

func TestService_Tokenize(t *testing.T) {
	s := newService(t)
	counts := s.Tokenize("posts", document.Text("x", time.Time{}, "Title", "Pelé scores", "Body", "pele"))
	assert.Equal(t, []tokenizer.TokenCount{
		{Token: "pele", DocIndex: []int{0, 2}},
		{Token: "scores", DocIndex: []int{1}},
	}, counts)
}

func TestParseKeywords_RejectsMalformedQueries(t *testing.T) {
	_, err := ParseKeywords(`"unbalanced`, false)
	assert.ErrorIs(t, err, apperrors.ErrParse)

	keywords, err := ParseKeywords("sea", true)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "sea*", keywords[0].String())
}
