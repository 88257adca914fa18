package index

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New("test", dictionary.NewMemory())
}

func counts(text string) []tokenizer.TokenCount {
	return tokenizer.Count("x", []tokenizer.Field{{Name: "Body", Value: text}}, nil)
}

func ref(id string) ObjectReference {
	return ObjectReference{Collection: "articles", ObjectID: id, Created: time.Unix(1700000000, 0).UTC()}
}

func tokens(t *testing.T, s *Store) []string {
	t.Helper()
	var out []string
	require.NoError(t, s.View(context.Background(), func(r Reader) error {
		return r.AllTokens(context.Background(), func(token string, _ int) error {
			out = append(out, token)
			return nil
		})
	}))
	return out
}

func TestStore_IndexAndPostings(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Index(ctx, ref("1"), counts("go search go")))
	require.NoError(t, s.Index(ctx, ref("2"), counts("search engine")))

	postings, err := s.Postings(ctx, "go")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, ref("1").Key(), postings[0].DocKey)
	assert.Equal(t, []int{0, 2}, postings[0].Positions)

	postings, err = s.Postings(ctx, "search")
	require.NoError(t, err)
	assert.Len(t, postings, 2)

	got, ok, err := s.Reference(ctx, ref("2").Key())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ref("2"), got)

	assert.Equal(t, []string{"engine", "go", "search"}, tokens(t, s))
}

func TestStore_ReindexLeavesOnlyLatestContent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Index(ctx, ref("1"), counts("alpha beta beta")))
	require.NoError(t, s.Index(ctx, ref("1"), counts("beta gamma")))
	require.NoError(t, s.Index(ctx, ref("1"), counts("beta gamma")))

	alpha, err := s.Postings(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, alpha)

	beta, err := s.Postings(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, beta, 1)
	assert.Equal(t, []int{0}, beta[0].Positions)

	assert.Equal(t, []string{"beta", "gamma"}, tokens(t, s))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Name: "test", Tokens: 2, Documents: 1}, st)
}

func TestStore_DocFrequencyTracksDocuments(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Index(ctx, ref("1"), counts("shared one")))
	require.NoError(t, s.Index(ctx, ref("2"), counts("shared two")))

	freq := map[string]int{}
	require.NoError(t, s.View(ctx, func(r Reader) error {
		return r.PostingsByPrefix(ctx, "s", func(token string, n int) error {
			freq[token] = n
			return nil
		})
	}))
	assert.Equal(t, map[string]int{"shared": 2}, freq)

	removed, err := s.Deindex(ctx, ref("1"))
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"shared", "two"}, tokens(t, s))
}

func TestStore_DeindexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Index(ctx, ref("1"), counts("word")))

	removed, err := s.Deindex(ctx, ref("1"))
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Deindex(ctx, ref("1"))
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, tokens(t, s))
}

func TestStore_EmptyDocumentIsNotIndexed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Index(ctx, ref("1"), counts("word")))
	require.NoError(t, s.Index(ctx, ref("1"), counts("...")))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Documents)
	assert.Zero(t, st.Tokens)
}

func TestStore_AllTokensHonoursCancellation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Index(ctx, ref("1"), counts("a b c d")))

	cctx, cancel := context.WithCancel(ctx)
	visited := 0
	err := s.View(cctx, func(r Reader) error {
		return r.AllTokens(cctx, func(string, int) error {
			visited++
			cancel()
			return nil
		})
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, visited)
}

func TestStore_SubscribeReceivesEvents(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	events, cancel := s.Subscribe(4)
	defer cancel()

	require.NoError(t, s.Index(ctx, ref("1"), counts("hello")))
	_, err := s.Deindex(ctx, ref("1"))
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, EventIndexed, ev.Type)
	assert.Equal(t, "1", ev.Ref.ObjectID)
	ev = <-events
	assert.Equal(t, EventDeindexed, ev.Type)
}

func TestStore_CancelledSubscriberDoesNotBlockWriters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, cancel := s.Subscribe(0)
	cancel()
	cancel()

	done := make(chan struct{})
	go func() {
		_ = s.Index(ctx, ref("1"), counts("hello"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("index blocked on a cancelled subscriber")
	}
}

func TestStore_WriteHooksRunBeforeEvents(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	events, cancel := s.Subscribe(4)
	defer cancel()

	var calls []string
	s.OnWrite(func(_ context.Context, index string) {
		// The write is already visible and its event not yet queued.
		postings, err := s.Postings(ctx, "hello")
		assert.NoError(t, err)
		calls = append(calls, fmt.Sprintf("%s:%d:%d", index, len(postings), len(events)))
	})

	require.NoError(t, s.Index(ctx, ref("1"), counts("hello")))
	_, err := s.Deindex(ctx, ref("1"))
	require.NoError(t, err)
	found, err := s.Deindex(ctx, ref("1"))
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, []string{"test:1:0", "test:0:1", "test:0:2"}, calls)
}

func TestStore_FullSubscriberHoldsWriterUntilRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	events, cancel := s.Subscribe(1)
	defer cancel()

	require.NoError(t, s.Index(ctx, ref("1"), counts("one")))
	done := make(chan error, 1)
	go func() { done <- s.Index(ctx, ref("2"), counts("two")) }()
	select {
	case err := <-done:
		t.Fatalf("write returned while the subscriber buffer was full: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, "1", (<-events).Ref.ObjectID)
	require.NoError(t, <-done)
	assert.Equal(t, "2", (<-events).Ref.ObjectID)
}

func TestStore_ConcurrentReadersSeeWholeDocuments(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Index(ctx, ref("1"), counts("left")))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			text := "left"
			if i%2 == 1 {
				text = "right"
			}
			_ = s.Index(ctx, ref("1"), counts(text))
		}
	}()

	for i := 0; i < 200; i++ {
		require.NoError(t, s.View(ctx, func(r Reader) error {
			left, err := r.Postings(ctx, "left")
			if err != nil {
				return err
			}
			right, err := r.Postings(ctx, "right")
			if err != nil {
				return err
			}
			assert.Equal(t, 1, len(left)+len(right))
			return nil
		}))
	}
	close(stop)
	wg.Wait()
}

func TestPositionsEncoding(t *testing.T) {
	in := []int{0, 1, 7, 300, 70000}
	out, err := decodePositions(encodePositions(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodePositions([]byte{5, 1})
	assert.Error(t, err)
}

func TestSplitKey(t *testing.T) {
	c, id := SplitKey(ref("a/b").Key())
	assert.Equal(t, "articles", c)
	assert.Equal(t, "a/b", id)
}
