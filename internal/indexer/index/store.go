// Package index maintains an inverted index inside a dictionary: per token,
// the documents containing it and the positions where it occurs.
//
// Writes are serialised by a store-wide write lock; a re-index retracts the
// old postings and adds the new ones in one dictionary batch while holding
// it, so readers inside View never observe a half-applied document.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

// Reader is the read side of a Store. Implementations are only valid inside
// the View callback that produced them.
type Reader interface {
	// Postings returns the documents containing token, ordered by document key.
	Postings(ctx context.Context, token string) ([]Posting, error)
	// PostingsByPrefix visits every indexed token starting with prefix, in
	// ascending order, with its document frequency.
	PostingsByPrefix(ctx context.Context, prefix string, fn func(token string, docFreq int) error) error
	// AllTokens visits every indexed token. It honours ctx cancellation
	// between tokens.
	AllTokens(ctx context.Context, fn func(token string, docFreq int) error) error
	// Reference returns the object behind a document key.
	Reference(ctx context.Context, docKey string) (ObjectReference, bool, error)
}

// Store is the inverted index of one index collection.
type Store struct {
	name   string
	dict   dictionary.Dictionary
	mu     sync.RWMutex
	events *broadcaster
	logger *slog.Logger

	hooksMu    sync.RWMutex
	writeHooks []WriteHook
}

// WriteHook runs after a write to the named index has become visible and
// before any event for it is delivered.
type WriteHook func(ctx context.Context, index string)

func New(name string, dict dictionary.Dictionary) *Store {
	return &Store{
		name:   name,
		dict:   dict,
		events: newBroadcaster(),
		logger: slog.Default().With("component", "index-store", "index", name),
	}
}

func (s *Store) Name() string {
	return s.name
}

// Index replaces whatever the store holds for ref with counts. Tokens with
// no positions are ignored. Indexing a document with no tokens leaves it
// unindexed.
func (s *Store) Index(ctx context.Context, ref ObjectReference, counts []tokenizer.TokenCount) error {
	docKey := ref.Key()

	s.mu.Lock()
	err := s.apply(ctx, docKey, &ref, counts)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("indexing %s: %w", docKey, err)
	}

	s.wrote(ctx)
	s.events.publish(ctx, Event{Type: EventIndexed, Ref: ref})
	return nil
}

// Deindex removes every posting of ref. It reports whether ref was indexed.
func (s *Store) Deindex(ctx context.Context, ref ObjectReference) (bool, error) {
	docKey := ref.Key()

	s.mu.Lock()
	old, found, err := s.record(ctx, docKey)
	if err == nil && found {
		err = s.apply(ctx, docKey, nil, nil)
		ref = old.Ref
	}
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("deindexing %s: %w", docKey, err)
	}
	if !found {
		return false, nil
	}

	s.wrote(ctx)
	s.events.publish(ctx, Event{Type: EventDeindexed, Ref: ref})
	return true, nil
}

// apply must be called with the write lock held. A nil ref removes the
// document.
func (s *Store) apply(ctx context.Context, docKey string, ref *ObjectReference, counts []tokenizer.TokenCount) error {
	old, _, err := s.record(ctx, docKey)
	if err != nil {
		return err
	}
	oldTokens := make(map[string]struct{}, len(old.Tokens))
	for _, t := range old.Tokens {
		oldTokens[t] = struct{}{}
	}

	puts := make(map[string][]byte, len(counts)*2+1)
	var deletes []string
	newTokens := make([]string, 0, len(counts))
	seen := make(map[string]struct{}, len(counts))

	for _, c := range counts {
		if len(c.DocIndex) == 0 {
			continue
		}
		if _, dup := seen[c.Token]; dup {
			return fmt.Errorf("token %q listed twice", c.Token)
		}
		seen[c.Token] = struct{}{}
		newTokens = append(newTokens, c.Token)
		puts[postingKey(c.Token, docKey)] = encodePositions(c.DocIndex)
		if _, had := oldTokens[c.Token]; !had {
			if err := s.adjustDocFreq(ctx, c.Token, +1, puts, &deletes); err != nil {
				return err
			}
		}
	}
	for t := range oldTokens {
		if _, keep := seen[t]; keep {
			continue
		}
		deletes = append(deletes, postingKey(t, docKey))
		if err := s.adjustDocFreq(ctx, t, -1, puts, &deletes); err != nil {
			return err
		}
	}

	if ref != nil && len(newTokens) > 0 {
		rec, err := json.Marshal(docRecord{Ref: *ref, Tokens: newTokens})
		if err != nil {
			return fmt.Errorf("encoding document record: %w", err)
		}
		puts[docKeyOf(docKey)] = rec
	} else if len(old.Tokens) > 0 {
		deletes = append(deletes, docKeyOf(docKey))
	}

	if len(puts) == 0 && len(deletes) == 0 {
		return nil
	}
	return apperrors.StoreErr("batch write", s.dict.Batch(ctx, puts, deletes))
}

func (s *Store) adjustDocFreq(ctx context.Context, token string, delta int, puts map[string][]byte, deletes *[]string) error {
	key := tokenKey(token)
	raw, _, err := s.dict.Get(ctx, key)
	if err != nil {
		return apperrors.StoreErr("reading token count", err)
	}
	n := decodeCount(raw) + delta
	if n <= 0 {
		*deletes = append(*deletes, key)
		return nil
	}
	puts[key] = encodeCount(n)
	return nil
}

func (s *Store) record(ctx context.Context, docKey string) (docRecord, bool, error) {
	raw, ok, err := s.dict.Get(ctx, docKeyOf(docKey))
	if err != nil {
		return docRecord{}, false, apperrors.StoreErr("reading document record", err)
	}
	if !ok {
		return docRecord{}, false, nil
	}
	var rec docRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return docRecord{}, false, fmt.Errorf("decoding document record %s: %w", docKey, err)
	}
	return rec, true, nil
}

// Clear drops the whole index.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.dict.Clear(ctx)
	s.mu.Unlock()
	if err != nil {
		return apperrors.StoreErr("clearing index", err)
	}
	s.logger.Info("index cleared")
	s.wrote(ctx)
	return nil
}

// OnWrite registers h to run after every later Index, Deindex and Clear,
// on the writer's goroutine.
func (s *Store) OnWrite(h WriteHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.writeHooks = append(s.writeHooks, h)
}

func (s *Store) wrote(ctx context.Context) {
	s.hooksMu.RLock()
	hooks := s.writeHooks
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, s.name)
	}
}

// View runs fn with a Reader while holding the read lock, so every read fn
// makes sees the same index state.
func (s *Store) View(ctx context.Context, fn func(r Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(reader{s})
}

func (s *Store) Postings(ctx context.Context, token string) ([]Posting, error) {
	var out []Posting
	err := s.View(ctx, func(r Reader) error {
		var err error
		out, err = r.Postings(ctx, token)
		return err
	})
	return out, err
}

func (s *Store) Reference(ctx context.Context, docKey string) (ObjectReference, bool, error) {
	var (
		ref ObjectReference
		ok  bool
	)
	err := s.View(ctx, func(r Reader) error {
		var err error
		ref, ok, err = r.Reference(ctx, docKey)
		return err
	})
	return ref, ok, err
}

// Stats counts indexed tokens and documents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Name: s.name}
	err := s.View(ctx, func(Reader) error {
		err := s.dict.Scan(ctx, tokenPrefix, func(string, []byte) error {
			st.Tokens++
			return nil
		})
		if err != nil {
			return apperrors.StoreErr("counting tokens", err)
		}
		err = s.dict.Scan(ctx, docPrefix, func(string, []byte) error {
			st.Documents++
			return nil
		})
		return apperrors.StoreErr("counting documents", err)
	})
	return st, err
}

// Subscribe registers for index events. Events are delivered after the
// write that caused them has become visible and its write hooks have run.
// The channel is never closed; call cancel to stop delivery.
//
// Delivery is synchronous: once the buffer is full the writer waits for
// the subscriber to take the event, so a subscriber must keep reading or
// call cancel. Use a buffer sized for the expected write bursts.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	return s.events.subscribe(buffer)
}

type reader struct {
	s *Store
}

func (r reader) Postings(ctx context.Context, token string) ([]Posting, error) {
	prefix := postingPrefix + token + sep
	var out []Posting
	err := r.s.dict.Scan(ctx, prefix, func(key string, value []byte) error {
		positions, err := decodePositions(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, Posting{DocKey: strings.TrimPrefix(key, prefix), Positions: positions})
		return nil
	})
	if err != nil {
		return nil, apperrors.StoreErr("reading postings", err)
	}
	return out, nil
}

func (r reader) PostingsByPrefix(ctx context.Context, prefix string, fn func(token string, docFreq int) error) error {
	return r.scanTokens(ctx, tokenPrefix+prefix, fn)
}

func (r reader) AllTokens(ctx context.Context, fn func(token string, docFreq int) error) error {
	return r.scanTokens(ctx, tokenPrefix, fn)
}

func (r reader) scanTokens(ctx context.Context, prefix string, fn func(token string, docFreq int) error) error {
	return r.s.dict.Scan(ctx, prefix, func(key string, value []byte) error {
		return fn(strings.TrimPrefix(key, tokenPrefix), decodeCount(value))
	})
}

func (r reader) Reference(ctx context.Context, docKey string) (ObjectReference, bool, error) {
	rec, ok, err := r.s.record(ctx, docKey)
	return rec.Ref, ok, err
}
