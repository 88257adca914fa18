// Package indexer keeps index collections in step with the object store.
// The Engine is registered as an object-store hook: every insert and update
// re-indexes the object and every delete de-indexes it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/cursor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/registry"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/objectstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/metrics"
)

// Publisher receives one message per completed index write.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// IndexedMessage is the payload published for every completed index write.
type IndexedMessage struct {
	Index      string    `json:"index"`
	Event      string    `json:"event"`
	Collection string    `json:"collection"`
	ObjectID   string    `json:"id"`
	Created    time.Time `json:"created"`
}

type creator interface {
	CreatedAt() time.Time
}

type Option func(*Engine)

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWarnings replaces the sink for fields that fail to tokenize.
func WithWarnings(fn tokenizer.WarningFunc) Option {
	return func(e *Engine) { e.warn = fn }
}

type Engine struct {
	registry  *registry.Registry
	objects   *objectstore.Store
	publisher Publisher
	metrics   *metrics.Metrics
	warn      tokenizer.WarningFunc
	logger    *slog.Logger

	mu         sync.RWMutex
	indexOf    map[string]string
	properties map[string][]string
}

// NewEngine registers the engine as a lifecycle hook on objects.
func NewEngine(reg *registry.Registry, objects *objectstore.Store, opts ...Option) *Engine {
	e := &Engine{
		registry:   reg,
		objects:    objects,
		logger:     slog.Default().With("component", "indexer"),
		indexOf:    make(map[string]string),
		properties: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	objects.AddHook(e.onChange)
	return e
}

// Configure applies the collection mappings from configuration.
func (e *Engine) Configure(collections map[string]config.CollectionConfig) {
	for name, cc := range collections {
		target := cc.IndexCollection
		if target == "" {
			target = name
		}
		e.SetFullTextSearchIndexCollection(name, target)
		if len(cc.Properties) > 0 {
			e.AddFullTextSearch(name, cc.Properties...)
		}
	}
}

// SetFullTextSearchIndexCollection indexes the objects of collection into
// indexCollection. Several collections may share one index collection.
func (e *Engine) SetFullTextSearchIndexCollection(collection, indexCollection string) {
	e.mu.Lock()
	e.indexOf[collection] = indexCollection
	e.mu.Unlock()
	e.logger.Info("collection mapped", "collection", collection, "index", indexCollection)
}

// IndexCollection returns the index collection of collection.
func (e *Engine) IndexCollection(collection string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	name, ok := e.indexOf[collection]
	return name, ok
}

// AddFullTextSearch appends properties to the list read from objects of
// collection that do not expose their own full-text fields. An unmapped
// collection is mapped to an index collection of the same name.
func (e *Engine) AddFullTextSearch(collection string, properties ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexOf[collection]; !ok {
		e.indexOf[collection] = collection
	}
	current := e.properties[collection]
	for _, p := range properties {
		if !slices.Contains(current, p) {
			current = append(current, p)
		}
	}
	e.properties[collection] = current
}

// RemoveFullTextSearch stops indexing the given properties. With no
// properties it removes them all. Already indexed objects keep their
// postings until they are re-indexed.
func (e *Engine) RemoveFullTextSearch(collection string, properties ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(properties) == 0 {
		delete(e.properties, collection)
		return
	}
	e.properties[collection] = slices.DeleteFunc(e.properties[collection], func(p string) bool {
		return slices.Contains(properties, p)
	})
}

// IndexedProperties lists the configured properties of collection in the
// order they are indexed.
func (e *Engine) IndexedProperties(collection string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.properties[collection])
}

// Fields returns the full-text fields of obj. Objects implementing
// tokenizer.Indexable describe themselves; others are read through the
// configured properties.
func (e *Engine) Fields(collection string, obj any) ([]tokenizer.Field, bool) {
	if ix, ok := obj.(tokenizer.Indexable); ok {
		return ix.FullTextFields(), true
	}
	props := e.IndexedProperties(collection)
	fr, ok := obj.(cursor.FieldReader)
	if !ok || len(props) == 0 {
		return nil, false
	}
	fields := make([]tokenizer.Field, 0, len(props))
	for _, p := range props {
		v, ok := fr.FieldValue(p)
		if !ok {
			continue
		}
		fields = append(fields, tokenizer.Field{Name: p, Value: v})
	}
	return fields, true
}

// Tokenize returns the token counts obj would be indexed with.
func (e *Engine) Tokenize(collection string, obj objectstore.Object) []tokenizer.TokenCount {
	fields, _ := e.Fields(collection, obj)
	return tokenizer.Count(obj.ObjectID(), fields, e.warn)
}

// IndexObject (re)indexes obj. Objects of unmapped collections are ignored.
func (e *Engine) IndexObject(ctx context.Context, collection string, obj objectstore.Object) error {
	name, ok := e.IndexCollection(collection)
	if !ok {
		return nil
	}
	store, err := e.registry.Store(ctx, name)
	if err != nil {
		return err
	}

	ref := index.ObjectReference{Collection: collection, ObjectID: obj.ObjectID()}
	if c, ok := obj.(creator); ok {
		ref.Created = c.CreatedAt()
	}
	fields, ok := e.Fields(collection, obj)
	if !ok {
		e.logger.Debug("object has no full-text fields", "collection", collection, "object_id", ref.ObjectID)
	}
	return store.Index(ctx, ref, tokenizer.Count(ref.ObjectID, fields, e.warn))
}

// DeindexObject removes id of collection from its index collection.
func (e *Engine) DeindexObject(ctx context.Context, collection, id string) error {
	name, ok := e.IndexCollection(collection)
	if !ok {
		return nil
	}
	store, err := e.registry.Store(ctx, name)
	if err != nil {
		return err
	}
	_, err = store.Deindex(ctx, index.ObjectReference{Collection: collection, ObjectID: id})
	return err
}

func (e *Engine) onChange(ctx context.Context, change objectstore.Change) error {
	switch change.Type {
	case objectstore.ObjectInserted, objectstore.ObjectUpdated:
		return e.IndexObject(ctx, change.Collection, change.Object)
	case objectstore.ObjectDeleted:
		return e.DeindexObject(ctx, change.Collection, change.Previous.ObjectID())
	default:
		return fmt.Errorf("unknown change type %v", change.Type)
	}
}

// ReindexCollection clears indexCollection and indexes every object of
// every collection mapped to it. It returns the number of objects indexed.
func (e *Engine) ReindexCollection(ctx context.Context, indexCollection string) (int, error) {
	store, err := e.registry.Store(ctx, indexCollection)
	if err != nil {
		return 0, err
	}
	if err := store.Clear(ctx); err != nil {
		return 0, err
	}

	var sources []string
	e.mu.RLock()
	for collection, target := range e.indexOf {
		if target == indexCollection {
			sources = append(sources, collection)
		}
	}
	e.mu.RUnlock()
	slices.Sort(sources)

	start := time.Now()
	total := 0
	for _, collection := range sources {
		c, err := objectstore.Find[objectstore.Object](ctx, e.objects, collection, cursor.All{})
		if err != nil {
			return total, fmt.Errorf("scanning %s: %w", collection, err)
		}
		for {
			ok, err := c.MoveNext(ctx)
			if err != nil {
				return total, fmt.Errorf("scanning %s: %w", collection, err)
			}
			if !ok {
				break
			}
			if !c.CurrentTypeCompatible() {
				continue
			}
			// A write that landed after the scan read this object has
			// already indexed a newer version; index what is current now.
			err = e.objects.Locked(ctx, collection, c.Current().ObjectID(), func(obj objectstore.Object) error {
				return e.IndexObject(ctx, collection, obj)
			})
			if errors.Is(err, apperrors.ErrDocumentNotFound) {
				continue
			}
			if err != nil {
				return total, err
			}
			total++
		}
	}
	e.logger.Info("index collection rebuilt",
		"index", indexCollection,
		"collections", sources,
		"objects", total,
		"duration", time.Since(start),
	)
	return total, nil
}

// Start forwards index events of every store, current and future, to
// metrics and the publisher until ctx ends, and flushes dictionaries every
// flushInterval when that is positive.
func (e *Engine) Start(ctx context.Context, flushInterval time.Duration) {
	e.registry.OnOpen(func(store *index.Store) {
		if ctx.Err() != nil {
			return
		}
		e.forward(ctx, store)
	})
	if flushInterval > 0 {
		e.startFlushLoop(ctx, flushInterval)
	}
}

func (e *Engine) forward(ctx context.Context, store *index.Store) {
	events, cancel := store.Subscribe(256)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				e.metrics.IndexEvent(store.Name(), ev.Type.String())
				e.publish(ctx, store.Name(), ev)
			}
		}
	}()
}

func (e *Engine) publish(ctx context.Context, indexName string, ev index.Event) {
	if e.publisher == nil {
		return
	}
	msg := IndexedMessage{
		Index:      indexName,
		Event:      ev.Type.String(),
		Collection: ev.Ref.Collection,
		ObjectID:   ev.Ref.ObjectID,
		Created:    ev.Ref.Created,
	}
	err := e.publisher.Publish(ctx, kafka.Event{
		Key:     ev.Ref.Key(),
		Value:   msg,
		Headers: map[string]string{"event": msg.Event},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("publishing index event failed", "index", indexName, "object_id", ev.Ref.ObjectID, "error", err)
	}
}

func (e *Engine) startFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(context.WithoutCancel(ctx)); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(ctx); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// Flush persists in-memory dictionaries and refreshes the size gauges.
func (e *Engine) Flush(ctx context.Context) error {
	err := e.registry.Flush(ctx)
	e.metrics.Flush(err)
	if e.metrics != nil {
		stats, serr := e.registry.Stats(ctx)
		for _, st := range stats {
			e.metrics.IndexSize(st.Name, st.Tokens, st.Documents)
		}
		if serr != nil {
			e.logger.Warn("collecting index stats failed", "error", serr)
		}
	}
	return err
}

// Close flushes and closes the registry.
func (e *Engine) Close() error {
	if err := e.Flush(context.Background()); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	return e.registry.Close()
}
