package dictionary

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/huandu/skiplist"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/segment"
)

// Memory is a Dictionary kept in a skip list ordered by key.
type Memory struct {
	mu    sync.RWMutex
	list  *skiplist.SkipList
	dirty bool
}

func NewMemory() *Memory {
	return &Memory{list: skiplist.New(skiplist.String)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	elem := m.list.Get(key)
	if elem == nil {
		return nil, false, nil
	}
	return bytes.Clone(elem.Value.([]byte)), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list.Set(key, bytes.Clone(value))
	m.dirty = true
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.list.Remove(key) != nil {
		m.dirty = true
	}
	return nil
}

// Scan copies the matching range under the read lock and then runs fn
// without holding it, so fn may call back into the dictionary.
func (m *Memory) Scan(ctx context.Context, prefix string, fn ScanFunc) error {
	m.mu.RLock()
	var entries []segment.Entry
	for elem := m.list.Find(prefix); elem != nil; elem = elem.Next() {
		key := elem.Key().(string)
		if !strings.HasPrefix(key, prefix) {
			break
		}
		entries = append(entries, segment.Entry{Key: key, Value: elem.Value.([]byte)})
	}
	m.mu.RUnlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e.Key, e.Value); err != nil {
			return stopped(err)
		}
	}
	return nil
}

func (m *Memory) Batch(_ context.Context, puts map[string][]byte, deletes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range deletes {
		m.list.Remove(key)
	}
	for key, value := range puts {
		m.list.Set(key, bytes.Clone(value))
	}
	if len(puts) > 0 || len(deletes) > 0 {
		m.dirty = true
	}
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list.Init()
	m.dirty = true
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list.Len()
}

// snapshot returns all entries and whether anything changed since the last
// snapshot, resetting the change flag.
func (m *Memory) snapshot() ([]segment.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return nil, false
	}
	entries := make([]segment.Entry, 0, m.list.Len())
	for elem := m.list.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, segment.Entry{Key: elem.Key().(string), Value: elem.Value.([]byte)})
	}
	m.dirty = false
	return entries, true
}

func (m *Memory) restore(entries []segment.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list.Init()
	for _, e := range entries {
		m.list.Set(e.Key, e.Value)
	}
	m.dirty = false
}

// MemoryProvider hands out Memory dictionaries. With a snapshot store, each
// dictionary is restored from its last snapshot on first use and written
// back by Flush.
type MemoryProvider struct {
	mu        sync.Mutex
	dicts     map[string]*Memory
	snapshots *segment.Store
	logger    *slog.Logger
}

func NewMemoryProvider(snapshots *segment.Store) *MemoryProvider {
	return &MemoryProvider{
		dicts:     make(map[string]*Memory),
		snapshots: snapshots,
		logger:    slog.Default().With("component", "memory-dictionary"),
	}
}

func (p *MemoryProvider) GetDictionary(_ context.Context, name string) (Dictionary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.dicts[name]; ok {
		return d, nil
	}
	d := NewMemory()
	if p.snapshots != nil {
		entries, err := p.snapshots.Load(name)
		if err != nil {
			return nil, fmt.Errorf("restoring dictionary %q: %w", name, err)
		}
		d.restore(entries)
	}
	p.dicts[name] = d
	return d, nil
}

// Flush writes every dictionary changed since the previous flush.
func (p *MemoryProvider) Flush(_ context.Context) error {
	if p.snapshots == nil {
		return nil
	}
	p.mu.Lock()
	names := make([]string, 0, len(p.dicts))
	dicts := make([]*Memory, 0, len(p.dicts))
	for name, d := range p.dicts {
		names = append(names, name)
		dicts = append(dicts, d)
	}
	p.mu.Unlock()

	for i, d := range dicts {
		entries, changed := d.snapshot()
		if !changed {
			continue
		}
		if err := p.snapshots.Save(names[i], entries); err != nil {
			d.mu.Lock()
			d.dirty = true
			d.mu.Unlock()
			return fmt.Errorf("flushing dictionary %q: %w", names[i], err)
		}
		p.logger.Info("dictionary flushed", "dictionary", names[i], "entries", len(entries))
	}
	return nil
}

// Close flushes and releases the snapshot directory.
func (p *MemoryProvider) Close() error {
	if p.snapshots == nil {
		return nil
	}
	if err := p.Flush(context.Background()); err != nil {
		return err
	}
	return p.snapshots.Close()
}
