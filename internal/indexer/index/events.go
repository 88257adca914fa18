package index

import (
	"context"
	"sync"
)

type EventType int

const (
	EventIndexed EventType = iota
	EventDeindexed
)

func (t EventType) String() string {
	switch t {
	case EventIndexed:
		return "indexed"
	case EventDeindexed:
		return "deindexed"
	default:
		return "unknown"
	}
}

// Event reports a completed index write for one object.
type Event struct {
	Type EventType
	Ref  ObjectReference
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscriber
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]*subscriber)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	sub := &subscriber{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.ch, cancel
}

// publish blocks until every subscriber has taken the event, unsubscribed,
// or ctx is done.
func (b *broadcaster) publish(ctx context.Context, ev Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		case <-ctx.Done():
			return
		}
	}
}
