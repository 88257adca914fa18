// Package resilience holds the fault-tolerance wrappers used around the
// optional network collaborators: the Redis cache tier and the Kafka
// consumer.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling fn while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures int
	// Cooldown is how long the breaker stays open before one probe call
	// is let through.
	Cooldown time.Duration
	// CallTimeout bounds every call made through Do. Zero means no bound.
	CallTimeout time.Duration
	// OnStateChange runs after every transition, outside the breaker lock.
	OnStateChange func(name string, state State)
}

// Breaker guards a remote dependency. Failures caused by the caller's own
// context ending are not held against the dependency.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn under the call timeout if the breaker admits it. While half
// open only one call is admitted; its outcome closes or reopens the breaker.
func (b *Breaker) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = WithTimeout(ctx, b.cfg.CallTimeout, b.name+" "+op, fn)
	b.record(probe, err != nil && ctx.Err() == nil, err == nil)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	var changed bool
	defer func() {
		b.mu.Unlock()
		if changed {
			b.notify(StateHalfOpen)
		}
	}()

	switch b.state {
	case StateOpen:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			return false, fmt.Errorf("%s: %w (retry in %v)", b.name, ErrCircuitOpen, wait.Round(time.Millisecond))
		}
		b.state, changed = StateHalfOpen, true
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, fmt.Errorf("%s: %w (probe in flight)", b.name, ErrCircuitOpen)
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// record books the outcome of an admitted call. A call that neither failed
// nor succeeded (the caller gave up) only releases the probe slot.
func (b *Breaker) record(probe, failed, succeeded bool) {
	b.mu.Lock()
	from := b.state
	if probe {
		b.probing = false
	}
	switch {
	case failed:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.cfg.Failures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case succeeded:
		b.failures = 0
		b.state = StateClosed
	}
	to, failures := b.state, b.failures
	b.mu.Unlock()

	if from == to {
		return
	}
	if to == StateOpen {
		b.logger.Warn("circuit opened", "consecutive_failures", failures, "cooldown", b.cfg.Cooldown)
	} else {
		b.logger.Info("circuit closed")
	}
	b.notify(to)
}

func (b *Breaker) notify(s State) {
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, s)
	}
}
