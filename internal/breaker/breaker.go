// Package breaker implements the per-target CircuitBreaker:
// a sliding window of failure timestamps gates remediation, closing again
// only after a cooldown and one successful probe. The state machine is the
// usual closed/open/half-open one; the failure accounting is a pruned
// timestamp list rather than a
// bare counter, since opening is tied to failures observed within a
// trailing window W rather than since-last-state-change.
package breaker

import (
	"sync"
	"time"
)

// State is one of closed, open, half-open.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config parameterizes a Breaker: F failures within window W opens the
// circuit; it stays open for cooldown C before probing again.
type Config struct {
	FailureThreshold int
	Window           time.Duration
	Cooldown         time.Duration
}

type target struct {
	mu        sync.Mutex
	state     State
	failures  []time.Time // pruned to entries within Window
	openedAt  time.Time
}

// Breaker tracks one circuit per remediation target.
type Breaker struct {
	cfg Config

	mu      sync.RWMutex
	targets map[string]*target
}

// New returns a Breaker with the given configuration. Zero-valued fields
// fall back to the documented production defaults (F=5, W=300s, C=60s).
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 300 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{cfg: cfg, targets: make(map[string]*target)}
}

func (b *Breaker) getOrCreate(name string) *target {
	b.mu.RLock()
	t, ok := b.targets[name]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.targets[name]; ok {
		return t
	}
	t = &target{}
	b.targets[name] = t
	return t
}

// Open reports whether the circuit for name currently blocks dispatch. A
// stale open circuit transitions itself to half-open as a side effect of
// the query, per the standard breaker pattern; queries never block
// producers since all state lives behind a per-target mutex.
func (b *Breaker) Open(name string) bool {
	t := b.getOrCreate(name)
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Open:
		if time.Since(t.openedAt) >= b.cfg.Cooldown {
			t.state = HalfOpen
			return false
		}
		return true
	default:
		return false
	}
}

// RecordFailure records a failure at now. In half-open, a single failure
// reopens the circuit. In closed, the failure is pruned against the
// window; reaching the threshold opens the circuit.
func (b *Breaker) RecordFailure(name string) {
	t := b.getOrCreate(name)
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case HalfOpen:
		t.state = Open
		t.openedAt = now
		t.failures = []time.Time{now}
		return
	case Open:
		return
	}

	t.failures = prune(append(t.failures, now), now, b.cfg.Window)
	if len(t.failures) >= b.cfg.FailureThreshold {
		t.state = Open
		t.openedAt = now
	}
}

// RecordSuccess closes a half-open circuit and clears its failure window;
// it is a no-op for an already-closed circuit beyond pruning.
func (b *Breaker) RecordSuccess(name string) {
	t := b.getOrCreate(name)
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case HalfOpen:
		t.state = Closed
		t.failures = nil
	case Closed:
		t.failures = prune(t.failures, time.Now(), b.cfg.Window)
	}
}

// State reports the current state of name's circuit without mutating it
// (unlike Open, State does not perform the open→half-open transition).
func (b *Breaker) State(name string) State {
	t := b.getOrCreate(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func prune(timestamps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
