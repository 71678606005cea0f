// Package ratelimit bounds how fast any single target can push metric
// samples through the ingest path, so one noisy or misconfigured emitter
// can't starve policy evaluation for every other target. Adapted from the
// teacher's infrastructure/ratelimit per-process HTTP limiter into a
// per-target limiter keyed by target name.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config controls the per-target token bucket.
type Config struct {
	PerSecond float64
	Burst     int
}

// DefaultConfig mirrors the process-wide ratelimit defaults, scaled down for
// a per-target (rather than per-process) budget.
func DefaultConfig() Config {
	return Config{PerSecond: 50, Burst: 100}
}

// Limiter holds one token bucket per target, created lazily on first use.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New builds a Limiter.
func New(cfg Config) *Limiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.PerSecond * 2)
	}
	return &Limiter{cfg: cfg, buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether a sample for target may proceed right now. It
// never blocks: a target over budget simply has this call return false,
// and the caller drops the sample rather than queuing it, keeping ingest
// non-blocking.
func (l *Limiter) Allow(target string) bool {
	return l.bucketFor(target).Allow()
}

func (l *Limiter) bucketFor(target string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[target]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)
		l.buckets[target] = b
	}
	return b
}

// Len reports how many distinct targets currently have a tracked bucket.
// Exposed for tests; buckets are never evicted since the target
// cardinality of a control plane is expected to stay bounded and small.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
