// Package runner implements the periodic re-evaluation loop:
// independently of the on-ingest synchronous path, it wakes on a fixed
// interval, pulls the batch of samples received since its last tick,
// assembles a multi-metric view per target, and re-runs the policy engine
// over each one. This is what lets a condition tree that needs several
// metric names for the same target at once (an "all" over leaves on
// different names) ever fire, since a single ingested sample only ever
// carries one metric.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelops/kestrel/internal/ingest"
	"github.com/kestrelops/kestrel/internal/metricstore"
	"github.com/kestrelops/kestrel/internal/policy"
	"github.com/kestrelops/kestrel/pkg/logger"
)

// Config controls the Runner's schedule, matching the documented
// knobs.
type Config struct {
	Enabled  bool
	Interval time.Duration
	// BatchSize bounds how many recent samples one tick pulls from the
	// metric store.
	BatchSize int
}

// DefaultConfig returns the documented production defaults: disabled, 30s
// interval, 100-sample batches.
func DefaultConfig() Config {
	return Config{Enabled: false, Interval: 30 * time.Second, BatchSize: 100}
}

// Status mirrors the runner's status() contract.
type Status struct {
	Enabled         bool `json:"enabled"`
	Running         bool `json:"running"`
	IntervalSeconds int  `json:"interval_seconds"`
	BatchSize       int  `json:"batch_size"`
}

// Runner owns the ticking goroutine. It is safe to Start/Stop at most once
// per instance; construct a fresh Runner to restart.
type Runner struct {
	cfg      Config
	store    metricstore.Repository
	engine   *policy.Engine
	producer *ingest.Producer
	log      *logger.Logger

	running int32 // atomic bool, set while a tick is executing

	lastTick time.Time
	tickMu   sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// New builds a Runner. lastTick defaults to the construction time so the
// first tick only sees samples ingested after the control plane started.
func New(cfg Config, store metricstore.Repository, engine *policy.Engine, producer *ingest.Producer, log *logger.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Runner{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		producer: producer,
		log:      log,
		lastTick: time.Now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticking goroutine if the Runner is enabled. It is a
// no-op, returning immediately, when cfg.Enabled is false.
func (r *Runner) Start(ctx context.Context) {
	if !r.cfg.Enabled {
		close(r.done)
		return
	}
	go r.loop(ctx)
}

// Stop signals the loop to exit and blocks until the in-flight tick (if
// any) finishes. Safe to call even when Start was a no-op.
func (r *Runner) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}

// loop implements cooperative tick scheduling: at most one tick is ever
// in flight, and a tick that overruns its interval runs to completion
// before the next is scheduled rather than stacking up concurrent ticks.
func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs one re-evaluation pass. It never runs concurrently with
// itself: the select loop in loop only ever calls tick synchronously, so
// an overrunning tick simply delays the next ticker receive rather than
// overlapping it.
func (r *Runner) tick(ctx context.Context) {
	atomic.StoreInt32(&r.running, 1)
	defer atomic.StoreInt32(&r.running, 0)

	r.tickMu.Lock()
	since := r.lastTick
	r.tickMu.Unlock()

	samples, err := r.store.Since(since, r.cfg.BatchSize)
	if err != nil {
		r.log.WithError(err).Error("runner: fetch samples since last tick failed")
		return
	}
	if len(samples) == 0 {
		return
	}

	newestSeen := since
	byTarget := make(map[string]map[string]float64)
	for _, s := range samples {
		view, ok := byTarget[s.Target]
		if !ok {
			view = make(map[string]float64)
			byTarget[s.Target] = view
		}
		view[s.Name] = s.Value // last value per metric name wins within the batch
		if s.Timestamp.After(newestSeen) {
			newestSeen = s.Timestamp
		}
	}

	for target, view := range byTarget {
		_, intents := r.engine.Evaluate(view, target)
		for _, intent := range intents {
			if err := r.producer.EnqueueIntent(ctx, intent); err != nil {
				r.log.WithError(err).WithField("target", target).Error("runner: enqueue intent failed")
			}
		}
	}

	r.tickMu.Lock()
	r.lastTick = newestSeen
	r.tickMu.Unlock()
}

// Status reports the runner's current configuration and whether a tick is
// in flight right now.
func (r *Runner) Status() Status {
	return Status{
		Enabled:         r.cfg.Enabled,
		Running:         atomic.LoadInt32(&r.running) == 1,
		IntervalSeconds: int(r.cfg.Interval / time.Second),
		BatchSize:       r.cfg.BatchSize,
	}
}
