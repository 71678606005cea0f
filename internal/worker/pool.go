// Package worker implements the Worker Pool & Remediator Dispatcher:
// N cooperating consumers that dequeue task envelopes, enforce
// cooldown/breaker/claim protocol, call the external remediator, and
// persist the resulting action state transition.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelops/kestrel/internal/actions"
	"github.com/kestrelops/kestrel/internal/breaker"
	"github.com/kestrelops/kestrel/internal/queue"
	"github.com/kestrelops/kestrel/internal/remediator"
	"github.com/kestrelops/kestrel/internal/resilience"
	"github.com/kestrelops/kestrel/pkg/logger"
	"github.com/kestrelops/kestrel/pkg/metrics"
)

// Config parameterizes a Pool.
type Config struct {
	MaxConcurrent    int
	QueuePollTimeout time.Duration
	ExecutionTimeout time.Duration
	Backoff          resilience.BackoffConfig
}

// DefaultConfig returns the documented production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    5,
		QueuePollTimeout: 5 * time.Second,
		ExecutionTimeout: 30 * time.Second,
		Backoff:          resilience.DefaultBackoffConfig(),
	}
}

// Pool runs Config.MaxConcurrent independent workers, each executing the
// per-worker loop against a shared Queue, ActionRepository,
// CircuitBreaker, and remediator Client.
type Pool struct {
	cfg     Config
	queue   queue.Queue
	repo    actions.Repository
	breaker *breaker.Breaker
	client  *remediator.Client
	metrics metrics.Recorder
	log     *logger.Logger

	wg sync.WaitGroup

	activeMu sync.Mutex
	active   int
}

// New builds a Pool. metricsRecorder and log may be nil-safe defaults
// (metrics.Noop{}, logger.NewDefault()) supplied by the caller.
func New(cfg Config, q queue.Queue, repo actions.Repository, br *breaker.Breaker, client *remediator.Client, rec metrics.Recorder, log *logger.Logger) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.QueuePollTimeout <= 0 {
		cfg.QueuePollTimeout = 5 * time.Second
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 30 * time.Second
	}
	return &Pool{cfg: cfg, queue: q, repo: repo, breaker: br, client: client, metrics: rec, log: log}
}

// Start launches the configured number of workers, each running until ctx
// is cancelled. Start returns immediately; use Wait to block for drain.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.MaxConcurrent; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}
}

// Wait blocks until every worker has exited, or until timeout elapses,
// whichever comes first. It returns false if the timeout elapsed with
// workers still in flight, matching the graceful-shutdown contract: wait
// at most shutdown_timeout for in-flight dispatches to reach a terminal
// state, then stop.
func (p *Pool) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ActiveWorkers reports how many workers are currently between claim and a
// terminal action-state transition.
func (p *Pool) ActiveWorkers() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return p.active
}

func (p *Pool) workerLoop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, ok, err := p.queue.Dequeue(ctx, p.cfg.QueuePollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("worker dequeue error")
			continue
		}
		if !ok {
			continue
		}

		p.markActive(1)
		p.process(ctx, env)
		p.markActive(-1)
	}
}

func (p *Pool) markActive(delta int) {
	p.activeMu.Lock()
	p.active += delta
	n := p.active
	p.activeMu.Unlock()
	p.metrics.SetWorkerActive(n)
}
