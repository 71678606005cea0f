// Package ingest is the synchronous entry point for a single metric sample
// arriving at the control plane: persist it, evaluate policies against it
// immediately, and enqueue any resulting intents. It never calls the
// remediator directly — dispatch is the worker pool's job.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelops/kestrel/internal/actions"
	"github.com/kestrelops/kestrel/internal/apperrors"
	"github.com/kestrelops/kestrel/internal/metricstore"
	"github.com/kestrelops/kestrel/internal/policy"
	"github.com/kestrelops/kestrel/internal/queue"
	"github.com/kestrelops/kestrel/internal/ratelimit"
	"github.com/kestrelops/kestrel/pkg/logger"
	"github.com/kestrelops/kestrel/pkg/metrics"

	"github.com/google/uuid"
)

// Producer wires the metric store, policy engine, action repository, and
// remediation queue into the ingest-time evaluation path.
type Producer struct {
	store   metricstore.Repository
	engine  *policy.Engine
	actions actions.Repository
	queue   queue.Queue
	limiter *ratelimit.Limiter
	rec     metrics.Recorder
	log     *logger.Logger
}

// New builds a Producer. limiter may be nil, in which case ingest is
// unbounded — callers wanting per-target throttling pass a
// *ratelimit.Limiter built from the configured ingest rate.
func New(store metricstore.Repository, engine *policy.Engine, repo actions.Repository, q queue.Queue, limiter *ratelimit.Limiter, rec metrics.Recorder, log *logger.Logger) *Producer {
	return &Producer{store: store, engine: engine, actions: repo, queue: q, limiter: limiter, rec: rec, log: log}
}

// Ingest records sample, evaluates every enabled policy whose target
// matches sample.Target against the single-metric view {sample.Name:
// sample.Value}, and enqueues one task envelope per resulting intent.
//
// A single sample can only satisfy a condition tree that needs no metric
// other than that one name (a leaf on it, or an "any" with a child on it);
// an "all" over several metric names for the same target is instead caught
// by the periodic re-evaluation in
// internal/runner, which assembles a multi-metric view across a batch of
// recent samples.
func (p *Producer) Ingest(ctx context.Context, sample metricstore.Sample) error {
	if p.limiter != nil && !p.limiter.Allow(sample.Target) {
		return apperrors.Transient("ingest rate exceeded for target "+sample.Target, nil)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	if err := p.store.Record(sample); err != nil {
		return fmt.Errorf("ingest: record sample: %w", err)
	}
	p.rec.IncIngest()

	metricView := map[string]float64{sample.Name: sample.Value}
	violations, intents := p.engine.Evaluate(metricView, sample.Target)

	for _, v := range violations {
		p.rec.IncPolicyEvaluation(v.PolicyName, "violation")
	}

	for _, intent := range intents {
		if err := p.EnqueueIntent(ctx, intent); err != nil {
			p.log.WithError(err).WithField("target", intent.Target).Error("enqueue intent failed")
		}
	}
	return nil
}

// EnqueueIntent creates the backing Action Record and pushes its envelope
// onto the remediation queue. These two steps are not transactional across
// process crashes; a created-but-unqueued record is treated as an
// acceptable gap closed by operator reconciliation, not by the core.
// Exported so internal/runner's periodic re-evaluation path can share it.
func (p *Producer) EnqueueIntent(ctx context.Context, intent policy.Intent) error {
	id, err := p.actions.Create(ctx, actions.NewRecord{
		Target: intent.Target,
		Action: string(intent.Action),
		Details: fmt.Sprintf("triggered by policy evaluation at %s severity", intent.Severity),
	})
	if err != nil {
		return fmt.Errorf("create action record: %w", err)
	}

	env := queue.Envelope{
		TaskID:     uuid.NewString(),
		ActionID:   id,
		Target:     intent.Target,
		Action:     string(intent.Action),
		Severity:   string(intent.Severity),
		Params:     intent.Params,
		EnqueuedAt: time.Now(),
		Attempt:    1,
	}
	if err := p.queue.Enqueue(ctx, env); err != nil {
		return fmt.Errorf("enqueue envelope: %w", err)
	}
	p.rec.IncQueueOp("enqueue")
	return nil
}
