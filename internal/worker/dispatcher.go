package worker

import (
	"context"
	"time"

	"github.com/kestrelops/kestrel/internal/apperrors"
	"github.com/kestrelops/kestrel/internal/queue"
	"github.com/kestrelops/kestrel/internal/remediator"
	"github.com/kestrelops/kestrel/internal/resilience"
)

// process implements the per-worker loop body: claim, breaker check,
// dispatch, and outcome handling for one dequeued envelope.
func (p *Pool) process(ctx context.Context, env queue.Envelope) {
	record, err := p.repo.Claim(ctx, env.ActionID)
	if apperrors.Is(err, apperrors.Conflict) {
		// Not pending: duplicate delivery. Discard silently.
		return
	}
	if err != nil {
		p.log.WithError(err).WithField("action_id", env.ActionID).Error("claim failed")
		return
	}

	if p.breaker.Open(env.Target) {
		p.failTerminal(ctx, env, "circuit_open")
		return
	}
	// record is now Running (Claim performs the pending→running CAS).
	_ = record

	execCtx, cancel := context.WithTimeout(ctx, p.cfg.ExecutionTimeout)
	result, dispatchErr := p.client.Dispatch(execCtx, remediator.Request{
		TaskID:   env.TaskID,
		ActionID: env.ActionID,
		Target:   env.Target,
		Action:   env.Action,
		Severity: env.Severity,
		Params:   env.Params,
		Attempt:  env.Attempt,
	})
	cancel()

	if dispatchErr != nil {
		// A non-network error building/marshalling the request: treat as
		// permanent, there is no reattempt that would change the outcome.
		p.failTerminal(ctx, env, dispatchErr.Error())
		return
	}

	switch result.Outcome {
	case remediator.OutcomeSuccess:
		p.succeed(ctx, env)
	case remediator.OutcomePermanent:
		p.breaker.RecordFailure(env.Target)
		p.failTerminal(ctx, env, result.Detail)
	case remediator.OutcomeTransient:
		p.breaker.RecordFailure(env.Target)
		p.retryOrFail(ctx, env, result)
	}
}

func (p *Pool) succeed(ctx context.Context, env queue.Envelope) {
	if err := p.repo.MarkCompleted(ctx, env.ActionID); err != nil {
		p.log.WithError(err).WithField("action_id", env.ActionID).Error("mark completed failed")
	}
	p.breaker.RecordSuccess(env.Target)
	_ = p.queue.RecordCompleted(ctx, env.TaskID)
	p.metrics.IncWorkerTask("completed")
	p.metrics.IncAction(env.Target, env.Action, "completed")
}

func (p *Pool) failTerminal(ctx context.Context, env queue.Envelope, lastError string) {
	if err := p.repo.MarkFailed(ctx, env.ActionID, lastError); err != nil {
		p.log.WithError(err).WithField("action_id", env.ActionID).Error("mark failed failed")
	}
	_ = p.queue.RecordFailed(ctx)
	p.metrics.IncWorkerTask("failed")
	p.metrics.IncAction(env.Target, env.Action, "failed")
}

// retryOrFail re-enqueues a transiently-failed envelope with attempt+1
// after a jittered exponential backoff, or fails it terminally once the
// configured max attempts is exhausted.
func (p *Pool) retryOrFail(ctx context.Context, env queue.Envelope, result remediator.Result) {
	if env.Attempt >= p.cfg.Backoff.MaxAttempts {
		p.failTerminal(ctx, env, transientDetail(result))
		return
	}

	if err := p.repo.MarkPendingRetry(ctx, env.ActionID, transientDetail(result)); err != nil {
		p.log.WithError(err).WithField("action_id", env.ActionID).Error("mark pending retry failed")
		return
	}

	delay := p.cfg.Backoff.Delay(env.Attempt)
	if err := resilience.Sleep(ctx, delay); err != nil {
		// Shutting down mid-backoff: the record is already back in
		// Pending, so it remains safely re-claimable by a future worker.
		return
	}

	next := env
	next.Attempt++
	next.EnqueuedAt = time.Now()
	if err := p.queue.Enqueue(ctx, next); err != nil {
		p.log.WithError(err).WithField("action_id", env.ActionID).Error("re-enqueue after transient failure failed")
	}
}

func transientDetail(result remediator.Result) string {
	if result.Detail != "" {
		return result.Detail
	}
	return "transient_failure"
}
