// Package queue implements the Remediation Queue: a single
// durable FIFO named "remediation_queue" with blocking dequeue and
// observable counters. Queue has two implementations: a Redis-backed one
// (internal/queue.Redis) for durability across process restarts, and an
// in-memory one (internal/queue.Memory) for tests and single-process
// development.
package queue

import (
	"context"
	"time"
)

// Envelope is the queue payload: it corresponds one-to-one
// with an Action Record at time of enqueue.
type Envelope struct {
	TaskID     string                 `json:"task_id"`
	ActionID   int64                  `json:"action_id"`
	Target     string                 `json:"target"`
	Action     string                 `json:"action"`
	Severity   string                 `json:"severity"`
	Params     map[string]interface{} `json:"params,omitempty"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
	Attempt    int                    `json:"attempt"`
}

// Stats mirrors the queue's stats() contract.
type Stats struct {
	QueueLength       int    `json:"queue_length"`
	TasksEnqueued     uint64 `json:"tasks_enqueued"`
	TasksDequeued     uint64 `json:"tasks_dequeued"`
	TasksCompleted    uint64 `json:"tasks_completed"`
	TasksFailed       uint64 `json:"tasks_failed"`
	LastProcessedTask string `json:"last_processed_task,omitempty"`
}

// Queue is the FIFO contract consumed by the ingest path (producer) and the
// worker pool (consumer).
type Queue interface {
	// Enqueue appends env to the tail and atomically increments
	// tasks_enqueued.
	Enqueue(ctx context.Context, env Envelope) error

	// Dequeue blocks up to timeout for a head element. ok is false on
	// timeout, in which case env is the zero value. On success,
	// tasks_dequeued is atomically incremented.
	Dequeue(ctx context.Context, timeout time.Duration) (env Envelope, ok bool, err error)

	// Length returns the current, advisory queue size.
	Length(ctx context.Context) (int, error)

	// Stats returns the full counter set.
	Stats(ctx context.Context) (Stats, error)

	// RecordCompleted marks taskID as the last successfully processed
	// task and increments tasks_completed. Called by the dispatcher after
	// a successful remediator call, not by Dequeue itself — completion is
	// a dispatch outcome, not a queue operation.
	RecordCompleted(ctx context.Context, taskID string) error

	// RecordFailed increments tasks_failed. Called by the dispatcher on a
	// terminal (non-retryable) failure.
	RecordFailed(ctx context.Context) error
}
