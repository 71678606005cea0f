package actions

import "context"

// Repository is the opaque persistence contract for Action Records. Every
// status-changing method enforces the transitions of the status DAG;
// implementations MUST use an optimistic compare-and-set on (id, expected
// status) so that concurrent callers racing on the same record resolve to
// exactly one winner.
type Repository interface {
	// Create persists a new record in Pending status and returns its id.
	Create(ctx context.Context, rec NewRecord) (int64, error)

	// Claim atomically transitions id from Pending to Running and returns
	// the updated record. If id is not currently Pending, Claim returns a
	// Conflict error (apperrors.Conflict) and the caller must treat the
	// delivery as a duplicate.
	Claim(ctx context.Context, id int64) (Record, error)

	// MarkCompleted transitions a Running record to Completed.
	MarkCompleted(ctx context.Context, id int64) error

	// MarkFailed transitions a non-terminal (Pending or Running) record to
	// Failed, recording lastError. A record that is already Completed,
	// Failed or Cancelled yields a Conflict error.
	MarkFailed(ctx context.Context, id int64, lastError string) error

	// MarkPendingRetry transitions a Running record back to Pending,
	// incrementing Attempts and recording lastError.
	MarkPendingRetry(ctx context.Context, id int64, lastError string) error

	// Cancel transitions a Pending record to Cancelled.
	Cancel(ctx context.Context, id int64) error

	// Get returns the current state of a record.
	Get(ctx context.Context, id int64) (Record, error)

	// List returns records matching filter, newest first, bounded by
	// filter.Limit (capped at 500).
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// ByStatus is a convenience form of List filtering on status alone.
	ByStatus(ctx context.Context, status Status, limit int) ([]Record, error)
}
