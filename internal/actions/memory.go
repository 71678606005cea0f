package actions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kestrelops/kestrel/internal/apperrors"
)

// Memory is an in-process Repository used for tests and single-process
// development.
type Memory struct {
	mu      sync.Mutex
	records map[int64]Record
	nextID  int64
}

// NewMemory returns an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{records: make(map[int64]Record)}
}

func (m *Memory) Create(ctx context.Context, rec NewRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	now := time.Now()
	m.records[id] = Record{
		ID:        id,
		Target:    rec.Target,
		Action:    rec.Action,
		Status:    Pending,
		Details:   rec.Details,
		StartedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (m *Memory) Claim(ctx context.Context, id int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, apperrors.NotFoundf("action %d not found", id)
	}
	if r.Status != Pending {
		return Record{}, apperrors.Conflictf("action %d is not pending (status=%s)", id, r.Status)
	}
	r.Status = Running
	r.UpdatedAt = time.Now()
	m.records[id] = r
	return r, nil
}

func (m *Memory) MarkCompleted(ctx context.Context, id int64) error {
	return m.transition(id, Running, Completed, func(r *Record) {})
}

func (m *Memory) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return m.transitionFromAny(id, Failed, func(r *Record) {
		r.LastError = lastError
	})
}

func (m *Memory) MarkPendingRetry(ctx context.Context, id int64, lastError string) error {
	return m.transition(id, Running, Pending, func(r *Record) {
		r.Attempts++
		r.LastError = lastError
	})
}

func (m *Memory) Cancel(ctx context.Context, id int64) error {
	return m.transition(id, Pending, Cancelled, func(r *Record) {})
}

// transition performs a CAS from `from` to `to`, applying mutate under
// lock. It fails with Conflict if the current status isn't `from`.
func (m *Memory) transition(id int64, from, to Status, mutate func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return apperrors.NotFoundf("action %d not found", id)
	}
	if r.Status != from {
		return apperrors.Conflictf("action %d expected status %s, got %s", id, from, r.Status)
	}
	mutate(&r)
	r.Status = to
	r.UpdatedAt = time.Now()
	m.records[id] = r
	return nil
}

// transitionFromAny allows MarkFailed to apply from any non-terminal
// status: Running (every dispatcher failure path, including circuit-open,
// since the dispatcher claims the record before checking the breaker) or
// Pending (a record failed without being claimed).
func (m *Memory) transitionFromAny(id int64, to Status, mutate func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return apperrors.NotFoundf("action %d not found", id)
	}
	if r.Status.Terminal() {
		return apperrors.Conflictf("action %d already in terminal status %s", id, r.Status)
	}
	mutate(&r)
	r.Status = to
	r.UpdatedAt = time.Now()
	m.records[id] = r
	return nil
}

func (m *Memory) Get(ctx context.Context, id int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, apperrors.NotFoundf("action %d not found", id)
	}
	return r, nil
}

func (m *Memory) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Target != "" && r.Target != filter.Target {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ByStatus(ctx context.Context, status Status, limit int) ([]Record, error) {
	return m.List(ctx, ListFilter{Status: status, Limit: limit})
}

var _ Repository = (*Memory)(nil)
