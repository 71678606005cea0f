package actions

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kestrelops/kestrel/internal/apperrors"
)

// Postgres is a Repository backed by a Postgres table, using optimistic
// compare-and-set UPDATE statements to enforce the single-winner claim
// invariant across multiple process instances.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an existing *sqlx.DB. Callers are responsible for
// running the migrations under /migrations before first use.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type actionRow struct {
	ID        int64          `db:"id"`
	Target    string         `db:"target"`
	Action    string         `db:"action"`
	Status    string         `db:"status"`
	Details   sql.NullString `db:"details"`
	StartedAt time.Time      `db:"started_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	Attempts  int            `db:"attempts"`
	LastError sql.NullString `db:"last_error"`
}

func (row actionRow) toRecord() Record {
	return Record{
		ID:        row.ID,
		Target:    row.Target,
		Action:    row.Action,
		Status:    Status(row.Status),
		Details:   row.Details.String,
		StartedAt: row.StartedAt,
		UpdatedAt: row.UpdatedAt,
		Attempts:  row.Attempts,
		LastError: row.LastError.String,
	}
}

func (p *Postgres) Create(ctx context.Context, rec NewRecord) (int64, error) {
	const q = `
		INSERT INTO action_records (target, action, status, details, started_at, updated_at, attempts)
		VALUES ($1, $2, $3, $4, now(), now(), 0)
		RETURNING id`

	var id int64
	err := p.db.GetContext(ctx, &id, q, rec.Target, rec.Action, Pending, nullIfEmpty(rec.Details))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.PermanentIO, "create action record", err)
	}
	return id, nil
}

// Claim performs the atomic pending→running CAS: the UPDATE's WHERE clause
// pins both id and the expected prior status, so a losing concurrent
// claimer's statement affects zero rows and is reported as Conflict rather
// than silently overwriting the winner's transition.
func (p *Postgres) Claim(ctx context.Context, id int64) (Record, error) {
	const q = `
		UPDATE action_records
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING id, target, action, status, details, started_at, updated_at, attempts, last_error`

	var row actionRow
	err := p.db.GetContext(ctx, &row, q, Running, id, Pending)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := p.Get(ctx, id)
		if getErr != nil {
			return Record{}, getErr
		}
		return Record{}, apperrors.Conflictf("action %d is not pending (status=%s)", id, existing.Status)
	}
	if err != nil {
		return Record{}, apperrors.Wrap(apperrors.PermanentIO, "claim action record", err)
	}
	return row.toRecord(), nil
}

func (p *Postgres) MarkCompleted(ctx context.Context, id int64) error {
	return p.casUpdate(ctx, id, []Status{Running}, `
		UPDATE action_records SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)`, Completed)
}

func (p *Postgres) MarkFailed(ctx context.Context, id int64, lastError string) error {
	const q = `
		UPDATE action_records
		SET status = $1, last_error = $2, updated_at = now()
		WHERE id = $3 AND status <> ALL($4)`

	res, err := p.db.ExecContext(ctx, q, Failed, lastError, id, pq.Array(terminalStatuses()))
	return p.checkCAS(ctx, id, res, err)
}

func (p *Postgres) MarkPendingRetry(ctx context.Context, id int64, lastError string) error {
	const q = `
		UPDATE action_records
		SET status = $1, attempts = attempts + 1, last_error = $2, updated_at = now()
		WHERE id = $3 AND status = $4`

	res, err := p.db.ExecContext(ctx, q, Pending, lastError, id, Running)
	return p.checkCAS(ctx, id, res, err)
}

func (p *Postgres) Cancel(ctx context.Context, id int64) error {
	return p.casUpdate(ctx, id, []Status{Pending}, `
		UPDATE action_records SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)`, Cancelled)
}

func (p *Postgres) casUpdate(ctx context.Context, id int64, from []Status, query string, to Status) error {
	res, err := p.db.ExecContext(ctx, query, to, id, pq.Array(from))
	return p.checkCAS(ctx, id, res, err)
}

func (p *Postgres) checkCAS(ctx context.Context, id int64, res sql.Result, err error) error {
	if err != nil {
		return apperrors.Wrap(apperrors.PermanentIO, "update action record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.PermanentIO, "read rows affected", err)
	}
	if n == 0 {
		existing, getErr := p.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return apperrors.Conflictf("action %d unexpected status %s for requested transition", id, existing.Status)
	}
	return nil
}

func terminalStatuses() []string {
	return []string{string(Completed), string(Failed), string(Cancelled)}
}

func (p *Postgres) Get(ctx context.Context, id int64) (Record, error) {
	const q = `
		SELECT id, target, action, status, details, started_at, updated_at, attempts, last_error
		FROM action_records WHERE id = $1`

	var row actionRow
	if err := p.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, apperrors.NotFoundf("action %d not found", id)
		}
		return Record{}, apperrors.Wrap(apperrors.PermanentIO, "get action record", err)
	}
	return row.toRecord(), nil
}

func (p *Postgres) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, target, action, status, details, started_at, updated_at, attempts, last_error
		FROM action_records WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.Target != "" {
		args = append(args, filter.Target)
		query += " AND target = $" + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += " ORDER BY id DESC LIMIT $" + strconv.Itoa(len(args))

	var rows []actionRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Wrap(apperrors.PermanentIO, "list action records", err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (p *Postgres) ByStatus(ctx context.Context, status Status, limit int) ([]Record, error) {
	return p.List(ctx, ListFilter{Status: status, Limit: limit})
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repository = (*Postgres)(nil)
