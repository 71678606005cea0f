package metricstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// Postgres is a Repository backed by the metric_samples table (see
// /migrations). Writes and reads each carry their own bounded context so a
// slow query cannot stall the ingest path indefinitely.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgres wraps an existing *sqlx.DB. timeout bounds every query
// issued through this repository.
func NewPostgres(db *sqlx.DB, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Postgres{db: db, timeout: timeout}
}

type sampleRow struct {
	Name      string    `db:"name"`
	Value     float64   `db:"value"`
	Tags      []byte    `db:"tags"`
	Target    string    `db:"target"`
	Timestamp time.Time `db:"timestamp"`
}

func (p *Postgres) Record(sample Sample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	tags, err := json.Marshal(sample.Tags)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	const q = `
		INSERT INTO metric_samples (name, value, tags, target, timestamp)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = p.db.ExecContext(ctx, q, sample.Name, sample.Value, tags, sample.Target, sample.Timestamp)
	return err
}

func (p *Postgres) Since(t time.Time, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = 10_000
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	const q = `
		SELECT name, value, tags, target, timestamp
		FROM metric_samples
		WHERE timestamp > $1
		ORDER BY timestamp ASC
		LIMIT $2`

	var rows []sampleRow
	if err := p.db.SelectContext(ctx, &rows, q, t, limit); err != nil {
		return nil, err
	}

	out := make([]Sample, 0, len(rows))
	for _, row := range rows {
		var tags map[string]string
		if len(row.Tags) > 0 {
			if err := json.Unmarshal(row.Tags, &tags); err != nil {
				return nil, err
			}
		}
		out = append(out, Sample{
			Name:      row.Name,
			Value:     row.Value,
			Tags:      tags,
			Target:    row.Target,
			Timestamp: row.Timestamp,
		})
	}
	return out, nil
}

var _ Repository = (*Postgres)(nil)
