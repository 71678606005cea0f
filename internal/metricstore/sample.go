// Package metricstore persists metric samples and serves the
// Runner's windowed queries over recently received samples.
package metricstore

import "time"

// Sample is a Metric Sample: immutable once stored.
type Sample struct {
	Name      string
	Value     float64
	Tags      map[string]string
	Target    string
	Timestamp time.Time
}

// Repository persists samples and answers the Runner's "since last tick"
// query. It is an opaque collaborator — only the interface
// boundary is in scope for the core.
type Repository interface {
	Record(sample Sample) error
	Since(t time.Time, limit int) ([]Sample, error)
}
