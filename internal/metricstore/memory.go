package metricstore

import (
	"sort"
	"sync"
	"time"
)

// maxRetained bounds the in-memory store so a busy ingest path can't grow
// it without limit; the Runner only ever reads a recent, bounded window
// anyway (the runner's configured batch_size).
const maxRetained = 100_000

// Memory is a Repository backed by an append-only, capacity-bounded slice.
// Samples are ordered and queried by time range rather than keyed by a
// cache key, so the storage shape is a slice, not a map.
type Memory struct {
	mu      sync.RWMutex
	samples []Sample
}

// NewMemory returns an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(sample Sample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
	if len(m.samples) > maxRetained {
		drop := len(m.samples) - maxRetained
		m.samples = m.samples[drop:]
	}
	return nil
}

// Since returns samples with Timestamp strictly after t, oldest first,
// bounded by limit (0 means unbounded).
func (m *Memory) Since(t time.Time, limit int) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Sample, 0)
	for _, s := range m.samples {
		if s.Timestamp.After(t) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
