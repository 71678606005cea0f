package metricstore

import (
	"testing"
	"time"
)

func TestRecordAndSinceOrdersOldestFirst(t *testing.T) {
	repo := NewMemory()
	base := time.Now()

	_ = repo.Record(Sample{Name: "cpu", Value: 90, Timestamp: base.Add(2 * time.Second)})
	_ = repo.Record(Sample{Name: "cpu", Value: 80, Timestamp: base.Add(1 * time.Second)})

	out, err := repo.Since(base, 0)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].Value != 80 || out[1].Value != 90 {
		t.Errorf("not ordered oldest-first: %+v", out)
	}
}

func TestSinceExcludesOlderSamples(t *testing.T) {
	repo := NewMemory()
	base := time.Now()
	_ = repo.Record(Sample{Name: "cpu", Value: 1, Timestamp: base.Add(-time.Minute)})
	_ = repo.Record(Sample{Name: "cpu", Value: 2, Timestamp: base.Add(time.Minute)})

	out, _ := repo.Since(base, 0)
	if len(out) != 1 || out[0].Value != 2 {
		t.Errorf("expected only the newer sample, got %+v", out)
	}
}

func TestSinceRespectsLimit(t *testing.T) {
	repo := NewMemory()
	base := time.Now()
	for i := 1; i <= 5; i++ {
		_ = repo.Record(Sample{Name: "cpu", Value: float64(i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	out, err := repo.Since(base, 2)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestRecordDefaultsMissingTimestamp(t *testing.T) {
	repo := NewMemory()
	before := time.Now()
	_ = repo.Record(Sample{Name: "cpu", Value: 1})
	out, _ := repo.Since(before.Add(-time.Second), 0)
	if len(out) != 1 {
		t.Fatalf("expected 1 sample with defaulted timestamp, got %d", len(out))
	}
}
