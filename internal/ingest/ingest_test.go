package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelops/kestrel/internal/actions"
	"github.com/kestrelops/kestrel/internal/condition"
	"github.com/kestrelops/kestrel/internal/cooldown"
	"github.com/kestrelops/kestrel/internal/metricstore"
	"github.com/kestrelops/kestrel/internal/policy"
	"github.com/kestrelops/kestrel/internal/queue"
	"github.com/kestrelops/kestrel/internal/ratelimit"
	"github.com/kestrelops/kestrel/pkg/logger"
	"github.com/kestrelops/kestrel/pkg/metrics"
)

func newTestProducer(t *testing.T) (*Producer, metricstore.Repository, queue.Queue, actions.Repository, *policy.Registry) {
	t.Helper()
	registry := policy.NewRegistry()
	engine := policy.NewEngine(registry, cooldown.New())
	store := metricstore.NewMemory()
	repo := actions.NewMemory()
	q := queue.NewMemory()
	return New(store, engine, repo, q, nil, metrics.Noop{}, logger.NewDefault()), store, q, repo, registry
}

func mustInsert(t *testing.T, registry *policy.Registry, p policy.Policy) {
	t.Helper()
	if err := registry.Insert(p); err != nil {
		t.Fatalf("insert policy: %v", err)
	}
}

func TestIngestRecordsSampleEvenWithoutMatchingPolicy(t *testing.T) {
	producer, store, _, _, _ := newTestProducer(t)

	if err := producer.Ingest(context.Background(), metricstore.Sample{Name: "cpu_usage", Value: 10, Target: "svc-1"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	samples, err := store.Since(time.Time{}, 10)
	if err != nil || len(samples) != 1 {
		t.Fatalf("expected 1 stored sample, got %d err=%v", len(samples), err)
	}
}

func TestIngestEnqueuesIntentWhenConditionFires(t *testing.T) {
	producer, _, q, repo, registry := newTestProducer(t)
	mustInsert(t, registry, policy.Policy{
		Name:            "high-cpu",
		Severity:        policy.SeverityWarning,
		Target:          "svc-1",
		Enabled:         true,
		AutoRemediate:   true,
		Condition:       condition.MetricExceedsOf("cpu_usage", 80),
		Action:          policy.ActionRestart,
		CooldownSeconds: 60,
	})

	if err := producer.Ingest(context.Background(), metricstore.Sample{Name: "cpu_usage", Value: 95, Target: "svc-1"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	env, ok, err := q.Dequeue(context.Background(), time.Second)
	if err != nil || !ok {
		t.Fatalf("expected an enqueued envelope: ok=%v err=%v", ok, err)
	}
	if env.Target != "svc-1" || env.Action != string(policy.ActionRestart) {
		t.Errorf("unexpected envelope: %+v", env)
	}

	records, err := repo.List(context.Background(), actions.ListFilter{})
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 action record, got %d err=%v", len(records), err)
	}
	if records[0].Status != actions.Pending {
		t.Errorf("expected newly created record to be pending, got %s", records[0].Status)
	}
}

func TestIngestDoesNotEnqueueWhenConditionDoesNotFire(t *testing.T) {
	producer, _, q, _, registry := newTestProducer(t)
	mustInsert(t, registry, policy.Policy{
		Name:            "high-cpu",
		Severity:        policy.SeverityWarning,
		Target:          "svc-1",
		Enabled:         true,
		AutoRemediate:   true,
		Condition:       condition.MetricExceedsOf("cpu_usage", 80),
		Action:          policy.ActionRestart,
		CooldownSeconds: 60,
	})

	if err := producer.Ingest(context.Background(), metricstore.Sample{Name: "cpu_usage", Value: 10, Target: "svc-1"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	n, err := q.Length(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected empty queue, got %d err=%v", n, err)
	}
}

func TestIngestRejectsSampleOverRateBudget(t *testing.T) {
	registry := policy.NewRegistry()
	engine := policy.NewEngine(registry, cooldown.New())
	store := metricstore.NewMemory()
	limiter := ratelimit.New(ratelimit.Config{PerSecond: 1, Burst: 1})
	producer := New(store, engine, actions.NewMemory(), queue.NewMemory(), limiter, metrics.Noop{}, logger.NewDefault())

	if err := producer.Ingest(context.Background(), metricstore.Sample{Name: "cpu_usage", Value: 10, Target: "svc-1"}); err != nil {
		t.Fatalf("first sample should be allowed: %v", err)
	}
	if err := producer.Ingest(context.Background(), metricstore.Sample{Name: "cpu_usage", Value: 10, Target: "svc-1"}); err == nil {
		t.Fatal("expected second immediate sample for the same target to be rejected")
	}

	samples, err := store.Since(time.Time{}, 10)
	if err != nil || len(samples) != 1 {
		t.Fatalf("expected only the allowed sample to be stored, got %d err=%v", len(samples), err)
	}
}
