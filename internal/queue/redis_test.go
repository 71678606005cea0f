package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedisQueue(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client)
}

func TestRedisEnqueueDequeueFIFO(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Envelope{TaskID: "t1", Target: "svc-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, Envelope{TaskID: "t2", Target: "svc-2"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	env, ok, err := q.Dequeue(ctx, time.Second)
	if err != nil || !ok || env.TaskID != "t1" {
		t.Fatalf("first dequeue: env=%+v ok=%v err=%v", env, ok, err)
	}
	env, ok, err = q.Dequeue(ctx, time.Second)
	if err != nil || !ok || env.TaskID != "t2" {
		t.Fatalf("second dequeue: env=%+v ok=%v err=%v", env, ok, err)
	}
}

func TestRedisDequeueTimesOut(t *testing.T) {
	q := newTestRedisQueue(t)
	_, ok, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected timeout, got an envelope")
	}
}

func TestRedisStatsCounters(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	_ = q.Enqueue(ctx, Envelope{TaskID: "t1"})
	_, _, _ = q.Dequeue(ctx, time.Second)
	_ = q.RecordCompleted(ctx, "t1")
	_ = q.RecordFailed(ctx)

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TasksEnqueued != 1 || stats.TasksDequeued != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.TasksCompleted != 1 || stats.TasksFailed != 1 {
		t.Errorf("unexpected outcome stats: %+v", stats)
	}
	if stats.LastProcessedTask != "t1" {
		t.Errorf("LastProcessedTask = %q, want t1", stats.LastProcessedTask)
	}
}

func TestRedisLengthReflectsPendingItems(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()
	_ = q.Enqueue(ctx, Envelope{TaskID: "t1"})
	_ = q.Enqueue(ctx, Envelope{TaskID: "t2"})

	n, err := q.Length(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Length() = %d, %v; want 2, nil", n, err)
	}
}

func TestRedisSurvivesReconnectAcrossClientInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client1 := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q1 := NewRedis(client1)
	_ = q1.Enqueue(context.Background(), Envelope{TaskID: "t1"})
	_ = client1.Close()

	client2 := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client2.Close()
	q2 := NewRedis(client2)

	env, ok, err := q2.Dequeue(context.Background(), time.Second)
	if err != nil || !ok || env.TaskID != "t1" {
		t.Fatalf("expected envelope to survive across client instances: env=%+v ok=%v err=%v", env, ok, err)
	}
}
