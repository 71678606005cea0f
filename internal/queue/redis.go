package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// listKey is the durable FIFO's name.
const listKey = "remediation_queue"

const statsKey = listKey + ":stats"

const (
	fieldEnqueued  = "tasks_enqueued"
	fieldDequeued  = "tasks_dequeued"
	fieldCompleted = "tasks_completed"
	fieldFailed    = "tasks_failed"
	fieldLastTask  = "last_processed_task"
)

// Redis is a Queue backed by a Redis list (RPUSH/BLPOP), with counters
// held in a companion hash so they survive process restarts alongside the
// envelopes themselves.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing *redis.Client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Enqueue(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, listKey, payload)
	pipe.HIncrBy(ctx, statsKey, fieldEnqueued, 1)
	_, err = pipe.Exec(ctx)
	return err
}

// Dequeue uses BLPOP, which blocks up to timeout natively in Redis. A
// zero-length result (redis.Nil) means the timeout elapsed with nothing
// available.
func (r *Redis) Dequeue(ctx context.Context, timeout time.Duration) (Envelope, bool, error) {
	result, err := r.client.BLPop(ctx, timeout, listKey).Result()
	if err == redis.Nil {
		return Envelope{}, false, nil
	}
	if err != nil {
		return Envelope{}, false, err
	}
	// BLPop returns [key, value]; value is the second element.
	if len(result) != 2 {
		return Envelope{}, false, fmt.Errorf("queue: unexpected BLPOP result shape: %v", result)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		return Envelope{}, false, fmt.Errorf("queue: unmarshal envelope: %w", err)
	}

	if err := r.client.HIncrBy(ctx, statsKey, fieldDequeued, 1).Err(); err != nil {
		return Envelope{}, false, err
	}
	return env, true, nil
}

func (r *Redis) Length(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, listKey).Result()
	return int(n), err
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	length, err := r.Length(ctx)
	if err != nil {
		return Stats{}, err
	}

	fields, err := r.client.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		QueueLength:       length,
		TasksEnqueued:     parseCounter(fields[fieldEnqueued]),
		TasksDequeued:     parseCounter(fields[fieldDequeued]),
		TasksCompleted:    parseCounter(fields[fieldCompleted]),
		TasksFailed:       parseCounter(fields[fieldFailed]),
		LastProcessedTask: fields[fieldLastTask],
	}, nil
}

func (r *Redis) RecordCompleted(ctx context.Context, taskID string) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, statsKey, fieldCompleted, 1)
	pipe.HSet(ctx, statsKey, fieldLastTask, taskID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) RecordFailed(ctx context.Context) error {
	return r.client.HIncrBy(ctx, statsKey, fieldFailed, 1).Err()
}

func parseCounter(s string) uint64 {
	if s == "" {
		return 0
	}
	var n uint64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

var _ Queue = (*Redis)(nil)
