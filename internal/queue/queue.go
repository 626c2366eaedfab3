package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cicd-notifier/internal/logx"
	"cicd-notifier/internal/model"
)

// Queue hands delivery tasks from the HTTP handler to the workers.
// A dequeued task is gone from the queue; nothing is re-queued.
type Queue interface {
	Enqueue(ctx context.Context, task *model.Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*model.Task, error)
}

// MemoryQueue is a bounded channel-based queue.
type MemoryQueue struct {
	ch chan *model.Task
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		ch: make(chan *model.Task, size),
	}
}

// Enqueue waits for room in the queue; it only gives up when ctx is done.
func (q *MemoryQueue) Enqueue(ctx context.Context, task *model.Task) error {
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*model.Task, error) {
	select {
	case task := <-q.ch:
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len() int { return len(q.ch) }

// RedisQueue keeps tasks in a Redis list: LPUSH at the head, BRPOP from the tail.
type RedisQueue struct {
	client *redis.Client
	key    string
	log    logx.Logger

	// pollTimeout bounds each BRPOP so ctx cancellation is noticed.
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func NewRedisQueue(client *redis.Client, key string, log logx.Logger) *RedisQueue {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RedisQueue{
		client:      client,
		key:         key,
		log:         log.With(logx.String("queue", key)),
		pollTimeout: time.Second,
		retryDelay:  time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*model.Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			q.log.Warn("redis dequeue failed, retrying", logx.Err(err), logx.Duration("retry_in", q.retryDelay))
			select {
			case <-time.After(q.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		// result is [key, value]
		if len(result) < 2 {
			continue
		}

		var task model.Task
		if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
			q.log.Error("skipping malformed task", logx.Err(err), logx.String("raw", result[1]))
			continue
		}
		return &task, nil
	}
}

// Ping reports whether Redis is reachable.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
