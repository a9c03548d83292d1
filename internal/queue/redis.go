package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis list. Submitters RPUSH job
// identifiers and workers BLPOP them, so each job reaches exactly one worker.
type RedisQueue struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewRedisQueue creates a RedisQueue on an existing client
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:       client,
		key:          key,
		blockTimeout: 5 * time.Second,
	}
}

// Enqueue appends a job identifier to the list
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	if err := q.client.RPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue pops the next job identifier, blocking up to the configured window.
// An empty string with a nil error means the window elapsed with no work.
func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	result, err := q.client.BLPop(ctx, q.blockTimeout, q.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to dequeue job: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply of %d elements", len(result))
	}
	return result[1], nil
}
