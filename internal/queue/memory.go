package queue

import (
	"context"
	"fmt"
	"time"
)

// MemoryQueue is an in-process Queue used by tests and single-process runs
type MemoryQueue struct {
	jobs         chan string
	blockTimeout time.Duration
}

// NewMemoryQueue creates a MemoryQueue with the given capacity
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		jobs:         make(chan string, capacity),
		blockTimeout: 100 * time.Millisecond,
	}
}

// Enqueue appends a job identifier, failing when the queue is full
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	select {
	case q.jobs <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue is full")
	}
}

// Dequeue pops the next job identifier, blocking up to the configured window
func (q *MemoryQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case jobID := <-q.jobs:
		return jobID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(q.blockTimeout):
		return "", nil
	}
}
