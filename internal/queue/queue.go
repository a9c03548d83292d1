package queue

import "context"

// Queue is the durable work queue between the submission path and the worker
// pool. Each enqueued job identifier is delivered to exactly one worker.
type Queue interface {
	// Enqueue appends a job identifier for execution. A failed enqueue is
	// surfaced to the submitter, never silently dropped.
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue blocks for a bounded time and returns the next job
	// identifier, or an empty string when none arrived before the
	// blocking window elapsed.
	Dequeue(ctx context.Context) (string, error)
}
