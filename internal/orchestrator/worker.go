package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"speakerscribe/internal/queue"
)

// WorkerPool consumes job identifiers from the queue and executes them. One
// worker runs one job end-to-end; parallelism comes from running multiple
// workers, never from interleaving within a job.
type WorkerPool struct {
	queue    queue.Queue
	executor *Executor
	workers  int
	logger   *zap.Logger
}

// NewWorkerPool creates a new WorkerPool instance
func NewWorkerPool(q queue.Queue, executor *Executor, workers int, logger *zap.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		queue:    q,
		executor: executor,
		workers:  workers,
		logger:   logger,
	}
}

// Run starts the workers and blocks until the context is cancelled and every
// in-flight job has finished
func (p *WorkerPool) Run(ctx context.Context) {
	p.logger.Info("starting worker pool", zap.Int("workers", p.workers))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
}

// runWorker is one worker's dequeue-execute loop
func (p *WorkerPool) runWorker(ctx context.Context, workerID int) {
	log := p.logger.With(zap.Int("worker", workerID))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping")
			return
		default:
		}

		jobID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping")
				return
			}
			log.Warn("failed to dequeue job", zap.Error(err))

			// Brief pause so a broken queue does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if jobID == "" {
			continue
		}

		log.Info("worker picked up job", zap.String("job_id", jobID))
		p.executor.Execute(ctx, jobID)
	}
}
