package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speakerscribe/internal/jobstore"
	"speakerscribe/internal/media"
	"speakerscribe/internal/queue"
)

// ErrInvalidSubmission marks a submission rejected for a caller-side reason,
// as opposed to an infrastructure failure.
var ErrInvalidSubmission = errors.New("invalid submission")

// Orchestrator owns the submission path and the client-facing job views. It
// validates uploads, persists new jobs, and hands them to the worker pool
// through the queue. It never blocks on model work.
type Orchestrator struct {
	store     jobstore.Store
	queue     queue.Queue
	uploadDir string
	logger    *zap.Logger
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(store jobstore.Store, q queue.Queue, uploadDir string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		queue:     q,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Submit validates the uploaded content, persists a new job in submitted
// state, enqueues it for execution, and returns the job identifier. An
// unsupported container is rejected before any job is created; a store or
// queue failure is surfaced to the submitter and leaves no job behind.
func (o *Orchestrator) Submit(ctx context.Context, upload io.Reader, filename string, params Params) (string, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("%w: invalid parameters: %v", ErrInvalidSubmission, err)
	}

	content, err := io.ReadAll(upload)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("%w: uploaded file is empty", ErrInvalidSubmission)
	}

	kind, err := media.DetectContainer(content)
	if err != nil {
		// Carries the detected kind for the user-facing diagnostic.
		return "", err
	}

	jobID := uuid.NewString()
	inputPath := filepath.Join(o.uploadDir, jobID+media.ExtensionOrFallback(kind, filename))

	if err := os.MkdirAll(o.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare upload directory: %w", err)
	}
	if err := os.WriteFile(inputPath, content, 0o600); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		os.Remove(inputPath)
		return "", fmt.Errorf("failed to encode parameters: %w", err)
	}

	rec := &jobstore.Record{
		ID:        jobID,
		State:     jobstore.StateSubmitted,
		InputPath: inputPath,
		Params:    paramsJSON,
	}
	if err := o.store.Create(ctx, rec); err != nil {
		os.Remove(inputPath)
		return "", fmt.Errorf("failed to persist job: %w", err)
	}

	if err := o.queue.Enqueue(ctx, jobID); err != nil {
		// The job never becomes runnable; undo the submission so the
		// client sees the failure rather than a stuck pending job.
		os.Remove(inputPath)
		if storeErr := o.store.SetError(ctx, jobID, "job could not be enqueued"); storeErr != nil {
			o.logger.Error("failed to mark unenqueued job as failed",
				zap.String("job_id", jobID),
				zap.Error(storeErr))
		}
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	o.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("container", string(kind)),
		zap.Int("speaker_count", params.SpeakerCount),
		zap.Int("bytes", len(content)))
	return jobID, nil
}

// Status is the client-facing view of one job
type Status struct {
	Status string `json:"status"`
	Info   string `json:"info,omitempty"`
	Result []byte `json:"-"`
	Error  string `json:"error,omitempty"`
}

const (
	// StatusNotFound reports an unknown (or already consumed) job id.
	StatusNotFound = "not_found"
	// StatusPending reports a job waiting for a worker.
	StatusPending = "pending"
	// StatusProcessing reports a job mid-pipeline.
	StatusProcessing = "processing"
	// StatusDone reports a completed job whose result is available.
	StatusDone = "done"
	// StatusFailed reports a terminally failed job.
	StatusFailed = "failed"
)

// Poll returns the current status of a job. It is read-only and idempotent;
// an unknown id yields the not_found status, never an error.
func (o *Orchestrator) Poll(ctx context.Context, jobID string) (*Status, error) {
	rec, err := o.store.Get(ctx, jobID)
	if errors.Is(err, jobstore.ErrNotFound) {
		return &Status{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to poll job: %w", err)
	}
	return statusFromRecord(rec), nil
}

// ConsumeResult returns the job's status and, when the job is terminal,
// deletes the stored record so that a second call reports not_found.
func (o *Orchestrator) ConsumeResult(ctx context.Context, jobID string) (*Status, error) {
	rec, err := o.store.Consume(ctx, jobID)
	if errors.Is(err, jobstore.ErrNotFound) {
		return &Status{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume job result: %w", err)
	}
	return statusFromRecord(rec), nil
}

// statusFromRecord maps a persisted record onto the client-facing view
func statusFromRecord(rec *jobstore.Record) *Status {
	switch rec.State {
	case jobstore.StateSubmitted:
		return &Status{Status: StatusPending}
	case jobstore.StateDone:
		return &Status{Status: StatusDone, Result: rec.Result}
	case jobstore.StateFailed:
		return &Status{Status: StatusFailed, Error: rec.Error}
	default:
		return &Status{Status: StatusProcessing, Info: rec.Progress}
	}
}
