package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"speakerscribe/internal/diarizer"
	"speakerscribe/internal/jobstore"
	"speakerscribe/internal/merge"
	"speakerscribe/internal/performance"
	"speakerscribe/internal/transcriber"
	"speakerscribe/internal/transcript"
)

// Progress labels published with each stage transition
const (
	progressInitializing = "preparing input file"
	progressTranscribing = "running speech recognition"
	progressDiarizing    = "separating speakers"
	progressCombining    = "combining transcript and speakers"
)

// resultEnvelope is the stored shape of a completed job's output
type resultEnvelope struct {
	Results []transcript.Utterance `json:"results"`
}

// Executor drives one job end-to-end through the pipeline stages, publishing
// every state transition to the store before the next stage begins. One
// executor invocation owns its job exclusively; the capabilities it holds are
// shared across jobs and invoked by one job at a time.
type Executor struct {
	store       jobstore.Store
	transcriber transcriber.Transcriber
	diarizer    diarizer.Diarizer
	converter   AudioConverter
	timeout     time.Duration
	monitor     *performance.Monitor
	logger      *zap.Logger
}

// NewExecutor creates a new Executor instance
func NewExecutor(store jobstore.Store, t transcriber.Transcriber, d diarizer.Diarizer, converter AudioConverter, timeout time.Duration, monitor *performance.Monitor, logger *zap.Logger) *Executor {
	return &Executor{
		store:       store,
		transcriber: t,
		diarizer:    d,
		converter:   converter,
		timeout:     timeout,
		monitor:     monitor,
		logger:      logger,
	}
}

// Execute runs the pipeline for one job: initialize → transcribe → diarize
// (with fallback) → combine → done, or failed from any stage. The input media
// file is deleted exactly once on every exit path. Execution is bounded by
// the configured wall-clock timeout; state publications use an uncancelable
// context so a timed-out job still reaches failed with its file cleaned up.
func (e *Executor) Execute(ctx context.Context, jobID string) {
	log := e.logger.With(zap.String("job_id", jobID))

	// Terminal writes and cleanup must survive the execution deadline.
	pubCtx := context.WithoutCancel(ctx)

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rec, err := e.store.Get(pubCtx, jobID)
	if errors.Is(err, jobstore.ErrNotFound) {
		log.Warn("dequeued job has no record, skipping")
		return
	}
	if err != nil {
		log.Error("failed to load job record", zap.Error(err))
		return
	}

	timer := e.monitor.StartJob()

	// The job owns its input file until a terminal state; this closure is
	// the only deletion path, so the file is removed exactly once.
	inputPath := rec.InputPath
	cleaned := false
	cleanup := func() {
		if cleaned {
			return
		}
		cleaned = true
		if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
			// A cleanup failure is logged but never masks the job outcome.
			log.Warn("failed to delete input media file",
				zap.String("path", inputPath),
				zap.Error(err))
		}
	}
	defer cleanup()

	fail := func(message string) {
		cleanup()
		e.monitor.EndJob(timer, true)
		if err := e.store.SetError(pubCtx, jobID, message); err != nil {
			log.Error("failed to record job failure", zap.Error(err))
			return
		}
		log.Info("job failed", zap.String("error", message))
	}

	var params Params
	if err := json.Unmarshal(rec.Params, &params); err != nil {
		fail("job parameters are corrupt")
		return
	}
	params.Normalize()

	// Stage 1: confirm the owned input file still exists.
	if err := e.publish(pubCtx, log, jobID, jobstore.StateInitializing, progressInitializing); err != nil {
		return
	}
	if _, err := os.Stat(inputPath); err != nil {
		// The file is gone; a retry cannot help.
		fail("input file no longer exists")
		return
	}

	// Stage 2: speech recognition. Any failure here is terminal.
	if err := e.publish(pubCtx, log, jobID, jobstore.StateTranscribing, progressTranscribing); err != nil {
		return
	}
	transcribeStart := time.Now()
	asr, err := e.transcriber.Transcribe(runCtx, inputPath, transcriber.Options{
		Language:          params.Language,
		Temperature:       params.Temperature,
		NoSpeechThreshold: params.NoSpeechThreshold,
		InitialPrompt:     params.InitialPrompt,
	})
	timer.TranscribingTime = time.Since(transcribeStart)
	if err != nil {
		// The capability's message is kept verbatim for the client.
		fail(e.stageError(runCtx, err))
		return
	}

	// Stage 3: diarization with the single format-fallback retry, told the
	// exact expected speaker count.
	if err := e.publish(pubCtx, log, jobID, jobstore.StateDiarizing, progressDiarizing); err != nil {
		return
	}
	diarizeStart := time.Now()
	outcome := diarizeWithFallback(runCtx, e.diarizer, e.converter, inputPath, params.SpeakerCount, log)
	timer.DiarizingTime = time.Since(diarizeStart)
	timer.UsedFallback = outcome.Variant == OutcomeRetriedSuccess
	if outcome.Failed() {
		fail(e.stageError(runCtx, outcome.Cause))
		return
	}

	// Stage 4: merge into speaker-attributed utterances.
	if err := e.publish(pubCtx, log, jobID, jobstore.StateCombining, progressCombining); err != nil {
		return
	}
	utterances := merge.Merge(asr.Segments, outcome.Turns)

	payload, err := json.Marshal(resultEnvelope{Results: utterances})
	if err != nil {
		fail("failed to encode results")
		return
	}

	// Stage 5: delete the input file before the terminal transition.
	cleanup()

	// Stage 6: done.
	if err := e.store.SetResult(pubCtx, jobID, payload); err != nil {
		log.Error("failed to store job result", zap.Error(err))
		return
	}
	e.monitor.EndJob(timer, false)

	log.Info("job completed",
		zap.Int("utterances", len(utterances)),
		zap.String("language", asr.Language),
		zap.Bool("used_fallback", outcome.Variant == OutcomeRetriedSuccess))
}

// publish writes a stage transition before the stage begins, so a concurrent
// poller always observes a state at least as fresh as the last completed stage
func (e *Executor) publish(ctx context.Context, log *zap.Logger, jobID string, state jobstore.State, progress string) error {
	if err := e.store.SetState(ctx, jobID, state, progress); err != nil {
		log.Error("failed to publish state transition",
			zap.String("state", string(state)),
			zap.Error(err))
		return err
	}
	log.Info("job stage started", zap.String("state", string(state)))
	return nil
}

// stageError maps a stage failure to the client-visible message. A run that
// hit the execution ceiling reports the timeout instead of the kill artifact.
func (e *Executor) stageError(runCtx context.Context, err error) string {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("job execution timed out after %s", e.timeout)
	}
	return err.Error()
}
