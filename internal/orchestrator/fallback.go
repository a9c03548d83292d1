package orchestrator

import (
	"context"
	"os"

	"go.uber.org/zap"

	"speakerscribe/internal/diarizer"
	"speakerscribe/internal/transcript"
)

// AudioConverter re-encodes media to the canonical WAV format used for the
// diarization retry
type AudioConverter interface {
	ConvertToWAV(ctx context.Context, srcPath string) (string, error)
}

// OutcomeVariant distinguishes how a diarization attempt concluded
type OutcomeVariant int

const (
	// OutcomeSuccess means the original file diarized cleanly.
	OutcomeSuccess OutcomeVariant = iota
	// OutcomeRetriedSuccess means the original attempt failed but the
	// converted WAV copy diarized cleanly.
	OutcomeRetriedSuccess
	// OutcomeFailure means both the original attempt and the single
	// fallback retry are exhausted; Cause carries the original failure.
	OutcomeFailure
)

// DiarizationOutcome is the result of diarizeWithFallback. The retry contract
// lives in the type: at most one retry happened, the converted copy is already
// deleted, and a Failure always carries the original attempt's cause.
type DiarizationOutcome struct {
	Variant OutcomeVariant
	Turns   []transcript.SpeakerTurn
	Cause   error
}

// Failed reports whether no attempt produced usable turns
func (out DiarizationOutcome) Failed() bool {
	return out.Variant == OutcomeFailure
}

// diarizeWithFallback attempts diarization on the file exactly as stored.
// When that fails for any reason it re-encodes the file to a canonical mono
// 16 kHz PCM WAV copy, retries once against the copy, and deletes the copy
// unconditionally. The fallback is a format workaround, not a transient-fault
// retry: one attempt, no backoff, and a failed conversion or retry propagates
// the original failure.
func diarizeWithFallback(ctx context.Context, d diarizer.Diarizer, converter AudioConverter, inputPath string, speakerCount int, logger *zap.Logger) DiarizationOutcome {
	turns, err := d.Diarize(ctx, inputPath, speakerCount, speakerCount)
	if err == nil {
		return DiarizationOutcome{Variant: OutcomeSuccess, Turns: turns}
	}

	logger.Warn("diarization failed on original file, retrying with WAV conversion",
		zap.String("input", inputPath),
		zap.Error(err))

	wavPath, convErr := converter.ConvertToWAV(ctx, inputPath)
	if convErr != nil {
		logger.Warn("fallback conversion failed",
			zap.String("input", inputPath),
			zap.Error(convErr))
		return DiarizationOutcome{Variant: OutcomeFailure, Cause: err}
	}
	defer func() {
		if removeErr := os.Remove(wavPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warn("failed to delete converted fallback copy",
				zap.String("path", wavPath),
				zap.Error(removeErr))
		}
	}()

	turns, retryErr := d.Diarize(ctx, wavPath, speakerCount, speakerCount)
	if retryErr != nil {
		logger.Warn("diarization retry on converted copy failed",
			zap.String("converted", wavPath),
			zap.Error(retryErr))
		return DiarizationOutcome{Variant: OutcomeFailure, Cause: err}
	}

	logger.Info("diarization succeeded on converted copy", zap.String("converted", wavPath))
	return DiarizationOutcome{Variant: OutcomeRetriedSuccess, Turns: turns}
}
