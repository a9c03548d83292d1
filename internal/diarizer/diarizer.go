package diarizer

import (
	"context"

	"speakerscribe/internal/transcript"
)

// Diarizer partitions an audio timeline into speaker-labeled turns.
// Implementations are expensive to construct (model load) and are shared
// across jobs; they are invoked by one job at a time per worker process.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers int) ([]transcript.SpeakerTurn, error)
}
