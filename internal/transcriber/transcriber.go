package transcriber

import (
	"context"

	"speakerscribe/internal/transcript"
)

// Options carries the per-job transcription parameters. The zero value of a
// field means "use the model default" as documented on each field.
type Options struct {
	// Language is the ISO language code to transcribe in. Empty means the
	// model auto-detects the language.
	Language string
	// Temperature controls sampling randomness. Zero is deterministic.
	Temperature float64
	// NoSpeechThreshold is the silence-detection threshold in [0,1].
	// Zero applies the default of 0.6.
	NoSpeechThreshold float64
	// InitialPrompt seeds the decoder with domain context.
	InitialPrompt string
}

// DefaultNoSpeechThreshold is applied when Options.NoSpeechThreshold is unset
const DefaultNoSpeechThreshold = 0.6

// EffectiveNoSpeechThreshold resolves the threshold to use for a run
func (o Options) EffectiveNoSpeechThreshold() float64 {
	if o.NoSpeechThreshold == 0 {
		return DefaultNoSpeechThreshold
	}
	return o.NoSpeechThreshold
}

// Transcriber converts a speech audio file into time-aligned text segments.
// Implementations are expensive to construct (model load) and are shared
// across jobs; they are invoked by one job at a time per worker process.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (*transcript.TranscriptionResult, error)
}
