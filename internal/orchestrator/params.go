package orchestrator

import "fmt"

// Params is the per-job parameter set captured at submission
type Params struct {
	// SpeakerCount is the exact number of speakers diarization is told to
	// find. Defaults to 2 when unset.
	SpeakerCount int `json:"speaker_count"`
	// Language is the transcription language code. Empty means the model
	// auto-detects the language.
	Language string `json:"language,omitempty"`
	// Temperature controls transcription sampling randomness.
	Temperature float64 `json:"temperature"`
	// NoSpeechThreshold is the silence-detection threshold in [0,1].
	NoSpeechThreshold float64 `json:"no_speech_threshold"`
	// InitialPrompt seeds the transcription decoder with domain context.
	InitialPrompt string `json:"initial_prompt,omitempty"`
}

// DefaultSpeakerCount is applied when a submission does not name one
const DefaultSpeakerCount = 2

// Normalize applies defaults to unset fields
func (p *Params) Normalize() {
	if p.SpeakerCount == 0 {
		p.SpeakerCount = DefaultSpeakerCount
	}
}

// Validate checks if the Params have valid values
func (p *Params) Validate() error {
	if p.SpeakerCount < 1 {
		return fmt.Errorf("speaker_count must be a positive integer")
	}

	if p.Temperature < 0 {
		return fmt.Errorf("temperature cannot be negative")
	}

	if p.NoSpeechThreshold < 0 || p.NoSpeechThreshold > 1 {
		return fmt.Errorf("no_speech_threshold must be between 0.0 and 1.0")
	}

	return nil
}
