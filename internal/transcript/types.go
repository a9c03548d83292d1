package transcript

import "fmt"

// Segment represents a single time-aligned span of recognized speech as
// produced by the transcription capability. Times are seconds from the start
// of the audio and form a half-open interval [Start, End).
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Validate checks if the Segment has valid values
func (s *Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("start cannot be negative")
	}

	if s.End <= s.Start {
		return fmt.Errorf("end must be greater than start")
	}

	return nil
}

// TranscriptionResult bundles the segments of one transcription run together
// with the language the model detected (or was told to use).
type TranscriptionResult struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// SpeakerTurn represents a time span attributed to one speaker by the
// diarization capability. The label is the diarizer's raw speaker token
// (e.g. "SPEAKER_00") and is only interpreted at merge time.
type SpeakerTurn struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"speaker"`
}

// Validate checks if the SpeakerTurn has valid values
func (st *SpeakerTurn) Validate() error {
	if st.Start < 0 {
		return fmt.Errorf("start cannot be negative")
	}

	if st.End <= st.Start {
		return fmt.Errorf("end must be greater than start")
	}

	return nil
}

// UnknownSpeaker is the normalized speaker number for spans whose diarization
// label was absent or could not be parsed.
const UnknownSpeaker = -1

// Utterance is a merged, speaker-attributed span of text. Speaker is a
// non-negative speaker number, or UnknownSpeaker when attribution failed.
type Utterance struct {
	Speaker int     `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Validate checks if the Utterance has valid values
func (u *Utterance) Validate() error {
	if u.Speaker < 0 && u.Speaker != UnknownSpeaker {
		return fmt.Errorf("speaker must be non-negative or %d", UnknownSpeaker)
	}

	if u.Start < 0 {
		return fmt.Errorf("start cannot be negative")
	}

	if u.End <= u.Start {
		return fmt.Errorf("end must be greater than start")
	}

	if u.Text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	return nil
}
