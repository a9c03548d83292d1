package merge

import (
	"strconv"
	"strings"

	"speakerscribe/internal/transcript"
)

// SpeakerLabel is the parsed form of a diarizer speaker token. Labels follow
// the "..._<integer>" convention (e.g. "SPEAKER_00"); anything else parses to
// the unknown variant. Raw label strings never leave this package.
type SpeakerLabel struct {
	known  bool
	number int
}

// Known reports whether the label carried a usable speaker number
func (l SpeakerLabel) Known() bool {
	return l.known
}

// Speaker returns the speaker number, or transcript.UnknownSpeaker for the
// unknown variant
func (l SpeakerLabel) Speaker() int {
	if !l.known {
		return transcript.UnknownSpeaker
	}
	return l.number
}

// ParseSpeakerLabel extracts the trailing integer of a conventional speaker
// token. An empty label, a missing suffix, or a non-numeric suffix all yield
// the unknown variant rather than an error.
func ParseSpeakerLabel(label string) SpeakerLabel {
	if label == "" {
		return SpeakerLabel{}
	}

	idx := strings.LastIndex(label, "_")
	if idx < 0 || idx == len(label)-1 {
		return SpeakerLabel{}
	}

	number, err := strconv.Atoi(label[idx+1:])
	if err != nil || number < 0 {
		return SpeakerLabel{}
	}

	return SpeakerLabel{known: true, number: number}
}
