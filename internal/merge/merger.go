package merge

import (
	"math"
	"strings"

	"speakerscribe/internal/transcript"
)

// Merge aligns recognized speech segments with diarized speaker turns and
// produces speaker-attributed utterances. Each segment is attributed to the
// turn with the greatest temporal overlap; a segment overlapping no turn is
// attributed to the unknown speaker. Output order follows the input segment
// order, timestamps are rounded to two decimals, text is trimmed, and
// empty-text entries are dropped entirely.
func Merge(segments []transcript.Segment, turns []transcript.SpeakerTurn) []transcript.Utterance {
	utterances := make([]transcript.Utterance, 0, len(segments))

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		label := dominantSpeaker(seg, turns)

		utterances = append(utterances, transcript.Utterance{
			Speaker: label.Speaker(),
			Start:   round2(seg.Start),
			End:     round2(seg.End),
			Text:    text,
		})
	}

	return utterances
}

// dominantSpeaker finds the turn with maximal overlap against the segment.
// Ties keep the earliest matching turn.
func dominantSpeaker(seg transcript.Segment, turns []transcript.SpeakerTurn) SpeakerLabel {
	best := SpeakerLabel{}
	bestOverlap := 0.0

	for _, turn := range turns {
		o := overlap(seg.Start, seg.End, turn.Start, turn.End)
		if o > bestOverlap {
			bestOverlap = o
			best = ParseSpeakerLabel(turn.Label)
		}
	}

	return best
}

// overlap returns the length of the intersection of two half-open intervals
func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	start := math.Max(aStart, bStart)
	end := math.Min(aEnd, bEnd)
	if end <= start {
		return 0
	}
	return end - start
}

// round2 rounds a timestamp to two decimal places for output stability
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
