package jobstore

// State is the persisted stage of a job's lifecycle
type State string

const (
	StateSubmitted    State = "submitted"
	StateInitializing State = "initializing"
	StateTranscribing State = "transcribing"
	StateDiarizing    State = "diarizing"
	StateCombining    State = "combining"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// IsTerminal reports whether the state admits no further transitions
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// IsValid reports whether the value is a known state
func (s State) IsValid() bool {
	switch s {
	case StateSubmitted, StateInitializing, StateTranscribing,
		StateDiarizing, StateCombining, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// IsValidTransition enforces the allowed state machine edges: the pipeline
// advances one stage at a time, and failed is reachable from every
// non-terminal state. No backward edges exist.
func IsValidTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}

	switch from {
	case StateSubmitted:
		return to == StateInitializing
	case StateInitializing:
		return to == StateTranscribing
	case StateTranscribing:
		return to == StateDiarizing
	case StateDiarizing:
		return to == StateCombining
	case StateCombining:
		return to == StateDone
	default:
		return false
	}
}
