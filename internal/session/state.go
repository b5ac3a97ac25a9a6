package session

import "github.com/MrWong99/lingualive/internal/transcript"

// State is the lifecycle position of a [Controller].
type State int

const (
	// Idle means no session is open. Start is accepted.
	Idle State = iota

	// Connecting means the microphone is being acquired or the duplex
	// session is being opened.
	Connecting

	// Active means audio flows in both directions.
	Active

	// Closed means the remote side ended the last session. Start is
	// accepted and opens a fresh one.
	Closed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UpdateKind says which field of an [Update] is meaningful.
type UpdateKind int

const (
	// UpdateState reports a lifecycle transition in State (and Err).
	UpdateState UpdateKind = iota

	// UpdateLive reports the in-progress transcript buffers in Live.
	UpdateLive

	// UpdateTurn reports a turn appended to history in Turn.
	UpdateTurn

	// UpdateTranslation reports a turn whose translation resolved in Turn.
	UpdateTranslation
)

// String returns the kind name used on the browser wire.
func (k UpdateKind) String() string {
	switch k {
	case UpdateState:
		return "state"
	case UpdateLive:
		return "live"
	case UpdateTurn:
		return "turn"
	case UpdateTranslation:
		return "translation"
	default:
		return "unknown"
	}
}

// Update is one notification from a [Controller] to its UI.
type Update struct {
	Kind UpdateKind

	// RunID identifies the session run the update belongs to. Empty for
	// transitions outside a run.
	RunID string

	// State is set for UpdateState.
	State State

	// Err is set for UpdateState when a failure caused the transition.
	Err error

	// Live is set for UpdateLive.
	Live transcript.Live

	// Turn is set for UpdateTurn and UpdateTranslation.
	Turn transcript.Turn
}
