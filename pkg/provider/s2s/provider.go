// Package s2s defines the Provider interface for duplex speech-to-speech
// backends.
//
// An S2S provider wraps a real-time voice model that accepts streamed
// microphone audio and answers with streamed synthesised audio plus
// transcripts of both sides, in a single stateful session. Examples include
// the Gemini Live API and the OpenAI Realtime API.
//
// The central abstraction is SessionHandle: a bidirectional connection whose
// inbound side is one ordered stream of [Event] values. Consumers drain
// [SessionHandle.Events] from a single goroutine, which gives them strict
// arrival-order processing without further locking.
//
// All implementations must be safe for concurrent use.
package s2s

import (
	"context"
	"errors"

	"github.com/MrWong99/lingualive/pkg/audio"
	"github.com/MrWong99/lingualive/pkg/types"
)

// ErrSessionClosed is returned by SendAudio after the session has ended.
var ErrSessionClosed = errors.New("s2s: session closed")

// Blob is a base64-encoded media payload as it crosses the wire.
type Blob struct {
	// Data is the base64 encoding of the raw bytes.
	Data string

	// MIMEType describes the raw bytes, e.g. "audio/pcm;rate=16000".
	MIMEType string
}

// EventType enumerates the inbound session events.
type EventType int

const (
	// EventOpened signals that the provider accepted the session
	// configuration. Audio sent before this event may be discarded.
	EventOpened EventType = iota

	// EventAudio carries one chunk of synthesised speech in [Event.Audio].
	EventAudio

	// EventInputTranscript carries a delta of the user's recognised speech.
	EventInputTranscript

	// EventOutputTranscript carries a delta of the model's spoken answer.
	EventOutputTranscript

	// EventTurnComplete marks the end of a model turn.
	EventTurnComplete

	// EventInterrupted signals that the user started speaking over the model.
	EventInterrupted

	// EventError carries a provider or transport error in [Event.Err]. It is
	// fatal for the session even if the transport is still open.
	EventError

	// EventClosed is the last event of every session whose end was not
	// initiated by [SessionHandle.Close].
	EventClosed
)

// String returns the event type name used in logs.
func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventAudio:
		return "audio"
	case EventInputTranscript:
		return "input_transcript"
	case EventOutputTranscript:
		return "output_transcript"
	case EventTurnComplete:
		return "turn_complete"
	case EventInterrupted:
		return "interrupted"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one inbound notification from a session.
type Event struct {
	Type EventType

	// Audio is set for EventAudio.
	Audio Blob

	// Text is set for the transcript events.
	Text string

	// Err is set for EventError.
	Err error
}

// SessionConfig is the configuration sent when a session is opened.
type SessionConfig struct {
	// Voice selects the prebuilt voice the model speaks with.
	Voice types.VoiceProfile

	// Instructions is the system instruction (persona, languages, level).
	Instructions string

	// InputTranscription requests transcripts of the user's speech.
	InputTranscription bool

	// OutputTranscription requests transcripts of the model's speech.
	OutputTranscription bool
}

// Capabilities describes static properties of an S2S provider.
type Capabilities struct {
	// ContextWindow is the maximum token count the model keeps across the session.
	ContextWindow int

	// MaxSessionDurationMs is the provider's hard session limit. Zero means
	// no documented limit.
	MaxSessionDurationMs int

	// InputFormat is the PCM format the provider expects from SendAudio.
	InputFormat audio.Format

	// OutputFormat is the default PCM format of EventAudio payloads when the
	// chunk's MIME type does not say otherwise.
	OutputFormat audio.Format

	// Voices lists the voice profiles available for this provider.
	Voices []types.VoiceProfile
}

// SessionHandle represents an open duplex session. It is an interface so
// that test code can supply mock implementations without a live connection.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers one encoded capture chunk. Returns [ErrSessionClosed]
	// once the session has ended.
	SendAudio(ctx context.Context, chunk Blob) error

	// Events returns the ordered stream of inbound events. The channel is
	// closed when the session ends. Consumers must drain it promptly to keep
	// the provider's receive loop from stalling.
	Events() <-chan Event

	// Err returns the error that ended the session, or nil if it ended cleanly.
	Err() error

	// Close terminates the session and closes the Events channel. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any S2S backend.
type Provider interface {
	// Connect dials the backend and sends cfg. The session becomes usable
	// once [EventOpened] arrives on its Events channel. The caller owns the
	// returned SessionHandle.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the provider's model.
	Capabilities() Capabilities
}
