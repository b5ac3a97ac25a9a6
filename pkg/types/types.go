// Package types defines the shared types used across all lingualive packages.
//
// These types form the lingua franca between providers, the session
// controller and the HTTP surface. Each package defines its own domain types;
// only cross-cutting data structures live here to avoid circular imports.
package types

// Speaker identifies which side of a conversation produced a piece of text.
type Speaker int

const (
	// SpeakerUser is the learner talking into the microphone.
	SpeakerUser Speaker = iota

	// SpeakerAI is the remote model answering through the speaker.
	SpeakerAI
)

// String returns the wire name of the speaker ("user" or "ai").
func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "user"
	case SpeakerAI:
		return "ai"
	default:
		return "unknown"
	}
}

// Other returns the opposite speaker.
func (s Speaker) Other() Speaker {
	if s == SpeakerUser {
		return SpeakerAI
	}
	return SpeakerUser
}

// MarshalText implements [encoding.TextMarshaler].
func (s Speaker) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name.
	Name string
}

// VoiceProfile describes the synthetic voice the remote model speaks with.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g. "Kore").
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes.
	Metadata map[string]string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsJSON indicates the model can be constrained to emit a JSON document.
	SupportsJSON bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
