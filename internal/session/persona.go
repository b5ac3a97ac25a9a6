package session

import (
	"fmt"

	"github.com/MrWong99/lingualive/pkg/types"
)

// DefaultVoice is the prebuilt voice used when none is configured.
var DefaultVoice = types.VoiceProfile{ID: "Kore", Name: "Kore", Provider: "gemini"}

// Persona describes who the remote model plays during a conversation.
type Persona struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Level string `yaml:"level"`
}

// DefaultPersona is the cultural guide used when no persona is configured.
var DefaultPersona = Persona{Name: "Carlos", Role: "Cultural Guide", Level: "B1-B2"}

// withDefaults fills empty fields from [DefaultPersona].
func (p Persona) withDefaults() Persona {
	if p.Name == "" {
		p.Name = DefaultPersona.Name
	}
	if p.Role == "" {
		p.Role = DefaultPersona.Role
	}
	if p.Level == "" {
		p.Level = DefaultPersona.Level
	}
	return p
}

// Instructions renders the system instruction for a conversation in target
// with a learner whose first language is native.
func (p Persona) Instructions(target, native string) string {
	p = p.withDefaults()
	return fmt.Sprintf(
		"You are %s, a native %s speaker. Talk to a student whose native language is %s. Use %s level. Correct major errors. Be engaging.",
		p.Name, target, native, p.Level,
	)
}
