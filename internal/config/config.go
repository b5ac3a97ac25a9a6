// Package config provides the configuration schema, loader, and provider registry
// for the LinguaLive conversation server.
package config

import "time"

// LogLevel controls log verbosity for the LinguaLive server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// TranscriptPolicy selects what happens to the other speaker's live buffer
// when one speaker starts talking.
type TranscriptPolicy string

const (
	// PolicyResetOther clears the other speaker's buffer.
	PolicyResetOther TranscriptPolicy = "reset_other"

	// PolicyKeepBoth keeps both buffers until the turn completes.
	PolicyKeepBoth TranscriptPolicy = "keep_both"
)

// IsValid reports whether p is a recognised transcript policy.
func (p TranscriptPolicy) IsValid() bool {
	return p == PolicyResetOther || p == PolicyKeepBoth
}

// Defaults applied by [ApplyDefaults] when a field is left empty.
const (
	DefaultListenAddr         = ":8080"
	DefaultTargetLanguage     = "Spanish"
	DefaultNativeLanguage     = "English"
	DefaultFrameSize          = 4096
	DefaultHistorySize        = 15
	DefaultSpeedFactor        = 1.0
	DefaultTranslationTimeout = 30 * time.Second
)

// Config is the root configuration structure for LinguaLive.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Conversation ConversationConfig `yaml:"conversation"`
	Translation  TranslationConfig  `yaml:"translation"`
}

// ServerConfig holds network and logging settings for the LinguaLive server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds paths to the TLS certificate and private key.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the duplex audio provider and the text LLMs used for
// translation and content generation.
type ProvidersConfig struct {
	// S2S opens the live voice conversation.
	S2S ProviderEntry `yaml:"s2s"`

	// LLM answers translation, grammar and workout requests.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when LLM fails or its circuit is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the common configuration shape for every provider.
type ProviderEntry struct {
	// Name is the registered provider name (e.g., "gemini-live", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model from the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific settings not covered by the common fields.
	Options map[string]any `yaml:"options"`
}

// ConversationConfig holds the defaults for every conversation session. The
// browser may override the languages per connection.
type ConversationConfig struct {
	// TargetLanguage is the language being learned and spoken with the model.
	TargetLanguage string `yaml:"target_language"`

	// NativeLanguage is the learner's language and the default translation target.
	NativeLanguage string `yaml:"native_language"`

	Persona PersonaConfig `yaml:"persona"`
	Voice   VoiceConfig   `yaml:"voice"`

	// FrameSize is the number of microphone samples per uplink frame.
	FrameSize int `yaml:"frame_size"`

	// HistorySize bounds the committed transcript.
	HistorySize int `yaml:"history_size"`

	// SpeedFactor is the initial playback rate in [0.5, 2.0].
	SpeedFactor float64 `yaml:"speed_factor"`

	// TranscriptPolicy is reset_other or keep_both.
	TranscriptPolicy TranscriptPolicy `yaml:"transcript_policy"`
}

// PersonaConfig describes the conversation partner the model plays.
type PersonaConfig struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Level string `yaml:"level"`
}

// VoiceConfig selects the synthesised voice.
type VoiceConfig struct {
	ID       string `yaml:"id"`
	Provider string `yaml:"provider"`
}

// TranslationConfig tunes turn translation.
type TranslationConfig struct {
	// Timeout bounds one translation request, including fallbacks.
	Timeout time.Duration `yaml:"timeout"`
}
