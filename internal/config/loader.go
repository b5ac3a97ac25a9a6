package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {
		"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
		"openai-native", "genai",
	},
	"s2s": {"gemini-live", "openai-realtime"},
}

// Speed bounds for conversation.speed_factor.
const (
	MinSpeedFactor = 0.5
	MaxSpeedFactor = 2.0
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its default. Persona and
// voice are left empty; the session layer owns their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	c := &cfg.Conversation
	if c.TargetLanguage == "" {
		c.TargetLanguage = DefaultTargetLanguage
	}
	if c.NativeLanguage == "" {
		c.NativeLanguage = DefaultNativeLanguage
	}
	if c.FrameSize == 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.SpeedFactor == 0 {
		c.SpeedFactor = DefaultSpeedFactor
	}
	if c.TranscriptPolicy == "" {
		c.TranscriptPolicy = PolicyResetOther
	}

	if cfg.Translation.Timeout == 0 {
		cfg.Translation.Timeout = DefaultTranslationTimeout
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("s2s", cfg.Providers.S2S.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	if cfg.Providers.S2S.Name == "" {
		slog.Warn("providers.s2s is not configured; live conversations will be unavailable")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; translation and content generation will be unavailable")
	}

	// Conversation
	c := cfg.Conversation
	if c.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("conversation.frame_size %d must be positive", c.FrameSize))
	}
	if c.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("conversation.history_size %d must be positive", c.HistorySize))
	}
	if c.SpeedFactor != 0 && (c.SpeedFactor < MinSpeedFactor || c.SpeedFactor > MaxSpeedFactor) {
		errs = append(errs, fmt.Errorf("conversation.speed_factor %.2f is out of range [%.1f, %.1f]", c.SpeedFactor, MinSpeedFactor, MaxSpeedFactor))
	}
	if c.TranscriptPolicy != "" && !c.TranscriptPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("conversation.transcript_policy %q is invalid; valid values: reset_other, keep_both", c.TranscriptPolicy))
	}
	if c.TargetLanguage != "" && c.TargetLanguage == c.NativeLanguage {
		slog.Warn("conversation.target_language equals native_language; translations will be identity",
			"language", c.TargetLanguage)
	}
	if c.Voice.Provider != "" && cfg.Providers.S2S.Name != "" && !voiceMatches(c.Voice.Provider, cfg.Providers.S2S.Name) {
		slog.Warn("conversation voice provider does not match configured S2S provider",
			"voice_provider", c.Voice.Provider,
			"s2s_provider", cfg.Providers.S2S.Name,
		)
	}

	// Translation
	if cfg.Translation.Timeout < 0 {
		errs = append(errs, fmt.Errorf("translation.timeout %s must be positive", cfg.Translation.Timeout))
	}

	return errors.Join(errs...)
}

// voiceMatches reports whether a voice's provider tag belongs to the named S2S
// provider. Voices are tagged with the vendor ("gemini", "openai") while the
// registry uses the transport name ("gemini-live", "openai-realtime").
func voiceMatches(voiceProvider, s2sName string) bool {
	return voiceProvider == s2sName || strings.HasPrefix(s2sName, voiceProvider+"-")
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
