package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/lingualive/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_SpeedFactorRange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		speed   string
		wantErr bool
	}{
		{"0.5", false},
		{"2.0", false},
		{"0.49", true},
		{"2.5", true},
	}
	for _, tt := range tests {
		t.Run(tt.speed, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader("conversation:\n  speed_factor: " + tt.speed + "\n"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("speed %s: err = %v, wantErr %v", tt.speed, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "speed_factor") {
				t.Errorf("error should mention speed_factor, got: %v", err)
			}
		})
	}
}

func TestValidate_InvalidTranscriptPolicy(t *testing.T) {
	t.Parallel()
	yaml := `
conversation:
  transcript_policy: merge
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid transcript_policy, got nil")
	}
	if !strings.Contains(err.Error(), "reset_other") {
		t.Errorf("error should list valid values, got: %v", err)
	}
}

func TestValidate_NegativeSizes(t *testing.T) {
	t.Parallel()
	yaml := `
conversation:
  frame_size: -1
  history_size: -3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative sizes, got nil")
	}
	for _, want := range []string{"frame_size", "history_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_FallbacksRequirePrimary(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm_fallbacks:
    - name: openai
    - model: gpt-4o
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for fallbacks without a primary, got nil")
	}
	if !strings.Contains(err.Error(), "requires providers.llm") {
		t.Errorf("error should mention the missing primary, got: %v", err)
	}
	if !strings.Contains(err.Error(), "llm_fallbacks[1].name") {
		t.Errorf("error should mention the unnamed fallback, got: %v", err)
	}
}

func TestValidate_TLSNeedsBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/cert.pem
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for incomplete tls, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
conversation:
  speed_factor: 3
  transcript_policy: nope
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"log_level", "speed_factor", "transcript_policy"} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error should mention %s, got: %v", want, msg)
		}
	}
}

func TestValidate_UnknownProviderIsOnlyWarning(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  s2s:
    name: homegrown-duplex
  llm:
    name: homegrown-llm
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should not fail validation: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for kind, want := range map[string][]string{
		"llm": {"openai", "gemini", "openai-native", "genai"},
		"s2s": {"gemini-live", "openai-realtime"},
	} {
		names := config.ValidProviderNames[kind]
		for _, n := range want {
			if !slices.Contains(names, n) {
				t.Errorf("ValidProviderNames[%q] should contain %q", kind, n)
			}
		}
	}
}
