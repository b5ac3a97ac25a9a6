package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/lingualive/pkg/provider/llm"
	"github.com/MrWong99/lingualive/pkg/types"
)

const generateReply = `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"topic\":\"ser vs estar\"}"}]}, "finishReason": "STOP"}],
  "usageMetadata": {"promptTokenCount": 20, "candidatesTokenCount": 6, "totalTokenCount": 26}
}`

// startGenerateServer answers every generateContent call with reply and
// records the decoded request body.
func startGenerateServer(t *testing.T, status int, reply string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p, err := New(context.Background(), "test-key", "gemini-2.5-flash", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "", "gemini-2.5-flash"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New(context.Background(), "test-key", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != DefaultModel {
		t.Errorf("model = %q, want %q", p.model, DefaultModel)
	}
}

func TestComplete_JSONRequest(t *testing.T) {
	srv, got := startGenerateServer(t, http.StatusOK, generateReply)
	p := newTestProvider(t, srv)

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are a Spanish teacher.",
		Messages:     []types.Message{{Role: "user", Content: "Explain ser vs estar"}},
		Temperature:  0.4,
		MaxTokens:    512,
		JSON:         true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"topic":"ser vs estar"}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 20 || resp.Usage.CompletionTokens != 6 || resp.Usage.TotalTokens != 26 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	body := *got
	gen, _ := body["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v, want application/json", gen["responseMimeType"])
	}
	if gen["maxOutputTokens"] != float64(512) {
		t.Errorf("maxOutputTokens = %v, want 512", gen["maxOutputTokens"])
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Error("systemInstruction missing from request")
	}
	contents, _ := body["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("expected 1 content entry, got %d", len(contents))
	}
}

func TestBuildRequest_FoldsSystemMessages(t *testing.T) {
	p := &Provider{model: DefaultModel}
	contents, gcfg := p.buildRequest(llm.CompletionRequest{
		SystemPrompt: "first",
		Messages: []types.Message{
			{Role: "system", Content: "second"},
			{Role: "user", Content: "hola"},
			{Role: "assistant", Content: "hello"},
		},
	})
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant role mapped to %q, want model", contents[1].Role)
	}
	if gcfg.SystemInstruction == nil || len(gcfg.SystemInstruction.Parts) != 1 {
		t.Fatal("expected a single-part system instruction")
	}
	if text := gcfg.SystemInstruction.Parts[0].Text; text != "first\n\nsecond" {
		t.Errorf("system instruction = %q", text)
	}
	if gcfg.ResponseMIMEType != "" {
		t.Errorf("plain requests must not set a response MIME type, got %q", gcfg.ResponseMIMEType)
	}
	if gcfg.Temperature != nil {
		t.Error("zero temperature should be left unset")
	}
}

func TestComplete_NoContents(t *testing.T) {
	p := &Provider{model: DefaultModel}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{SystemPrompt: "only system"}); err == nil {
		t.Fatal("expected error for request without messages")
	}
}

func TestComplete_HTTPError(t *testing.T) {
	srv, _ := startGenerateServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`)
	p := newTestProvider(t, srv)
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "x"}},
	}); err == nil {
		t.Fatal("expected error for HTTP 400")
	}
}

func TestCapabilities(t *testing.T) {
	p := &Provider{model: "gemini-2.0-flash"}
	caps := p.Capabilities()
	if !caps.SupportsJSON {
		t.Error("expected SupportsJSON")
	}
	if caps.MaxOutputTokens != 8_192 {
		t.Errorf("max output = %d, want 8192", caps.MaxOutputTokens)
	}
}
