// Package genai provides an LLM provider backed by the Google Gen AI SDK
// (google.golang.org/genai) talking to the Gemini Developer API.
//
// Unlike the any-llm-go Gemini backend this adapter uses Gemini's native
// response MIME type for JSON requests, which the grammar and workout
// generators rely on.
package genai

import (
	"context"
	"fmt"
	"strings"

	sdk "google.golang.org/genai"

	"github.com/MrWong99/lingualive/pkg/provider/llm"
	"github.com/MrWong99/lingualive/pkg/types"
)

// DefaultModel is used when New receives an empty model name.
const DefaultModel = "gemini-2.5-flash"

// Provider implements llm.Provider using the Gemini generateContent endpoint.
type Provider struct {
	client *sdk.Client
	model  string
}

type config struct {
	baseURL string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// New constructs a Provider. ctx is only used while creating the SDK client.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	cc := &sdk.ClientConfig{
		APIKey:  apiKey,
		Backend: sdk.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = sdk.HTTPOptions{BaseURL: cfg.baseURL}
	}

	client, err := sdk.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents, gcfg := p.buildRequest(req)
	if len(contents) == 0 {
		return nil, fmt.Errorf("genai: request has no user or assistant messages")
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, gcfg)
	if err != nil {
		return nil, fmt.Errorf("genai: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("genai: empty candidates in response")
	}

	out := &llm.CompletionResponse{Content: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	caps := types.ModelCapabilities{
		ContextWindow:     1_048_576,
		MaxOutputTokens:   65_536,
		SupportsJSON:      true,
		SupportsStreaming: true,
	}
	if strings.Contains(strings.ToLower(p.model), "gemini-2.0") {
		caps.MaxOutputTokens = 8_192
	}
	return caps
}

// buildRequest folds system-role messages into the system instruction, which
// generateContent carries outside the contents list.
func (p *Provider) buildRequest(req llm.CompletionRequest) ([]*sdk.Content, *sdk.GenerateContentConfig) {
	system := []string{}
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}

	var contents []*sdk.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, sdk.NewContentFromText(m.Content, sdk.RoleModel))
		default:
			contents = append(contents, sdk.NewContentFromText(m.Content, sdk.RoleUser))
		}
	}

	gcfg := &sdk.GenerateContentConfig{}
	if len(system) > 0 {
		gcfg.SystemInstruction = sdk.NewContentFromText(strings.Join(system, "\n\n"), sdk.RoleUser)
	}
	if req.Temperature != 0 {
		t := float32(req.Temperature)
		gcfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		gcfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		gcfg.ResponseMIMEType = "application/json"
	}
	return contents, gcfg
}

var _ llm.Provider = (*Provider)(nil)
