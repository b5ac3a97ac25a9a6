package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lingualive/pkg/provider/llm"
	llmmock "github.com/MrWong99/lingualive/pkg/provider/llm/mock"
	"github.com/MrWong99/lingualive/pkg/types"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "hello from primary"},
	}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "hello from secondary"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from primary" {
		t.Fatalf("content = %q, want 'hello from primary'", resp.Content)
	}
	if len(primary.Calls()) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.Calls()))
	}
	if len(secondary.Calls()) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "hello from secondary"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	req := llm.CompletionRequest{Messages: []types.Message{{Role: "user", Content: "Hola"}}}
	resp, err := fb.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from secondary" {
		t.Fatalf("content = %q", resp.Content)
	}
	calls := secondary.Calls()
	if len(calls) != 1 || calls[0].Req.Messages[0].Content != "Hola" {
		t.Fatalf("secondary did not receive the original request: %+v", calls)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	fb := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("a")}, "a", FallbackConfig{})
	fb.AddFallback("b", &llmmock.Provider{CompleteErr: errors.New("b")})

	if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_Capabilities(t *testing.T) {
	primary := &llmmock.Provider{ModelCapabilities: types.ModelCapabilities{ContextWindow: 1000, SupportsJSON: true}}
	fb := NewLLMFallback(primary, "primary", FallbackConfig{})

	if caps := fb.Capabilities(); caps.ContextWindow != 1000 || !caps.SupportsJSON {
		t.Fatalf("caps = %+v", caps)
	}

	fb.AddFallback("plain", &llmmock.Provider{})
	if fb.Capabilities().SupportsJSON {
		t.Fatal("JSON support must require every entry to support it")
	}
	if got := fb.Providers(); len(got) != 2 || got[1] != "plain" {
		t.Fatalf("providers = %v", got)
	}
}
