package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

type namedValue struct{ name string }

func TestExecuteWithResult_PrimaryWins(t *testing.T) {
	fg := NewFallbackGroup(namedValue{"a"}, "a", FallbackConfig{})
	fg.AddFallback("b", namedValue{"b"})

	var tried []string
	got, err := ExecuteWithResult(fg, func(v namedValue) (string, error) {
		tried = append(tried, v.name)
		return v.name, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a" {
		t.Errorf("result = %q, want a", got)
	}
	if len(tried) != 1 {
		t.Errorf("tried %v, want only the primary", tried)
	}
}

func TestExecuteWithResult_FailsOverInOrder(t *testing.T) {
	var failures []string
	fg := NewFallbackGroup(namedValue{"a"}, "a", FallbackConfig{
		OnFailure: func(provider string, _ error) { failures = append(failures, provider) },
	})
	fg.AddFallback("b", namedValue{"b"})
	fg.AddFallback("c", namedValue{"c"})

	got, err := ExecuteWithResult(fg, func(v namedValue) (string, error) {
		if v.name != "c" {
			return "", errTest
		}
		return "ok from c", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok from c" {
		t.Errorf("result = %q", got)
	}
	if len(failures) != 2 || failures[0] != "a" || failures[1] != "b" {
		t.Errorf("failures = %v, want [a b]", failures)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	fg := NewFallbackGroup(namedValue{"a"}, "a", FallbackConfig{})
	fg.AddFallback("b", namedValue{"b"})

	_, err := ExecuteWithResult(fg, func(namedValue) (int, error) { return 0, errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want the last cause wrapped", err)
	}
}

func TestExecuteWithResult_SkipsOpenBreaker(t *testing.T) {
	fg := NewFallbackGroup(namedValue{"a"}, "a", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fg.AddFallback("b", namedValue{"b"})

	calls := map[string]int{}
	fn := func(v namedValue) (string, error) {
		calls[v.name]++
		if v.name == "a" {
			return "", errTest
		}
		return "b", nil
	}
	_, _ = ExecuteWithResult(fg, fn)
	_, _ = ExecuteWithResult(fg, fn)

	if calls["a"] != 1 {
		t.Errorf("primary called %d times, want 1 (breaker open after first failure)", calls["a"])
	}
	if calls["b"] != 2 {
		t.Errorf("fallback called %d times, want 2", calls["b"])
	}
	if st := fg.Breaker("a").State(); st != StateOpen {
		t.Errorf("primary breaker = %v, want open", st)
	}
}

func TestExecuteWithResult_CancellationStopsWalk(t *testing.T) {
	fg := NewFallbackGroup(namedValue{"a"}, "a", FallbackConfig{})
	fg.AddFallback("b", namedValue{"b"})

	var tried []string
	_, err := ExecuteWithResult(fg, func(v namedValue) (string, error) {
		tried = append(tried, v.name)
		return "", context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrAllFailed) {
		t.Fatal("cancellation must not be reported as ErrAllFailed")
	}
	if len(tried) != 1 {
		t.Errorf("tried %v, want only the primary", tried)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	fg := NewFallbackGroup(namedValue{}, "gemini", FallbackConfig{})
	fg.AddFallback("openai", namedValue{})
	names := fg.Names()
	if len(names) != 2 || names[0] != "gemini" || names[1] != "openai" {
		t.Errorf("names = %v", names)
	}
	if fg.Breaker("missing") != nil {
		t.Error("expected nil breaker for unknown entry")
	}
}
