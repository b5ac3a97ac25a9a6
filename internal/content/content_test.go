package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/lingualive/pkg/provider/llm"
	llmmock "github.com/MrWong99/lingualive/pkg/provider/llm/mock"
)

func reply(content string) *llmmock.Provider {
	return &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: content}}
}

func TestGrammar_Success(t *testing.T) {
	t.Parallel()
	p := reply("```json\n" + `{"topic":"Ser vs Estar","explanation":"Ser is permanent.","examples":["Soy alto.","Estoy cansado.","Es lunes."]}` + "\n```")
	g := New(p)

	note, err := g.Grammar(context.Background(), "Ser vs Estar", "Spanish")
	if err != nil {
		t.Fatalf("Grammar: %v", err)
	}
	if note.Topic != "Ser vs Estar" || note.Explanation == "" || len(note.Examples) != 3 {
		t.Errorf("note = %+v", note)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	if !req.JSON {
		t.Error("grammar requests must ask for JSON")
	}
	if !strings.Contains(req.Messages[0].Content, `"Ser vs Estar"`) || !strings.Contains(req.Messages[0].Content, `"Spanish"`) {
		t.Errorf("prompt = %q", req.Messages[0].Content)
	}
}

func TestGrammar_MissingFields(t *testing.T) {
	t.Parallel()
	g := New(reply(`{"topic":"Subjunctive"}`))
	_, err := g.Grammar(context.Background(), "Subjunctive", "Spanish")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
	if !strings.Contains(err.Error(), "explanation") || !strings.Contains(err.Error(), "examples") {
		t.Errorf("error %q should name the missing fields", err)
	}
}

func TestGrammar_EmptyExamplesAllowed(t *testing.T) {
	t.Parallel()
	g := New(reply(`{"topic":"t","explanation":"e","examples":[]}`))
	if _, err := g.Grammar(context.Background(), "t", "Spanish"); err != nil {
		t.Fatalf("explicit empty examples should decode: %v", err)
	}
}

func TestGrammar_RejectsUnknownFieldsAndGarbage(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"unknown field": `{"topic":"t","explanation":"e","examples":[],"extra":1}`,
		"prose":         "Sure! Here is your explanation.",
		"trailing":      `{"topic":"t","explanation":"e","examples":[]} {"again":true}`,
		"wrong type":    `{"topic":"t","explanation":"e","examples":"one"}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := New(reply(content)).Grammar(context.Background(), "t", "Spanish")
			if !errors.Is(err, ErrInvalidResponse) {
				t.Fatalf("err = %v, want ErrInvalidResponse", err)
			}
		})
	}
}

func TestGrammar_ValidatesInput(t *testing.T) {
	t.Parallel()
	p := reply(`{}`)
	g := New(p)
	if _, err := g.Grammar(context.Background(), " ", "Spanish"); err == nil {
		t.Error("expected error for blank topic")
	}
	if _, err := g.Grammar(context.Background(), "Articles", ""); err == nil {
		t.Error("expected error for blank language")
	}
	if len(p.Calls()) != 0 {
		t.Error("invalid input must not reach the provider")
	}
}

func TestWorkout_DefaultLevel(t *testing.T) {
	t.Parallel()
	p := reply(`{"translationTask":"Traduce esto.","compositionPrompt":"Describe tu casa.","clozeTask":"Yo ___ (ser) estudiante."}`)
	w, err := New(p).Workout(context.Background(), "Spanish", "")
	if err != nil {
		t.Fatalf("Workout: %v", err)
	}
	if w.ClozeTask != "Yo ___ (ser) estudiante." {
		t.Errorf("workout = %+v", w)
	}
	if prompt := p.Calls()[0].Req.Messages[0].Content; !strings.Contains(prompt, "at level B1") {
		t.Errorf("prompt %q does not use the default level", prompt)
	}
}

func TestWorkout_ExplicitLevelAndMissingField(t *testing.T) {
	t.Parallel()
	p := reply(`{"translationTask":"a","compositionPrompt":"b"}`)
	_, err := New(p).Workout(context.Background(), "German", "C1")
	if !errors.Is(err, ErrInvalidResponse) || !strings.Contains(err.Error(), "clozeTask") {
		t.Fatalf("err = %v, want missing clozeTask", err)
	}
	if prompt := p.Calls()[0].Req.Messages[0].Content; !strings.Contains(prompt, "in German at level C1") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestWorkout_ProviderError(t *testing.T) {
	t.Parallel()
	cause := errors.New("backend down")
	_, err := New(&llmmock.Provider{CompleteErr: cause}).Workout(context.Background(), "Italian", "A2")
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want provider cause", err)
	}
}

func TestStripMarkdown(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"```json\n{}\n```": "{}",
		"```\n{}\n```":     "{}",
		"  {}  ":           "{}",
	}
	for in, want := range tests {
		if got := stripMarkdown(in); got != want {
			t.Errorf("stripMarkdown(%q) = %q, want %q", in, got, want)
		}
	}
}
