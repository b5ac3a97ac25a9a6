// Package content generates the structured study material shown next to a
// conversation: grammar explanations and short written workouts.
//
// The [Generator] asks a text [llm.Provider] for a single JSON object and
// decodes it strictly. Markdown code fences are tolerated; unknown fields and
// missing required fields are errors, so a half-formed answer never reaches
// the learner.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/lingualive/internal/observe"
	"github.com/MrWong99/lingualive/pkg/provider/llm"
	"github.com/MrWong99/lingualive/pkg/types"
)

// ErrInvalidResponse is wrapped when the model's answer is not the expected
// JSON document.
var ErrInvalidResponse = errors.New("content: invalid model response")

// DefaultLevel is the CEFR level used by Workout when none is given.
const DefaultLevel = "B1"

const defaultTemperature = 0.7

// GrammarNote explains one grammar topic.
type GrammarNote struct {
	Topic       string   `json:"topic"`
	Explanation string   `json:"explanation"`
	Examples    []string `json:"examples"`
}

// Workout is a short written exercise set.
type Workout struct {
	TranslationTask   string `json:"translationTask"`
	CompositionPrompt string `json:"compositionPrompt"`
	ClozeTask         string `json:"clozeTask"`
}

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithTemperature sets the LLM sampling temperature. Default: 0.7.
func WithTemperature(temp float64) Option {
	return func(g *Generator) { g.temperature = temp }
}

// WithMetrics records request counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithProviderName sets the provider label used in metrics. Default: "llm".
func WithProviderName(name string) Option {
	return func(g *Generator) { g.provider = name }
}

// Generator produces [GrammarNote] and [Workout] values. It is safe for
// concurrent use.
type Generator struct {
	llm         llm.Provider
	temperature float64
	metrics     *observe.Metrics
	provider    string
}

// New returns a [Generator] backed by provider.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm:         provider,
		temperature: defaultTemperature,
		provider:    "llm",
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Grammar explains topic for an intermediate learner of language.
func (g *Generator) Grammar(ctx context.Context, topic, language string) (*GrammarNote, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("content: grammar: topic must not be empty")
	}
	if strings.TrimSpace(language) == "" {
		return nil, errors.New("content: grammar: language must not be empty")
	}

	prompt := fmt.Sprintf(
		"Explain the grammar topic %q in %q for an intermediate learner. "+
			"Include rules, 3 interactive examples with translations, and common pitfalls. "+
			`Format as JSON with the keys "topic" (string), "explanation" (string) and "examples" (array of strings).`,
		topic, language)

	var note GrammarNote
	if err := g.generate(ctx, "grammar", prompt, &note); err != nil {
		return nil, fmt.Errorf("content: grammar: %w", err)
	}

	var missing []string
	if note.Topic == "" {
		missing = append(missing, "topic")
	}
	if note.Explanation == "" {
		missing = append(missing, "explanation")
	}
	if note.Examples == nil {
		missing = append(missing, "examples")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("content: grammar: %w: missing %s", ErrInvalidResponse, strings.Join(missing, ", "))
	}
	return &note, nil
}

// Workout builds an exercise set in language at the given CEFR level. An
// empty level selects [DefaultLevel].
func (g *Generator) Workout(ctx context.Context, language, level string) (*Workout, error) {
	if strings.TrimSpace(language) == "" {
		return nil, errors.New("content: workout: language must not be empty")
	}
	if level == "" {
		level = DefaultLevel
	}

	prompt := fmt.Sprintf(
		"Generate an intermediate language workout in %s at level %s. "+
			"Include a paragraph for translation, a composition prompt, and a fill-in-the-blank sentence. "+
			`Format as JSON with the string keys "translationTask", "compositionPrompt" and "clozeTask".`,
		language, level)

	var w Workout
	if err := g.generate(ctx, "workout", prompt, &w); err != nil {
		return nil, fmt.Errorf("content: workout: %w", err)
	}

	var missing []string
	if w.TranslationTask == "" {
		missing = append(missing, "translationTask")
	}
	if w.CompositionPrompt == "" {
		missing = append(missing, "compositionPrompt")
	}
	if w.ClozeTask == "" {
		missing = append(missing, "clozeTask")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("content: workout: %w: missing %s", ErrInvalidResponse, strings.Join(missing, ", "))
	}
	return &w, nil
}

// generate runs one JSON completion and decodes the answer into dst.
func (g *Generator) generate(ctx context.Context, kind, prompt string, dst any) (err error) {
	ctx, span := observe.StartSpan(ctx, "content."+kind)
	span.SetAttributes(attribute.String("content.kind", kind))
	defer func() {
		if g.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			g.metrics.RecordProviderRequest(ctx, g.provider, kind, status)
		}
		observe.EndSpan(span, err)
	}()

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: g.temperature,
		JSON:        true,
		Messages:    []types.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	return decodeStrict(resp.Content, dst)
}

// decodeStrict unmarshals a single JSON object, rejecting unknown fields and
// trailing data.
func decodeStrict(content string, dst any) error {
	dec := json.NewDecoder(strings.NewReader(stripMarkdown(content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", ErrInvalidResponse)
	}
	return nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
