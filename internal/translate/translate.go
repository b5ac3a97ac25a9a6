// Package translate turns finished conversation turns into the learner's
// reference language using a text [llm.Provider].
//
// A [Translator] performs exactly one completion per non-blank input. Blank
// input short-circuits to an empty result without touching the network.
// Every failure wraps [ErrTranslation].
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/lingualive/internal/observe"
	"github.com/MrWong99/lingualive/pkg/provider/llm"
	"github.com/MrWong99/lingualive/pkg/types"
)

// ErrTranslation is wrapped by every error returned from [Translator.Translate].
var ErrTranslation = errors.New("translate: translation failed")

// DefaultTarget is used when Translate is called without a target language.
const DefaultTarget = "English"

const (
	defaultTemperature = 0.2
	defaultTimeout     = 15 * time.Second
)

// Option is a functional option for configuring a [Translator].
type Option func(*Translator)

// WithTemperature sets the LLM sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(t *Translator) { t.temperature = temp }
}

// WithTimeout bounds each translation request. Zero disables the bound.
// Default: 15s.
func WithTimeout(d time.Duration) Option {
	return func(t *Translator) { t.timeout = d }
}

// WithMetrics records latency and request counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Translator) { t.metrics = m }
}

// WithProviderName sets the provider label used in metrics. Default: "llm".
func WithProviderName(name string) Option {
	return func(t *Translator) { t.provider = name }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// Translator translates short texts with an [llm.Provider]. It is safe for
// concurrent use.
type Translator struct {
	llm         llm.Provider
	temperature float64
	timeout     time.Duration
	metrics     *observe.Metrics
	provider    string
	logger      *slog.Logger
}

// New returns a [Translator] backed by provider.
func New(provider llm.Provider, opts ...Option) *Translator {
	t := &Translator{
		llm:         provider,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
		provider:    "llm",
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Translate translates text from source into target. An empty target selects
// [DefaultTarget]. Blank text returns "" and nil without a request.
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if target == "" {
		target = DefaultTarget
	}

	ctx, span := observe.StartSpan(ctx, "translate")
	span.SetAttributes(
		attribute.String("translate.source", source),
		attribute.String("translate.target", target),
	)

	start := time.Now()
	out, err := t.complete(ctx, text, source, target)
	if t.metrics != nil {
		t.metrics.RecordTranslation(ctx, time.Since(start), err)
		status := "ok"
		if err != nil {
			status = "error"
		}
		t.metrics.RecordProviderRequest(ctx, t.provider, "translate", status)
	}
	observe.EndSpan(span, err)
	if err != nil {
		observe.LoggerFrom(ctx, t.logger).Warn("translation failed",
			"source", source, "target", target, "error", err)
	}
	return out, err
}

func (t *Translator) complete(ctx context.Context, text, source, target string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: t.temperature,
		Messages: []types.Message{
			{Role: "user", Content: Prompt(text, source, target)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslation, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", ErrTranslation)
	}

	out := Clean(resp.Content)
	if out == "" {
		return "", fmt.Errorf("%w: model returned no text", ErrTranslation)
	}
	return out, nil
}

// Prompt renders the single-turn translation instruction.
func Prompt(text, source, target string) string {
	return fmt.Sprintf("Translate the following %s text to %s. Return only the translated string: %q", source, target, text)
}

// Clean trims whitespace and one pair of surrounding quotes that models tend
// to echo back from the prompt.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}, {"'", "'"}}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}
