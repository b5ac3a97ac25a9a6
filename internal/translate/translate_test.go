package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/lingualive/internal/observe"
	"github.com/MrWong99/lingualive/pkg/provider/llm"
	llmmock "github.com/MrWong99/lingualive/pkg/provider/llm/mock"
)

func TestTranslate_BlankInputSkipsRequest(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "should not be used"}}
	tr := New(p)

	for _, in := range []string{"", "   ", "\n\t"} {
		got, err := tr.Translate(context.Background(), in, "Spanish", "English")
		if err != nil {
			t.Fatalf("Translate(%q): unexpected error %v", in, err)
		}
		if got != "" {
			t.Errorf("Translate(%q) = %q, want empty", in, got)
		}
	}
	if n := len(p.Calls()); n != 0 {
		t.Fatalf("provider called %d times, want 0", n)
	}
}

func TestTranslate_SingleRoundTrip(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  \"Good morning, how are you?\"\n"}}
	tr := New(p, WithTemperature(0.1))

	got, err := tr.Translate(context.Background(), "Buenos días, ¿cómo estás?", "Spanish", "English")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Good morning, how are you?" {
		t.Errorf("translation = %q", got)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	if req.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	want := `Translate the following Spanish text to English. Return only the translated string: "Buenos días, ¿cómo estás?"`
	if req.Messages[0].Content != want {
		t.Errorf("prompt = %q\nwant     %q", req.Messages[0].Content, want)
	}
}

func TestTranslate_DefaultTarget(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Hello"}}
	if _, err := New(p).Translate(context.Background(), "Hola", "Spanish", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(p.Calls()[0].Req.Messages[0].Content, "to English.") {
		t.Errorf("prompt does not target English: %q", p.Calls()[0].Req.Messages[0].Content)
	}
}

func TestTranslate_ProviderError(t *testing.T) {
	t.Parallel()
	cause := errors.New("quota exceeded")
	tr := New(&llmmock.Provider{CompleteErr: cause})

	_, err := tr.Translate(context.Background(), "Hola", "Spanish", "English")
	if !errors.Is(err, ErrTranslation) {
		t.Fatalf("err = %v, want ErrTranslation", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want the provider cause wrapped", err)
	}
}

func TestTranslate_EmptyAnswerIsAnError(t *testing.T) {
	t.Parallel()
	for _, resp := range []*llm.CompletionResponse{nil, {Content: ""}, {Content: `""`}} {
		tr := New(&llmmock.Provider{CompleteResponse: resp})
		if _, err := tr.Translate(context.Background(), "Hola", "Spanish", "English"); !errors.Is(err, ErrTranslation) {
			t.Errorf("response %+v: err = %v, want ErrTranslation", resp, err)
		}
	}
}

func TestTranslate_Timeout(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	tr := New(p, WithTimeout(20*time.Millisecond))

	_, err := tr.Translate(context.Background(), "Hola", "Spanish", "English")
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, ErrTranslation) {
		t.Fatalf("err = %v, want ErrTranslation wrapping DeadlineExceeded", err)
	}
}

func TestTranslate_RecordsMetrics(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	tr := New(&llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Hello"}},
		WithMetrics(m), WithProviderName("gemini"))
	if _, err := tr.Translate(context.Background(), "Hola", "Spanish", "English"); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "lingualive.translation.duration" {
				continue
			}
			hist := met.Data.(metricdata.Histogram[float64])
			if len(hist.DataPoints) == 1 && hist.DataPoints[0].Count == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("translation duration was not recorded exactly once")
	}
}

func TestClean(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"Hello":        "Hello",
		"  Hello \n":   "Hello",
		`"Hello"`:      "Hello",
		`" Hello "`:    "Hello",
		"“Hello”":      "Hello",
		"«Bonjour»":    "Bonjour",
		`'Hi'`:         "Hi",
		`"unbalanced`:  `"unbalanced`,
		`He said "hi"`: `He said "hi"`,
		`""`:           "",
		`"`:            `"`,
	}
	for in, want := range tests {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}
