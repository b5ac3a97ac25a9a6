// Package observe provides application-wide observability primitives for
// lingualive: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lingualive metrics.
const meterName = "github.com/MrWong99/lingualive"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// --- Sessions ---

	// SessionsActive tracks the number of conversation sessions in the
	// Active state.
	SessionsActive metric.Int64UpDownCounter

	// SessionsStarted counts start attempts. Use with attribute:
	//   attribute.String("outcome", "active"|"permission_denied"|"device_unavailable"|"connection_failed")
	SessionsStarted metric.Int64Counter

	// --- Audio pipeline ---

	// FramesSent counts capture frames handed to the remote session.
	FramesSent metric.Int64Counter

	// ChunksReceived counts inbound audio chunks.
	ChunksReceived metric.Int64Counter

	// ChunksDropped counts inbound audio chunks that could not be played.
	// Use with attribute:
	//   attribute.String("reason", "decode"|"malformed"|"schedule")
	ChunksDropped metric.Int64Counter

	// Interruptions counts barge-in events that stopped playback.
	Interruptions metric.Int64Counter

	// --- Transcript ---

	// TurnsCommitted counts turns appended to history. Use with attribute:
	//   attribute.String("speaker", "user"|"ai")
	TurnsCommitted metric.Int64Counter

	// TranslationDuration tracks translation round-trip latency. Use with
	// attribute:
	//   attribute.String("status", "ok"|"error")
	TranslationDuration metric.Float64Histogram

	// --- Providers ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for text
// model round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Sessions.
	if met.SessionsActive, err = m.Int64UpDownCounter("lingualive.sessions.active",
		metric.WithDescription("Number of conversation sessions in the active state."),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("lingualive.sessions.started",
		metric.WithDescription("Session start attempts by outcome."),
	); err != nil {
		return nil, err
	}

	// Audio.
	if met.FramesSent, err = m.Int64Counter("lingualive.audio.frames_sent",
		metric.WithDescription("Capture frames sent to the remote model."),
	); err != nil {
		return nil, err
	}
	if met.ChunksReceived, err = m.Int64Counter("lingualive.audio.chunks_received",
		metric.WithDescription("Audio chunks received from the remote model."),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("lingualive.audio.chunks_dropped",
		metric.WithDescription("Inbound audio chunks dropped by reason."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("lingualive.playback.interruptions",
		metric.WithDescription("Playback interruptions caused by barge-in."),
	); err != nil {
		return nil, err
	}

	// Transcript.
	if met.TurnsCommitted, err = m.Int64Counter("lingualive.turns.committed",
		metric.WithDescription("Conversation turns committed to history by speaker."),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("lingualive.translation.duration",
		metric.WithDescription("Latency of turn translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Providers.
	if met.ProviderRequests, err = m.Int64Counter("lingualive.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lingualive.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lingualive.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSessionStart records one start attempt and, for outcome "active",
// increments the active gauge.
func (m *Metrics) RecordSessionStart(ctx context.Context, outcome string) {
	m.SessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == "active" {
		m.SessionsActive.Add(ctx, 1)
	}
}

// RecordSessionEnd decrements the active gauge.
func (m *Metrics) RecordSessionEnd(ctx context.Context) {
	m.SessionsActive.Add(ctx, -1)
}

// RecordChunkDropped records an inbound audio chunk that was skipped.
func (m *Metrics) RecordChunkDropped(ctx context.Context, reason string) {
	m.ChunksDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordTurn records a turn committed to history.
func (m *Metrics) RecordTurn(ctx context.Context, speaker string) {
	m.TurnsCommitted.Add(ctx, 1, metric.WithAttributes(attribute.String("speaker", speaker)))
}

// RecordTranslation records the latency of one translation request.
func (m *Metrics) RecordTranslation(ctx context.Context, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TranslationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
