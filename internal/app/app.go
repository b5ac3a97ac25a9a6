// Package app wires all LinguaLive subsystems into a running HTTP server.
//
// The App struct owns the full lifecycle: New builds the translation and
// content services from the configured providers, Run serves HTTP until the
// context ends, and Shutdown closes every open conversation before stopping
// the listener.
//
// One WebSocket connection on /ws/conversation is one browser tab. The
// connection gets its own [session.Controller] whose microphone and speaker
// are the tab itself (see package browser).
//
// For testing, build an App with mock providers and serve [App.Handler] from
// an httptest server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lingualive/internal/config"
	"github.com/MrWong99/lingualive/internal/content"
	"github.com/MrWong99/lingualive/internal/health"
	"github.com/MrWong99/lingualive/internal/observe"
	"github.com/MrWong99/lingualive/internal/resilience"
	"github.com/MrWong99/lingualive/internal/translate"
	"github.com/MrWong99/lingualive/pkg/provider/llm"
	"github.com/MrWong99/lingualive/pkg/provider/s2s"
)

// shutdownGrace bounds Shutdown when Run stops because its context ended.
const shutdownGrace = 10 * time.Second

// NamedLLM pairs a text provider with the name it was registered under.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	S2S     s2s.Provider
	S2SName string

	LLM     llm.Provider
	LLMName string

	// LLMFallbacks are tried in order when LLM fails.
	LLMFallbacks []NamedLLM
}

// App owns all subsystem lifetimes and serves the LinguaLive HTTP surface.
type App struct {
	cfg       atomic.Pointer[config.Config]
	providers *Providers
	metrics   *observe.Metrics

	// text is LLM behind its fallbacks; nil when no LLM is configured.
	text       llm.Provider
	translator atomic.Pointer[translate.Translator]
	content    *content.Generator

	sessions   *SessionManager
	health     *health.Handler
	draining   atomic.Bool
	acceptOpts *websocket.AcceptOptions

	handler http.Handler
	server  *http.Server

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithAcceptOptions sets the WebSocket upgrade options, e.g. the allowed
// origin patterns when the UI is served from another host.
func WithAcceptOptions(opts *websocket.AcceptOptions) Option {
	return func(a *App) { a.acceptOpts = opts }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from a validated config and the providers built by
// main.go.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		providers: providers,
		sessions:  NewSessionManager(),
	}
	a.cfg.Store(cfg)
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Text generation with failover ─────────────────────────────────
	a.initText()

	// ── 2. Translation + content ─────────────────────────────────────────
	if a.text != nil {
		a.translator.Store(a.newTranslator(cfg))
		a.content = content.New(a.text,
			content.WithMetrics(a.metrics),
			content.WithProviderName(a.providers.LLMName),
		)
	}

	// ── 3. Health ────────────────────────────────────────────────────────
	a.health = health.New(
		health.Configured("s2s", "s2s", providers.S2S),
		health.Configured("llm", "llm", a.text),
		health.Draining(&a.draining),
	)

	// ── 4. HTTP ──────────────────────────────────────────────────────────
	a.handler = a.routes()
	a.server = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initText wraps the primary LLM and its fallbacks in an [resilience.LLMFallback].
func (a *App) initText() {
	p := a.providers
	if p.LLM == nil {
		if len(p.LLMFallbacks) > 0 {
			slog.Warn("llm fallbacks configured without a primary; ignoring them")
		}
		return
	}
	if len(p.LLMFallbacks) == 0 {
		a.text = p.LLM
		return
	}
	fb := resilience.NewLLMFallback(p.LLM, p.LLMName, resilience.FallbackConfig{
		OnFailure: func(provider string, _ error) {
			a.metrics.RecordProviderError(context.Background(), provider, "llm")
		},
	})
	for _, f := range p.LLMFallbacks {
		fb.AddFallback(f.Name, f.Provider)
	}
	a.text = fb
	slog.Info("llm failover enabled", "providers", fb.Providers())
}

func (a *App) newTranslator(cfg *config.Config) *translate.Translator {
	return translate.New(a.text,
		translate.WithTimeout(cfg.Translation.Timeout),
		translate.WithMetrics(a.metrics),
		translate.WithProviderName(a.providers.LLMName),
	)
}

// routes builds the HTTP surface.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/conversation", a.serveConversation)
	mux.HandleFunc("GET /api/sessions", a.serveSessions)
	mux.HandleFunc("POST /api/translate", a.serveTranslate)
	mux.HandleFunc("POST /api/grammar", a.serveGrammar)
	mux.HandleFunc("POST /api/workout", a.serveWorkout)
	return observe.Middleware(a.metrics)(mux)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the registry of open conversations.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Config returns the config new conversations are built from.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies a changed config. Conversation and translation settings take
// effect for connections opened afterwards; open conversations keep theirs.
func (a *App) Reload(cfg *config.Config) {
	old := a.cfg.Swap(cfg)
	d := config.Diff(old, cfg)
	if d.ConversationChanged() {
		slog.Info("conversation defaults reloaded", "fields", d.ConversationFields)
	}
	if d.TranslationChanged && a.text != nil {
		a.translator.Store(a.newTranslator(cfg))
		slog.Info("translation settings reloaded", "timeout", cfg.Translation.Timeout)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on server.listen_addr and serves until ctx is cancelled or the
// listener fails. A cancelled ctx triggers [App.Shutdown] and Run returns nil
// once it completes.
func (a *App) Run(ctx context.Context) error {
	srv := a.cfg.Load().Server
	ln, err := net.Listen("tcp", srv.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", srv.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is [App.Run] on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	tls := a.cfg.Load().Server.TLS
	slog.Info("server listening", "addr", ln.Addr().String(), "tls", tls != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		return a.Shutdown(sctx)
	})
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown marks the server not ready, closes every open conversation and
// stops the HTTP server. It respects the context deadline. Calls after the
// first return nil.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.draining.Store(true)
		slog.Info("shutting down", "sessions", a.sessions.Count())

		var errs []error
		if err := a.sessions.CloseAll(ctx); err != nil {
			slog.Warn("conversations did not close in time", "err", err)
			errs = append(errs, err)
		}
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
		}
		shutdownErr = errors.Join(errs...)

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
