package app

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lingualive/internal/browser"
	"github.com/MrWong99/lingualive/internal/config"
	"github.com/MrWong99/lingualive/internal/observe"
	"github.com/MrWong99/lingualive/internal/session"
	"github.com/MrWong99/lingualive/internal/transcript"
	"github.com/MrWong99/lingualive/internal/translate"
	"github.com/MrWong99/lingualive/pkg/types"
)

// maxBody bounds JSON request bodies.
const maxBody = 64 << 10

// ─── Conversation ────────────────────────────────────────────────────────────

// serveConversation upgrades to a WebSocket and runs one conversation until
// the browser disconnects. Query parameters target and native override the
// configured languages.
func (a *App) serveConversation(w http.ResponseWriter, r *http.Request) {
	logger := observe.Logger(r.Context())
	if a.providers.S2S == nil {
		writeError(w, http.StatusServiceUnavailable, "providers.s2s is not configured")
		return
	}
	if a.draining.Load() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	conv := a.cfg.Load().Conversation
	q := r.URL.Query()
	target := cmp.Or(strings.TrimSpace(q.Get("target")), conv.TargetLanguage)
	native := cmp.Or(strings.TrimSpace(q.Get("native")), conv.NativeLanguage)

	conn, err := websocket.Accept(w, r, a.acceptOpts)
	if err != nil {
		// Accept has already written the HTTP error.
		logger.Warn("conversation upgrade failed", "err", err)
		return
	}
	client := browser.NewClient(conn, browser.WithLogger(logger))
	logger = logger.With("client_id", client.ID())

	ctrl, err := session.New(a.sessionConfig(conv, target, native, client))
	if err != nil {
		logger.Error("conversation setup failed", "err", err)
		conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}

	if err := a.sessions.add(&conversation{
		info: SessionInfo{
			ClientID:       client.ID(),
			TargetLanguage: target,
			NativeLanguage: native,
			ConnectedAt:    time.Now().UTC(),
		},
		state: func() string { return ctrl.State().String() },
		close: client.Close,
	}); err != nil {
		ctrl.Close()
		conn.Close(websocket.StatusTryAgainLater, err.Error())
		return
	}
	defer func() {
		ctrl.Close()
		a.sessions.remove(client.ID())
	}()

	logger.Info("conversation connected", "target", target, "native", native)
	if err := client.Run(r.Context(), ctrl); err != nil {
		logger.Info("conversation connection lost", "err", err)
	}
	logger.Info("conversation disconnected")
}

// sessionConfig builds the controller config for one browser connection.
func (a *App) sessionConfig(conv config.ConversationConfig, target, native string, client *browser.Client) session.Config {
	// Validated by config.Validate.
	policy, _ := transcript.ParseResetPolicy(string(conv.TranscriptPolicy))

	var voice types.VoiceProfile
	if conv.Voice.ID != "" {
		voice = types.VoiceProfile{ID: conv.Voice.ID, Name: conv.Voice.ID, Provider: conv.Voice.Provider}
	}

	var tr session.Translator = unavailableTranslator{}
	if t := a.translator.Load(); t != nil {
		tr = t
	}

	return session.Config{
		Provider:       a.providers.S2S,
		Input:          client,
		Output:         client,
		Translator:     tr,
		TargetLanguage: target,
		NativeLanguage: native,
		Persona: session.Persona{
			Name:  conv.Persona.Name,
			Role:  conv.Persona.Role,
			Level: conv.Persona.Level,
		},
		Voice:       voice,
		FrameSize:   conv.FrameSize,
		HistorySize: conv.HistorySize,
		Policy:      policy,
		Speed:       conv.SpeedFactor,
		OnUpdate:    client.Publish,
		Metrics:     a.metrics,
	}
}

// unavailableTranslator marks every turn's translation as failed when no LLM
// is configured.
type unavailableTranslator struct{}

func (unavailableTranslator) Translate(context.Context, string, string, string) (string, error) {
	return "", fmt.Errorf("%w: no llm provider configured", translate.ErrTranslation)
}

func (a *App) serveSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sessions.List())
}

// ─── Text API ────────────────────────────────────────────────────────────────

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

func (a *App) serveTranslate(w http.ResponseWriter, r *http.Request) {
	t := a.translator.Load()
	if t == nil {
		writeError(w, http.StatusServiceUnavailable, "providers.llm is not configured")
		return
	}
	var req translateRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	conv := a.cfg.Load().Conversation
	source := cmp.Or(req.Source, conv.TargetLanguage)
	target := cmp.Or(req.Target, conv.NativeLanguage)

	out, err := t.Translate(r.Context(), req.Text, source, target)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{Translation: out})
}

type grammarRequest struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

func (a *App) serveGrammar(w http.ResponseWriter, r *http.Request) {
	if a.content == nil {
		writeError(w, http.StatusServiceUnavailable, "providers.llm is not configured")
		return
	}
	var req grammarRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	language := cmp.Or(strings.TrimSpace(req.Language), a.cfg.Load().Conversation.TargetLanguage)

	note, err := a.content.Grammar(r.Context(), req.Topic, language)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

type workoutRequest struct {
	Language string `json:"language"`
	Level    string `json:"level"`
}

func (a *App) serveWorkout(w http.ResponseWriter, r *http.Request) {
	if a.content == nil {
		writeError(w, http.StatusServiceUnavailable, "providers.llm is not configured")
		return
	}
	var req workoutRequest
	if !readJSON(w, r, &req) {
		return
	}
	language := cmp.Or(strings.TrimSpace(req.Language), a.cfg.Load().Conversation.TargetLanguage)

	workout, err := a.content.Workout(r.Context(), language, req.Level)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

// writeUpstreamError reports a failed model request: 504 when it timed out,
// 502 otherwise.
func writeUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error())
}

// ─── JSON helpers ────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

// readJSON decodes the request body into dst. On failure it writes a 400 and
// returns false.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
