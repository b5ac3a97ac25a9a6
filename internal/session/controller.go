// Package session owns the lifecycle of a real-time voice conversation.
//
// A [Controller] belongs to one UI instance. It acquires the microphone,
// opens the duplex session, routes every inbound event in arrival order to
// the playback scheduler and the transcript segmenter, and reports state
// changes, live transcripts, committed turns and their translations through
// a single OnUpdate callback.
//
// Lifecycle:
//
//	Idle ──Start──▶ Connecting ──opened──▶ Active ──remote end──▶ Closed
//	  ▲                 │                     │                      │
//	  └──── failure ────┘                     └──────── Stop ────────┴──▶ Idle
//
// Connection failures are never retried; the UI must call Start again.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/lingualive/internal/observe"
	"github.com/MrWong99/lingualive/internal/transcript"
	"github.com/MrWong99/lingualive/pkg/audio"
	"github.com/MrWong99/lingualive/pkg/audio/capture"
	"github.com/MrWong99/lingualive/pkg/audio/playback"
	"github.com/MrWong99/lingualive/pkg/provider/s2s"
	"github.com/MrWong99/lingualive/pkg/types"
)

// Speed limits accepted by [Controller.SetSpeed].
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// DefaultConnectTimeout bounds the wait for the remote session to open.
const DefaultConnectTimeout = 15 * time.Second

// Translator translates one committed turn. [translate.Translator]
// satisfies it.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Config configures a [Controller]. Provider, Input, Output and Translator
// are required.
type Config struct {
	Provider   s2s.Provider
	Input      audio.InputDevice
	Output     audio.OutputDevice
	Translator Translator

	// TargetLanguage is the language being practised.
	TargetLanguage string

	// NativeLanguage is the learner's first language. Turns are translated
	// into it unless [Controller.SetTranslationTarget] says otherwise.
	NativeLanguage string

	// Persona defaults to [DefaultPersona].
	Persona Persona

	// Voice defaults to [DefaultVoice].
	Voice types.VoiceProfile

	// FrameSize is the number of capture samples per uplink frame.
	// Defaults to [capture.DefaultWindowSize].
	FrameSize int

	// HistorySize bounds the committed turn history. Defaults to
	// [transcript.DefaultHistorySize].
	HistorySize int

	// Policy selects how a delta from one speaker affects the other
	// speaker's buffer.
	Policy transcript.ResetPolicy

	// Speed is the initial playback speed. Defaults to 1.0.
	Speed float64

	// ConnectTimeout defaults to [DefaultConnectTimeout].
	ConnectTimeout time.Duration

	// OnUpdate receives every notification in the order the controller
	// produced it. It must not call back into the Controller.
	OnUpdate func(Update)

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// run holds the resources of one Start..Stop span.
type run struct {
	id      string
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	capture *capture.Pipeline
	handle  s2s.SessionHandle
}

// Controller drives one conversation at a time for a single UI.
//
// All exported methods are safe for concurrent use.
type Controller struct {
	provider   s2s.Provider
	input      audio.InputDevice
	translator Translator
	sessionCfg s2s.SessionConfig
	caps       s2s.Capabilities
	frameSize  int
	timeout    time.Duration
	onUpdate   func(Update)
	metrics    *observe.Metrics
	logger     *slog.Logger

	sched *playback.Scheduler
	seg   *transcript.Segmenter
	hist  *transcript.History

	// notifyMu serialises OnUpdate calls. It is acquired while mu is held so
	// that notifications leave in the order the state changed.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	run         *run
	gen         uint64
	target      string
	native      string
	learning    string
	closed      bool
	translating sync.WaitGroup
}

// New creates an idle Controller.
func New(cfg Config) (*Controller, error) {
	var errs []error
	if cfg.Provider == nil {
		errs = append(errs, errors.New("provider is required"))
	}
	if cfg.Input == nil {
		errs = append(errs, errors.New("input device is required"))
	}
	if cfg.Output == nil {
		errs = append(errs, errors.New("output device is required"))
	}
	if cfg.Translator == nil {
		errs = append(errs, errors.New("translator is required"))
	}
	if cfg.TargetLanguage == "" {
		errs = append(errs, errors.New("target language is required"))
	}
	if cfg.NativeLanguage == "" {
		errs = append(errs, errors.New("native language is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("session: new controller: %w", err)
	}

	speed := cfg.Speed
	if speed == 0 {
		speed = 1.0
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return nil, fmt.Errorf("session: new controller: %w: %v", ErrInvalidSpeed, speed)
	}

	voice := cfg.Voice
	if voice.ID == "" {
		voice = DefaultVoice
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = capture.DefaultWindowSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	caps := cfg.Provider.Capabilities()
	if caps.InputFormat.SampleRate == 0 {
		caps.InputFormat = audio.Uplink
	}
	if caps.OutputFormat.SampleRate == 0 {
		caps.OutputFormat = audio.Downlink
	}

	return &Controller{
		provider:   cfg.Provider,
		input:      cfg.Input,
		translator: cfg.Translator,
		sessionCfg: s2s.SessionConfig{
			Voice:               voice,
			Instructions:        cfg.Persona.Instructions(cfg.TargetLanguage, cfg.NativeLanguage),
			InputTranscription:  true,
			OutputTranscription: true,
		},
		caps:      caps,
		frameSize: frameSize,
		timeout:   timeout,
		onUpdate:  cfg.OnUpdate,
		metrics:   metrics,
		logger:    logger,
		sched:     playback.New(cfg.Output, playback.WithSpeed(speed)),
		seg:       transcript.NewSegmenter(cfg.Policy),
		hist:      transcript.NewHistory(cfg.HistorySize),
		learning:  cfg.TargetLanguage,
		native:    cfg.NativeLanguage,
		target:    cfg.NativeLanguage,
	}, nil
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

// Start opens a new session. It is accepted from Idle and Closed and returns
// [ErrAlreadyActive] otherwise. Start blocks until the session is Active or
// has failed; on failure the controller is back in Idle and the error wraps
// [ErrPermission], [ErrConnection] or [ErrStopped].
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state == Connecting || c.state == Active {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.gen++
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		id:     uuid.NewString(),
		gen:    c.gen,
		ctx:    runCtx,
		cancel: cancel,
		capture: capture.New(c.input,
			capture.WithWindowSize(c.frameSize),
			capture.WithTarget(c.caps.InputFormat),
			capture.WithFrameObserver(func(audio.AudioFrame) { c.metrics.FramesSent.Add(runCtx, 1) }),
			capture.WithLogger(c.logger),
		),
	}
	c.run = r
	c.seg.Reset()
	c.state = Connecting
	c.publishLocked(Update{Kind: UpdateState, RunID: r.id, State: Connecting})

	log := c.logger.With("run_id", r.id)

	// Stop cancels runCtx; the connect phase additionally honours ctx and
	// the connect timeout.
	connectCtx, stopConnect := context.WithTimeout(ctx, c.timeout)
	defer stopConnect()
	defer context.AfterFunc(runCtx, stopConnect)()

	if err := r.capture.Open(connectCtx); err != nil {
		outcome := "permission_denied"
		if !errors.Is(err, audio.ErrPermissionDenied) {
			outcome = "device_unavailable"
		}
		return c.failStart(ctx, r, outcome, fmt.Errorf("session: start: %w: %w", ErrPermission, err))
	}

	handle, err := c.provider.Connect(connectCtx, c.sessionCfg)
	if err != nil {
		return c.failStart(ctx, r, "connection_failed", fmt.Errorf("session: start: %w: %w", ErrConnection, err))
	}
	c.mu.Lock()
	r.handle = handle
	c.mu.Unlock()

	if err := awaitOpened(connectCtx, handle); err != nil {
		return c.failStart(ctx, r, "connection_failed", fmt.Errorf("session: start: %w: %w", ErrConnection, err))
	}

	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		c.teardown(r)
		return fmt.Errorf("session: start: %w", ErrStopped)
	}
	if err := r.capture.Start(runCtx, handle); err != nil {
		c.mu.Unlock()
		return c.failStart(ctx, r, "device_unavailable", fmt.Errorf("session: start: %w: %w", ErrPermission, err))
	}
	c.state = Active
	go c.loop(r)
	c.metrics.RecordSessionStart(ctx, "active")
	log.Info("session active",
		"target", c.learning,
		"native", c.native,
		"voice", c.sessionCfg.Voice.ID,
		"input_format", c.caps.InputFormat.String(),
	)
	c.publishLocked(Update{Kind: UpdateState, RunID: r.id, State: Active})
	return nil
}

// awaitOpened waits for [s2s.EventOpened]. An error or the end of the stream
// fails the connect; other events are ignored until then.
func awaitOpened(ctx context.Context, handle s2s.SessionHandle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-handle.Events():
			if !ok {
				return closedBeforeOpen(handle, nil)
			}
			switch ev.Type {
			case s2s.EventOpened:
				return nil
			case s2s.EventError:
				return closedBeforeOpen(handle, ev.Err)
			case s2s.EventClosed:
				return closedBeforeOpen(handle, nil)
			}
		}
	}
}

func closedBeforeOpen(handle s2s.SessionHandle, cause error) error {
	if err := withHandleErr(cause, handle); err != nil {
		return err
	}
	return errors.New("closed before open")
}

// withHandleErr joins cause with the handle's terminal error unless they are
// the same error.
func withHandleErr(cause error, handle s2s.SessionHandle) error {
	herr := handle.Err()
	switch {
	case cause == nil:
		return herr
	case herr == nil, errors.Is(herr, cause):
		return cause
	}
	return errors.Join(cause, herr)
}

// failStart tears r down and, if it is still the current run, returns the
// controller to Idle.
func (c *Controller) failStart(ctx context.Context, r *run, outcome string, err error) error {
	c.teardown(r)

	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		return fmt.Errorf("session: start: %w", ErrStopped)
	}
	c.run = nil
	c.state = Idle
	c.metrics.RecordSessionStart(ctx, outcome)
	c.logger.Warn("session start failed", "run_id", r.id, "outcome", outcome, "err", err)
	c.publishLocked(Update{Kind: UpdateState, RunID: r.id, State: Idle, Err: err})
	return err
}

// Stop ends the current session, releases the microphone, silences playback
// and clears the live transcript. It is a no-op while Idle. No capture frame
// is sent after Stop returns. Translations still in flight are discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	r := c.run
	prev := c.state
	c.run = nil
	c.gen++
	c.state = Idle
	c.seg.Reset()
	if r != nil {
		c.teardown(r)
	}
	c.sched.Interrupt()
	if prev == Active {
		c.metrics.RecordSessionEnd(context.Background())
	}
	id := ""
	if r != nil {
		id = r.id
		c.logger.Info("session stopped", "run_id", id, "from", prev.String())
	}
	c.publishLocked(
		Update{Kind: UpdateLive, RunID: id},
		Update{Kind: UpdateState, RunID: id, State: Idle},
	)
}

// Close stops the controller for good and waits for in-flight translations
// to return. Start fails with [ErrControllerClosed] afterwards.
func (c *Controller) Close() error {
	c.Stop()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.translating.Wait()
	return nil
}

// teardown releases the resources of r. It is safe to call more than once
// and while c.mu is held.
func (c *Controller) teardown(r *run) {
	r.cancel()
	if err := r.capture.Close(); err != nil {
		c.logger.Warn("release microphone", "run_id", r.id, "err", err)
	}
	if r.handle != nil {
		if err := r.handle.Close(); err != nil {
			c.logger.Warn("close session", "run_id", r.id, "err", err)
		}
	}
}

// end moves the controller to Closed after the remote side ended r.
func (c *Controller) end(r *run, cause error) {
	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		return
	}
	c.run = nil
	c.state = Closed
	c.teardown(r)
	c.sched.Interrupt()
	c.metrics.RecordSessionEnd(r.ctx)

	var err error
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConnection, cause)
		c.logger.Warn("session ended", "run_id", r.id, "err", cause)
	} else {
		c.logger.Info("session ended by remote", "run_id", r.id)
	}
	c.publishLocked(Update{Kind: UpdateState, RunID: r.id, State: Closed, Err: err})
}

// publishLocked hands us to OnUpdate in order. c.mu must be held; it is
// released before OnUpdate runs.
func (c *Controller) publishLocked(us ...Update) {
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	if c.onUpdate == nil {
		return
	}
	for _, u := range us {
		c.onUpdate(u)
	}
}

// ── Event routing ────────────────────────────────────────────────────────────

// loop is the single consumer of r's events. A provider error ends the run
// even when the transport stays open.
func (c *Controller) loop(r *run) {
	for ev := range r.handle.Events() {
		switch ev.Type {
		case s2s.EventError:
			c.end(r, withHandleErr(ev.Err, r.handle))
			return
		case s2s.EventClosed:
			c.end(r, r.handle.Err())
			return
		}

		c.mu.Lock()
		if c.run != r {
			c.mu.Unlock()
			continue
		}
		updates := c.handleLocked(r, ev)
		if len(updates) == 0 {
			c.mu.Unlock()
			continue
		}
		c.publishLocked(updates...)
	}
	c.end(r, r.handle.Err())
}

// handleLocked applies one event. c.mu must be held.
func (c *Controller) handleLocked(r *run, ev s2s.Event) []Update {
	switch ev.Type {
	case s2s.EventAudio:
		c.playLocked(r, ev.Audio)

	case s2s.EventInputTranscript:
		c.seg.OnDelta(types.SpeakerUser, ev.Text)
		return []Update{{Kind: UpdateLive, RunID: r.id, Live: c.seg.Live()}}

	case s2s.EventOutputTranscript:
		c.seg.OnDelta(types.SpeakerAI, ev.Text)
		return []Update{{Kind: UpdateLive, RunID: r.id, Live: c.seg.Live()}}

	case s2s.EventTurnComplete:
		return c.commitLocked(r)

	case s2s.EventInterrupted:
		stopped := c.sched.Interrupt()
		c.seg.OnInterrupted()
		c.metrics.Interruptions.Add(r.ctx, 1)
		c.logger.Debug("playback interrupted", "run_id", r.id, "sources", stopped)

	case s2s.EventOpened:
	}
	return nil
}

// playLocked decodes one inbound chunk and schedules it. Bad chunks are
// dropped and the session continues.
func (c *Controller) playLocked(r *run, blob s2s.Blob) {
	c.metrics.ChunksReceived.Add(r.ctx, 1)

	format, err := audio.ParseMIMEType(blob.MIMEType, c.caps.OutputFormat)
	if err != nil {
		c.drop(r, "malformed", err)
		return
	}
	raw, err := audio.DecodeBase64(blob.Data)
	if err != nil {
		c.drop(r, "decode", err)
		return
	}
	buf, err := audio.DecodePCM16(raw, format.SampleRate, format.Channels)
	if err != nil {
		c.drop(r, "malformed", err)
		return
	}
	if buf.Frames() == 0 {
		return
	}
	if _, err := c.sched.Enqueue(buf); err != nil {
		c.drop(r, "schedule", err)
	}
}

func (c *Controller) drop(r *run, reason string, err error) {
	c.metrics.RecordChunkDropped(r.ctx, reason)
	c.logger.Warn("dropped audio chunk", "run_id", r.id, "reason", reason, "err", err)
}

// commitLocked moves finished utterances into history and requests their
// translations.
func (c *Controller) commitLocked(r *run) []Update {
	utts := c.seg.OnTurnComplete()
	if len(utts) == 0 {
		return nil
	}
	updates := make([]Update, 0, len(utts)+1)
	for _, u := range utts {
		turn := c.hist.Append(u.Speaker, u.Text)
		c.metrics.RecordTurn(r.ctx, u.Speaker.String())
		updates = append(updates, Update{Kind: UpdateTurn, RunID: r.id, Turn: turn})

		c.translating.Add(1)
		go c.translate(r, turn, c.learning, c.target)
	}
	updates = append(updates, Update{Kind: UpdateLive, RunID: r.id, Live: c.seg.Live()})
	return updates
}

// translate resolves turn in history unless the controller has moved on to
// another run since r.
func (c *Controller) translate(r *run, turn transcript.Turn, source, target string) {
	defer c.translating.Done()

	ctx := context.WithoutCancel(r.ctx)
	text, err := c.translator.Translate(ctx, turn.Original, source, target)

	c.mu.Lock()
	if c.gen != r.gen {
		c.mu.Unlock()
		c.logger.Debug("discarded stale translation", "run_id", r.id, "seq", turn.Seq)
		return
	}
	resolved, ok := c.hist.Resolve(turn.Seq, text, err)
	if !ok {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.logger.Warn("translation failed", "run_id", r.id, "seq", turn.Seq, "err", err)
	}
	c.publishLocked(Update{Kind: UpdateTranslation, RunID: r.id, Turn: resolved})
}

// ── Controls and accessors ───────────────────────────────────────────────────

// SetSpeed changes the playback speed for audio received from now on.
func (c *Controller) SetSpeed(v float64) error {
	if v < MinSpeed || v > MaxSpeed {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, v)
	}
	return c.sched.SetSpeed(v)
}

// Speed returns the current playback speed.
func (c *Controller) Speed() float64 {
	return c.sched.Speed()
}

// SetTranslationTarget changes the language later turns are translated into.
// An empty lang restores the native language.
func (c *Controller) SetTranslationTarget(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lang == "" {
		lang = c.native
	}
	c.target = lang
}

// TranslationTarget returns the language turns are translated into.
func (c *Controller) TranslationTarget() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Live returns the in-progress transcript buffers.
func (c *Controller) Live() transcript.Live {
	return c.seg.Live()
}

// History returns the committed turns, oldest first. The most recent turn is
// the last element; UIs that show newest on top must reverse it.
func (c *Controller) History() []transcript.Turn {
	return c.hist.Snapshot()
}
