// Package browser connects one browser tab to a conversation over a
// WebSocket.
//
// The browser owns the real microphone and speaker. A [Client] stands in for
// both on the server: it implements [audio.InputDevice] by asking the tab for
// microphone permission and receiving binary float32 windows, and
// [audio.OutputDevice] by sending "play" commands timed against the tab's
// AudioContext clock. Text messages carry controls from the tab and
// [session.Update] notifications to it.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/lingualive/internal/session"
	"github.com/MrWong99/lingualive/pkg/audio"
)

const (
	writeTimeout = 5 * time.Second
	micBuffer    = 64
)

// Controls is the part of [session.Controller] driven by browser messages.
type Controls interface {
	Start(ctx context.Context) error
	Stop()
	SetSpeed(v float64) error
	SetTranslationTarget(lang string)
}

var (
	_ audio.InputDevice  = (*Client)(nil)
	_ audio.OutputDevice = (*Client)(nil)
)

// Option configures a [Client].
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithNow overrides the wall clock used to extrapolate the browser's audio
// clock between reports.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

type micGrant struct {
	format audio.Format
	err    error
}

// Client is the server side of one browser connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	pendingMic chan micGrant
	mic        *micStream
	clockAt    time.Time
	clockBase  time.Duration
	lastTime   time.Duration
	sources    map[string]*source

	starts sync.WaitGroup
}

// NewClient wraps an accepted WebSocket connection.
func NewClient(conn *websocket.Conn, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		logger:  slog.Default(),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		sources: make(map[string]*source),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("client_id", c.id)
	return c
}

// ID returns the generated client identifier.
func (c *Client) ID() string { return c.id }

// Run reads browser messages and applies them to ctrl until the connection
// closes or ctx is cancelled. It releases the microphone before returning and
// waits for Start calls it issued.
func (c *Client) Run(ctx context.Context, ctrl Controls) error {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()
	defer c.shutdown(cancel)

	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return fmt.Errorf("browser: read: %w", err)
		}
		if typ == websocket.MessageBinary {
			c.handleMicWindow(data)
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("browser: skipping malformed message", "err", err, "bytes", len(data))
			continue
		}
		c.handleMessage(ctx, ctrl, msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, ctrl Controls, msg inbound) {
	switch msg.Type {
	case TypeStart:
		// Start waits for mic_granted, which arrives through this loop.
		c.starts.Go(func() {
			if err := ctrl.Start(ctx); err != nil {
				c.logger.Info("browser: start rejected", "err", err)
			}
		})
	case TypeStop:
		ctrl.Stop()
	case TypeSpeed:
		if err := ctrl.SetSpeed(msg.Value); err != nil {
			c.logger.Info("browser: speed rejected", "value", msg.Value, "err", err)
		}
	case TypeTranslationTarget:
		ctrl.SetTranslationTarget(msg.Language)
	case TypeMicGranted:
		c.resolveMic(micGrant{format: audio.Format{SampleRate: msg.SampleRate, Channels: max(msg.Channels, 1)}})
	case TypeMicDenied:
		c.resolveMic(micGrant{err: fmt.Errorf("browser: %w: %s", audio.ErrPermissionDenied, msg.Reason)})
	case TypeMicUnavailable:
		c.resolveMic(micGrant{err: fmt.Errorf("browser: %w: %s", audio.ErrDeviceUnavailable, msg.Reason)})
	case TypeClock:
		c.reportClock(time.Duration(msg.TimeMs * float64(time.Millisecond)))
	case TypeEnded:
		c.sourceEnded(msg.ID)
	default:
		c.logger.Debug("browser: unknown message type", "type", msg.Type)
	}
}

// shutdown fails pending requests, ends the microphone stream and waits for
// in-flight Start calls. cancel aborts the context those calls run with.
func (c *Client) shutdown(cancel context.CancelFunc) {
	cancel()
	c.cancel()

	c.mu.Lock()
	pending := c.pendingMic
	c.pendingMic = nil
	mic := c.mic
	c.mu.Unlock()

	if pending != nil {
		pending <- micGrant{err: fmt.Errorf("browser: %w: connection closed", audio.ErrDeviceUnavailable)}
	}
	if mic != nil {
		mic.Close()
	}
	c.starts.Wait()
}

// Close performs the closing handshake with the browser. Run returns once the
// browser has answered or the handshake timed out.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	return err
}

// writeJSON sends v as a text message.
func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("browser: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("browser: write: %w", err)
	}
	return nil
}

// ── Notifications ────────────────────────────────────────────────────────────

// Publish forwards a controller update to the browser. Write failures are
// logged; the read loop notices a dead connection on its own.
func (c *Client) Publish(u session.Update) {
	var msg any
	switch u.Kind {
	case session.UpdateState:
		m := stateMessage{Type: TypeState, RunID: u.RunID, State: u.State.String()}
		if u.Err != nil {
			m.Error = u.Err.Error()
		}
		msg = m
	case session.UpdateLive:
		msg = liveMessage{Type: TypeLive, Live: u.Live}
	case session.UpdateTurn:
		msg = turnMessage{Type: TypeTurn, Turn: u.Turn}
	case session.UpdateTranslation:
		msg = turnMessage{Type: TypeTranslation, Turn: u.Turn}
	default:
		return
	}
	if err := c.writeJSON(msg); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("browser: publish", "kind", u.Kind.String(), "err", err)
	}
}
