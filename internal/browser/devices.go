package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/lingualive/pkg/audio"
)

// ── Microphone ───────────────────────────────────────────────────────────────

// Open implements [audio.InputDevice]. It asks the browser for microphone
// access and blocks until the tab grants or denies it.
func (c *Client) Open(ctx context.Context, windowSize int) (audio.InputStream, error) {
	c.mu.Lock()
	if c.pendingMic != nil || c.mic != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("browser: %w: microphone busy", audio.ErrDeviceUnavailable)
	}
	reply := make(chan micGrant, 1)
	c.pendingMic = reply
	c.mu.Unlock()

	if err := c.writeJSON(micRequestMessage{Type: TypeMicRequest, WindowSize: windowSize}); err != nil {
		c.clearPending(reply)
		return nil, fmt.Errorf("browser: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	select {
	case g := <-reply:
		if g.err != nil {
			return nil, g.err
		}
		if g.format.SampleRate <= 0 {
			return nil, fmt.Errorf("browser: %w: invalid sample rate %d", audio.ErrDeviceUnavailable, g.format.SampleRate)
		}
		s := &micStream{client: c, format: g.format, windows: make(chan []float32, micBuffer)}
		c.mu.Lock()
		c.mic = s
		c.mu.Unlock()
		return s, nil
	case <-ctx.Done():
		c.clearPending(reply)
		return nil, ctx.Err()
	}
}

func (c *Client) clearPending(reply chan micGrant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingMic == reply {
		c.pendingMic = nil
	}
}

// resolveMic answers the outstanding permission request. Unsolicited
// answers are ignored.
func (c *Client) resolveMic(g micGrant) {
	c.mu.Lock()
	reply := c.pendingMic
	c.pendingMic = nil
	c.mu.Unlock()
	if reply == nil {
		c.logger.Debug("browser: unsolicited microphone answer")
		return
	}
	reply <- g
}

func (c *Client) handleMicWindow(data []byte) {
	c.mu.Lock()
	mic := c.mic
	c.mu.Unlock()
	if mic == nil {
		return
	}
	window, err := decodeFloat32(data)
	if err != nil {
		c.logger.Warn("browser: dropping mic window", "err", err)
		return
	}
	if !mic.push(window) {
		c.logger.Warn("browser: mic buffer full, dropping window")
	}
}

type micStream struct {
	client  *Client
	format  audio.Format
	windows chan []float32

	mu     sync.Mutex
	closed bool
}

func (s *micStream) Format() audio.Format { return s.format }

func (s *micStream) Windows() <-chan []float32 { return s.windows }

// push delivers a window without blocking the read loop.
func (s *micStream) push(w []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.windows <- w:
		return true
	default:
		return false
	}
}

// Close ends the stream and tells the browser to release the microphone.
func (s *micStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.windows)
	s.mu.Unlock()

	c := s.client
	c.mu.Lock()
	if c.mic == s {
		c.mic = nil
	}
	c.mu.Unlock()

	if c.ctx.Err() != nil {
		return nil
	}
	if err := c.writeJSON(idMessage{Type: TypeMicRelease}); err != nil {
		c.logger.Debug("browser: mic release", "err", err)
	}
	return nil
}

// ── Speaker ──────────────────────────────────────────────────────────────────

// reportClock records the browser's AudioContext time.
func (c *Client) reportClock(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clockBase = t
	c.clockAt = c.now()
}

// CurrentTime implements [audio.OutputDevice]. Between reports the browser
// clock is extrapolated from the wall clock; it never moves backwards.
func (c *Client) CurrentTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.clockBase
	if !c.clockAt.IsZero() {
		t += c.now().Sub(c.clockAt)
	}
	c.lastTime = max(c.lastTime, t)
	return c.lastTime
}

// Schedule implements [audio.OutputDevice] by sending a play command.
func (c *Client) Schedule(buf *audio.Buffer, at time.Duration, rate float64, onEnded func()) (audio.Source, error) {
	src := &source{client: c, id: uuid.NewString(), onEnded: onEnded}
	msg := playMessage{
		Type:       TypePlay,
		ID:         src.id,
		AtMs:       float64(at) / float64(time.Millisecond),
		Rate:       rate,
		SampleRate: buf.SampleRate,
		Channels:   len(buf.Channels),
		PCM:        audio.EncodeBase64(audio.EncodePCM16(buf.Interleave())),
	}

	c.mu.Lock()
	c.sources[src.id] = src
	c.mu.Unlock()

	if err := c.writeJSON(msg); err != nil {
		c.mu.Lock()
		delete(c.sources, src.id)
		c.mu.Unlock()
		return nil, err
	}
	return src, nil
}

// sourceEnded handles the browser's "ended" notification.
func (c *Client) sourceEnded(id string) {
	c.mu.Lock()
	src, ok := c.sources[id]
	delete(c.sources, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	src.finish()
}

type source struct {
	client  *Client
	id      string
	onEnded func()

	mu   sync.Mutex
	done bool
}

// Stop implements [audio.Source].
func (s *source) Stop() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	c := s.client
	c.mu.Lock()
	delete(c.sources, s.id)
	c.mu.Unlock()
	if err := c.writeJSON(idMessage{Type: TypeStopSource, ID: s.id}); err != nil {
		c.logger.Debug("browser: stop source", "id", s.id, "err", err)
	}
}

func (s *source) finish() {
	s.mu.Lock()
	fire := !s.done
	s.done = true
	s.mu.Unlock()
	if fire && s.onEnded != nil {
		s.onEnded()
	}
}
