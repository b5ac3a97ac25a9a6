// Package capture turns live microphone windows into encoded uplink chunks.
//
// A [Pipeline] owns the microphone for the duration of a session: [Pipeline.Open]
// acquires it and [Pipeline.Close] releases it, on every exit path. Between
// [Pipeline.Start] and Close a single goroutine converts each fixed-size
// window to 16-bit PCM, brings it to the uplink format, base64-encodes it and
// hands it to the session, strictly in capture order.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lingualive/pkg/audio"
	"github.com/MrWong99/lingualive/pkg/provider/s2s"
)

// DefaultWindowSize is the number of samples per capture window.
const DefaultWindowSize = 4096

var (
	// ErrNotOpen is returned by Start before a successful Open.
	ErrNotOpen = errors.New("capture: microphone not open")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("capture: already started")
)

// Sender receives encoded frames. [s2s.SessionHandle] satisfies it.
type Sender interface {
	SendAudio(ctx context.Context, chunk s2s.Blob) error
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithWindowSize sets the samples per window requested from the device.
func WithWindowSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.window = n
		}
	}
}

// WithTarget sets the uplink format. Defaults to [audio.Uplink].
func WithTarget(f audio.Format) Option {
	return func(p *Pipeline) {
		if f.SampleRate > 0 && f.Channels > 0 {
			p.target = f
		}
	}
}

// WithFrameObserver registers fn to be called for every frame handed to the
// sender, after the send returned successfully.
func WithFrameObserver(fn func(audio.AudioFrame)) Option {
	return func(p *Pipeline) { p.observe = fn }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline is a single-use microphone capture path.
type Pipeline struct {
	in      audio.InputDevice
	window  int
	target  audio.Format
	observe func(audio.AudioFrame)
	logger  *slog.Logger

	mu      sync.Mutex
	stream  audio.InputStream
	conv    *audio.FormatConverter
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	frames  int64
}

// New creates a Pipeline reading from in.
func New(in audio.InputDevice, opts ...Option) *Pipeline {
	p := &Pipeline{
		in:     in,
		window: DefaultWindowSize,
		target: audio.Uplink,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.conv = &audio.FormatConverter{Target: p.target}
	return p
}

// Open requests the microphone. It blocks until the device grants or denies
// access; errors wrap [audio.ErrPermissionDenied] or [audio.ErrDeviceUnavailable].
func (p *Pipeline) Open(ctx context.Context) error {
	stream, err := p.in.Open(ctx, p.window)
	if err != nil {
		return fmt.Errorf("capture: open microphone: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		// Closed while waiting for permission: release immediately.
		stream.Close()
		return fmt.Errorf("capture: open microphone: %w", context.Canceled)
	}
	p.stream = stream
	return nil
}

// Start begins forwarding windows to sender. Windows captured between Open
// and Start are discarded.
func (p *Pipeline) Start(ctx context.Context, sender Sender) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.closed {
		return ErrNotOpen
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	windows := p.stream.Windows()
	format := p.stream.Format()
drain:
	for {
		select {
		case _, ok := <-windows:
			if !ok {
				break drain
			}
		default:
			break drain
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(runCtx, windows, format, sender)
	return nil
}

func (p *Pipeline) run(ctx context.Context, windows <-chan []float32, format audio.Format, sender Sender) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-windows:
			if !ok {
				return
			}
			frame, blob, ok := p.encode(w, format)
			if !ok {
				continue
			}
			// Close may have raced with the receive above.
			if ctx.Err() != nil {
				return
			}
			if err := sender.SendAudio(ctx, blob); err != nil {
				if errors.Is(err, s2s.ErrSessionClosed) {
					return
				}
				p.logger.Warn("capture: send frame", "err", err)
				continue
			}
			if p.observe != nil {
				p.observe(frame)
			}
		}
	}
}

// Encode converts one window of normalized samples in the given source format
// into an uplink frame and its wire encoding. ok is false for empty windows
// or windows that cannot be split into whole sample frames. Encode must not
// be called while the pipeline is started.
func (p *Pipeline) Encode(window []float32, src audio.Format) (frame audio.AudioFrame, blob s2s.Blob, ok bool) {
	return p.encode(window, src)
}

func (p *Pipeline) encode(window []float32, src audio.Format) (audio.AudioFrame, s2s.Blob, bool) {
	if len(window) == 0 {
		return audio.AudioFrame{}, s2s.Blob{}, false
	}
	channels := max(src.Channels, 1)
	ts := time.Duration(0)
	if src.SampleRate > 0 {
		ts = time.Duration(p.frames) * time.Second / time.Duration(src.SampleRate)
	}
	raw := audio.AudioFrame{
		Data:       audio.EncodePCM16(window),
		SampleRate: src.SampleRate,
		Channels:   channels,
		Timestamp:  ts,
	}
	frame := p.conv.Convert(raw)
	if len(frame.Data) == 0 {
		return audio.AudioFrame{}, s2s.Blob{}, false
	}
	p.frames += int64(len(window) / channels)
	return frame, s2s.Blob{Data: audio.EncodeBase64(frame.Data), MIMEType: p.target.MIMEType()}, true
}

// Close stops forwarding, releases the microphone and waits for the forwarding
// goroutine to exit. No frame is sent after Close returns. Idempotent.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	stream := p.stream
	started := p.started
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.Close()
	}
	if started {
		<-p.done
	}
	if err != nil {
		return fmt.Errorf("capture: release microphone: %w", err)
	}
	return nil
}
