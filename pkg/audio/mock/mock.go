// Package mock provides in-memory implementations of [audio.InputDevice] and
// [audio.OutputDevice] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every call so that tests
// can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	mic := &mock.InputDevice{Format: audio.Uplink}
//	stream, _ := mic.Open(ctx, 4096)
//	mic.Push(window)      // deliver one window to the consumer
//
//	spk := &mock.OutputDevice{}
//	spk.SetTime(2 * time.Second)
//	src, _ := spk.Schedule(buf, spk.CurrentTime(), 1.0, nil)
//	spk.Finish(0)         // natural completion of the first scheduled source
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/lingualive/pkg/audio"
)

// ─── InputDevice ──────────────────────────────────────────────────────────────

// InputDevice is a mock implementation of [audio.InputDevice].
type InputDevice struct {
	mu sync.Mutex

	// Format is reported by every opened stream. Defaults to [audio.Uplink].
	Format audio.Format

	// OpenErr is returned by Open when non-nil.
	OpenErr error

	// Buffer sets the capacity of the window channel. Defaults to 64.
	Buffer int

	// OpenCalls records the windowSize argument of every Open call.
	OpenCalls []int

	streams []*InputStream
}

var _ audio.InputDevice = (*InputDevice)(nil)

// Open implements [audio.InputDevice].
func (d *InputDevice) Open(_ context.Context, windowSize int) (audio.InputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, windowSize)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	f := d.Format
	if f.SampleRate == 0 {
		f = audio.Uplink
	}
	size := d.Buffer
	if size <= 0 {
		size = 64
	}
	s := &InputStream{format: f, windows: make(chan []float32, size)}
	d.streams = append(d.streams, s)
	return s, nil
}

// Stream returns the most recently opened stream, or nil.
func (d *InputDevice) Stream() *InputStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// Push delivers window on the most recently opened stream. It reports false
// when no stream is open.
func (d *InputDevice) Push(window []float32) bool {
	s := d.Stream()
	if s == nil {
		return false
	}
	return s.Push(window)
}

// InputStream is the [audio.InputStream] handed out by [InputDevice].
type InputStream struct {
	mu      sync.Mutex
	format  audio.Format
	windows chan []float32
	closed  bool

	// CloseCalls counts calls to Close.
	CloseCalls int
}

// Format implements [audio.InputStream].
func (s *InputStream) Format() audio.Format { return s.format }

// Windows implements [audio.InputStream].
func (s *InputStream) Windows() <-chan []float32 { return s.windows }

// Close implements [audio.InputStream].
func (s *InputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	if !s.closed {
		s.closed = true
		close(s.windows)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *InputStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Push delivers one window. It reports false once the stream is closed.
func (s *InputStream) Push(window []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.windows <- window
	return true
}

// ─── OutputDevice ─────────────────────────────────────────────────────────────

// ScheduleCall records one [OutputDevice.Schedule] invocation.
type ScheduleCall struct {
	Buffer *audio.Buffer
	At     time.Duration
	Rate   float64

	source  *Source
	onEnded func()
}

// Source is the [audio.Source] handed out by [OutputDevice].
type Source struct {
	mu      sync.Mutex
	stopped bool
	ended   bool
}

// Stop implements [audio.Source].
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Stopped reports whether Stop has been called.
func (s *Source) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// OutputDevice is a mock implementation of [audio.OutputDevice] with a
// manually driven clock.
type OutputDevice struct {
	mu  sync.Mutex
	now time.Duration

	// ScheduleErr is returned by Schedule when non-nil.
	ScheduleErr error

	calls []ScheduleCall
}

var _ audio.OutputDevice = (*OutputDevice)(nil)

// CurrentTime implements [audio.OutputDevice].
func (d *OutputDevice) CurrentTime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

// SetTime moves the device clock. Moving it backwards is ignored.
func (d *OutputDevice) SetTime(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t > d.now {
		d.now = t
	}
}

// Schedule implements [audio.OutputDevice].
func (d *OutputDevice) Schedule(buf *audio.Buffer, at time.Duration, rate float64, onEnded func()) (audio.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ScheduleErr != nil {
		return nil, d.ScheduleErr
	}
	src := &Source{}
	d.calls = append(d.calls, ScheduleCall{Buffer: buf, At: at, Rate: rate, source: src, onEnded: onEnded})
	return src, nil
}

// Calls returns a copy of all Schedule invocations in order.
func (d *OutputDevice) Calls() []ScheduleCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ScheduleCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// SourceAt returns the source created by the i-th Schedule call.
func (d *OutputDevice) SourceAt(i int) *Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[i].source
}

// Finish simulates natural completion of the i-th scheduled source. Stopped
// or already finished sources are ignored.
func (d *OutputDevice) Finish(i int) {
	d.mu.Lock()
	call := d.calls[i]
	d.mu.Unlock()

	call.source.mu.Lock()
	fire := !call.source.stopped && !call.source.ended
	call.source.ended = true
	call.source.mu.Unlock()

	if fire && call.onEnded != nil {
		call.onEnded()
	}
}
