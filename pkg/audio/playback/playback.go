// Package playback schedules decoded audio buffers onto an output device so
// that they play back to back on a single, gapless timeline.
//
// The [Scheduler] owns the "next free slot" clock for one output device and
// the set of sources that are scheduled but not yet finished. Each buffer is
// assigned its playback rate when it is enqueued; later speed changes only
// affect buffers enqueued afterwards. [Scheduler.Interrupt] is the only
// operation that moves the clock backwards.
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/lingualive/pkg/audio"
)

// ErrInvalidSpeed is returned for non-positive speed multipliers.
var ErrInvalidSpeed = errors.New("playback: speed must be positive")

// Item describes one buffer placed on the timeline.
type Item struct {
	// Seq is the enqueue order, starting at 1.
	Seq uint64

	// Start is the device time at which the buffer begins.
	Start time.Duration

	// Duration is the natural length of the buffer at rate 1.0.
	Duration time.Duration

	// Rate is the speed multiplier the buffer was scheduled with.
	Rate float64
}

// End returns the device time at which the item stops producing output.
func (it Item) End() time.Duration {
	return it.Start + scaled(it.Duration, it.Rate)
}

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithSpeed sets the initial speed multiplier. Non-positive values are ignored.
func WithSpeed(v float64) Option {
	return func(s *Scheduler) {
		if v > 0 {
			s.speed = v
		}
	}
}

// Scheduler places buffers on an [audio.OutputDevice] timeline.
//
// All exported methods are safe for concurrent use. The device's onEnded
// callback must not be invoked synchronously from within Schedule.
type Scheduler struct {
	out audio.OutputDevice

	mu        sync.Mutex
	nextStart time.Duration
	speed     float64
	seq       uint64
	active    map[uint64]audio.Source
}

// New creates a Scheduler for out with speed 1.0.
func New(out audio.OutputDevice, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:    out,
		speed:  1.0,
		active: make(map[uint64]audio.Source),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue schedules buf at max(nextStart, device now) with the current speed
// and advances the clock by buf.Duration()/speed. The item is tracked as
// active until the device reports natural completion or the scheduler is
// interrupted. On a device error the clock is left untouched.
func (s *Scheduler) Enqueue(buf *audio.Buffer) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := max(s.nextStart, s.out.CurrentTime())
	rate := s.speed
	seq := s.seq + 1

	src, err := s.out.Schedule(buf, start, rate, func() { s.ended(seq) })
	if err != nil {
		return Item{}, fmt.Errorf("playback: schedule: %w", err)
	}

	s.seq = seq
	s.active[seq] = src
	it := Item{Seq: seq, Start: start, Duration: buf.Duration(), Rate: rate}
	s.nextStart = it.End()
	return it, nil
}

func (s *Scheduler) ended(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, seq)
}

// Interrupt stops every scheduled or playing source, clears the active set
// and resets the clock to zero. It returns the number of sources stopped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	sources := make([]audio.Source, 0, len(s.active))
	for _, src := range s.active {
		sources = append(sources, src)
	}
	clear(s.active)
	s.nextStart = 0
	s.mu.Unlock()

	for _, src := range sources {
		src.Stop()
	}
	return len(sources)
}

// SetSpeed changes the multiplier applied to buffers enqueued from now on.
// Already scheduled buffers keep their rate.
func (s *Scheduler) SetSpeed(v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = v
	return nil
}

// Speed returns the current multiplier.
func (s *Scheduler) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// NextStartTime returns the earliest time the next buffer may start.
func (s *Scheduler) NextStartTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Active returns the number of sources that have neither finished nor been
// interrupted.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func scaled(d time.Duration, rate float64) time.Duration {
	return time.Duration(float64(d) / rate)
}
