// Package audio holds the audio primitives of a conversation: the Base64
// wire codec, 16-bit PCM framing and decoding, format conversion, and the
// microphone and speaker contracts a UI implements.
//
// Implementations of [InputDevice] and [OutputDevice] live outside this
// package (the browser transport in production, audio/mock in tests).
package audio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied is returned by [InputDevice.Open] when the user
	// refuses microphone access.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceUnavailable is returned when no usable device exists or the
	// device went away.
	ErrDeviceUnavailable = errors.New("audio: device unavailable")
)

// InputDevice is the microphone side of a UI. Opening the device requests
// permission and acquires it exclusively until the returned stream is closed.
type InputDevice interface {
	// Open blocks until permission is granted or denied. windowSize is the
	// number of samples per channel delivered in each window. Errors wrap
	// [ErrPermissionDenied] or [ErrDeviceUnavailable].
	Open(ctx context.Context, windowSize int) (InputStream, error)
}

// InputStream delivers fixed-size windows of normalized float samples in
// capture order.
type InputStream interface {
	// Format reports the native rate and channel count of the windows.
	Format() Format

	// Windows returns a channel of sample windows, interleaved when the
	// format has more than one channel. The channel is closed when the stream
	// ends or is closed.
	Windows() <-chan []float32

	// Close releases the microphone. It is idempotent.
	Close() error
}

// OutputDevice is the speaker side of a UI. It exposes a monotonic device
// clock and lets callers schedule buffers against it.
type OutputDevice interface {
	// CurrentTime returns the device clock. It never decreases.
	CurrentTime() time.Duration

	// Schedule starts buf at device time at, played at rate (1.0 = natural
	// speed). onEnded is invoked once when the source finishes naturally; it
	// is not invoked for sources stopped through [Source.Stop].
	Schedule(buf *Buffer, at time.Duration, rate float64, onEnded func()) (Source, error)
}

// Source is one scheduled buffer on an [OutputDevice].
type Source interface {
	// Stop silences the source immediately, whether it is playing or still
	// waiting for its start time. It is idempotent.
	Stop()
}
