package audio

import "time"

// AudioFrame is one outbound chunk of 16-bit PCM produced by the capture path.
// Frames are immutable once produced and always carry at least one sample.
type AudioFrame struct {
	// Data is little-endian int16 PCM, interleaved when Channels > 1.
	Data []byte

	// SampleRate in Hz (16000 for the live session uplink).
	SampleRate int

	// Channels is 1 for every frame the capture pipeline emits.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format returns the frame's sample rate and channel count.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// Samples returns the number of int16 samples across all channels.
func (f AudioFrame) Samples() int {
	return len(f.Data) / 2
}

// Buffer is a decoded, playable audio buffer. Channels holds one slice of
// normalized samples per channel; every channel has the same length.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration is the natural playback length of the buffer at rate 1.0.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Interleave returns the buffer's samples interleaved across channels.
func (b *Buffer) Interleave() []float32 {
	frames := b.Frames()
	nch := len(b.Channels)
	out := make([]float32, frames*nch)
	for i := range frames {
		for ch := range nch {
			out[i*nch+ch] = b.Channels[ch][i]
		}
	}
	return out
}
