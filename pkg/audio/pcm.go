package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"mime"
	"strconv"
	"strings"
)

// PCMMIMEType is the media type of raw 16-bit little-endian PCM.
const PCMMIMEType = "audio/pcm"

// ErrMalformed is returned when a PCM byte stream cannot be split evenly into
// sample frames.
var ErrMalformed = errors.New("audio: malformed pcm payload")

// DecodePCM16 interprets data as interleaved signed 16-bit little-endian
// samples and returns one normalized channel slice per channel. Each sample is
// divided by 32768, so the output lies in [-1.0, 1.0). sampleRate is carried
// as metadata only; no resampling is applied.
func DecodePCM16(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrMalformed, channels)
	}
	if len(data)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrMalformed, len(data), channels)
	}
	frames := len(data) / 2 / channels
	buf := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for ch := range channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := range frames {
		for ch := range channels {
			off := (i*channels + ch) * 2
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Channels[ch][i] = float32(s) / 32768
		}
	}
	return buf, nil
}

// EncodePCM16 converts normalized float samples to little-endian int16 PCM
// using round(s*32768), clamped to the int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// MIMEType returns the media type for PCM in this format, e.g.
// "audio/pcm;rate=16000".
func (f Format) MIMEType() string {
	return PCMMIMEType + ";rate=" + strconv.Itoa(f.SampleRate)
}

// ParseMIMEType extracts the sample rate and channel count from a PCM media
// type such as "audio/pcm;rate=24000". Missing parameters fall back to def.
// Non-PCM media types are rejected.
func ParseMIMEType(mimeType string, def Format) (Format, error) {
	if mimeType == "" {
		return def, nil
	}
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return Format{}, fmt.Errorf("audio: parse mime type %q: %w", mimeType, err)
	}
	if !strings.EqualFold(mediaType, PCMMIMEType) && !strings.EqualFold(mediaType, "audio/l16") {
		return Format{}, fmt.Errorf("audio: unsupported mime type %q", mediaType)
	}
	f := def
	if v, ok := params["rate"]; ok {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			return Format{}, fmt.Errorf("audio: invalid rate %q in mime type", v)
		}
		f.SampleRate = rate
	}
	if v, ok := params["channels"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Format{}, fmt.Errorf("audio: invalid channels %q in mime type", v)
		}
		f.Channels = n
	}
	return f, nil
}
