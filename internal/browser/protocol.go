package browser

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/MrWong99/lingualive/internal/transcript"
)

// Message types sent by the browser.
const (
	TypeStart             = "start"
	TypeStop              = "stop"
	TypeSpeed             = "speed"
	TypeTranslationTarget = "translation_target"
	TypeMicGranted        = "mic_granted"
	TypeMicDenied         = "mic_denied"
	TypeMicUnavailable    = "mic_unavailable"
	TypeClock             = "clock"
	TypeEnded             = "ended"
)

// Message types sent to the browser.
const (
	TypeMicRequest  = "mic_request"
	TypeMicRelease  = "mic_release"
	TypePlay        = "play"
	TypeStopSource  = "stop_source"
	TypeState       = "state"
	TypeLive        = "live"
	TypeTurn        = "turn"
	TypeTranslation = "translation"
)

// inbound is the union of every text message the browser sends. Binary
// messages carry microphone windows instead.
type inbound struct {
	Type string `json:"type"`

	// speed
	Value float64 `json:"value,omitempty"`

	// translation_target
	Language string `json:"language,omitempty"`

	// mic_granted
	SampleRate int `json:"sample_rate,omitempty"`
	Channels   int `json:"channels,omitempty"`

	// mic_denied, mic_unavailable
	Reason string `json:"reason,omitempty"`

	// clock: the AudioContext currentTime in milliseconds.
	TimeMs float64 `json:"time_ms,omitempty"`

	// ended
	ID string `json:"id,omitempty"`
}

type micRequestMessage struct {
	Type       string `json:"type"`
	WindowSize int    `json:"window_size"`
}

type playMessage struct {
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	AtMs       float64 `json:"at_ms"`
	Rate       float64 `json:"rate"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`

	// PCM is base64 little-endian int16, interleaved.
	PCM string `json:"pcm"`
}

type idMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type stateMessage struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type liveMessage struct {
	Type string `json:"type"`
	transcript.Live
}

type turnMessage struct {
	Type string          `json:"type"`
	Turn transcript.Turn `json:"turn"`
}

// decodeFloat32 parses a binary microphone window of little-endian float32
// samples.
func decodeFloat32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("browser: mic window of %d bytes is not float32 aligned", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// EncodeFloat32 is the browser-side encoding of a microphone window. It is
// exported for tests and tooling that impersonate a browser.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
