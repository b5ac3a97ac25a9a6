package capture_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/lingualive/pkg/audio"
	"github.com/MrWong99/lingualive/pkg/audio/capture"
	"github.com/MrWong99/lingualive/pkg/audio/mock"
	"github.com/MrWong99/lingualive/pkg/provider/s2s"
	s2smock "github.com/MrWong99/lingualive/pkg/provider/s2s/mock"
)

func constWindow(n int, v float32) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = v
	}
	return w
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEncode_HalfScaleEcho(t *testing.T) {
	t.Parallel()
	p := capture.New(&mock.InputDevice{})

	frame, blob, ok := p.Encode(constWindow(4096, 0.5), audio.Uplink)
	if !ok {
		t.Fatal("Encode rejected a full window")
	}
	if frame.Samples() != 4096 || frame.SampleRate != 16000 || frame.Channels != 1 {
		t.Fatalf("frame = %d samples %v", frame.Samples(), frame.Format())
	}
	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("MIMEType = %q", blob.MIMEType)
	}

	// Echo the payload back through the inbound decode path.
	raw, err := audio.DecodeBase64(blob.Data)
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	buf, err := audio.DecodePCM16(raw, 16000, 1)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if buf.Frames() != 4096 {
		t.Fatalf("Frames() = %d, want 4096", buf.Frames())
	}
	for i, s := range buf.Channels[0] {
		if math.Abs(float64(s)-0.5) > 1.0/32768 {
			t.Fatalf("sample %d = %v, want ≈0.5", i, s)
		}
	}
}

func TestEncode_ConvertsBrowserFormat(t *testing.T) {
	t.Parallel()
	p := capture.New(&mock.InputDevice{})
	frame, _, ok := p.Encode(constWindow(4096, 0.25), audio.Format{SampleRate: 48000, Channels: 1})
	if !ok {
		t.Fatal("Encode rejected window")
	}
	if frame.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", frame.SampleRate)
	}
	if want := 4096 / 3; frame.Samples() != want {
		t.Errorf("Samples() = %d, want %d", frame.Samples(), want)
	}
}

func TestEncode_Empty(t *testing.T) {
	t.Parallel()
	p := capture.New(&mock.InputDevice{})
	if _, _, ok := p.Encode(nil, audio.Uplink); ok {
		t.Error("empty window should be rejected")
	}
}

func TestOpen_PermissionDenied(t *testing.T) {
	t.Parallel()
	mic := &mock.InputDevice{OpenErr: audio.ErrPermissionDenied}
	p := capture.New(mic)
	err := p.Open(context.Background())
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if err := p.Start(context.Background(), s2smock.NewSession()); !errors.Is(err, capture.ErrNotOpen) {
		t.Errorf("Start after failed Open err = %v, want ErrNotOpen", err)
	}
}

func TestOpen_RequestsWindowSize(t *testing.T) {
	t.Parallel()
	mic := &mock.InputDevice{}
	p := capture.New(mic, capture.WithWindowSize(2048))
	if err := p.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if len(mic.OpenCalls) != 1 || mic.OpenCalls[0] != 2048 {
		t.Errorf("OpenCalls = %v, want [2048]", mic.OpenCalls)
	}
}

func TestStart_SendsInOrder(t *testing.T) {
	t.Parallel()
	mic := &mock.InputDevice{}
	sess := s2smock.NewSession()

	var mu sync.Mutex
	var observed []time.Duration
	p := capture.New(mic, capture.WithFrameObserver(func(f audio.AudioFrame) {
		mu.Lock()
		observed = append(observed, f.Timestamp)
		mu.Unlock()
	}))
	if err := p.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// Captured before the session is active: dropped.
	mic.Push(constWindow(4096, 0.9))

	if err := p.Start(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(context.Background(), sess); !errors.Is(err, capture.ErrAlreadyStarted) {
		t.Errorf("second Start err = %v, want ErrAlreadyStarted", err)
	}

	levels := []float32{0.1, 0.2, 0.3, 0.4}
	for _, v := range levels {
		mic.Push(constWindow(4096, v))
	}
	waitFor(t, func() bool { return len(sess.Sent()) == len(levels) })

	for i, blob := range sess.Sent() {
		raw, err := audio.DecodeBase64(blob.Data)
		if err != nil {
			t.Fatal(err)
		}
		buf, err := audio.DecodePCM16(raw, 16000, 1)
		if err != nil {
			t.Fatal(err)
		}
		if d := math.Abs(float64(buf.Channels[0][0] - levels[i])); d > 1.0/32768 {
			t.Errorf("frame %d level = %v, want %v", i, buf.Channels[0][0], levels[i])
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(observed); i++ {
		if observed[i] <= observed[i-1] {
			t.Errorf("timestamps not increasing: %v", observed)
		}
	}
}

func TestClose_NoFramesAfterClose(t *testing.T) {
	t.Parallel()
	mic := &mock.InputDevice{}
	sess := s2smock.NewSession()
	p := capture.New(mic)
	if err := p.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	mic.Push(constWindow(4096, 0.5))
	waitFor(t, func() bool { return len(sess.Sent()) == 1 })

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !mic.Stream().Closed() {
		t.Error("microphone not released")
	}
	if mic.Push(constWindow(4096, 0.5)) {
		t.Error("stream accepted a window after release")
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(sess.Sent()); n != 1 {
		t.Errorf("sent %d frames, want 1", n)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRun_StopsWhenSessionClosed(t *testing.T) {
	t.Parallel()
	mic := &mock.InputDevice{}
	sess := s2smock.NewSession()
	p := capture.New(mic)
	if err := p.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := p.Start(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	sess.Close()
	mic.Push(constWindow(16, 0.5))
	// Close must not hang once the forwarder has exited on its own.
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close hung")
	}
	if len(sess.Sent()) != 0 {
		t.Error("frames sent to a closed session")
	}
}

func TestSendErrorIsNotFatal(t *testing.T) {
	t.Parallel()
	mic := &mock.InputDevice{}
	sess := s2smock.NewSession()
	sess.SendAudioErr = errors.New("transient")
	var sent int
	var mu sync.Mutex
	p := capture.New(mic, capture.WithFrameObserver(func(audio.AudioFrame) {
		mu.Lock()
		sent++
		mu.Unlock()
	}))
	if err := p.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := p.Start(context.Background(), sessionFunc(func(ctx context.Context, b s2s.Blob) error {
		return sess.SendAudio(ctx, b)
	})); err != nil {
		t.Fatal(err)
	}
	mic.Push(constWindow(16, 0.5))
	mic.Push(constWindow(16, 0.5))
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if sent != 0 {
		t.Errorf("observer saw %d frames, want 0 for failed sends", sent)
	}
}

type sessionFunc func(ctx context.Context, b s2s.Blob) error

func (f sessionFunc) SendAudio(ctx context.Context, b s2s.Blob) error { return f(ctx, b) }
