// Package mock provides test doubles for the s2s package interfaces.
//
// Use Provider to verify Connect calls and hand out controllable sessions.
// Use Session to inject inbound events and inspect the audio a consumer sent.
//
// Example:
//
//	p := &mock.Provider{AutoOpen: true}
//	handle, _ := p.Connect(ctx, cfg)
//	sess := p.Last()
//	sess.Emit(s2s.Event{Type: s2s.EventInputTranscript, Text: "hola"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingualive/pkg/audio"
	"github.com/MrWong99/lingualive/pkg/provider/s2s"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg s2s.SessionConfig
}

// Provider is a mock implementation of s2s.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect
	// returns a fresh [Session] per call.
	Session s2s.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// AutoOpen makes freshly created sessions emit [s2s.EventOpened] at once.
	AutoOpen bool

	// ProviderCapabilities is returned by Capabilities. A zero value reports
	// 16 kHz mono input and 24 kHz mono output.
	ProviderCapabilities s2s.Capabilities

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall

	sessions []*Session
}

// Ensure Provider implements s2s.Provider at compile time.
var _ s2s.Provider = (*Provider)(nil)

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg s2s.SessionConfig) (s2s.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	s := NewSession()
	if p.AutoOpen {
		s.Emit(s2s.Event{Type: s2s.EventOpened})
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Capabilities returns ProviderCapabilities.
func (p *Provider) Capabilities() s2s.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	caps := p.ProviderCapabilities
	if caps.InputFormat.SampleRate == 0 {
		caps.InputFormat = audio.Uplink
	}
	if caps.OutputFormat.SampleRate == 0 {
		caps.OutputFormat = audio.Downlink
	}
	return caps
}

// Last returns the most recently created session, or nil.
func (p *Provider) Last() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// ConnectCount returns the number of Connect calls so far.
func (p *Provider) ConnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ConnectCalls)
}

// Session is a mock implementation of s2s.SessionHandle.
type Session struct {
	mu     sync.Mutex
	events chan s2s.Event
	closed bool
	sent   []s2s.Blob

	// SendAudioErr, if non-nil, is returned by SendAudio.
	SendAudioErr error

	// ErrResult is returned by Err.
	ErrResult error

	// CloseCount is the number of times Close was called.
	CloseCount int
}

// Ensure Session implements s2s.SessionHandle at compile time.
var _ s2s.SessionHandle = (*Session)(nil)

// NewSession returns a Session with a generously buffered event channel.
func NewSession() *Session {
	return &Session{events: make(chan s2s.Event, 256)}
}

// Emit injects an inbound event. It is a no-op once the session is closed.
func (s *Session) Emit(ev s2s.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// End simulates a remote close: it emits [s2s.EventClosed] and closes the
// event channel.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- s2s.Event{Type: s2s.EventClosed}
	s.closed = true
	close(s.events)
}

// SendAudio records chunk.
func (s *Session) SendAudio(_ context.Context, chunk s2s.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	if s.closed {
		return s2s.ErrSessionClosed
	}
	s.sent = append(s.sent, chunk)
	return nil
}

// Sent returns a copy of every chunk passed to SendAudio.
func (s *Session) Sent() []s2s.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]s2s.Blob, len(s.sent))
	copy(out, s.sent)
	return out
}

// Events implements s2s.SessionHandle.
func (s *Session) Events() <-chan s2s.Event { return s.events }

// Err implements s2s.SessionHandle.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrResult
}

// Close closes the event channel. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
