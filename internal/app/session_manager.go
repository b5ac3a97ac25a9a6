package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrShuttingDown is returned when a conversation is opened during shutdown.
var ErrShuttingDown = errors.New("app: shutting down")

// SessionInfo holds metadata about an open conversation.
type SessionInfo struct {
	// ClientID identifies the browser connection.
	ClientID string `json:"client_id"`

	TargetLanguage string `json:"target_language"`
	NativeLanguage string `json:"native_language"`

	// State is the controller's lifecycle state (idle, connecting, active,
	// closed).
	State string `json:"state"`

	// ConnectedAt is when the browser connected.
	ConnectedAt time.Time `json:"connected_at"`
}

// conversation is one registered browser connection.
type conversation struct {
	info  SessionInfo
	state func() string
	close func() error
}

// SessionManager tracks the open conversations so they can be listed and
// closed together on shutdown. All exported methods are safe for concurrent
// use.
type SessionManager struct {
	mu     sync.Mutex
	convs  map[string]*conversation
	closed bool
	wg     sync.WaitGroup
}

// NewSessionManager returns an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{convs: make(map[string]*conversation)}
}

// add registers c. The caller must call remove with the same ID once the
// conversation has fully ended.
func (sm *SessionManager) add(c *conversation) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return ErrShuttingDown
	}
	if _, dup := sm.convs[c.info.ClientID]; dup {
		return fmt.Errorf("app: duplicate client id %q", c.info.ClientID)
	}
	sm.convs[c.info.ClientID] = c
	sm.wg.Add(1)
	return nil
}

func (sm *SessionManager) remove(id string) {
	sm.mu.Lock()
	_, ok := sm.convs[id]
	delete(sm.convs, id)
	sm.mu.Unlock()
	if ok {
		sm.wg.Done()
	}
}

// Count returns the number of open conversations.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.convs)
}

// List returns the open conversations, oldest first.
func (sm *SessionManager) List() []SessionInfo {
	sm.mu.Lock()
	convs := make([]*conversation, 0, len(sm.convs))
	for _, c := range sm.convs {
		convs = append(convs, c)
	}
	sm.mu.Unlock()

	out := make([]SessionInfo, 0, len(convs))
	for _, c := range convs {
		info := c.info
		if c.state != nil {
			info.State = c.state()
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		return cmp.Or(a.ConnectedAt.Compare(b.ConnectedAt), cmp.Compare(a.ClientID, b.ClientID))
	})
	return out
}

// CloseAll refuses new conversations, closes every open one and waits until
// they have been removed or ctx is done.
func (sm *SessionManager) CloseAll(ctx context.Context) error {
	sm.mu.Lock()
	sm.closed = true
	convs := make([]*conversation, 0, len(sm.convs))
	for _, c := range sm.convs {
		convs = append(convs, c)
	}
	sm.mu.Unlock()

	for _, c := range convs {
		if c.close != nil {
			_ = c.close()
		}
	}

	done := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
