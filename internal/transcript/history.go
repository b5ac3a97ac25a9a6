package transcript

import (
	"sync"

	"github.com/MrWong99/lingualive/pkg/types"
)

// DefaultHistorySize is the number of turns a [History] keeps by default.
const DefaultHistorySize = 15

// TranslationStatus tracks the asynchronous translation of a [Turn].
type TranslationStatus int

const (
	// TranslationPending means the translation has been requested.
	TranslationPending TranslationStatus = iota
	// TranslationDone means Translation holds the result.
	TranslationDone
	// TranslationFailed means the request failed; Translation is empty.
	TranslationFailed
)

// String returns the wire name of the status.
func (s TranslationStatus) String() string {
	switch s {
	case TranslationPending:
		return "pending"
	case TranslationDone:
		return "done"
	case TranslationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (s TranslationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Turn is one committed utterance in the conversation history.
type Turn struct {
	// Seq orders turns across the lifetime of a History. It starts at 1.
	Seq uint64 `json:"seq"`

	Speaker  types.Speaker `json:"speaker"`
	Original string        `json:"original"`

	// Translation is set once Status is TranslationDone.
	Translation string            `json:"translation,omitempty"`
	Status      TranslationStatus `json:"status"`
}

// History is a bounded, append-only list of turns. When full, the oldest turn
// is evicted. It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	size    int
	turns   []Turn
	nextSeq uint64
}

// NewHistory returns a History keeping at most size turns. Values below 1
// select [DefaultHistorySize].
func NewHistory(size int) *History {
	if size < 1 {
		size = DefaultHistorySize
	}
	return &History{size: size, turns: make([]Turn, 0, size), nextSeq: 1}
}

// Cap returns the maximum number of turns kept.
func (h *History) Cap() int { return h.size }

// Append commits a new turn with a pending translation and returns it.
func (h *History) Append(speaker types.Speaker, text string) Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := Turn{Seq: h.nextSeq, Speaker: speaker, Original: text, Status: TranslationPending}
	h.nextSeq++
	if len(h.turns) == h.size {
		copy(h.turns, h.turns[1:])
		h.turns = h.turns[:len(h.turns)-1]
	}
	h.turns = append(h.turns, t)
	return t
}

// Resolve records the outcome of seq's translation. A nil err stores
// translation and marks the turn done; otherwise the turn is marked failed.
// It returns false when the turn was evicted or is no longer pending.
func (h *History) Resolve(seq uint64, translation string, err error) (Turn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.turns {
		t := &h.turns[i]
		if t.Seq != seq {
			continue
		}
		if t.Status != TranslationPending {
			return *t, false
		}
		if err != nil {
			t.Status = TranslationFailed
		} else {
			t.Status = TranslationDone
			t.Translation = translation
		}
		return *t, true
	}
	return Turn{}, false
}

// Snapshot returns a copy of the turns, oldest first; the newest turn is last.
func (h *History) Snapshot() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns currently kept.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
