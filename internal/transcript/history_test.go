package transcript

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MrWong99/lingualive/pkg/types"
)

func TestHistory_TurnCommitAppendsTwo(t *testing.T) {
	t.Parallel()
	s := NewSegmenter(KeepBoth)
	h := NewHistory(0)

	s.OnDelta(types.SpeakerUser, "Quiero café")
	s.OnDelta(types.SpeakerAI, "¿Con leche?")
	for _, u := range s.OnTurnComplete() {
		h.Append(u.Speaker, u.Text)
	}

	if h.Len() != 2 {
		t.Fatalf("history length = %d, want 2", h.Len())
	}
	for _, turn := range h.Snapshot() {
		if turn.Status != TranslationPending {
			t.Errorf("turn %d status = %v, want pending", turn.Seq, turn.Status)
		}
	}
}

func TestHistory_BoundEvictsOldest(t *testing.T) {
	t.Parallel()
	h := NewHistory(DefaultHistorySize)
	for i := 1; i <= 40; i++ {
		h.Append(types.SpeakerUser, fmt.Sprintf("turn %d", i))
		if h.Len() > DefaultHistorySize {
			t.Fatalf("history grew to %d", h.Len())
		}
	}

	snap := h.Snapshot()
	if len(snap) != DefaultHistorySize {
		t.Fatalf("len = %d, want %d", len(snap), DefaultHistorySize)
	}
	if snap[0].Original != "turn 26" || snap[0].Seq != 26 {
		t.Errorf("oldest kept = %+v, want turn 26", snap[0])
	}
	if snap[len(snap)-1].Original != "turn 40" {
		t.Errorf("newest = %+v, want turn 40", snap[len(snap)-1])
	}
}

func TestHistory_ResolveInPlace(t *testing.T) {
	t.Parallel()
	h := NewHistory(3)
	a := h.Append(types.SpeakerUser, "Hola")
	b := h.Append(types.SpeakerAI, "Buenas")

	// Out-of-order completion.
	if got, ok := h.Resolve(b.Seq, "Good afternoon", nil); !ok || got.Status != TranslationDone {
		t.Fatalf("Resolve(b) = %+v, %v", got, ok)
	}
	if got, ok := h.Resolve(a.Seq, "", errors.New("quota")); !ok || got.Status != TranslationFailed {
		t.Fatalf("Resolve(a) = %+v, %v", got, ok)
	}

	snap := h.Snapshot()
	if snap[0].Status != TranslationFailed || snap[0].Translation != "" {
		t.Errorf("turn a = %+v", snap[0])
	}
	if snap[1].Status != TranslationDone || snap[1].Translation != "Good afternoon" {
		t.Errorf("turn b = %+v", snap[1])
	}

	if _, ok := h.Resolve(b.Seq, "again", nil); ok {
		t.Error("resolving twice must be rejected")
	}
}

func TestHistory_ResolveEvicted(t *testing.T) {
	t.Parallel()
	h := NewHistory(1)
	old := h.Append(types.SpeakerUser, "first")
	h.Append(types.SpeakerUser, "second")
	if _, ok := h.Resolve(old.Seq, "x", nil); ok {
		t.Error("evicted turn must not resolve")
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	t.Parallel()
	h := NewHistory(2)
	h.Append(types.SpeakerAI, "hola")
	snap := h.Snapshot()
	snap[0].Original = "mutated"
	if h.Snapshot()[0].Original != "hola" {
		t.Error("Snapshot must not alias internal state")
	}
}

func TestHistory_ConcurrentResolve(t *testing.T) {
	t.Parallel()
	h := NewHistory(DefaultHistorySize)
	var seqs []uint64
	for i := 0; i < DefaultHistorySize; i++ {
		seqs = append(seqs, h.Append(types.SpeakerUser, "x").Seq)
	}

	var wg sync.WaitGroup
	for _, seq := range seqs {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			h.Resolve(seq, "y", nil)
		}(seq)
	}
	wg.Wait()

	for _, turn := range h.Snapshot() {
		if turn.Status != TranslationDone {
			t.Errorf("turn %d status = %v", turn.Seq, turn.Status)
		}
	}
}

func TestTranslationStatus_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[TranslationStatus]string{
		TranslationPending:   "pending",
		TranslationDone:      "done",
		TranslationFailed:    "failed",
		TranslationStatus(9): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
