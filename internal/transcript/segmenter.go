// Package transcript turns the two streams of transcript deltas produced by a
// duplex voice session (learner speech and model speech) into committed
// conversation turns.
//
// A [Segmenter] owns one in-progress buffer per speaker. Deltas append to the
// speaker's buffer; a turn-complete signal commits every non-blank buffer as
// an [Utterance]. The remote model delivers the two channels independently and
// does not promise strict alternation, so what happens to the other speaker's
// buffer when a delta arrives is a [ResetPolicy].
//
// Committed turns are kept in a bounded [History].
package transcript

import (
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/lingualive/pkg/types"
)

// ResetPolicy decides how a delta for one speaker affects the other
// speaker's uncommitted text.
type ResetPolicy int

const (
	// ResetOther clears the other speaker's buffer whenever a delta arrives.
	// It assumes strict turn alternation: a new speaker means the previous
	// speaker's unfinished text is stale.
	ResetOther ResetPolicy = iota

	// KeepBoth never clears on cross-speaker deltas. Both partial turns are
	// kept until the next turn-complete signal.
	KeepBoth
)

// String returns the configuration name of the policy.
func (p ResetPolicy) String() string {
	switch p {
	case ResetOther:
		return "reset_other"
	case KeepBoth:
		return "keep_both"
	default:
		return fmt.Sprintf("ResetPolicy(%d)", int(p))
	}
}

// ParseResetPolicy parses a configuration value. The empty string selects
// [ResetOther].
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch s {
	case "", "reset_other":
		return ResetOther, nil
	case "keep_both":
		return KeepBoth, nil
	default:
		return 0, fmt.Errorf("transcript: unknown reset policy %q (want reset_other or keep_both)", s)
	}
}

// Utterance is one committed piece of text from one speaker.
type Utterance struct {
	Speaker types.Speaker
	Text    string
}

// Live is the uncommitted text of both speakers.
type Live struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

// Segmenter accumulates transcript deltas into turns. It is safe for
// concurrent use, although a session feeds it from a single goroutine.
type Segmenter struct {
	policy ResetPolicy

	mu  sync.Mutex
	buf [2]strings.Builder
}

// NewSegmenter returns a Segmenter using policy.
func NewSegmenter(policy ResetPolicy) *Segmenter {
	return &Segmenter{policy: policy}
}

// Policy returns the configured reset policy.
func (s *Segmenter) Policy() ResetPolicy { return s.policy }

// OnDelta appends chunk to speaker's buffer. Under [ResetOther] a non-empty
// buffer of the other speaker is cleared. It reports whether the other
// speaker's buffer was cleared.
func (s *Segmenter) OnDelta(speaker types.Speaker, chunk string) (clearedOther bool) {
	idx, ok := index(speaker)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[idx].WriteString(chunk)
	if s.policy == ResetOther {
		other := 1 - idx
		if s.buf[other].Len() > 0 {
			s.buf[other].Reset()
			return true
		}
	}
	return false
}

// OnTurnComplete commits every buffer holding more than whitespace and
// clears it. Utterances are returned user first. Whitespace-only buffers are
// left in place.
func (s *Segmenter) OnTurnComplete() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Utterance
	for idx, speaker := range []types.Speaker{types.SpeakerUser, types.SpeakerAI} {
		text := s.buf[idx].String()
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, Utterance{Speaker: speaker, Text: text})
		s.buf[idx].Reset()
	}
	return out
}

// OnInterrupted handles a barge-in signal. It leaves both buffers untouched:
// an interruption ends audio output, not the linguistic turn.
func (s *Segmenter) OnInterrupted() {}

// Text returns speaker's uncommitted text.
func (s *Segmenter) Text(speaker types.Speaker) string {
	idx, ok := index(speaker)
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf[idx].String()
}

// Live returns both speakers' uncommitted text.
func (s *Segmenter) Live() Live {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Live{User: s.buf[0].String(), AI: s.buf[1].String()}
}

// Reset discards all uncommitted text.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[0].Reset()
	s.buf[1].Reset()
}

func index(s types.Speaker) (int, bool) {
	switch s {
	case types.SpeakerUser:
		return 0, true
	case types.SpeakerAI:
		return 1, true
	default:
		return 0, false
	}
}
