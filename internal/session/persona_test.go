package session

import "testing"

func TestPersona_Instructions(t *testing.T) {
	t.Parallel()
	got := Persona{}.Instructions("Spanish", "English")
	want := "You are Carlos, a native Spanish speaker. Talk to a student whose native language is English. Use B1-B2 level. Correct major errors. Be engaging."
	if got != want {
		t.Errorf("Instructions =\n%q\nwant\n%q", got, want)
	}

	got = Persona{Name: "Yuki", Level: "A2"}.Instructions("Japanese", "German")
	want = "You are Yuki, a native Japanese speaker. Talk to a student whose native language is German. Use A2 level. Correct major errors. Be engaging."
	if got != want {
		t.Errorf("custom Instructions = %q", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{
		Idle:       "idle",
		Connecting: "connecting",
		Active:     "active",
		Closed:     "closed",
		State(42):  "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d) = %q, want %q", int(s), got, want)
		}
	}
}
