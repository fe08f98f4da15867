package assistant

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateAwaitingWakeWord, "awaiting_wake_word"},
		{StateListening, "listening"},
		{StateProcessing, "processing"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	t.Parallel()
	h := NewHistory(3)
	for i := range 5 {
		h.Add(Exchange{Utterance: fmt.Sprintf("u%d", i), At: time.Unix(int64(i), 0)})
	}
	got := h.Entries()
	if len(got) != 3 || h.Len() != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"u2", "u3", "u4"} {
		if got[i].Utterance != want {
			t.Errorf("entry %d = %q, want %q", i, got[i].Utterance, want)
		}
	}

	got[0].Utterance = "mutated"
	if h.Entries()[0].Utterance != "u2" {
		t.Error("Entries returned an aliased slice")
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	t.Parallel()
	if got := NewHistory(0).Cap(); got != DefaultHistorySize {
		t.Errorf("Cap() = %d, want %d", got, DefaultHistorySize)
	}
}

func TestCollaboratorError(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	var err error = &CollaboratorError{Stage: StageLLM, Err: cause}

	if got := err.Error(); got != "assistant: llm: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrCollaborator) {
		t.Error("errors.Is(err, ErrCollaborator) = false")
	}
	if !errors.Is(fmt.Errorf("step: %w", err), cause) {
		t.Error("cause not reachable through wrapping")
	}
	if errors.Is(cause, ErrCollaborator) {
		t.Error("plain cause must not match ErrCollaborator")
	}
}
