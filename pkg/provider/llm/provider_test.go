package llm_test

import (
	"testing"

	"github.com/MrWong99/yoassist/pkg/provider/llm"
)

func TestUserPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		system     string
		wantSystem string
	}{
		{name: "default system prompt", system: "", wantSystem: llm.DefaultSystemPrompt},
		{name: "custom system prompt", system: "Answer like a pirate.", wantSystem: "Answer like a pirate."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := llm.UserPrompt(tc.system, "what's up")
			if req.SystemPrompt != tc.wantSystem {
				t.Errorf("SystemPrompt = %q, want %q", req.SystemPrompt, tc.wantSystem)
			}
			if len(req.Messages) != 1 {
				t.Fatalf("len(Messages) = %d, want 1", len(req.Messages))
			}
			if m := req.Messages[0]; m.Role != llm.RoleUser || m.Content != "what's up" {
				t.Errorf("Messages[0] = %+v, want user message %q", m, "what's up")
			}
		})
	}
}

func TestSpeakable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  It is sunny.  ", want: "It is sunny."},
		{name: "emphasis", in: "It is **very** `hot` today.", want: "It is very hot today."},
		{name: "heading and list", in: "## Forecast\n- Monday: rain\n* Tuesday: sun\n\n", want: "Forecast Monday: rain Tuesday: sun"},
		{name: "whitespace runs", in: "one\t\ttwo\n\nthree", want: "one two three"},
		{name: "only markup", in: "**\n#\n", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := llm.Speakable(tc.in); got != tc.want {
				t.Errorf("Speakable(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
