// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (a local Ollama instance
// by default, or any OpenAI-compatible endpoint) and turns a short
// conversation into a single spoken-style reply. The assistant sends one
// request per recognised command and never streams.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"strings"
)

// DefaultSystemPrompt instructs the model to answer in a form that reads well
// when spoken aloud.
const DefaultSystemPrompt = "You are a helpful voice assistant. Keep your responses clear, concise, and natural. Use only words in your response, no emojis."

// ErrEmptyResponse is returned when the backend answers without any usable
// text content, either because no choice was returned or because the
// content field was empty.
var ErrEmptyResponse = errors.New("llm: empty response")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in the conversation sent to the model.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text of the turn.
	Content string
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is the user's
	// transcribed command.
	Messages []Message

	// SystemPrompt is injected before Messages as a system-role message.
	SystemPrompt string

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the number of generated tokens. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the reply text. Never empty when err is nil.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error wrapping ErrEmptyResponse when the backend produced no
	// text, and ctx.Err() (wrapped) when ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing the underlying model.
	Capabilities() ModelCapabilities
}

// UserPrompt builds a single-turn request for text using systemPrompt, or
// DefaultSystemPrompt when systemPrompt is empty.
func UserPrompt(systemPrompt, text string) CompletionRequest {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []Message{{Role: RoleUser, Content: text}},
	}
}

// markdown is removed from replies before they are spoken; synthesisers
// read the symbols aloud.
var markdown = strings.NewReplacer("**", "", "__", "", "`", "", "*", "")

// Speakable flattens a model reply into one line of plain prose with the
// markdown stripped.
func Speakable(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#")
		line = strings.TrimPrefix(strings.TrimSpace(line), "- ")
		line = markdown.Replace(line)
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}
