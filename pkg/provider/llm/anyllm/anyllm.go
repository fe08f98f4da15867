// Package anyllm provides an LLM provider backed by
// github.com/mozilla-ai/any-llm-go, which puts Ollama, OpenAI, Anthropic,
// Gemini, DeepSeek, Mistral, Groq, llama.cpp and llamafile behind one
// completion call.
//
// The assistant's default reasoning backend is a local Ollama instance:
//
//	p, err := anyllm.NewOllama("")
//	p, err := anyllm.New("anthropic", "", anyllmlib.WithAPIKey("sk-..."))
package anyllm

import (
	"context"
	"fmt"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/yoassist/pkg/provider/llm"
)

// DefaultOllamaModel is the model requested from Ollama when none is configured.
const DefaultOllamaModel = "llama3.2:latest"

type backend struct {
	open         func(...anyllmlib.Option) (anyllmlib.Provider, error)
	defaultModel string
}

// backends maps a backend name to its constructor and the model used when
// the configuration names none. Small fast models are preferred; spoken
// replies are short.
var backends = map[string]backend{
	"ollama":    {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) }, DefaultOllamaModel},
	"openai":    {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) }, "gpt-4o-mini"},
	"anthropic": {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) }, "claude-3-5-haiku-latest"},
	"gemini":    {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) }, "gemini-2.0-flash"},
	"deepseek":  {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) }, "deepseek-chat"},
	"mistral":   {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) }, "mistral-small-latest"},
	"groq":      {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) }, "llama-3.1-8b-instant"},
	"llamacpp":  {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamacpp.New(o...) }, "default"},
	"llamafile": {func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamafile.New(o...) }, "default"},
}

// Backends returns the supported backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider for the named backend. An empty model selects the
// backend's default.
//
// opts are any-llm-go options (anyllmlib.WithAPIKey, anyllmlib.WithBaseURL).
// Without an API key option the backend reads its usual environment
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(backendName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	name := strings.ToLower(backendName)
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q; supported: %s", backendName, strings.Join(Backends(), ", "))
	}
	if model == "" {
		model = b.defaultModel
	}
	client, err := b.open(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", name, err)
	}
	return &Provider{backend: client, name: name, model: model}, nil
}

// NewOllama creates a Provider backed by a local Ollama server
// (http://localhost:11434 unless overridden).
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// Name returns the lower-cased backend name, e.g. "ollama".
func (p *Provider) Name() string { return p.name }

// Model returns the model requested from the backend.
func (p *Provider) Model() string { return p.model }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s/%s returned no choices: %w", p.name, p.model, llm.ErrEmptyResponse)
	}

	content := llm.Speakable(resp.Choices[0].Message.ContentString())
	if content == "" {
		return nil, fmt.Errorf("anyllm: %s/%s: %w", p.name, p.model, llm.ErrEmptyResponse)
	}

	out := &llm.CompletionResponse{Content: content}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: messages}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

// knownModels is matched by prefix in order; the first hit wins.
var knownModels = []struct {
	prefix string
	caps   llm.ModelCapabilities
}{
	{"llama3.1", llm.ModelCapabilities{ContextWindow: 131_072, MaxOutputTokens: 4_096}},
	{"llama3.2", llm.ModelCapabilities{ContextWindow: 131_072, MaxOutputTokens: 4_096}},
	{"llama-3.1", llm.ModelCapabilities{ContextWindow: 131_072, MaxOutputTokens: 8_192}},
	{"llama3", llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{"mistral", llm.ModelCapabilities{ContextWindow: 32_768, MaxOutputTokens: 4_096}},
	{"qwen", llm.ModelCapabilities{ContextWindow: 32_768, MaxOutputTokens: 4_096}},
	{"deepseek", llm.ModelCapabilities{ContextWindow: 64_000, MaxOutputTokens: 8_192}},
	{"gpt-4o", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{"gpt-3.5", llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{"claude", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}},
	{"gemini", llm.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
}

// modelCapabilities falls back to a conservative small-model guess.
func modelCapabilities(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	for _, k := range knownModels {
		if strings.HasPrefix(lower, k.prefix) {
			return k.caps
		}
	}
	return llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 2_048}
}

var _ llm.Provider = (*Provider)(nil)
