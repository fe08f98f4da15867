// Package openai provides an LLM provider backed by the OpenAI Chat
// Completions API, or any server that speaks the same protocol (LM Studio,
// vLLM, llama.cpp's server). An API key is only required when talking to
// api.openai.com.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/yoassist/pkg/provider/llm"
)

// DefaultMaxTokens caps a reply when the request sets no limit.
const DefaultMaxTokens = 300

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	client    oai.Client
	model     string
	maxTokens int
	caps      llm.ModelCapabilities
}

type config struct {
	apiKey        string
	baseURL       string
	organization  string
	timeout       time.Duration
	maxTokens     int
	contextWindow int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxTokens overrides [DefaultMaxTokens].
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithContextWindow reports n from Capabilities instead of the built-in
// guess. Useful for self-hosted models.
func WithContextWindow(n int) Option {
	return func(c *config) { c.contextWindow = n }
}

// New constructs a Provider for model.
func New(model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}
	cfg := &config{maxTokens: DefaultMaxTokens}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.apiKey == "" && cfg.baseURL == "" {
		return nil, fmt.Errorf("openai: an API key is required unless base_url points at a compatible server")
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.apiKey))
	} else {
		// The SDK falls back to OPENAI_API_KEY; a local server must not
		// receive it.
		reqOpts = append(reqOpts, option.WithAPIKey("unused"))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	caps := guessCapabilities(model)
	if cfg.contextWindow > 0 {
		caps.ContextWindow = cfg.contextWindow
	}
	return &Provider{
		client:    oai.NewClient(reqOpts...),
		model:     model,
		maxTokens: cfg.maxTokens,
		caps:      caps,
	}, nil
}

// Complete implements llm.Provider. A reply cut off by the token limit is
// trimmed back to its last complete sentence so it is not spoken mid-word.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %s returned no choices: %w", p.model, llm.ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	content := llm.Speakable(choice.Message.Content)
	if choice.FinishReason == "length" {
		content = lastSentence(content)
	}
	if content == "" {
		return nil, fmt.Errorf("openai: %s: %w", p.model, llm.ErrEmptyResponse)
	}

	return &llm.CompletionResponse{
		Content: content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}

// lastSentence returns s up to and including its final sentence
// terminator, or s unchanged when it contains none.
func lastSentence(s string) string {
	if i := strings.LastIndexAny(s, ".!?"); i >= 0 {
		return s[:i+1]
	}
	return s
}

// guessCapabilities knows the hosted model families; anything else is
// assumed to be a small self-hosted model.
func guessCapabilities(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt-4o"), strings.HasPrefix(lower, "gpt-4.1"):
		return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}
	case strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		return llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}
	case strings.HasPrefix(lower, "gpt-3.5"):
		return llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}
	default:
		return llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 2_048}
	}
}

var _ llm.Provider = (*Provider)(nil)
