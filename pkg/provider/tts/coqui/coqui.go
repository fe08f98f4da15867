// Package coqui provides a TTS provider for a locally running Coqui TTS
// server (ghcr.io/coqui-ai/tts-cpu). Speech is requested with
// GET /api/tts and the model's speakers are read from GET /details.
//
// Multi-speaker models reject requests without a speaker. When neither the
// voice profile nor [WithSpeaker] names one, the provider asks the server
// once and uses its first speaker.
//
//	p, err := coqui.New("http://localhost:5002", coqui.WithLanguage("en"))
//	clip, err := p.Synthesize(ctx, "Hello there.", tts.VoiceProfile{})
package coqui

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/provider/tts"
)

var (
	_ tts.Provider    = (*Provider)(nil)
	_ tts.VoiceLister = (*Provider)(nil)
)

const (
	defaultTimeout = 30 * time.Second
	synthPath      = "/api/tts"
	detailsPath    = "/details"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets language_id for multilingual models. Unset by default;
// single-language models reject it.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSpeaker sets the speaker used when the voice profile names none.
func WithSpeaker(id string) Option {
	return func(p *Provider) { p.speaker = id }
}

// WithTimeout bounds each HTTP request. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

// WithOutputSampleRate resamples synthesised mono PCM to rate. Zero keeps
// the model's native rate.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) { p.outputRate = rate }
}

// Provider implements tts.Provider. It is safe for concurrent use.
type Provider struct {
	base       string
	language   string
	speaker    string
	outputRate int
	client     *http.Client

	mu      sync.Mutex
	details *details // cached after the first successful /details call
}

// details is the body of GET /details. Speakers is empty for
// single-speaker models.
type details struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// New creates a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: server URL must not be empty")
	}
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("coqui: server URL: %w", err)
	}
	p := &Provider{
		base:   strings.TrimRight(serverURL, "/"),
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Clip{}, nil
	}

	speaker := cmp.Or(voice.ID, p.speaker)
	if speaker == "" {
		var err error
		if speaker, err = p.defaultSpeaker(ctx); err != nil {
			return audio.Clip{}, err
		}
	}

	q := url.Values{"text": {text}}
	if speaker != "" {
		q.Set("speaker_id", speaker)
	}
	if lang := cmp.Or(voice.Language, p.language); lang != "" {
		q.Set("language_id", lang)
	}
	body, err := p.get(ctx, synthPath+"?"+q.Encode(), "audio/wav")
	if err != nil {
		return audio.Clip{}, err
	}

	clip, err := audio.ParseWAV(body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: %w", err)
	}
	if len(clip.PCM) == 0 {
		return audio.Clip{}, fmt.Errorf("coqui: %w", tts.ErrEmptyAudio)
	}
	if p.outputRate > 0 && clip.SampleRate != p.outputRate && clip.Channels == 1 {
		clip.PCM = audio.ResampleMono16(clip.PCM, clip.SampleRate, p.outputRate)
		clip.SampleRate = p.outputRate
	}
	return clip, nil
}

// ListVoices implements tts.VoiceLister: one profile per speaker, or a
// single profile named after the model.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	d, err := p.loadDetails(ctx)
	if err != nil {
		return nil, err
	}
	model := cmp.Or(d.ModelName, "default")
	if len(d.Speakers) == 0 {
		return []tts.VoiceProfile{{
			ID: model, Name: model, Language: d.Language, Provider: "coqui",
			Metadata: map[string]string{"model_name": model},
		}}, nil
	}
	voices := make([]tts.VoiceProfile, 0, len(d.Speakers))
	for _, s := range d.Speakers {
		voices = append(voices, tts.VoiceProfile{
			ID: s, Name: s, Language: d.Language, Provider: "coqui",
			Metadata: map[string]string{"model_name": model},
		})
	}
	return voices, nil
}

// defaultSpeaker returns the first speaker of a multi-speaker model, or ""
// for single-speaker models.
func (p *Provider) defaultSpeaker(ctx context.Context) (string, error) {
	d, err := p.loadDetails(ctx)
	if err != nil {
		return "", err
	}
	if len(d.Speakers) == 0 {
		return "", nil
	}
	return d.Speakers[0], nil
}

func (p *Provider) loadDetails(ctx context.Context) (*details, error) {
	p.mu.Lock()
	cached := p.details
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	body, err := p.get(ctx, detailsPath, "application/json")
	if err != nil {
		return nil, err
	}
	d := &details{}
	if err := json.Unmarshal(body, d); err != nil {
		return nil, fmt.Errorf("coqui: decode %s: %w", detailsPath, err)
	}
	slices.Sort(d.Speakers)

	p.mu.Lock()
	p.details = d
	p.mu.Unlock()
	return d, nil
}

func (p *Provider) get(ctx context.Context, pathAndQuery, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+pathAndQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("coqui: GET %s returned %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read %s: %w", req.URL.Path, err)
	}
	return body, nil
}
