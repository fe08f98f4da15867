// Package gtranslate provides a TTS provider backed by Google Translate's
// public speech endpoint. No API key is needed, which makes it the zero-setup
// default voice. It implements the tts.Provider interface.
//
// The endpoint returns MP3, which is decoded with faiface/beep. Requests are
// limited to roughly 200 characters, so longer text is split at word
// boundaries and the decoded parts are concatenated.
package gtranslate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/audio/beep"
	"github.com/MrWong99/yoassist/pkg/provider/tts"
)

const (
	defaultBaseURL   = "https://translate.google.com/translate_tts"
	defaultLanguage  = "en"
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "Mozilla/5.0"

	// MaxQueryRunes is the longest text sent in a single request.
	MaxQueryRunes = 200
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLanguage sets the default spoken language (the "tl" parameter).
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithBaseURL overrides the translate_tts endpoint.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider using Google Translate speech.
type Provider struct {
	baseURL    string
	language   string
	httpClient *http.Client
	decode     func([]byte) (audio.Clip, error)
}

// New creates a Provider with the given options.
func New(opts ...Option) (*Provider, error) {
	p := &Provider{
		baseURL:    defaultBaseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
		decode:     beep.DecodeMP3,
	}
	for _, o := range opts {
		o(p)
	}
	if p.language == "" {
		return nil, errors.New("gtranslate: language must not be empty")
	}
	if _, err := url.Parse(p.baseURL); err != nil {
		return nil, fmt.Errorf("gtranslate: invalid base URL: %w", err)
	}
	return p, nil
}

// Synthesize implements tts.Provider. voice.Language, when set, overrides the
// configured language; voice.ID is ignored.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	lang := p.language
	if voice.Language != "" {
		lang = voice.Language
	}

	var out audio.Clip
	for _, part := range splitQuery(text, MaxQueryRunes) {
		clip, err := p.fetch(ctx, part, lang)
		if err != nil {
			return audio.Clip{}, err
		}
		if out.SampleRate == 0 {
			out.SampleRate, out.Channels = clip.SampleRate, clip.Channels
		} else if clip.SampleRate != out.SampleRate || clip.Channels != out.Channels {
			return audio.Clip{}, fmt.Errorf("gtranslate: inconsistent audio format across parts (%d Hz x%d vs %d Hz x%d)",
				clip.SampleRate, clip.Channels, out.SampleRate, out.Channels)
		}
		out.PCM = append(out.PCM, clip.PCM...)
	}
	return out, nil
}

// fetch downloads and decodes one query.
func (p *Provider) fetch(ctx context.Context, text, lang string) (audio.Clip, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("tl", lang)
	q.Set("client", "tw-ob")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("gtranslate: create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("gtranslate: GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Clip{}, fmt.Errorf("gtranslate: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("gtranslate: read body: %w", err)
	}
	if len(data) == 0 {
		return audio.Clip{}, fmt.Errorf("gtranslate: %w", tts.ErrEmptyAudio)
	}

	clip, err := p.decode(data)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("gtranslate: %w", err)
	}
	return clip, nil
}

// splitQuery breaks text into parts of at most limit runes, preferring word
// boundaries. Words longer than limit are hard-split.
func splitQuery(text string, limit int) []string {
	var (
		parts []string
		cur   strings.Builder
		n     int
	)
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, w := range strings.Fields(text) {
		wl := utf8.RuneCountInString(w)
		for wl > limit {
			flush()
			r := []rune(w)
			parts = append(parts, string(r[:limit]))
			w = string(r[limit:])
			wl -= limit
		}
		if n > 0 && n+1+wl > limit {
			flush()
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(w)
		n += wl
	}
	flush()
	return parts
}

var _ tts.Provider = (*Provider)(nil)
