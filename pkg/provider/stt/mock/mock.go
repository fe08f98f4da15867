// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed scripted transcripts and inspect the audio that was
// submitted.
//
// Example:
//
//	p := &mock.Provider{Texts: []string{"hey yo", ""}}
//	text, err := p.Transcribe(ctx, samples, 16000)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/yoassist/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Samples is a copy of the samples passed to Transcribe.
	Samples []float32
	// SampleRate is the rate passed to Transcribe.
	SampleRate int
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Texts is consumed front to back, one entry per successful call. Once
	// exhausted, Transcribe returns DefaultText.
	Texts []string

	// DefaultText is returned when Texts is exhausted.
	DefaultText string

	// Errs is consumed front to back alongside Texts. A nil entry means
	// success. Once exhausted, Transcribe returns Err.
	Errs []error

	// Err, if non-nil, is returned once Errs is exhausted.
	Err error

	// Calls records every invocation in order.
	Calls []TranscribeCall
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{
		Ctx:        ctx,
		Samples:    append([]float32(nil), samples...),
		SampleRate: sampleRate,
	})

	err := p.Err
	if len(p.Errs) > 0 {
		err = p.Errs[0]
		p.Errs = p.Errs[1:]
	}
	if err != nil {
		return "", err
	}

	if len(p.Texts) == 0 {
		return p.DefaultText, nil
	}
	text := p.Texts[0]
	p.Texts = p.Texts[1:]
	return text, nil
}

// CallCount returns the number of Transcribe calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

var _ stt.Provider = (*Provider)(nil)
