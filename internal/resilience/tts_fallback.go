package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/provider/tts"
)

// errNoVoiceLister is returned when no backend can enumerate voices.
var errNoVoiceLister = errors.New("resilience: provider does not list voices")

// TTSFallback implements [tts.Provider] and [tts.VoiceLister] over a
// [FallbackGroup].
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var (
	_ tts.Provider    = (*TTSFallback)(nil)
	_ tts.VoiceLister = (*TTSFallback)(nil)
)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Status reports the breaker state of every backend.
func (f *TTSFallback) Status() []ProviderStatus { return f.group.Status() }

// Synthesize implements [tts.Provider].
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (audio.Clip, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// ListVoices returns the voices of the first backend that can list them.
// Listing bypasses the breakers so an unsupported or failing catalogue call
// does not mark a backend unhealthy for synthesis.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	var errs []error
	for _, e := range f.group.snapshot() {
		vl, ok := e.value.(tts.VoiceLister)
		if !ok {
			continue
		}
		voices, err := vl.ListVoices(ctx)
		if err == nil {
			return voices, nil
		}
		if isCancellation(err) {
			return nil, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
	}
	if len(errs) == 0 {
		return nil, errNoVoiceLister
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
