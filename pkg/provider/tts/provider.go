// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Google Translate's speech
// endpoint, a local Coqui server, or ElevenLabs) and turns one short
// utterance into a PCM [audio.Clip] ready for playback. Long replies are split
// into utterances by the caller, so providers only ever see a sentence or so
// at a time.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/yoassist/pkg/audio"
)

// ErrEmptyAudio is returned when a backend answers successfully but without
// any audio payload.
var ErrEmptyAudio = errors.New("tts: backend returned no audio")

// VoiceProfile selects the voice a provider speaks with. The zero value asks
// the provider for its default voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Language is a BCP-47 language code (e.g., "en", "de"). Empty means the
	// provider's configured language.
	Language string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech using voice and returns the complete
	// clip. Empty text yields an empty clip and a nil error without
	// contacting the backend.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (audio.Clip, error)
}

// VoiceLister is implemented by providers that can enumerate their voices.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
