// Package speech turns a reply from the reasoning backend into audible
// output: the text is split into utterances, each utterance is synthesised,
// and the clips are played back strictly in order.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/provider/tts"
)

// SplitUtterances splits text on sentence-ending punctuation ('.', '?', '!')
// and returns the trimmed non-empty pieces without the punctuation.
func SplitUtterances(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '?' || r == '!'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Option configures a Speaker.
type Option func(*Speaker)

// WithVoice selects the voice passed to the TTS provider.
func WithVoice(v tts.VoiceProfile) Option {
	return func(s *Speaker) { s.voice = v }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Speaker) { s.log = l }
}

// Speaker synthesises and plays text. It is safe for use from a single
// goroutine at a time; the assistant loop is its only caller.
type Speaker struct {
	tts    tts.Provider
	player audio.Player
	voice  tts.VoiceProfile
	log    *slog.Logger
}

// NewSpeaker creates a Speaker. Both collaborators are required.
func NewSpeaker(provider tts.Provider, player audio.Player, opts ...Option) (*Speaker, error) {
	if provider == nil {
		return nil, errors.New("speech: tts provider must not be nil")
	}
	if player == nil {
		return nil, errors.New("speech: player must not be nil")
	}
	s := &Speaker{tts: provider, player: player, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Speak splits text into utterances and, for each in order, synthesises it
// and waits for playback to finish before moving on. The first failure
// aborts the remaining utterances and is returned.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	parts := SplitUtterances(text)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		clip, err := s.tts.Synthesize(ctx, part, s.voice)
		if err != nil {
			return fmt.Errorf("speech: synthesize utterance %d/%d: %w", i+1, len(parts), err)
		}
		if err := s.player.Play(ctx, clip); err != nil {
			return fmt.Errorf("speech: play utterance %d/%d: %w", i+1, len(parts), err)
		}
		s.log.Debug("utterance spoken", "index", i+1, "of", len(parts), "frames", clip.Frames())
	}
	return nil
}
