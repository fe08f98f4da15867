package speech_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/yoassist/internal/speech"
	"github.com/MrWong99/yoassist/pkg/audio"
	audiomock "github.com/MrWong99/yoassist/pkg/audio/mock"
	"github.com/MrWong99/yoassist/pkg/provider/tts"
	ttsmock "github.com/MrWong99/yoassist/pkg/provider/tts/mock"
)

func TestSplitUtterances(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "Hello", want: []string{"Hello"}},
		{in: "Hello. How are you? Great!", want: []string{"Hello", "How are you", "Great"}},
		{in: "...!?", want: nil},
		{in: "  one.  . two  ", want: []string{"one", "two"}},
	}
	for _, tc := range tests {
		got := speech.SplitUtterances(tc.in)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
			t.Errorf("SplitUtterances(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func newSpeaker(t *testing.T, p tts.Provider, pl audio.Player, opts ...speech.Option) *speech.Speaker {
	t.Helper()
	s, err := speech.NewSpeaker(p, pl, opts...)
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}
	return s
}

func TestSpeak_InOrder(t *testing.T) {
	t.Parallel()

	clip := audio.Clip{PCM: make([]byte, 32), SampleRate: 16000, Channels: 1}
	provider := &ttsmock.Provider{Clip: clip}
	player := &audiomock.Player{}
	voice := tts.VoiceProfile{ID: "v1", Language: "en"}

	s := newSpeaker(t, provider, player, speech.WithVoice(voice))
	if err := s.Speak(context.Background(), "Not much. And you?"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if got := provider.Texts(); strings.Join(got, "|") != "Not much|And you" {
		t.Errorf("synthesized %q, want [Not much And you]", got)
	}
	if n := len(player.Clips()); n != 2 {
		t.Errorf("played %d clips, want 2", n)
	}
	for _, c := range provider.SynthesizeCalls {
		if c.Voice.ID != "v1" {
			t.Errorf("voice = %+v, want ID v1", c.Voice)
		}
	}
}

func TestSpeak_EmptyTextIsNoop(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{}
	player := &audiomock.Player{}
	s := newSpeaker(t, provider, player)

	if err := s.Speak(context.Background(), " ?! "); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(provider.Texts()) != 0 || len(player.Clips()) != 0 {
		t.Error("expected no synthesis or playback for punctuation-only text")
	}
}

func TestSpeak_SynthesisFailureStops(t *testing.T) {
	t.Parallel()

	errTTS := errors.New("tts down")
	provider := &ttsmock.Provider{SynthesizeErr: errTTS, FailOn: "second"}
	player := &audiomock.Player{}
	s := newSpeaker(t, provider, player)

	err := s.Speak(context.Background(), "first. second. third.")
	if !errors.Is(err, errTTS) {
		t.Fatalf("err = %v, want %v", err, errTTS)
	}
	if got := provider.Texts(); len(got) != 2 {
		t.Errorf("synthesized %q, want to stop after the failing utterance", got)
	}
	if n := len(player.Clips()); n != 1 {
		t.Errorf("played %d clips, want 1", n)
	}
}

func TestSpeak_PlaybackFailure(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{}
	player := &audiomock.Player{PlayErr: audio.ErrDeviceUnavailable}
	s := newSpeaker(t, provider, player)

	if err := s.Speak(context.Background(), "hello. world."); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if n := len(provider.Texts()); n != 1 {
		t.Errorf("synthesized %d utterances, want 1", n)
	}
}

func TestSpeak_CancelledContext(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{}
	s := newSpeaker(t, provider, &audiomock.Player{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Speak(ctx, "hello."); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(provider.Texts()) != 0 {
		t.Error("expected no synthesis after cancellation")
	}
}

func TestNewSpeaker_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := speech.NewSpeaker(nil, &audiomock.Player{}); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := speech.NewSpeaker(&ttsmock.Provider{}, nil); err == nil {
		t.Error("expected error for nil player")
	}
}
