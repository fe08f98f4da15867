package coqui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/provider/tts"
)

// ---- test helpers ----

// fakeServer answers /details with detailsJSON and /api/tts with wav, and
// records the query of every request per path.
type fakeServer struct {
	mu          sync.Mutex
	queries     map[string][]map[string]string
	wav         []byte
	detailsJSON string
	status      int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}
	f.mu.Lock()
	f.queries[r.URL.Path] = append(f.queries[r.URL.Path], q)
	f.mu.Unlock()

	if f.status != 0 {
		http.Error(w, "model crashed", f.status)
		return
	}
	switch r.URL.Path {
	case detailsPath:
		_, _ = io.WriteString(w, f.detailsJSON)
	case synthPath:
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(f.wav)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeServer) calls(path string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}

func newFake(t *testing.T, pcm []byte, rate int, detailsJSON string) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{
		queries:     map[string][]map[string]string{},
		wav:         audio.EncodeWAV(pcm, rate, 1),
		detailsJSON: detailsJSON,
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

const singleSpeaker = `{"model_name":"ljspeech","language":"en"}`

// ---- Synthesize ----

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty server URL")
	}
}

func TestSynthesize_ExplicitVoice(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	f, srv := newFake(t, pcm, 22050, singleSpeaker)

	p, err := New(srv.URL+"/", WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip, err := p.Synthesize(context.Background(), "  Hello there. ", tts.VoiceProfile{ID: "p225"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.PCM) != string(pcm) || clip.SampleRate != 22050 || clip.Channels != 1 {
		t.Errorf("clip = %v @ %d Hz x%d", clip.PCM, clip.SampleRate, clip.Channels)
	}

	if n := len(f.calls(detailsPath)); n != 0 {
		t.Errorf("/details called %d times with an explicit voice", n)
	}
	q := f.calls(synthPath)[0]
	if q["text"] != "Hello there." || q["speaker_id"] != "p225" || q["language_id"] != "en" {
		t.Errorf("query = %v", q)
	}
}

func TestSynthesize_DiscoversDefaultSpeaker(t *testing.T) {
	f, srv := newFake(t, []byte{1, 0}, 16000, `{"model_name":"vctk","speakers":["p326","p225"]}`)
	p, _ := New(srv.URL)

	for range 2 {
		if _, err := p.Synthesize(context.Background(), "Hi.", tts.VoiceProfile{}); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
	}
	if n := len(f.calls(detailsPath)); n != 1 {
		t.Errorf("/details called %d times, want 1 (cached)", n)
	}
	for _, q := range f.calls(synthPath) {
		if q["speaker_id"] != "p225" {
			t.Errorf("speaker_id = %q, want first sorted speaker p225", q["speaker_id"])
		}
		if _, ok := q["language_id"]; ok {
			t.Error("language_id sent although no language is configured")
		}
	}
}

func TestSynthesize_ConfiguredSpeakerSkipsDiscovery(t *testing.T) {
	f, srv := newFake(t, []byte{1, 0}, 16000, singleSpeaker)
	p, _ := New(srv.URL, WithSpeaker("p300"))

	if _, err := p.Synthesize(context.Background(), "Hi.", tts.VoiceProfile{Language: "de"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(f.calls(detailsPath)) != 0 {
		t.Error("/details should not be called when a speaker is configured")
	}
	q := f.calls(synthPath)[0]
	if q["speaker_id"] != "p300" || q["language_id"] != "de" {
		t.Errorf("query = %v", q)
	}
}

func TestSynthesize_SingleSpeakerModel(t *testing.T) {
	f, srv := newFake(t, []byte{1, 0}, 16000, singleSpeaker)
	p, _ := New(srv.URL)

	if _, err := p.Synthesize(context.Background(), "Hi.", tts.VoiceProfile{}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, ok := f.calls(synthPath)[0]["speaker_id"]; ok {
		t.Error("speaker_id sent to a single-speaker model")
	}
}

func TestSynthesize_Resamples(t *testing.T) {
	pcm := make([]byte, 2*22050) // one second at 22050 Hz
	_, srv := newFake(t, pcm, 22050, singleSpeaker)
	p, _ := New(srv.URL, WithOutputSampleRate(16000))

	clip, err := p.Synthesize(context.Background(), "One second.", tts.VoiceProfile{ID: "x"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", clip.SampleRate)
	}
	if got := clip.Frames(); got < 15990 || got > 16010 {
		t.Errorf("Frames = %d, want ~16000", got)
	}
}

func TestSynthesize_EmptyTextSkipsRequest(t *testing.T) {
	f, srv := newFake(t, []byte{1, 0}, 16000, singleSpeaker)
	p, _ := New(srv.URL)

	clip, err := p.Synthesize(context.Background(), "   ", tts.VoiceProfile{})
	if err != nil || len(clip.PCM) != 0 {
		t.Fatalf("Synthesize(blank) = (%d bytes, %v), want empty, nil", len(clip.PCM), err)
	}
	if len(f.calls(synthPath))+len(f.calls(detailsPath)) != 0 {
		t.Error("server was contacted for blank text")
	}
}

func TestSynthesize_Errors(t *testing.T) {
	voice := tts.VoiceProfile{ID: "p225"}

	t.Run("status", func(t *testing.T) {
		f, srv := newFake(t, []byte{1, 0}, 16000, singleSpeaker)
		f.status = http.StatusInternalServerError
		p, _ := New(srv.URL)
		if _, err := p.Synthesize(context.Background(), "Hi.", voice); err == nil {
			t.Fatal("expected error on HTTP 500")
		}
	})
	t.Run("no audio", func(t *testing.T) {
		_, srv := newFake(t, nil, 16000, singleSpeaker)
		p, _ := New(srv.URL)
		_, err := p.Synthesize(context.Background(), "Hi.", voice)
		if !errors.Is(err, tts.ErrEmptyAudio) {
			t.Fatalf("err = %v, want ErrEmptyAudio", err)
		}
	})
	t.Run("not a wav", func(t *testing.T) {
		f, srv := newFake(t, nil, 16000, singleSpeaker)
		f.wav = []byte("definitely not RIFF")
		p, _ := New(srv.URL)
		if _, err := p.Synthesize(context.Background(), "Hi.", voice); err == nil {
			t.Fatal("expected error for malformed WAV")
		}
	})
	t.Run("details unreachable", func(t *testing.T) {
		f, srv := newFake(t, []byte{1, 0}, 16000, singleSpeaker)
		f.status = http.StatusServiceUnavailable
		p, _ := New(srv.URL)
		if _, err := p.Synthesize(context.Background(), "Hi.", tts.VoiceProfile{}); err == nil {
			t.Fatal("expected error when speaker discovery fails")
		}
	})
}

// ---- ListVoices ----

func TestListVoices(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantIDs []string
	}{
		{name: "multi-speaker", payload: `{"model_name":"vctk","language":"en","speakers":["p326","p225"]}`, wantIDs: []string{"p225", "p326"}},
		{name: "single-speaker", payload: singleSpeaker, wantIDs: []string{"ljspeech"}},
		{name: "unnamed model", payload: `{}`, wantIDs: []string{"default"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newFake(t, nil, 16000, tc.payload)
			p, _ := New(srv.URL)

			voices, err := p.ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices: %v", err)
			}
			if len(voices) != len(tc.wantIDs) {
				t.Fatalf("got %d voices, want %d", len(voices), len(tc.wantIDs))
			}
			for i, want := range tc.wantIDs {
				if voices[i].ID != want || voices[i].Provider != "coqui" {
					t.Errorf("voices[%d] = %+v, want ID %q", i, voices[i], want)
				}
			}
		})
	}
}
