package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/yoassist/pkg/provider/tts"
)

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}
	if _, err := New("key", WithOutputFormat("pcm_x")); err == nil {
		t.Error("expected error for malformed PCM rate")
	}
	p, err := New("key", WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.sampleRate != 24000 {
		t.Errorf("sampleRate = %d, want 24000", p.sampleRate)
	}
}

func TestStreamURL(t *testing.T) {
	p, _ := New("key", WithModel("eleven_turbo_v2"))
	u, err := url.Parse(p.streamURL("abc123"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "api.elevenlabs.io" {
		t.Errorf("host = %q", u.Host)
	}
	if u.Path != "/v1/text-to-speech/abc123/stream-input" {
		t.Errorf("path = %q", u.Path)
	}
	if got := u.Query().Get("model_id"); got != "eleven_turbo_v2" {
		t.Errorf("model_id = %q", got)
	}
	if got := u.Query().Get("output_format"); got != "pcm_16000" {
		t.Errorf("output_format = %q", got)
	}
}

// fakeStream is a stream-input server that answers each text message with
// one audio chunk and finishes with isFinal once the empty EOS message arrives.
type fakeStream struct {
	mu    sync.Mutex
	path  string
	texts []string
	key   string
	fail  bool
}

func (f *fakeStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	f.mu.Lock()
	f.path = r.URL.Path
	f.mu.Unlock()

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m map[string]any
		_ = json.Unmarshal(msg, &m)
		text, _ := m["text"].(string)

		f.mu.Lock()
		if k, ok := m["xi_api_key"].(string); ok {
			f.key = k
		}
		f.texts = append(f.texts, text)
		f.mu.Unlock()

		if f.fail {
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"error":"quota_exceeded","message":"no credits"}`))
			return
		}
		switch {
		case text == "":
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"isFinal":true}`))
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case strings.TrimSpace(text) != "":
			chunk := base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0})
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"audio":"`+chunk+`"}`))
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"audio":"`+chunk+`"}`))
		}
	}
}

func newStreamProvider(t *testing.T, f *fakeStream) *Provider {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	p, err := New("secret", WithEndpoints("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL+"/voices"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestSynthesize_CollectsUntilFinal(t *testing.T) {
	f := &fakeStream{}
	p := newStreamProvider(t, f)

	clip, err := p.Synthesize(context.Background(), "Hello there", tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(clip.PCM) != 8 {
		t.Errorf("len(PCM) = %d, want 8", len(clip.PCM))
	}
	if clip.SampleRate != 16000 || clip.Channels != 1 {
		t.Errorf("format = %d Hz x%d, want 16000 Hz x1", clip.SampleRate, clip.Channels)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.key != "secret" {
		t.Errorf("xi_api_key = %q, want secret", f.key)
	}
	if want := "/" + DefaultVoiceID + "/stream-input"; f.path != want {
		t.Errorf("path = %q, want %q", f.path, want)
	}
	if len(f.texts) != 3 || f.texts[1] != "Hello there " || f.texts[2] != "" {
		t.Errorf("texts = %q, want [BOI, %q, EOS]", f.texts, "Hello there ")
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	p := newStreamProvider(t, &fakeStream{fail: true})
	if _, err := p.Synthesize(context.Background(), "Hi", tts.VoiceProfile{ID: "v"}); err == nil {
		t.Fatal("expected error from server error message")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := New("key", WithEndpoints("ws://127.0.0.1:1", ""))
	clip, err := p.Synthesize(context.Background(), " ", tts.VoiceProfile{})
	if err != nil || len(clip.PCM) != 0 {
		t.Fatalf("Synthesize(blank) = (%d bytes, %v), want empty, nil", len(clip.PCM), err)
	}
}

func TestSynthesize_NoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		for i := 0; i < 3; i++ {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"isFinal":true}`))
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoints("ws"+strings.TrimPrefix(srv.URL, "http"), ""))
	_, err := p.Synthesize(context.Background(), "Hi", tts.VoiceProfile{})
	if !errors.Is(err, tts.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade","labels":{"accent":"american"}}]}`)
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoints("ws://unused", srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 {
		t.Fatalf("got %d voices, want 1", len(voices))
	}
	v := voices[0]
	if v.ID != "v1" || v.Name != "Rachel" || v.Provider != "elevenlabs" {
		t.Errorf("voice = %+v", v)
	}
	if v.Metadata["accent"] != "american" || v.Metadata["category"] != "premade" {
		t.Errorf("metadata = %v", v.Metadata)
	}

	bad, _ := New("wrong", WithEndpoints("ws://unused", srv.URL))
	if _, err := bad.ListVoices(context.Background()); err == nil {
		t.Error("expected error for unauthorized key")
	}
}
