package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/yoassist/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
conversation:
  system_prompt: "Be brief."
`

const watcherUpdatedYAML = `
server:
  log_level: debug
conversation:
  system_prompt: "Be chatty."
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// rewrite replaces the file content and moves its mtime forward so the
// change is visible regardless of filesystem timestamp granularity.
func rewrite(t *testing.T, path, content string, bump time.Duration) {
	t.Helper()
	writeFile(t, path, content)
	ts := time.Now().Add(bump)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

// recorder collects onChange invocations.
type recorder struct {
	mu    sync.Mutex
	pairs [][2]*config.Config
	fired chan struct{}
}

func newRecorder() *recorder { return &recorder{fired: make(chan struct{}, 8)} }

func (r *recorder) onChange(old, new *config.Config) {
	r.mu.Lock()
	r.pairs = append(r.pairs, [2]*config.Config{old, new})
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs)
}

func startWatcher(t *testing.T, content string, onChange func(old, new *config.Config)) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yoassist.yaml")
	writeFile(t, path, content)
	w, err := config.NewWatcher(path, onChange, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path
}

func TestWatcher_InitialLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, watcherValidYAML, nil)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() = nil after initial load")
	}
	if cfg.Conversation.SystemPrompt != "Be brief." {
		t.Errorf("system_prompt = %q", cfg.Conversation.SystemPrompt)
	}
	if cfg.Detector.WakeWord != "yo" {
		t.Errorf("wake_word default = %q, want yo", cfg.Detector.WakeWord)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	w, path := startWatcher(t, watcherValidYAML, rec.onChange)

	rewrite(t, path, watcherUpdatedYAML, 2*time.Second)

	select {
	case <-rec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange not invoked")
	}

	rec.mu.Lock()
	old, cur := rec.pairs[0][0], rec.pairs[0][1]
	rec.mu.Unlock()

	d := config.Diff(old, cur)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.SystemPromptChanged || d.NewSystemPrompt != "Be chatty." {
		t.Errorf("system prompt diff = %+v", d)
	}
	if got := w.Current(); got != cur {
		t.Error("Current() does not return the reloaded config")
	}
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	w, path := startWatcher(t, watcherValidYAML, rec.onChange)

	rewrite(t, path, watcherInvalidYAML, 2*time.Second)
	time.Sleep(200 * time.Millisecond)

	if n := rec.count(); n != 0 {
		t.Errorf("onChange fired %d times for an invalid file", n)
	}
	if lvl := w.Current().Server.LogLevel; lvl != config.LogInfo {
		t.Errorf("log_level = %q, want previous %q", lvl, config.LogInfo)
	}

	// A later valid edit is still picked up.
	rewrite(t, path, watcherUpdatedYAML, 4*time.Second)
	select {
	case <-rec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("recovery edit not picked up")
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	_, path := startWatcher(t, watcherValidYAML, rec.onChange)

	ts := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := rec.count(); n != 0 {
		t.Errorf("onChange fired %d times for a touch", n)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, watcherValidYAML, nil)
	w.Stop()
	w.Stop()
}
