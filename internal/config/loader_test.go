package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/yoassist/internal/config"
)

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "yoassist.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detector.WakeWord != "hey computer" {
		t.Errorf("wake_word = %q", cfg.Detector.WakeWord)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := config.Load(filepath.Join(dir, "absent.yaml")); err == nil || !strings.Contains(err.Error(), "open") {
		t.Errorf("missing file: err = %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(bad); err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("malformed file: err = %v, want path in message", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Audio:    config.AudioConfig{SampleRate: 8000},
		Detector: config.DetectorConfig{WakeWord: "computer", MaxDistance: 2},
	}
	config.ApplyDefaults(cfg)
	if cfg.Audio.SampleRate != 8000 {
		t.Errorf("sample_rate overwritten: %d", cfg.Audio.SampleRate)
	}
	if cfg.Detector.WakeWord != "computer" || cfg.Detector.MaxDistance != 2 {
		t.Errorf("detector overwritten: %+v", cfg.Detector)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("channels default = %d, want 1", cfg.Audio.Channels)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"stt", "llm", "tts"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("no known providers for %s", kind)
		}
	}
	for kind, def := range map[string]string{
		"stt": config.DefaultSTTProvider,
		"llm": config.DefaultLLMProvider,
		"tts": config.DefaultTTSProvider,
	} {
		found := false
		for _, n := range config.ValidProviderNames[kind] {
			found = found || n == def
		}
		if !found {
			t.Errorf("default %s provider %q is not a known name", kind, def)
		}
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-example")
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("Load(example.yaml): %v", err)
	}
	if cfg.Providers.LLMFallbacks[0].APIKey != "sk-example" {
		t.Errorf("fallback api_key = %q, want expanded env var", cfg.Providers.LLMFallbacks[0].APIKey)
	}
	if cfg.Detector.SilenceDuration.Milliseconds() != 500 {
		t.Errorf("silence_duration = %s, want 500ms", cfg.Detector.SilenceDuration)
	}
	if !strings.HasPrefix(cfg.Conversation.SystemPrompt, "You are a helpful voice assistant.") {
		t.Errorf("system_prompt = %q", cfg.Conversation.SystemPrompt)
	}
	if cfg.Journal.PostgresDSN != "" || cfg.Journal.Path != "" {
		t.Errorf("journal = %+v, want both empty", cfg.Journal)
	}
}
