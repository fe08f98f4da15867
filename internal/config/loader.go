package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/yoassist/internal/assistant"
	"github.com/MrWong99/yoassist/internal/wakeword"
	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/provider/vad/energy"
)

// Default provider selection when none is configured.
const (
	DefaultSTTProvider = "whisper"
	DefaultLLMProvider = "ollama"
	DefaultTTSProvider = "gtranslate"
	DefaultListenAddr  = ":8080"
	DefaultCaptureRate = 44100
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "deepgram"},
	"llm": {"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"gtranslate", "coqui", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands ${VAR} references against the environment, then
// decodes r strictly (unknown keys are errors) and validates the result
// after defaults are applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero-valued field of cfg with its default.
// Explicit values, including invalid ones, are left for [Validate].
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = DefaultSTTProvider
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = DefaultLLMProvider
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = DefaultTTSProvider
	}

	a := &cfg.Audio
	if a.SampleRate == 0 {
		a.SampleRate = DefaultCaptureRate
	}
	if a.Channels == 0 {
		a.Channels = 1
	}
	if a.GateThreshold == 0 {
		a.GateThreshold = float64(audio.DefaultGateThreshold)
	}
	if a.TargetRate == 0 {
		a.TargetRate = audio.DefaultTargetRate
	}

	def := energy.DefaultConfig()
	d := &cfg.Detector
	if d.EnergyThreshold == 0 {
		d.EnergyThreshold = float64(def.EnergyThreshold)
	}
	if d.SilenceDuration == 0 {
		d.SilenceDuration = def.SilenceDuration
	}
	if d.ConsecutiveFrames == 0 {
		d.ConsecutiveFrames = def.ConsecutiveFrames
	}
	if d.HistorySize == 0 {
		d.HistorySize = def.HistorySize
	}
	if d.WakeWord == "" {
		d.WakeWord = wakeword.DefaultPhrase
	}
	if d.MaxDistance == 0 {
		d.MaxDistance = 1
	}

	c := &cfg.Conversation
	if c.WakeWindow == 0 {
		c.WakeWindow = assistant.DefaultWakeWindow
	}
	if c.ListenWindow == 0 {
		c.ListenWindow = assistant.DefaultListenWindow
	}
	if c.WindowSize == 0 {
		c.WindowSize = assistant.DefaultWindowSize
	}
	if c.SilenceRate == 0 {
		c.SilenceRate = assistant.DefaultSilenceRate
	}
	if c.RetryPause == 0 {
		c.RetryPause = assistant.DefaultRetryPause
	}
	if c.HistorySize == 0 {
		c.HistorySize = assistant.DefaultHistorySize
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		add("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	if r := cfg.Server.TraceSampleRatio; r < 0 || r > 1 {
		add("server.trace_sample_ratio %v is out of range [0, 1]", r)
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	fallbacks := []struct {
		kind string
		list []ProviderEntry
	}{
		{"stt", cfg.Providers.STTFallbacks},
		{"llm", cfg.Providers.LLMFallbacks},
		{"tts", cfg.Providers.TTSFallbacks},
	}
	for _, fb := range fallbacks {
		for i, e := range fb.list {
			if e.Name == "" {
				add("providers.%s_fallbacks[%d].name is required", fb.kind, i)
				continue
			}
			validateProviderName(fb.kind, e.Name)
		}
	}

	a := cfg.Audio
	if a.SampleRate < 0 {
		add("audio.sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.Channels < 0 {
		add("audio.channels must be positive, got %d", a.Channels)
	}
	if a.GateThreshold < 0 || a.GateThreshold >= 1 {
		add("audio.gate_threshold %.3f is out of range [0, 1)", a.GateThreshold)
	}
	if a.TargetRate < 0 {
		add("audio.target_rate must be positive, got %d", a.TargetRate)
	}

	d := cfg.Detector
	if d.EnergyThreshold < 0 {
		add("detector.energy_threshold must not be negative, got %v", d.EnergyThreshold)
	}
	if d.SilenceDuration < 0 {
		add("detector.silence_duration must be positive, got %s", d.SilenceDuration)
	}
	if d.ConsecutiveFrames < 0 {
		add("detector.consecutive_frames must be positive, got %d", d.ConsecutiveFrames)
	}
	if d.HistorySize < 0 {
		add("detector.history_size must be positive, got %d", d.HistorySize)
	}
	if d.WakeWord != "" && strings.TrimSpace(d.WakeWord) == "" {
		add("detector.wake_word must not be blank")
	}
	if d.MaxDistance < 0 {
		add("detector.max_distance must not be negative, got %d", d.MaxDistance)
	}

	c := cfg.Conversation
	if c.WakeWindow < 0 {
		add("conversation.wake_window must be positive, got %s", c.WakeWindow)
	}
	if c.ListenWindow < 0 {
		add("conversation.listen_window must be positive, got %s", c.ListenWindow)
	}
	if c.WindowSize < 0 {
		add("conversation.window_size must be positive, got %d", c.WindowSize)
	}
	if c.SilenceRate < 0 {
		add("conversation.silence_rate must be positive, got %d", c.SilenceRate)
	}
	if c.RetryPause < 0 {
		add("conversation.retry_pause must not be negative, got %s", c.RetryPause)
	}
	if c.HistorySize < 0 {
		add("conversation.history_size must be positive, got %d", c.HistorySize)
	}
	if c.WakeWindow > 0 && c.ListenWindow > 0 && c.ListenWindow < c.WakeWindow {
		slog.Warn("conversation.listen_window is shorter than wake_window; commands may be cut off",
			"listen_window", c.ListenWindow,
			"wake_window", c.WakeWindow,
		)
	}

	if cfg.Journal.PostgresDSN == "" && cfg.Journal.Path == "" {
		slog.Debug("no journal configured; exchanges are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
