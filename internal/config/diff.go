package config

import (
	"fmt"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SystemPromptChanged bool
	NewSystemPrompt     string

	// WakeWordChanged is reported so callers can warn; the matcher is built
	// once at startup.
	WakeWordChanged bool

	// RestartRequired lists changed top-level sections that are only read at
	// startup.
	RestartRequired []string
}

// HotReloadable reports whether d contains any change that can be applied
// without a restart.
func (d ConfigDiff) HotReloadable() bool {
	return d.LogLevelChanged || d.SystemPromptChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Conversation.SystemPrompt != new.Conversation.SystemPrompt {
		d.SystemPromptChanged = true
		d.NewSystemPrompt = new.Conversation.SystemPrompt
	}
	if old.Detector.WakeWord != new.Detector.WakeWord {
		d.WakeWordChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Server.TraceSampleRatio != new.Server.TraceSampleRatio {
		d.RestartRequired = append(d.RestartRequired, "server.trace_sample_ratio")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if !detectorEqual(old.Detector, new.Detector) {
		d.RestartRequired = append(d.RestartRequired, "detector")
	}
	oc, nc := old.Conversation, new.Conversation
	oc.SystemPrompt, nc.SystemPrompt = "", ""
	if oc != nc {
		d.RestartRequired = append(d.RestartRequired, "conversation")
	}
	if old.Journal != new.Journal {
		d.RestartRequired = append(d.RestartRequired, "journal")
	}
	return d
}

func detectorEqual(a, b DetectorConfig) bool {
	return a.EnergyThreshold == b.EnergyThreshold &&
		a.SilenceDuration == b.SilenceDuration &&
		a.ConsecutiveFrames == b.ConsecutiveFrames &&
		a.HistorySize == b.HistorySize &&
		a.WakeWord == b.WakeWord &&
		a.MaxDistance == b.MaxDistance &&
		slices.Equal(a.Confusables, b.Confusables)
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.STT, b.STT) && entryEqual(a.LLM, b.LLM) && entryEqual(a.TTS, b.TTS) &&
		slices.EqualFunc(a.STTFallbacks, b.STTFallbacks, entryEqual) &&
		slices.EqualFunc(a.LLMFallbacks, b.LLMFallbacks, entryEqual) &&
		slices.EqualFunc(a.TTSFallbacks, b.TTSFallbacks, entryEqual)
}

// entryEqual compares entries; Options are compared by key set and their
// formatted values.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || fmtValue(av) != fmtValue(bv) {
			return false
		}
	}
	return true
}

func fmtValue(v any) string { return fmt.Sprintf("%v", v) }
