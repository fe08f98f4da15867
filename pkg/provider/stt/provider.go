// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a whisper.cpp server, the
// in-process whisper.cpp bindings, or a hosted service such as Deepgram) and
// turns one captured window of mono float32 audio into text. Every provider
// returns text passed through [CleanTranscript], so callers never see
// per-segment noise or silence markers.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"regexp"
	"strings"
)

// TargetSampleRate is the rate all providers accept without resampling.
const TargetSampleRate = 16000

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises speech in samples (mono, [-1, 1]) recorded at
	// sampleRate and returns the cleaned text. An empty string with a nil error
	// means nothing intelligible was heard.
	//
	// The call honours ctx for cancellation; providers apply their own request
	// timeouts on top.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// markerPattern matches the bracketed annotations whisper-family models emit
// for non-speech segments.
var markerPattern = regexp.MustCompile(`(?i)[\[(](noise|silence|blank_audio|music|inaudible)[\])]`)

// CleanTranscript removes non-speech markers such as "[noise]" and
// "[silence]" and collapses whitespace.
func CleanTranscript(text string) string {
	text = markerPattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// JoinSegments cleans each segment and joins the non-empty ones with single
// spaces.
func JoinSegments(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if c := CleanTranscript(s); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
