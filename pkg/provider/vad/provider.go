// Package vad defines the Detector interface for voice activity detection.
//
// A Detector classifies a buffer of mono float32 samples as containing speech
// or not. Detectors are stateful: implementations may adapt internal estimates
// (for example an ambient noise floor) on every call, so successive calls on
// the same Detector are not independent.
//
// Detectors are not required to be safe for concurrent use. The conversation
// loop owns exactly one Detector and calls it from a single goroutine.
package vad

// Detector decides whether captured audio contains speech.
type Detector interface {
	// IsActive splits buf into consecutive frames of window samples (the last
	// frame may be shorter) and reports whether enough consecutive frames carry
	// speech energy. Frames after the first positive decision are not inspected.
	IsActive(buf []float32, window int) bool

	// IsSilent reports whether buf should be treated as silence for timeout
	// decisions, using a frame length derived from sampleRate and the
	// detector's configured silence duration. It shares adaptation state with
	// IsActive.
	IsSilent(buf []float32, sampleRate int) bool
}
