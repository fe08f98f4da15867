// Package audio defines the sample types, device interfaces, and signal
// conditioning used between the microphone and the detection pipeline.
//
// The two device abstractions are:
//
//   - [Capturer] records a fixed-length window from an input device and
//     returns it as a mono float32 [Buffer].
//   - [Player] plays a PCM [Clip] and blocks until the device has drained it.
//
// Implementations live in adapter packages (audio/malgo for capture,
// audio/beep for playback) so the orchestrator never depends on a specific
// audio backend.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when no usable capture or playback device
// could be opened. Callers typically retry on the next cycle.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// ErrStream is returned when the driver reports a fault during an active
// capture or playback window. The affected window should be treated as empty.
var ErrStream = errors.New("audio: stream error")

// Buffer is a mono sequence of float32 samples in the range [-1, 1] recorded
// at SampleRate. A Buffer is owned by whichever stage holds it; stages hand
// it on rather than share it.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples in b.
func (b Buffer) Len() int { return len(b.Samples) }

// Empty reports whether b holds no samples.
func (b Buffer) Empty() bool { return len(b.Samples) == 0 }

// Duration returns the wall-clock length of b. It returns 0 if the sample
// rate is unknown.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Clip is a block of 16-bit signed little-endian PCM produced by a speech
// synthesiser and consumed by a [Player].
type Clip struct {
	// PCM holds interleaved int16 little-endian samples.
	PCM []byte

	// SampleRate in Hz (e.g., 24000 for Google TTS, 16000 for ElevenLabs).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Frames returns the number of sample frames in c.
func (c Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.PCM) / (2 * c.Channels)
}

// Capturer records audio from an input device.
//
// Implementations must be safe to call from a single control loop; concurrent
// Record calls are not supported.
type Capturer interface {
	// Record captures audio for d and returns everything captured, down-mixed to
	// mono and passed through the capture-side noise gate. The window always runs
	// to completion unless ctx is cancelled, in which case whatever was captured
	// so far is returned together with ctx.Err().
	//
	// Returns an error wrapping [ErrDeviceUnavailable] if no device could be
	// opened and [ErrStream] on a driver fault during the window.
	Record(ctx context.Context, d time.Duration) (Buffer, error)

	// Close releases the device and backend context. Safe to call more than once.
	Close() error
}

// Player plays synthesised audio on an output device.
type Player interface {
	// Play writes clip to the output device and returns once it has been fully
	// played or ctx is cancelled.
	Play(ctx context.Context, clip Clip) error
}
