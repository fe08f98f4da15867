// Package energy implements vad.Detector with frame RMS energy compared
// against an adaptive threshold.
//
// The threshold for each frame is the larger of a configured floor and 2.5×
// the rolling 10th-percentile energy of recent frames, so the detector follows
// changes in room noise. Activity is only declared after ConsecutiveFrames
// frames in a row exceed the threshold, which rejects clicks and pops.
package energy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MrWong99/yoassist/pkg/provider/vad"
)

// ErrInvalidConfig is returned by [New] when the configuration is unusable.
var ErrInvalidConfig = errors.New("energy: invalid configuration")

// floorMultiplier scales the noise floor into the dynamic threshold.
const floorMultiplier = 2.5

// Config holds the immutable detector parameters.
type Config struct {
	// EnergyThreshold is the minimum frame RMS treated as speech regardless of
	// how quiet the room is.
	EnergyThreshold float32

	// SilenceDuration is the frame length used by IsSilent.
	SilenceDuration time.Duration

	// ConsecutiveFrames is how many frames in a row must exceed the dynamic
	// threshold before IsActive reports speech.
	ConsecutiveFrames int

	// HistorySize bounds the noise-floor history.
	HistorySize int
}

// DefaultConfig returns the detector defaults: threshold 0.02, 500 ms silence
// frames, 3 consecutive frames, 50 history entries.
func DefaultConfig() Config {
	return Config{
		EnergyThreshold:   0.02,
		SilenceDuration:   500 * time.Millisecond,
		ConsecutiveFrames: 3,
		HistorySize:       DefaultHistorySize,
	}
}

// Validate reports every problem with c as a single joined error wrapping
// [ErrInvalidConfig].
func (c Config) Validate() error {
	var errs []error
	if c.EnergyThreshold < 0 || math.IsNaN(float64(c.EnergyThreshold)) {
		errs = append(errs, fmt.Errorf("%w: energy threshold must be non-negative, got %v", ErrInvalidConfig, c.EnergyThreshold))
	}
	if c.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("%w: silence duration must be positive, got %s", ErrInvalidConfig, c.SilenceDuration))
	}
	if c.ConsecutiveFrames <= 0 {
		errs = append(errs, fmt.Errorf("%w: consecutive frames must be positive, got %d", ErrInvalidConfig, c.ConsecutiveFrames))
	}
	if c.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("%w: history size must be positive, got %d", ErrInvalidConfig, c.HistorySize))
	}
	return errors.Join(errs...)
}

// Detector is the adaptive energy VAD. It is not safe for concurrent use.
type Detector struct {
	cfg   Config
	floor *NoiseFloor
}

// New validates cfg and returns a ready Detector.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, floor: NewNoiseFloor(cfg.HistorySize)}, nil
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config { return d.cfg }

// NoiseFloor returns the current ambient energy estimate.
func (d *Detector) NoiseFloor() float32 { return d.floor.Floor() }

// RMS returns the root-mean-square of frame, or 0 for an empty frame.
func RMS(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

// IsActive implements vad.Detector.
func (d *Detector) IsActive(buf []float32, window int) bool {
	if window <= 0 {
		return false
	}
	run := 0
	for start := 0; start < len(buf); start += window {
		frame := buf[start:min(start+window, len(buf))]
		rms := RMS(frame)
		floor := d.floor.Observe(rms)
		threshold := max(d.cfg.EnergyThreshold, floor*floorMultiplier)

		if rms > threshold {
			run++
			if run >= d.cfg.ConsecutiveFrames {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// IsSilent implements vad.Detector.
func (d *Detector) IsSilent(buf []float32, sampleRate int) bool {
	return !d.IsActive(buf, d.SilenceWindow(sampleRate))
}

// SilenceWindow returns the frame length IsSilent uses at sampleRate.
func (d *Detector) SilenceWindow(sampleRate int) int {
	return int(math.Round(float64(sampleRate) * d.cfg.SilenceDuration.Seconds()))
}

var _ vad.Detector = (*Detector)(nil)
