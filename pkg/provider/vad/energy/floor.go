package energy

import "slices"

// DefaultNoiseFloor is the floor reported before any frame has been observed.
const DefaultNoiseFloor float32 = 0.01

// DefaultHistorySize is the number of recent frame energies kept by a
// [NoiseFloor].
const DefaultHistorySize = 50

// NoiseFloor tracks the 10th percentile of recent frame RMS values as an
// estimate of ambient energy. The history is a bounded FIFO; the oldest value
// is evicted once capacity is reached.
//
// NoiseFloor is not safe for concurrent use.
type NoiseFloor struct {
	history []float32 // ring buffer, len <= cap
	next    int       // write index once full
	floor   float32
	sorted  []float32 // scratch for percentile selection
}

// NewNoiseFloor returns a tracker holding at most capacity observations.
// Non-positive capacities fall back to [DefaultHistorySize].
func NewNoiseFloor(capacity int) *NoiseFloor {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &NoiseFloor{
		history: make([]float32, 0, capacity),
		floor:   DefaultNoiseFloor,
		sorted:  make([]float32, 0, capacity),
	}
}

// Observe records rms and returns the recomputed floor.
func (n *NoiseFloor) Observe(rms float32) float32 {
	if len(n.history) < cap(n.history) {
		n.history = append(n.history, rms)
	} else {
		n.history[n.next] = rms
		n.next = (n.next + 1) % len(n.history)
	}

	n.sorted = append(n.sorted[:0], n.history...)
	slices.Sort(n.sorted)
	idx := max(1, len(n.sorted)/10) - 1
	n.floor = n.sorted[idx]
	return n.floor
}

// Floor returns the current estimate.
func (n *NoiseFloor) Floor() float32 { return n.floor }

// Len returns the number of observations currently held.
func (n *NoiseFloor) Len() int { return len(n.history) }

// Cap returns the maximum number of observations held.
func (n *NoiseFloor) Cap() int { return cap(n.history) }
