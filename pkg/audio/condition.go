package audio

const (
	// DefaultGateThreshold is the absolute amplitude below which samples are
	// zeroed by [NoiseGate].
	DefaultGateThreshold float32 = 0.02

	// DefaultTargetRate is the sample rate expected by the speech recogniser.
	DefaultTargetRate = 16000
)

// NoiseGate zeroes every sample whose absolute value is below threshold and
// leaves all others unchanged. It is a hard cutoff with no attack or release.
// samples is modified in place and returned for convenience.
func NoiseGate(samples []float32, threshold float32) []float32 {
	for i, s := range samples {
		if s < threshold && s > -threshold {
			samples[i] = 0
		}
	}
	return samples
}

// Resample converts samples from srcRate to dstRate using linear
// interpolation. Equal rates return samples unchanged.
//
// The output has floor(len(samples)*dstRate/srcRate) slots; emission stops
// early once the source position reaches the last input sample, so the result
// may be a few samples shorter than that at the tail. No anti-aliasing filter
// is applied.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if len(samples) == 0 {
		return []float32{}
	}

	// Integer arithmetic keeps the floor exact for rate pairs like 44100→16000.
	outLen := len(samples) * dstRate / srcRate
	step := float64(srcRate) / float64(dstRate)
	out := make([]float32, 0, outLen)
	last := len(samples) - 1

	for i := range outLen {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			break
		}
		frac := float32(pos - float64(idx))
		out = append(out, samples[idx]*(1-frac)+samples[idx+1]*frac)
	}
	return out
}

// DownmixToMono averages interleaved multi-channel samples into a single
// channel. Mono input (channels <= 1) is returned unchanged; a trailing
// partial frame is dropped.
func DownmixToMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for f := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[f*channels+c]
		}
		mono[f] = sum / float32(channels)
	}
	return mono
}

// Conditioner applies the noise gate followed by linear resampling to the
// target rate. The zero value is not usable; construct with [NewConditioner].
type Conditioner struct {
	gate   float32
	target int
}

// ConditionerOption configures a [Conditioner].
type ConditionerOption func(*Conditioner)

// WithGateThreshold overrides [DefaultGateThreshold].
func WithGateThreshold(t float32) ConditionerOption {
	return func(c *Conditioner) { c.gate = t }
}

// WithTargetRate overrides [DefaultTargetRate].
func WithTargetRate(rate int) ConditionerOption {
	return func(c *Conditioner) {
		if rate > 0 {
			c.target = rate
		}
	}
}

// NewConditioner returns a Conditioner with the given options applied over
// the defaults.
func NewConditioner(opts ...ConditionerOption) *Conditioner {
	c := &Conditioner{gate: DefaultGateThreshold, target: DefaultTargetRate}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TargetRate returns the rate of buffers produced by Condition.
func (c *Conditioner) TargetRate() int { return c.target }

// Condition gates raw and resamples it to the target rate. raw's samples are
// gated in place; ownership of the returned buffer passes to the caller.
func (c *Conditioner) Condition(raw Buffer) Buffer {
	NoiseGate(raw.Samples, c.gate)
	if raw.SampleRate <= 0 {
		return Buffer{Samples: raw.Samples, SampleRate: c.target}
	}
	return Buffer{
		Samples:    Resample(raw.Samples, raw.SampleRate, c.target),
		SampleRate: c.target,
	}
}
