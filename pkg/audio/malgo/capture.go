// Package malgo implements [audio.Capturer] on top of miniaudio via
// github.com/gen2brain/malgo.
//
// Each Record call opens the default capture device, lets the driver callback
// push noise-gated mono chunks into a bounded channel for the requested
// duration, then stops the device and drains whatever is queued. The callback
// never blocks: when the channel is full, chunks are dropped and counted.
package malgo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	malgolib "github.com/gen2brain/malgo"

	"github.com/MrWong99/yoassist/pkg/audio"
)

const (
	defaultSampleRate = 44100
	defaultChannels   = 1
	defaultQueueSize  = 1024
)

// Option is a functional option for configuring a Capturer.
type Option func(*Capturer)

// WithSampleRate requests a device sample rate in Hz. The device may
// negotiate a different rate; the returned buffer always reports the rate
// actually used.
func WithSampleRate(rate int) Option {
	return func(c *Capturer) { c.sampleRate = rate }
}

// WithChannels requests a channel count. Multi-channel input is down-mixed to
// mono inside the callback.
func WithChannels(n int) Option {
	return func(c *Capturer) { c.channels = n }
}

// WithGateThreshold sets the capture-side noise gate threshold.
func WithGateThreshold(t float32) Option {
	return func(c *Capturer) { c.gate = t }
}

// WithQueueSize sets the capacity (in driver callbacks) of the hand-off
// channel between the audio thread and Record.
func WithQueueSize(n int) Option {
	return func(c *Capturer) { c.queueSize = n }
}

// WithLogger sets the logger used for dropped-chunk and driver warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) { c.log = l }
}

// Capturer records from the system default input device.
type Capturer struct {
	mu     sync.Mutex
	mctx   *malgolib.AllocatedContext
	closed bool

	sampleRate int
	channels   int
	gate       float32
	queueSize  int
	log        *slog.Logger
}

// New initialises the miniaudio backend context. It returns an error wrapping
// [audio.ErrDeviceUnavailable] if no backend could be initialised.
func New(opts ...Option) (*Capturer, error) {
	c := &Capturer{
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
		gate:       audio.DefaultGateThreshold,
		queueSize:  defaultQueueSize,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.sampleRate <= 0 {
		return nil, fmt.Errorf("malgo: sample rate must be positive, got %d", c.sampleRate)
	}
	if c.channels <= 0 {
		return nil, fmt.Errorf("malgo: channels must be positive, got %d", c.channels)
	}
	if c.queueSize <= 0 {
		c.queueSize = defaultQueueSize
	}

	mctx, err := malgolib.InitContext(nil, malgolib.ContextConfig{}, func(msg string) {
		c.log.Debug("malgo backend", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	c.mctx = mctx
	return c, nil
}

// Record implements [audio.Capturer].
func (c *Capturer) Record(ctx context.Context, d time.Duration) (audio.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return audio.Buffer{}, fmt.Errorf("malgo: %w: capturer closed", audio.ErrDeviceUnavailable)
	}

	cfg := malgolib.DefaultDeviceConfig(malgolib.Capture)
	cfg.Capture.Format = malgolib.FormatF32
	cfg.Capture.Channels = uint32(c.channels)
	cfg.SampleRate = uint32(c.sampleRate)
	cfg.Alsa.NoMMap = 1

	chunks := make(chan []float32, c.queueSize)
	var dropped atomic.Int64
	channels := c.channels
	gate := c.gate

	onData := func(_, in []byte, frames uint32) {
		if frames == 0 {
			return
		}
		n := min(int(frames)*channels*4, len(in))
		samples := audio.DownmixToMono(audio.F32LEToFloat32(in[:n]), channels)
		audio.NoiseGate(samples, gate)
		select {
		case chunks <- samples:
		default:
			dropped.Add(1)
		}
	}

	var stoppedEarly atomic.Bool
	var recording atomic.Bool
	onStop := func() {
		if recording.Load() {
			stoppedEarly.Store(true)
		}
	}

	dev, err := malgolib.InitDevice(c.mctx.Context, cfg, malgolib.DeviceCallbacks{Data: onData, Stop: onStop})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("malgo: init capture device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	defer dev.Uninit()

	rate := int(dev.SampleRate())
	if rate <= 0 {
		rate = c.sampleRate
	}

	recording.Store(true)
	if err := dev.Start(); err != nil {
		return audio.Buffer{}, fmt.Errorf("malgo: start capture: %w: %w", audio.ErrStream, err)
	}

	var waitErr error
	timer := time.NewTimer(d)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		waitErr = ctx.Err()
	}
	recording.Store(false)
	if err := dev.Stop(); err != nil {
		c.log.Warn("malgo: stop capture device", "err", err)
	}

	var samples []float32
drain:
	for {
		select {
		case chunk := <-chunks:
			samples = append(samples, chunk...)
		default:
			break drain
		}
	}

	if n := dropped.Load(); n > 0 {
		c.log.Warn("malgo: capture queue full, chunks dropped", "dropped", n, "queue_size", c.queueSize)
	}

	buf := audio.Buffer{Samples: samples, SampleRate: rate}
	if stoppedEarly.Load() {
		return buf, fmt.Errorf("malgo: %w: device stopped during capture", audio.ErrStream)
	}
	return buf, waitErr
}

// Close releases the backend context. Safe to call more than once.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	if err := c.mctx.Uninit(); err != nil {
		errs = append(errs, fmt.Errorf("malgo: uninit context: %w", err))
	}
	c.mctx.Free()
	return errors.Join(errs...)
}

var _ audio.Capturer = (*Capturer)(nil)
