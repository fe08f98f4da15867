// Package beep plays synthesised speech through the system speaker using
// github.com/faiface/beep and decodes compressed speech responses into PCM.
package beep

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	beeplib "github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"github.com/MrWong99/yoassist/pkg/audio"
)

const (
	defaultSampleRate = 44100
	defaultBuffer     = 100 * time.Millisecond
	resampleQuality   = 4
)

// Option is a functional option for configuring a Player.
type Option func(*Player)

// WithSampleRate sets the output device rate. Clips at other rates are
// resampled on the fly.
func WithSampleRate(rate int) Option {
	return func(p *Player) { p.rate = beeplib.SampleRate(rate) }
}

// WithBufferDuration sets the speaker buffer length. Longer buffers are more
// robust against scheduling hiccups at the cost of playback latency.
func WithBufferDuration(d time.Duration) Option {
	return func(p *Player) { p.buffer = d }
}

// Player implements [audio.Player]. The underlying speaker is a process-wide
// singleton, so Play calls are serialised.
type Player struct {
	mu     sync.Mutex
	rate   beeplib.SampleRate
	buffer time.Duration
	ready  bool
}

// New returns a Player. The speaker device is opened lazily on the first
// Play call.
func New(opts ...Option) *Player {
	p := &Player{rate: defaultSampleRate, buffer: defaultBuffer}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Play implements [audio.Player]. It blocks until the clip has been drained
// by the speaker or ctx is cancelled, in which case queued audio is cleared.
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return fmt.Errorf("beep: invalid clip format %dHz/%dch", clip.SampleRate, clip.Channels)
	}
	if clip.Frames() == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		if err := speaker.Init(p.rate, p.rate.N(p.buffer)); err != nil {
			return fmt.Errorf("beep: init speaker: %w: %w", audio.ErrDeviceUnavailable, err)
		}
		p.ready = true
	}

	var s beeplib.Streamer = &pcmStreamer{clip: clip}
	if src := beeplib.SampleRate(clip.SampleRate); src != p.rate {
		s = beeplib.Resample(resampleQuality, src, p.rate, s)
	}

	done := make(chan struct{})
	speaker.Play(beeplib.Seq(s, beeplib.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// pcmStreamer adapts an int16 PCM clip to beep.Streamer. Mono clips are
// duplicated onto both output channels; only the first two channels of
// multi-channel clips are used.
type pcmStreamer struct {
	clip audio.Clip
	pos  int // next frame
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := s.clip.Frames()
	if s.pos >= frames {
		return 0, false
	}
	ch := s.clip.Channels
	for n < len(samples) && s.pos < frames {
		base := s.pos * ch * 2
		l := float64(int16(binary.LittleEndian.Uint16(s.clip.PCM[base:]))) / 32768
		r := l
		if ch > 1 {
			r = float64(int16(binary.LittleEndian.Uint16(s.clip.PCM[base+2:]))) / 32768
		}
		samples[n] = [2]float64{l, r}
		n++
		s.pos++
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

var _ audio.Player = (*Player)(nil)
