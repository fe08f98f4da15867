// Package mock provides in-memory implementations of [audio.Capturer] and
// [audio.Player] for use in unit tests.
//
// Both mocks are safe for concurrent use. They record every call, and their
// exported fields script the return values.
//
// Typical usage:
//
//	cap := &mock.Capturer{
//	    Windows: []mock.Window{
//	        {Buffer: audio.Buffer{Samples: speech, SampleRate: 16000}},
//	        {Err: audio.ErrStream},
//	    },
//	}
//	buf, err := cap.Record(ctx, 2*time.Second)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/yoassist/pkg/audio"
)

// ─── Capturer ─────────────────────────────────────────────────────────────────

// Window is one scripted result of [Capturer.Record].
type Window struct {
	Buffer audio.Buffer
	Err    error
}

// Capturer is a mock implementation of [audio.Capturer]. Each Record call
// consumes the next entry of Windows; once Windows is exhausted, Record
// returns an empty buffer at Fallback's rate (or Fallback itself when set).
type Capturer struct {
	mu sync.Mutex

	// Windows is consumed front to back, one entry per Record call.
	Windows []Window

	// Fallback is returned once Windows is exhausted.
	Fallback audio.Buffer

	// OnRecord, if non-nil, is invoked at the start of every Record call with
	// the zero-based call index. Tests use it to cancel contexts after N windows.
	OnRecord func(call int)

	// CloseErr is returned by Close.
	CloseErr error

	// RecordCalls records the duration passed to every Record call in order.
	RecordCalls []time.Duration

	// CloseCalls counts Close invocations.
	CloseCalls int
}

// Record implements [audio.Capturer].
func (c *Capturer) Record(ctx context.Context, d time.Duration) (audio.Buffer, error) {
	c.mu.Lock()
	call := len(c.RecordCalls)
	c.RecordCalls = append(c.RecordCalls, d)
	hook := c.OnRecord
	var w Window
	if len(c.Windows) > 0 {
		w = c.Windows[0]
		c.Windows = c.Windows[1:]
	} else {
		w = Window{Buffer: c.Fallback}
	}
	c.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	// Hand out a copy so callers can gate in place without touching the script.
	buf := w.Buffer
	buf.Samples = append([]float32(nil), w.Buffer.Samples...)
	return buf, w.Err
}

// Close implements [audio.Capturer].
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	return c.CloseErr
}

// Calls returns the number of Record calls so far.
func (c *Capturer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.RecordCalls)
}

// ─── Player ───────────────────────────────────────────────────────────────────

// Player is a mock implementation of [audio.Player]. It returns immediately
// without producing sound.
type Player struct {
	mu sync.Mutex

	// PlayErr is returned by every Play call when non-nil.
	PlayErr error

	// Played records every clip passed to Play, in order.
	Played []audio.Clip
}

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Played = append(p.Played, clip)
	if p.PlayErr != nil {
		return p.PlayErr
	}
	return ctx.Err()
}

// Clips returns a copy of the clips played so far.
func (p *Player) Clips() []audio.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audio.Clip(nil), p.Played...)
}

// Compile-time interface assertions.
var (
	_ audio.Capturer = (*Capturer)(nil)
	_ audio.Player   = (*Player)(nil)
)
