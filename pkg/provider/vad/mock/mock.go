// Package mock provides a test double for the vad.Detector interface.
//
// Use Detector to script activity and silence verdicts and inspect the
// buffers that were submitted.
//
// Example:
//
//	det := &mock.Detector{Active: []bool{true}, Silent: []bool{false, true}}
//	det.IsActive(buf, 1024) // true
//	det.IsActive(buf, 1024) // false (script exhausted, DefaultActive)
package mock

import (
	"sync"

	"github.com/MrWong99/yoassist/pkg/provider/vad"
)

// IsActiveCall records a single invocation of IsActive.
type IsActiveCall struct {
	// Len is len(buf) at the time of the call.
	Len int
	// Window is the frame length passed to IsActive.
	Window int
}

// IsSilentCall records a single invocation of IsSilent.
type IsSilentCall struct {
	// Len is len(buf) at the time of the call.
	Len int
	// SampleRate is the rate passed to IsSilent.
	SampleRate int
}

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Active is consumed front to back by IsActive. Once empty, IsActive
	// returns DefaultActive.
	Active []bool

	// DefaultActive is returned by IsActive when Active is exhausted.
	DefaultActive bool

	// Silent is consumed front to back by IsSilent. Once empty, IsSilent
	// returns DefaultSilent.
	Silent []bool

	// DefaultSilent is returned by IsSilent when Silent is exhausted.
	DefaultSilent bool

	// IsActiveCalls records every call to IsActive in order.
	IsActiveCalls []IsActiveCall

	// IsSilentCalls records every call to IsSilent in order.
	IsSilentCalls []IsSilentCall
}

// IsActive implements vad.Detector.
func (d *Detector) IsActive(buf []float32, window int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.IsActiveCalls = append(d.IsActiveCalls, IsActiveCall{Len: len(buf), Window: window})
	if len(d.Active) == 0 {
		return d.DefaultActive
	}
	v := d.Active[0]
	d.Active = d.Active[1:]
	return v
}

// IsSilent implements vad.Detector.
func (d *Detector) IsSilent(buf []float32, sampleRate int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.IsSilentCalls = append(d.IsSilentCalls, IsSilentCall{Len: len(buf), SampleRate: sampleRate})
	if len(d.Silent) == 0 {
		return d.DefaultSilent
	}
	v := d.Silent[0]
	d.Silent = d.Silent[1:]
	return v
}

var _ vad.Detector = (*Detector)(nil)
