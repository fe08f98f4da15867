// Package journal persists completed command/reply exchanges beyond the
// in-memory history kept by the assistant.
//
// A [Journal] is append-only. The assistant writes one [Entry] per completed
// exchange; journal failures are logged by the caller and never interrupt
// the conversation loop.
package journal

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one persisted exchange.
type Entry struct {
	// ID uniquely identifies the exchange. Stores assign one when it is
	// [uuid.Nil].
	ID uuid.UUID

	// Utterance is the transcribed command.
	Utterance string

	// Response is the reply that was spoken back.
	Response string

	// At is when the exchange completed.
	At time.Time
}

// Journal is the persistence boundary for exchanges.
//
// Implementations must be safe for concurrent use.
type Journal interface {
	// Append stores e.
	Append(ctx context.Context, e Entry) error

	// Recent returns up to limit of the most recent entries, oldest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Append(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

// DefaultMemoryCapacity bounds a [Memory] journal whose Capacity is unset.
const DefaultMemoryCapacity = 1000

// Memory keeps the newest Capacity entries in process memory. Useful for
// tests and for running without a database.
type Memory struct {
	// Capacity defaults to DefaultMemoryCapacity.
	Capacity int

	mu      sync.Mutex
	entries []Entry
}

// Append implements [Journal].
func (m *Memory) Append(_ context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	limit := m.Capacity
	if limit <= 0 {
		limit = DefaultMemoryCapacity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - limit; over > 0 {
		m.entries = slices.Delete(m.entries, 0, over)
	}
	return nil
}

// Recent implements [Journal].
func (m *Memory) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	return slices.Clone(m.entries[len(m.entries)-limit:]), nil
}

var (
	_ Journal = Nop{}
	_ Journal = (*Memory)(nil)
)
