package assistant

import (
	"sync"
	"time"
)

// DefaultHistorySize is the number of exchanges kept in memory.
const DefaultHistorySize = 10

// Exchange is one completed command and the reply spoken for it.
type Exchange struct {
	Utterance string
	Response  string
	At        time.Time
}

// History is a bounded, append-only log of exchanges. When full, the oldest
// entry is evicted. Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []Exchange
	limit   int
}

// NewHistory returns a History holding at most limit exchanges. A
// non-positive limit falls back to [DefaultHistorySize].
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit, entries: make([]Exchange, 0, limit)}
}

// Add appends e, evicting the oldest entry when the history is full.
func (h *History) Add(e Exchange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == h.limit {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.limit-1]
	}
	h.entries = append(h.entries, e)
}

// Entries returns a copy of the stored exchanges, oldest first.
func (h *History) Entries() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Exchange, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of stored exchanges.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Cap returns the maximum number of stored exchanges.
func (h *History) Cap() int { return h.limit }
