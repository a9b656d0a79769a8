package live

import (
	"sync"

	"github.com/ethpandaops/reportoor/pkg/model"
)

// Ring is a fixed-capacity circular buffer holding the most recent
// streamed console-log entries. Oldest entries are evicted in FIFO
// order once capacity is reached.
type Ring struct {
	mu       sync.Mutex
	entries  []model.ConsoleLogEntry
	capacity int
	head     int
	total    int64
}

// NewRing creates a ring with the given capacity. Capacity below one
// falls back to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring{
		entries:  make([]model.ConsoleLogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Push appends one entry, evicting the oldest when full.
func (r *Ring) Push(entry model.ConsoleLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, entry)
	} else {
		r.entries[r.head] = entry
		r.head = (r.head + 1) % r.capacity
	}

	r.total++
}

// Snapshot returns the retained entries oldest to newest.
func (r *Ring) Snapshot() []model.ConsoleLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.ConsoleLogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.head:]...)
	out = append(out, r.entries[:r.head]...)

	return out
}

// Len returns how many entries are currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// TotalPushed returns how many entries were ever pushed, including
// evicted ones.
func (r *Ring) TotalPushed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.total
}
