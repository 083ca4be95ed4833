// Package timeseries provides bounded, insertion-ordered sample storage.
//
// History is a FIFO ring: once capacity is reached each Append evicts the
// oldest entry. Appends and reads are serialized by an RWMutex, so a reader
// observes either the state before or after a complete append.
package timeseries

import (
	"sync"
	"time"
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now() for production.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// History is a bounded FIFO of values. A capacity <= 0 means unbounded.
type History[T any] struct {
	mu       sync.RWMutex
	items    []T
	writeIdx int // oldest entry once the ring is full
	capacity int
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory[T any](capacity int) *History[T] {
	initial := capacity
	if initial <= 0 || initial > 1024 {
		initial = 16
	}
	return &History[T]{
		items:    make([]T, 0, initial),
		capacity: capacity,
	}
}

// Append adds v, evicting the oldest entry when full.
func (h *History[T]) Append(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.capacity <= 0 || len(h.items) < h.capacity {
		h.items = append(h.items, v)
		return
	}
	h.items[h.writeIdx] = v
	h.writeIdx = (h.writeIdx + 1) % h.capacity
}

// Len returns the number of retained entries.
func (h *History[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Cap returns the configured capacity (<= 0 for unbounded).
func (h *History[T]) Cap() int {
	return h.capacity
}

// Latest returns the most recently appended entry.
func (h *History[T]) Latest() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	return h.items[h.newestIdx()], true
}

// Snapshot returns a copy of all entries, oldest first.
func (h *History[T]) Snapshot() []T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastLocked(len(h.items))
}

// Last returns a copy of the newest n entries, oldest first.
func (h *History[T]) Last(n int) []T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.items) {
		n = len(h.items)
	}
	return h.lastLocked(n)
}

func (h *History[T]) lastLocked(n int) []T {
	out := make([]T, 0, n)
	size := len(h.items)
	if n <= 0 {
		return out
	}
	start := 0
	if h.capacity > 0 && size == h.capacity {
		start = h.writeIdx
	}
	for i := size - n; i < size; i++ {
		out = append(out, h.items[(start+i)%size])
	}
	return out
}

func (h *History[T]) newestIdx() int {
	size := len(h.items)
	if h.capacity > 0 && size == h.capacity {
		return (h.writeIdx - 1 + size) % size
	}
	return size - 1
}
