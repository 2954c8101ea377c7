// Package ringbuf provides a fixed-capacity ring that retains the most
// recent RSI samples for a symbol. Once full, a push displaces the oldest
// sample.
package ringbuf

import (
	"sync"
	"time"
)

// Sample is one recorded RSI observation.
type Sample struct {
	At  time.Time `json:"at"`
	RSI float64   `json:"rsi"`
}

// Ring keeps the last Cap() samples. Safe for concurrent use.
// Capacity is a power of two for fast bitwise modulo.
type Ring struct {
	mu         sync.RWMutex
	buf        []Sample
	mask       uint64
	head       uint64 // total pushes; next write index = head & mask
	overwrites uint64
}

// New creates a ring buffer. capacity is rounded up to the next power of
// two. Minimum capacity is 2.
func New(capacity int) *Ring {
	c := nextPow2(capacity)
	if c < 2 {
		c = 2
	}
	return &Ring{
		buf:  make([]Sample, c),
		mask: uint64(c - 1),
	}
}

// Push records a sample, overwriting the oldest one once the ring is full.
// It reports whether an older sample was displaced.
func (r *Ring) Push(s Sample) bool {
	r.mu.Lock()
	displaced := r.head >= uint64(len(r.buf))
	if displaced {
		r.overwrites++
	}
	r.buf[r.head&r.mask] = s
	r.head++
	r.mu.Unlock()
	return displaced
}

// Last returns the most recent sample.
func (r *Ring) Last() (Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.head == 0 {
		return Sample{}, false
	}
	return r.buf[(r.head-1)&r.mask], true
}

// Snapshot returns the retained samples, oldest first.
func (r *Ring) Snapshot() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.retained()
	out := make([]Sample, 0, n)
	for i := r.head - n; i < r.head; i++ {
		out = append(out, r.buf[i&r.mask])
	}
	return out
}

// Len returns the number of retained samples.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(r.retained())
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Overwrites returns how many samples have been displaced by newer ones.
func (r *Ring) Overwrites() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overwrites
}

func (r *Ring) retained() uint64 {
	if r.head > uint64(len(r.buf)) {
		return uint64(len(r.buf))
	}
	return r.head
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
