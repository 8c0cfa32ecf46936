// Package visited provides reusable "has this id been seen during this
// search" bitmaps for hnswbuild's beam search.
package visited

import (
	"fmt"
	"sync"
)

// Set is a generation-stamped "seen" bitmap. Clearing is O(1): instead of
// zeroing the backing slice, Reset bumps the generation counter so every
// previously-stamped slot reads as stale.
type Set struct {
	capacity int
	gen      []uint32
	current  uint32
}

func newSet(capacity int) *Set {
	return &Set{
		capacity: capacity,
		gen:      make([]uint32, capacity),
		current:  1,
	}
}

// Reset clears the set for reuse without touching the backing array.
func (s *Set) Reset() {
	s.current++
	if s.current == 0 {
		// wrapped around: force a real clear so old generations can't collide
		for i := range s.gen {
			s.gen[i] = 0
		}
		s.current = 1
	}
}

// Check reports whether id has already been marked, without marking it.
func (s *Set) Check(id uint64) bool {
	if id >= uint64(s.capacity) {
		return false
	}
	return s.gen[id] == s.current
}

// CheckAndSet marks id as seen and reports whether it was already seen.
func (s *Set) CheckAndSet(id uint64) bool {
	if id >= uint64(s.capacity) {
		return false
	}
	wasSeen := s.gen[id] == s.current
	s.gen[id] = s.current
	return wasSeen
}

// Capacity returns the maximum id (exclusive) the set can track.
func (s *Set) Capacity() int { return s.capacity }

// ErrCapacityExceeded is returned by Acquire when the requested capacity
// exceeds the pool's configured maximum.
type ErrCapacityExceeded struct {
	Requested int
	Max       int
}

func (e *ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("visited: requested capacity %d exceeds pool max %d", e.Requested, e.Max)
}

// Pool hands out cleared Set values sized to at least the pool's
// configured max capacity. It is safe for concurrent use by multiple
// builders: acquire/release never blocks on a single lock shared across
// callers, since sync.Pool itself is already per-P sharded.
type Pool struct {
	maxCapacity int
	pool        sync.Pool
}

// NewPool creates a visited-set pool whose sets can track ids in
// [0, maxCapacity).
func NewPool(maxCapacity int) *Pool {
	p := &Pool{maxCapacity: maxCapacity}
	p.pool.New = func() any {
		return newSet(maxCapacity)
	}
	return p
}

// Acquire returns a cleared Set able to track ids in [0, capacity). It
// fails with ErrCapacityExceeded if capacity is larger than the pool's
// configured maximum.
func (p *Pool) Acquire(capacity int) (*Set, error) {
	if capacity > p.maxCapacity {
		return nil, &ErrCapacityExceeded{Requested: capacity, Max: p.maxCapacity}
	}
	s := p.pool.Get().(*Set)
	s.Reset()
	return s, nil
}

// Release returns a Set to the pool for reuse.
func (p *Pool) Release(s *Set) {
	p.pool.Put(s)
}
