// Package entrypoint provides the entry-point registry: the small set
// of high-layer seeds the insertion engine descends from, one per
// active admissibility predicate, so filtered search always has a
// reachable seed. The common case is a single, always-admitting
// predicate and a single descriptor.
package entrypoint

import "sync"

// Predicate is an admissibility test a seed descriptor must satisfy to
// be handed back as an anchor for a given insertion or search.
type Predicate func(point uint64) bool

// Descriptor is a candidate seed: a point id and the highest layer it
// participates in.
type Descriptor struct {
	Point uint64
	Level int
}

// Registry holds at most Capacity descriptors, one per distinct
// admissibility context observed so far.
type Registry struct {
	mu         sync.Mutex
	capacity   int
	descriptor []Descriptor
}

// New creates an empty Registry bounded to capacity descriptors. A
// capacity of 0 or less is treated as unbounded, matching
// the common case being a single always-admitting predicate.
func New(capacity int) *Registry {
	return &Registry{capacity: capacity}
}

// Len returns the number of descriptors currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.descriptor)
}

// OnNewPoint records a newly inserted point (p, level) and looks for a
// tracked descriptor whose point satisfies predicate.
//
//   - If none exists and the registry has room, (p, level) is installed
//     and OnNewPoint returns (Descriptor{}, false) — p is itself the new
//     seed.
//   - If none exists and the registry is at capacity, the first tracked
//     descriptor is returned unchanged, even though its point does not
//     satisfy predicate.
//   - Otherwise the existing descriptor is returned first; if level
//     exceeds it, the descriptor is replaced with (p, level) only after
//     the old value has been captured for return.
func (r *Registry) OnNewPoint(p uint64, level int, predicate Predicate) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, d := range r.descriptor {
		if !predicate(d.Point) {
			continue
		}
		old := d
		if level > old.Level {
			r.descriptor[i] = Descriptor{Point: p, Level: level}
		}
		return old, true
	}

	if r.capacity > 0 && len(r.descriptor) >= r.capacity {
		// No existing descriptor is admissible under predicate and there
		// is no room to track a new context; fall back to the first
		// tracked descriptor so descent still has an anchor, per the
		// reachability invariant.
		if len(r.descriptor) > 0 {
			return r.descriptor[0], true
		}
	}

	r.descriptor = append(r.descriptor, Descriptor{Point: p, Level: level})
	return Descriptor{}, false
}

// Descriptors returns a snapshot of all tracked descriptors, in
// insertion order, as exposed to the search subsystem after sealing.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Descriptor, len(r.descriptor))
	copy(out, r.descriptor)
	return out
}
