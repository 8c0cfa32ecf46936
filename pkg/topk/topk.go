// Package topk provides the fixed-capacity "best-so-far" container used
// to collect beam-search candidates during graph construction.
//
// It is deliberately a distinct abstraction from scored.Heap: the heap is
// an unbounded max-heap driving frontier expansion, while Queue is a
// bounded min-of-max structure — the only thing in the insertion engine
// actually constrained by ef_construct.
package topk

import "github.com/vectorforge/hnswbuild/pkg/scored"

// Queue holds up to Capacity scored.Offset values, evicting the worst
// (lowest-scoring) one whenever a better candidate arrives at capacity.
type Queue struct {
	capacity int
	items    []scored.Offset
}

// New creates a Queue with the given fixed capacity.
func New(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		items:    make([]scored.Offset, 0, capacity),
	}
}

// Len returns the number of elements currently held.
func (q *Queue) Len() int { return len(q.items) }

// Capacity returns the queue's fixed capacity.
func (q *Queue) Capacity() int { return q.capacity }

// Top returns the current minimum (the worst of the best), and false if
// the queue is empty.
func (q *Queue) Top() (scored.Offset, bool) {
	if len(q.items) == 0 {
		return scored.Offset{}, false
	}
	worst := q.items[0]
	for i := 1; i < len(q.items); i++ {
		if q.items[i].Less(worst) {
			worst = q.items[i]
		}
	}
	return worst, true
}

// Push attempts to add x to the queue.
//
//   - If the queue has room, x is added; Push reports added=true and
//     hasEvicted=false (no element displaced).
//   - If the queue is full and x outranks the current minimum, the
//     minimum is evicted and x takes its place; Push returns the evicted
//     element with added=true, hasEvicted=true.
//   - Otherwise x is rejected outright: Push returns x itself with
//     added=false.
func (q *Queue) Push(x scored.Offset) (evicted scored.Offset, hasEvicted bool, added bool) {
	if len(q.items) < q.capacity {
		q.items = append(q.items, x)
		return scored.Offset{}, false, true
	}

	worstIdx := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].Less(q.items[worstIdx]) {
			worstIdx = i
		}
	}
	worst := q.items[worstIdx]
	if x.Less(worst) || x == worst {
		return x, false, false
	}

	evicted = worst
	q.items[worstIdx] = x
	return evicted, true, true
}

// Sorted returns the held elements in descending score order, as required
// by the heuristic selector, which must consume candidates in
// descending order.
func (q *Queue) Sorted() []scored.Offset {
	out := make([]scored.Offset, len(q.items))
	copy(out, q.items)
	// Insertion sort: ef_construct is small (tens to low hundreds), and
	// this keeps the tie-break identical to scored.Offset.Less without
	// pulling in sort.Slice's interface-based comparator overhead.
	for i := 1; i < len(out); i++ {
		v := out[i]
		j := i - 1
		for j >= 0 && out[j].Less(v) {
			out[j+1] = out[j]
			j--
		}
		out[j+1] = v
	}
	return out
}
