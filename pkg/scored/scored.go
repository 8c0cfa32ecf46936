// Package scored provides the (point id, similarity score) pair used
// throughout hnswbuild's graph-construction heaps and queues.
package scored

// Offset pairs a point id with its similarity score against some query
// or reference point. Higher scores mean more similar: the core is
// similarity-maximizing, so distance metrics must be negated before
// they reach this package.
//
// Offset orders by Score, breaking ties on ID ascending. Every heap,
// queue, and sort in hnswbuild that touches Offset values must use this
// order (or its exact inverse) to keep graph construction deterministic.
type Offset struct {
	ID    uint64
	Score float32
}

// Less reports whether o ranks below other: lower score, or equal score
// and a larger id (since ties break on ascending id, the "lesser" of two
// tied offsets is the one with the larger id).
func (o Offset) Less(other Offset) bool {
	if o.Score != other.Score {
		return o.Score < other.Score
	}
	return o.ID > other.ID
}

// Greater reports whether o ranks above other under the same total order.
func (o Offset) Greater(other Offset) bool {
	return other.Less(o)
}

// Heap is a max-heap of Offset values ordered by the package's total
// order (highest score, or tied score with smallest id, surfaces first).
// It implements container/heap.Interface.
type Heap []Offset

func (h Heap) Len() int { return len(h) }

func (h Heap) Less(i, j int) bool {
	// container/heap builds a min-heap on Less; inverting here turns it
	// into a max-heap by score, which is what candidate-frontier
	// expansion in the beam search needs.
	return h[i].Greater(h[j])
}

func (h Heap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *Heap) Push(x any) {
	*h = append(*h, x.(Offset))
}

func (h *Heap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
