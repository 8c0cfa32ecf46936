package topk

import (
	"testing"

	"github.com/vectorforge/hnswbuild/pkg/scored"
)

func TestPushUnderCapacity(t *testing.T) {
	q := New(3)
	_, hasEvicted, added := q.Push(scored.Offset{ID: 1, Score: 0.5})
	if !added || hasEvicted {
		t.Errorf("added=%v hasEvicted=%v, want added=true hasEvicted=false", added, hasEvicted)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestPushEvictsWorstAtCapacity(t *testing.T) {
	q := New(2)
	q.Push(scored.Offset{ID: 1, Score: 0.1})
	q.Push(scored.Offset{ID: 2, Score: 0.5})

	evicted, hasEvicted, added := q.Push(scored.Offset{ID: 3, Score: 0.9})
	if !added || !hasEvicted {
		t.Fatalf("added=%v hasEvicted=%v, want both true", added, hasEvicted)
	}
	if evicted.ID != 1 {
		t.Errorf("evicted id = %d, want 1 (worst)", evicted.ID)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestPushRejectsWorseThanMinimumAtCapacity(t *testing.T) {
	q := New(2)
	q.Push(scored.Offset{ID: 1, Score: 0.5})
	q.Push(scored.Offset{ID: 2, Score: 0.9})

	rejected, hasEvicted, added := q.Push(scored.Offset{ID: 3, Score: 0.1})
	if added || hasEvicted {
		t.Errorf("added=%v hasEvicted=%v, want both false", added, hasEvicted)
	}
	if rejected.ID != 3 {
		t.Errorf("rejected value id = %d, want 3 (the input itself)", rejected.ID)
	}
}

func TestTopIsMinimum(t *testing.T) {
	q := New(3)
	q.Push(scored.Offset{ID: 1, Score: 0.5})
	q.Push(scored.Offset{ID: 2, Score: 0.1})
	q.Push(scored.Offset{ID: 3, Score: 0.9})

	top, ok := q.Top()
	if !ok {
		t.Fatal("Top() ok = false on non-empty queue")
	}
	if top.ID != 2 {
		t.Errorf("Top() id = %d, want 2 (lowest score)", top.ID)
	}
}

func TestTopEmpty(t *testing.T) {
	q := New(3)
	_, ok := q.Top()
	if ok {
		t.Error("Top() on empty queue should report ok=false")
	}
}

func TestSortedIsDescending(t *testing.T) {
	q := New(4)
	q.Push(scored.Offset{ID: 1, Score: 0.3})
	q.Push(scored.Offset{ID: 2, Score: 0.9})
	q.Push(scored.Offset{ID: 3, Score: 0.1})
	q.Push(scored.Offset{ID: 4, Score: 0.5})

	got := q.Sorted()
	want := []uint64{2, 4, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("Sorted() len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Sorted()[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestSortedStableTieBreak(t *testing.T) {
	q := New(3)
	q.Push(scored.Offset{ID: 5, Score: 0.5})
	q.Push(scored.Offset{ID: 2, Score: 0.5})
	q.Push(scored.Offset{ID: 8, Score: 0.5})

	got := q.Sorted()
	// Equal scores must break ties ascending by id.
	want := []uint64{2, 5, 8}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Sorted()[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}
