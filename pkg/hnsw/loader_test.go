package hnsw

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/vectorforge/hnswbuild/pkg/batch"
	"github.com/vectorforge/hnswbuild/pkg/scorer"
	"github.com/vectorforge/hnswbuild/pkg/streaming"
)

// loaderFixture returns a store of n random vectors, their sampled
// levels, and a ScorerFactory over the store.
func loaderFixture(t *testing.T, n, dim int, seed int64) (*scorer.Store, []int, ScorerFactory) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	store := scorer.NewStore(dim)
	levels := make([]int, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		if _, err := store.Add(v); err != nil {
			t.Fatalf("store.Add() error = %v", err)
		}
		levels[i] = rng.Intn(2)
	}
	factory := func(p batch.Point) PointScorer {
		return scorer.New(store, scorer.CosineMetric{}, nil, p.Vector)
	}
	return store, levels, factory
}

func TestThrottledLoaderLoadPoint(t *testing.T) {
	store, levels, factory := loaderFixture(t, 50, 8, 17)
	b := New(levels, 4, 8, 8, 1)
	loader := NewThrottledLoader(b, 0, 0, factory)

	ctx := context.Background()
	for id := uint64(0); id < uint64(store.Count()); id++ {
		p := batch.Point{ID: id, Vector: store.Get(id), Level: levels[id]}
		if err := loader.LoadPoint(ctx, p); err != nil {
			t.Fatalf("LoadPoint(%d) error = %v", id, err)
		}
	}

	linked := 0
	for p := uint64(0); p < uint64(store.Count()); p++ {
		if len(b.Neighbors(p, 0)) > 0 {
			linked++
		}
	}
	if linked == 0 {
		t.Error("no point ended up with layer-0 neighbors")
	}
}

func TestThrottledLoaderHonorsContext(t *testing.T) {
	_, levels, factory := loaderFixture(t, 2, 4, 3)
	b := New(levels, 4, 8, 8, 1)
	// 1 insertion/sec with burst 1: the second LoadPoint must wait, and a
	// cancelled context has to surface instead of blocking.
	loader := NewThrottledLoader(b, 1, 1, factory)

	ctx, cancel := context.WithCancel(context.Background())
	if err := loader.LoadPoint(ctx, batch.Point{ID: 0, Vector: []float32{1, 0, 0, 0}}); err != nil {
		t.Fatalf("LoadPoint(0) error = %v", err)
	}
	cancel()
	if err := loader.LoadPoint(ctx, batch.Point{ID: 1, Vector: []float32{0, 1, 0, 0}}); err == nil {
		t.Error("LoadPoint() with cancelled context succeeded, want error")
	}
}

func TestDrainLinksEveryStreamedPoint(t *testing.T) {
	store, levels, factory := loaderFixture(t, 40, 8, 23)
	b := New(levels, 4, 8, 8, 1)
	loader := NewThrottledLoader(b, 0, 0, factory)

	ctx := context.Background()
	src := streaming.NewPointStream(ctx, 8)
	results := streaming.NewResultStream(ctx, 8)

	go func() {
		defer src.Close(nil)
		for id := 0; id < store.Count(); id++ {
			if err := src.Send(batch.Point{ID: uint64(id), Vector: store.Get(uint64(id)), Level: levels[id]}); err != nil {
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer results.Close()
		loader.Drain(ctx, src, results)
	}()

	got := 0
	for {
		r, ok := results.Recv()
		if !ok {
			break
		}
		if r.Err != nil {
			t.Errorf("point %d failed: %v", r.PointID, r.Err)
		}
		got++
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Drain did not return")
	}
	if got != store.Count() {
		t.Errorf("received %d results, want %d", got, store.Count())
	}
}

func TestDrainStopsOnInsertionError(t *testing.T) {
	_, levels, factory := loaderFixture(t, 3, 4, 5)
	b := New(levels, 4, 8, 8, 1)
	loader := NewThrottledLoader(b, 0, 0, factory)

	ctx := context.Background()
	src := streaming.NewPointStream(ctx, 8)
	results := streaming.NewResultStream(ctx, 8)

	go func() {
		defer src.Close(nil)
		// Out-of-range id: the second point must fail and stop the drain.
		src.Send(batch.Point{ID: 0, Vector: []float32{1, 0, 0, 0}})
		src.Send(batch.Point{ID: 99, Vector: []float32{0, 1, 0, 0}})
		src.Send(batch.Point{ID: 1, Vector: []float32{0, 0, 1, 0}})
	}()

	go func() {
		defer results.Close()
		loader.Drain(ctx, src, results)
	}()

	var outcomes []streaming.InsertResult
	for {
		r, ok := results.Recv()
		if !ok {
			break
		}
		outcomes = append(outcomes, r)
	}

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2 (drain stops after the failure)", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Errorf("point %d unexpectedly failed: %v", outcomes[0].PointID, outcomes[0].Err)
	}
	if outcomes[1].Err != ErrInvalidPointID {
		t.Errorf("point %d error = %v, want ErrInvalidPointID", outcomes[1].PointID, outcomes[1].Err)
	}
}
