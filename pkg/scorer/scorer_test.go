package scorer

import (
	"math"
	"testing"
)

func mustAdd(t *testing.T, s *Store, v []float32) uint64 {
	t.Helper()
	id, err := s.Add(v)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return id
}

func TestCosineMetric(t *testing.T) {
	m := CosineMetric{}
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
		delta    float32
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0, 0.001},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0, 0.001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Similarity(m.Preprocess(tt.a), m.Preprocess(tt.b))
			if math.Abs(float64(got-tt.expected)) > float64(tt.delta) {
				t.Errorf("Similarity() = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestCosineMetricZeroVector(t *testing.T) {
	m := CosineMetric{}
	a := m.Preprocess([]float32{0, 0, 0})
	b := m.Preprocess([]float32{1, 0, 0})
	if got := m.Similarity(a, b); got != 0 {
		t.Errorf("Similarity() with zero vector = %f, want 0", got)
	}
}

func TestDotMetric(t *testing.T) {
	m := DotMetric{}
	got := m.Similarity([]float32{1, 2, 3}, []float32{4, 5, 6})
	want := float32(1*4 + 2*5 + 3*6)
	if got != want {
		t.Errorf("Similarity() = %f, want %f", got, want)
	}
}

func TestScorerCheckAndScore(t *testing.T) {
	store := NewStore(3)
	id0 := mustAdd(t, store, []float32{1, 0, 0})
	id1 := mustAdd(t, store, []float32{0, 1, 0})

	filter := FuncFilter(func(id uint64) bool { return id != id1 })
	s := New(store, DotMetric{}, filter, []float32{1, 0, 0})

	if !s.Check(id0) {
		t.Error("Check(id0) should be admissible")
	}
	if s.Check(id1) {
		t.Error("Check(id1) should be inadmissible")
	}

	if got := s.ScorePoint(id0); got != 1 {
		t.Errorf("ScorePoint(id0) = %f, want 1", got)
	}
}

func TestScorePointsDropsInadmissible(t *testing.T) {
	store := NewStore(2)
	ids := make([]uint64, 4)
	for i := range ids {
		ids[i] = mustAdd(t, store, []float32{float32(i), 0})
	}

	filter := FuncFilter(func(id uint64) bool { return id%2 == 0 })
	s := New(store, DotMetric{}, filter, []float32{1, 0})

	out := s.ScorePoints(ids, 10)
	if len(out) != 2 {
		t.Fatalf("ScorePoints() returned %d results, want 2", len(out))
	}
	for _, o := range out {
		if o.ID%2 != 0 {
			t.Errorf("ScorePoints() included inadmissible id %d", o.ID)
		}
	}
}

func TestScorePointsRespectsLimit(t *testing.T) {
	store := NewStore(1)
	ids := make([]uint64, 5)
	for i := range ids {
		ids[i] = mustAdd(t, store, []float32{float32(i)})
	}

	s := New(store, DotMetric{}, nil, []float32{1})
	out := s.ScorePoints(ids, 2)
	if len(out) != 2 {
		t.Errorf("ScorePoints() returned %d results, want 2", len(out))
	}
}

func TestAllowAllAdmitsEverything(t *testing.T) {
	f := AllowAll{}
	if !f.Admits(12345) {
		t.Error("AllowAll should admit any id")
	}
}

func TestStoreDimensionMismatch(t *testing.T) {
	store := NewStore(3)
	_, err := store.Add([]float32{1, 2})
	if err == nil {
		t.Error("Add() with wrong dimension should error")
	}
}

func TestMultiVectorScorerMaxSim(t *testing.T) {
	storage := &fakeMultiStore{
		vectors: map[uint64][][]float32{
			0: {{1, 0}, {0, 1}},
		},
	}
	query := [][]float32{{1, 0}, {0.9, 0.1}}
	s := NewMultiVectorScorer(storage, DotMetric{}, nil, query)

	got := s.ScorePoint(0)
	// best match for {1,0} is {1,0}=1; best for {0.9,0.1} is {1,0}=0.9
	want := float32(1.0 + 0.9)
	if math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("ScorePoint() = %f, want %f", got, want)
	}
}

type fakeMultiStore struct {
	vectors map[uint64][][]float32
}

func (f *fakeMultiStore) Dim() int   { return 2 }
func (f *fakeMultiStore) Count() int { return len(f.vectors) }
func (f *fakeMultiStore) GetMulti(id uint64) [][]float32 {
	return f.vectors[id]
}
