package gpuscore

import (
	"math"

	"github.com/vectorforge/hnswbuild/pkg/scorer"
)

// Scorer is a GPU-staged equivalent of scorer.Scorer: it answers the
// same PointScorer contract the insertion engine depends on, but
// batch-scores through Storage.Dispatch (a single kernel-dispatch-style
// pass over every uploaded vector) instead of one Similarity call per
// id. Both backends must agree on scores for the same vectors.
//
// Only dot-product scoring is modeled: Dispatch computes a plain dot
// product, so query and stored vectors must already be preprocessed by
// the caller's metric (e.g. L2-normalized for cosine) before Upload.
type Scorer struct {
	storage *Storage
	filter  scorer.Filter
	query   []float32
	scores  []float32 // lazily computed by the first ScorePoint/ScorePoints call
}

// New builds a Scorer over an already-uploaded Storage and a
// preprocessed query vector. filter defaults to AllowAll if nil.
func New(storage *Storage, filter scorer.Filter, query []float32) *Scorer {
	if filter == nil {
		filter = scorer.AllowAll{}
	}
	return &Scorer{storage: storage, filter: filter, query: query}
}

// Check reports whether id is admissible under the active filter.
func (s *Scorer) Check(id uint64) bool { return s.filter.Admits(id) }

// dispatch runs (and caches) the one kernel dispatch this Scorer needs:
// query scored against every uploaded vector.
func (s *Scorer) dispatch() []float32 {
	if s.scores == nil {
		scores, err := s.storage.Dispatch(s.query)
		if err != nil {
			// Dimension mismatches are caller programming errors; surface
			// as NaN so the insertion engine's ScoreNotFinite check catches
			// it at the usual boundary instead of panicking here.
			scores = make([]float32, s.storage.Count())
			for i := range scores {
				scores[i] = float32(math.NaN())
			}
		}
		s.scores = scores
	}
	return s.scores
}

// ScorePoint scores the held query against stored id by reading back
// id's entry from the dispatched scores buffer.
func (s *Scorer) ScorePoint(id uint64) float32 {
	return s.dispatch()[id]
}

// ScoreInternal scores two stored ids directly (no query buffer
// involved), a plain dot product over the device-layout rows.
func (s *Scorer) ScoreInternal(a, b uint64) float32 {
	va, vb := s.storage.Get(a), s.storage.Get(b)
	var sum float32
	for i := range va {
		sum += va[i] * vb[i]
	}
	return sum
}

// ScorePoints batch-scores up to limit admissible ids from the single
// dispatched scores buffer, dropping inadmissible ids.
func (s *Scorer) ScorePoints(ids []uint64, limit int) []scorer.Offset {
	scores := s.dispatch()
	out := make([]scorer.Offset, 0, limit)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		if !s.filter.Admits(id) {
			continue
		}
		out = append(out, scorer.Offset{ID: id, Score: scores[id]})
	}
	return out
}
