package scorer

import "math"

// MultiVectorScorer scores multi-vector points (each point stores several
// sub-vectors, e.g. one per image patch or document chunk) by a
// max-similarity-over-pairs aggregation: late-interaction (ColBERT-style)
// retrieval's MaxSim.
type MultiVectorScorer struct {
	storage MultiVectorStorage
	metric  Metric
	filter  Filter
	query   [][]float32
}

// NewMultiVectorScorer builds a MultiVectorScorer over a preprocessed
// query multi-vector.
func NewMultiVectorScorer(storage MultiVectorStorage, metric Metric, filter Filter, query [][]float32) *MultiVectorScorer {
	if filter == nil {
		filter = AllowAll{}
	}
	pre := make([][]float32, len(query))
	for i, v := range query {
		pre[i] = metric.Preprocess(v)
	}
	return &MultiVectorScorer{storage: storage, metric: metric, filter: filter, query: pre}
}

// Check reports whether id is admissible under the active filter.
func (s *MultiVectorScorer) Check(id uint64) bool {
	return s.filter.Admits(id)
}

// ScorePoint scores the held query multi-vector against stored id.
func (s *MultiVectorScorer) ScorePoint(id uint64) float32 {
	return scoreMultiVector(s.metric, s.query, s.storage.GetMulti(id))
}

// ScoreInternal scores two stored multi-vector ids against each other.
func (s *MultiVectorScorer) ScoreInternal(a, b uint64) float32 {
	return scoreMultiVector(s.metric, s.storage.GetMulti(a), s.storage.GetMulti(b))
}

// ScorePoints batch-scores up to limit admissible ids.
func (s *MultiVectorScorer) ScorePoints(ids []uint64, limit int) []Offset {
	out := make([]Offset, 0, min(len(ids), limit))
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		if !s.filter.Admits(id) {
			continue
		}
		out = append(out, Offset{ID: id, Score: s.ScorePoint(id)})
	}
	return out
}

// scoreMultiVector aggregates similarity between two multi-vectors by,
// for each sub-vector of a, taking its best match among b's sub-vectors,
// then summing — the MaxSim aggregation used by late-interaction
// (ColBERT-style) retrieval.
func scoreMultiVector(metric Metric, a, b [][]float32) float32 {
	var total float32
	for _, av := range a {
		best := float32(math.Inf(-1))
		found := false
		for _, bv := range b {
			if sim := metric.Similarity(av, bv); sim > best {
				best = sim
				found = true
			}
		}
		if found {
			total += best
		}
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
