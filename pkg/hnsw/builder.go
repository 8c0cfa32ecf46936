// Package hnsw implements the insertion engine that incrementally
// builds a hierarchical navigable small-world graph.
//
// The linking algorithm follows the classical single-pass HNSW
// construction: greedy descent to find an anchor, bounded beam search
// on each layer, heuristic neighbor pruning, and reciprocal link
// maintenance.
package hnsw

import (
	"container/heap"
	"errors"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/vectorforge/hnswbuild/pkg/entrypoint"
	"github.com/vectorforge/hnswbuild/pkg/links"
	"github.com/vectorforge/hnswbuild/pkg/logging"
	"github.com/vectorforge/hnswbuild/pkg/metrics"
	"github.com/vectorforge/hnswbuild/pkg/scored"
	"github.com/vectorforge/hnswbuild/pkg/scorer"
	"github.com/vectorforge/hnswbuild/pkg/topk"
	"github.com/vectorforge/hnswbuild/pkg/visited"
)

// logEvery controls how often LinkNewPoint emits an Info milestone log.
const logEvery = 10000

// Sentinel errors for the insertion engine. None are retriable: a
// Builder that returns any error other than ErrInvalidPointID must be
// discarded.
var (
	ErrInvalidPointID   = errors.New("hnsw: invalid point id")
	ErrScoreNotFinite   = errors.New("hnsw: scorer returned a non-finite score")
	ErrCapacityExceeded = errors.New("hnsw: visited-set pool capacity exceeded")
	ErrBuilderSealed    = errors.New("hnsw: builder is sealed")
)

// PointScorer is the subset of scorer.Scorer / scorer.MultiVectorScorer
// the insertion engine depends on: a filtered façade over a single
// query, held for the duration of one insertion.
type PointScorer interface {
	Check(id uint64) bool
	ScorePoint(id uint64) float32
	ScoreInternal(a, b uint64) float32
	ScorePoints(ids []uint64, limit int) []scorer.Offset
}

// Builder is the insertion engine. It owns a layered link store and an
// entry-point registry for exactly one graph; it is not safe for
// concurrent use by multiple goroutines: it is single-threaded with
// respect to a given builder.
type Builder struct {
	m, m0, efConstruct int
	links              *links.Store
	entries            *entrypoint.Registry
	visited            *visited.Pool
	sealed             bool

	buildID    string
	metrics    *metrics.Collector
	insertions int64
}

// New creates a Builder pre-allocating layered link slots for every
// point described by levels (levels[i] is the sampled top layer for
// point id i). m and m0 are the per-layer neighbor caps, efConstruct is
// the beam width, and entryPointsNum bounds the entry-point registry's
// tracked admissibility contexts.
//
// Each Builder is stamped with a fresh BuildID so that multiple
// independent builders running in parallel (one per shard, say) are
// distinguishable in a shared log stream. Each Builder also has its own
// metrics collector; the collected metrics do not carry the BuildID.
func New(levels []int, m, m0, efConstruct, entryPointsNum int) *Builder {
	store := links.New(m, m0)
	for _, level := range levels {
		store.AddPoint(level)
	}
	return &Builder{
		m:           m,
		m0:          m0,
		efConstruct: efConstruct,
		links:       store,
		entries:     entrypoint.New(entryPointsNum),
		visited:     visited.NewPool(len(levels)),
		buildID:     uuid.New().String(),
		metrics:     metrics.NewCollector(),
	}
}

// BuildID returns the unique identifier stamped on this builder at
// construction time, used to correlate its log lines in a shared stream
// with other concurrently-running builders.
func (b *Builder) BuildID() string { return b.buildID }

// Metrics returns the collector accumulating this builder's insertion
// counters and histograms.
func (b *Builder) Metrics() *metrics.Collector { return b.metrics }

// Len returns the number of points pre-allocated at construction time.
func (b *Builder) Len() int { return b.links.Len() }

// Levels returns the highest layer point participates in.
func (b *Builder) Levels(point uint64) int { return b.links.LevelsOf(point) }

// Neighbors returns the neighbor list for point at layer l, as exposed
// to the search subsystem after sealing.
func (b *Builder) Neighbors(point uint64, l int) []uint64 { return b.links.Neighbors(point, l) }

// Links returns the underlying link store, for persistence of the
// sealed graph. Callers must not mutate it while insertions are still
// running.
func (b *Builder) Links() *links.Store { return b.links }

// EntryPoints returns a snapshot of the tracked entry-point descriptors.
func (b *Builder) EntryPoints() []entrypoint.Descriptor { return b.entries.Descriptors() }

// Params returns the construction parameters (M, M0, ef_construct).
func (b *Builder) Params() (m, m0, efConstruct int) { return b.m, b.m0, b.efConstruct }

// Sealed reports whether the builder has been sealed.
func (b *Builder) Sealed() bool { return b.sealed }

// Seal marks the builder as finished; further LinkNewPoint calls fail
// with ErrBuilderSealed. Sealing itself cannot fail: it is a pure
// in-memory state transition.
func (b *Builder) Seal() {
	b.sealed = true
	logging.WithField("build_id", b.buildID).Info(
		"hnsw: build sealed after %d insertions", b.insertions)
}

// LinkNewPoint runs the full insertion algorithm for pointID: seed
// lookup, greedy descent, layerwise beam search, heuristic selection,
// and reciprocal link maintenance. sc must hold the preprocessed query
// vector for pointID and the admissibility predicate active for this
// insertion. A point that sc's predicate rejects is left unlinked and
// does not touch the entry-point registry.
func (b *Builder) LinkNewPoint(pointID uint64, sc PointScorer) error {
	if b.sealed {
		return ErrBuilderSealed
	}
	if pointID >= uint64(b.links.Len()) {
		return ErrInvalidPointID
	}
	if !sc.Check(pointID) {
		return nil
	}

	level := b.links.LevelsOf(pointID)

	entry, existed := b.entries.OnNewPoint(pointID, level, sc.Check)
	if !existed {
		// pointID is itself the new seed for this admissibility context;
		// its layered slots stay empty.
		b.metrics.RecordInsertion(true)
		return nil
	}
	if level > entry.Level {
		b.metrics.RecordEntryPointReplaced()
	}

	var anchor scored.Offset
	if entry.Level > level {
		var err error
		anchor, err = b.searchEntry(entry.Point, entry.Level, level, sc)
		if err != nil {
			b.metrics.RecordInsertion(false)
			return err
		}
	} else {
		s, err := scoreInternalChecked(sc, pointID, entry.Point)
		if err != nil {
			b.metrics.RecordInsertion(false)
			return err
		}
		anchor = scored.Offset{ID: entry.Point, Score: s}
	}

	linkingLevel := level
	if entry.Level < linkingLevel {
		linkingLevel = entry.Level
	}

	for l := linkingLevel; l >= 0; l-- {
		nextAnchor, err := b.linkOnLevel(pointID, sc, l, anchor)
		if err != nil {
			b.metrics.RecordInsertion(false)
			return err
		}
		anchor = nextAnchor
	}

	b.metrics.RecordInsertion(true)
	b.insertions++
	if b.insertions%logEvery == 0 {
		logging.WithField("build_id", b.buildID).Info(
			"hnsw: %d points linked (m=%d m0=%d ef_construct=%d)",
			b.insertions, b.m, b.m0, b.efConstruct)
	}
	return nil
}

// linkOnLevel runs beam search and heuristic selection for pointID at
// layer l, installs pointID's forward links, then maintains reciprocal
// links on each selected neighbor — forward links before reciprocal
// maintenance: forward links are written before any neighbor's list is
// touched, so a reciprocal-maintenance pass never observes pointID's
// own not-yet-installed links. It returns the anchor for the next lower layer.
func (b *Builder) linkOnLevel(pointID uint64, sc PointScorer, l int, entry scored.Offset) (scored.Offset, error) {
	existingLinks := b.links.Neighbors(pointID, l)
	nearest, err := b.searchOnLevel(entry, l, b.efConstruct, sc, existingLinks)
	if err != nil {
		return scored.Offset{}, err
	}

	sortedNearest := nearest.Sorted()
	nextAnchor := entry
	if len(sortedNearest) > 0 {
		nextAnchor = sortedNearest[0]
	}

	levelM := b.mFor(l)
	selected, err := selectHeuristic(sortedNearest, levelM, sc)
	if err != nil {
		return scored.Offset{}, err
	}

	b.links.SetNeighbors(pointID, l, selected)

	for _, other := range selected {
		if err := b.maintainReciprocal(pointID, other, l, levelM, sc); err != nil {
			return scored.Offset{}, err
		}
	}

	return nextAnchor, nil
}

// maintainReciprocal updates other's neighbor list at layer l to
// account for the new forward link from pointID, pruning with the same
// heuristic if other is already at capacity.
func (b *Builder) maintainReciprocal(pointID, other uint64, l, levelM int, sc PointScorer) error {
	otherLinks := b.links.Neighbors(other, l)
	if len(otherLinks) < levelM {
		updated := make([]uint64, len(otherLinks), len(otherLinks)+1)
		copy(updated, otherLinks)
		updated = append(updated, pointID)
		b.links.SetNeighbors(other, l, updated)
		return nil
	}

	b.metrics.RecordReciprocalPrune()
	candidates := make([]scored.Offset, 0, levelM+1)
	s, err := scoreInternalChecked(sc, pointID, other)
	if err != nil {
		return err
	}
	candidates = append(candidates, scored.Offset{ID: pointID, Score: s})

	bound := levelM
	if bound > len(otherLinks) {
		bound = len(otherLinks)
	}
	for _, link := range otherLinks[:bound] {
		s, err := scoreInternalChecked(sc, link, other)
		if err != nil {
			return err
		}
		candidates = append(candidates, scored.Offset{ID: link, Score: s})
	}
	sortDescending(candidates)

	reselected, err := selectHeuristic(candidates, levelM, sc)
	if err != nil {
		return err
	}
	b.links.SetNeighbors(other, l, reselected)
	return nil
}

// searchOnLevel runs the bounded beam search: a topk.Queue of capacity
// ef tracks the best-so-far set while
// a scored.Heap drives frontier expansion, until the best remaining
// candidate can no longer beat the worst accepted neighbor.
func (b *Builder) searchOnLevel(entry scored.Offset, l, ef int, sc PointScorer, existingLinks []uint64) (*topk.Queue, error) {
	vis, err := b.visited.Acquire(b.links.Len())
	if err != nil {
		return nil, ErrCapacityExceeded
	}
	defer b.visited.Release(vis)

	vis.CheckAndSet(entry.ID)

	nearest := topk.New(ef)
	nearest.Push(entry)

	candidates := &scored.Heap{entry}
	heap.Init(candidates)

	limit := b.mFor(l)
	pointIDs := make([]uint64, 0, 2*limit)

	for candidates.Len() > 0 {
		candidate := heap.Pop(candidates).(scored.Offset)

		lowerBound := float32(math.Inf(-1))
		if top, ok := nearest.Top(); ok {
			lowerBound = top.Score
		}
		if candidate.Score < lowerBound {
			break
		}

		pointIDs = pointIDs[:0]
		for _, link := range b.links.Neighbors(candidate.ID, l) {
			if !vis.CheckAndSet(link) {
				pointIDs = append(pointIDs, link)
			}
		}

		scores := sc.ScorePoints(pointIDs, limit)
		b.metrics.RecordBeamExpansion(len(scores))
		for _, sp := range scores {
			if err := checkFinite(sp.Score); err != nil {
				return nil, err
			}
			processCandidate(nearest, candidates, scored.Offset{ID: sp.ID, Score: sp.Score})
		}
	}

	for _, existing := range existingLinks {
		if vis.Check(existing) {
			continue
		}
		s, err := scorePointChecked(sc, existing)
		if err != nil {
			return nil, err
		}
		processCandidate(nearest, candidates, scored.Offset{ID: existing, Score: s})
	}

	return nearest, nil
}

// processCandidate admits score into nearest, and — only if it was
// actually added rather than rejected as worse than the current minimum
// — re-queues it for expansion in candidates. nearest.Push does not
// check for duplicate ids; the visited set keeps an id from being
// offered twice.
func processCandidate(nearest *topk.Queue, candidates *scored.Heap, score scored.Offset) {
	_, _, added := nearest.Push(score)
	if added {
		heap.Push(candidates, score)
	}
}

// searchEntry runs greedy descent: a single-best-neighbor hill-climb
// from entryPoint, layer by layer, down to targetLevel+1.
func (b *Builder) searchEntry(entryPoint uint64, topLevel, targetLevel int, sc PointScorer) (scored.Offset, error) {
	s, err := scorePointChecked(sc, entryPoint)
	if err != nil {
		return scored.Offset{}, err
	}
	current := scored.Offset{ID: entryPoint, Score: s}

	neighborBuf := make([]uint64, 0, 2*b.mFor(0))

	for level := topLevel; level > targetLevel; level-- {
		limit := b.mFor(level)
		changed := true
		for changed {
			changed = false

			neighborBuf = neighborBuf[:0]
			neighborBuf = append(neighborBuf, b.links.Neighbors(current.ID, level)...)

			scores := sc.ScorePoints(neighborBuf, limit)
			for _, sp := range scores {
				if err := checkFinite(sp.Score); err != nil {
					return scored.Offset{}, err
				}
				if sp.Score > current.Score {
					changed = true
					current = scored.Offset{ID: sp.ID, Score: sp.Score}
				}
			}
		}
	}
	return current, nil
}

// selectHeuristic implements the RNG-style selector: consuming
// candidates in descending score order, accept c iff no already-
// accepted point scores higher against c than c's own query-score.
func selectHeuristic(candidates []scored.Offset, m int, sc PointScorer) ([]uint64, error) {
	selected := make([]uint64, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		good := true
		for _, s := range selected {
			d, err := scoreInternalChecked(sc, c.ID, s)
			if err != nil {
				return nil, err
			}
			if d > c.Score {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c.ID)
		}
	}
	return selected, nil
}

// mFor returns the per-layer neighbor cap: M0 at layer 0, M above it.
func (b *Builder) mFor(level int) int {
	if level == 0 {
		return b.m0
	}
	return b.m
}

// sortDescending sorts candidates by descending score, ascending id on
// ties, so every heap, sort, and batch-score result breaks ties the
// same way.
func sortDescending(xs []scored.Offset) {
	sort.Slice(xs, func(i, j int) bool {
		if xs[i].Score != xs[j].Score {
			return xs[i].Score > xs[j].Score
		}
		return xs[i].ID < xs[j].ID
	})
}

func checkFinite(s float32) error {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrScoreNotFinite
	}
	return nil
}

func scorePointChecked(sc PointScorer, id uint64) (float32, error) {
	s := sc.ScorePoint(id)
	if err := checkFinite(s); err != nil {
		return 0, err
	}
	return s, nil
}

func scoreInternalChecked(sc PointScorer, a, b uint64) (float32, error) {
	s := sc.ScoreInternal(a, b)
	if err := checkFinite(s); err != nil {
		return 0, err
	}
	return s, nil
}
