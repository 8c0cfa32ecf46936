package hnsw

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/vectorforge/hnswbuild/pkg/batch"
	"github.com/vectorforge/hnswbuild/pkg/logging"
	"github.com/vectorforge/hnswbuild/pkg/streaming"
)

// ScorerFactory builds the PointScorer for one point's insertion: the
// query vector and admissibility predicate are specific to that point,
// so the caller must be able to construct a fresh façade per call.
type ScorerFactory func(p batch.Point) PointScorer

// ThrottledLoader wraps a Builder with a token-bucket rate limiter so a
// streaming ingest caller feeding points from an unbounded source (a
// file tailer, a queue consumer) can bound insertions/sec without the
// core insertion algorithm itself ever blocking mid-insertion: the
// limiter gates the loop between LinkNewPoint calls, never inside one.
type ThrottledLoader struct {
	builder   *Builder
	limiter   *rate.Limiter
	newScorer ScorerFactory
}

// NewThrottledLoader wraps builder with a limiter admitting up to
// ratePerSec insertions/sec (burst tokens available immediately). A
// ratePerSec of 0 disables throttling entirely.
func NewThrottledLoader(builder *Builder, ratePerSec float64, burst int, newScorer ScorerFactory) *ThrottledLoader {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &ThrottledLoader{builder: builder, limiter: limiter, newScorer: newScorer}
}

// LoadPoint waits for a rate-limiter token (if throttling is enabled)
// and then links p into the wrapped Builder.
func (l *ThrottledLoader) LoadPoint(ctx context.Context, p batch.Point) error {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("hnsw: throttled loader: %w", err)
		}
	}
	return l.builder.LinkNewPoint(p.ID, l.newScorer(p))
}

// Drain reads points from src until the stream ends, linking each one
// (paced by the configured rate limit, whose wait honors ctx) and
// reporting its outcome on results. It stops after the first failed
// insertion or once results is closed. Drain has no return value:
// per-point failures are reported on results; a failed insertion
// invalidates the Builder, and its result tells the caller which point
// triggered it.
func (l *ThrottledLoader) Drain(ctx context.Context, src *streaming.PointStream, results *streaming.ResultStream) {
	log := logging.WithField("build_id", l.builder.buildID)
	for {
		p, ok, err := src.Recv()
		if err != nil {
			log.Warn("hnsw: throttled loader: stream ended with error: %v", err)
			return
		}
		if !ok {
			return
		}

		insertErr := l.LoadPoint(ctx, p)
		if results != nil {
			if sendErr := results.Send(streaming.InsertResult{PointID: p.ID, Err: insertErr}); sendErr != nil {
				log.Warn("hnsw: throttled loader: result stream closed: %v", sendErr)
				return
			}
		}
		if insertErr != nil {
			log.Error("hnsw: throttled loader: point %d failed: %v", p.ID, insertErr)
			return
		}
	}
}
