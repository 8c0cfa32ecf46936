// Package streaming provides channel-based streaming of points into a
// Builder and of insertion outcomes back out, for callers that feed
// points from an unbounded or slow source (a file tailer, a message
// queue consumer) rather than holding the whole batch in memory.
package streaming

import (
	"context"
	"errors"
	"sync"

	"github.com/vectorforge/hnswbuild/pkg/batch"
)

var (
	ErrStreamClosed = errors.New("streaming: stream closed")
)

// InsertResult reports the outcome of linking one point into a Builder.
type InsertResult struct {
	PointID uint64
	Err     error
}

// PointStream streams pending insertions incrementally, so a producer
// (reading vectors off disk or a queue) and a consumer (the insertion
// loop) can run at different paces without the producer blocking on
// the full batch being ready.
type PointStream struct {
	ch     chan batch.Point
	errCh  chan error
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	mu     sync.RWMutex // held (read) across Send so Close cannot close ch under a sender
}

// NewPointStream creates a PointStream buffered to bufferSize (100 if
// bufferSize <= 0), derived from ctx so Close or ctx cancellation both
// unblock any pending Send/Recv.
func NewPointStream(ctx context.Context, bufferSize int) *PointStream {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	streamCtx, cancel := context.WithCancel(ctx)
	return &PointStream{
		ch:     make(chan batch.Point, bufferSize),
		errCh:  make(chan error, 1),
		doneCh: make(chan struct{}),
		ctx:    streamCtx,
		cancel: cancel,
	}
}

// Send enqueues a point, blocking until there is buffer room or the
// stream's context is done.
func (s *PointStream) Send(p batch.Point) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStreamClosed
	}

	select {
	case s.ch <- p:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Recv receives the next pending point. A nil error with a zero-value
// Point and ok=false means clean end-of-stream. Points buffered before
// Close are always delivered, even though Close also cancels the
// stream's context.
func (s *PointStream) Recv() (p batch.Point, ok bool, err error) {
	select {
	case p, open := <-s.ch:
		return s.received(p, open)
	default:
	}
	select {
	case p, open := <-s.ch:
		return s.received(p, open)
	case <-s.ctx.Done():
		return batch.Point{}, false, s.ctx.Err()
	}
}

func (s *PointStream) received(p batch.Point, open bool) (batch.Point, bool, error) {
	if !open {
		select {
		case err := <-s.errCh:
			return batch.Point{}, false, err
		default:
			return batch.Point{}, false, nil
		}
	}
	return p, true, nil
}

// Close closes the stream, optionally recording a terminal error that
// Recv will surface once the buffered points are drained.
func (s *PointStream) Close(err error) {
	// Cancel before taking the write lock: a sender blocked on a full
	// buffer holds the read lock and only ctx cancellation unblocks it.
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err != nil {
		select {
		case s.errCh <- err:
		default:
		}
	}
	close(s.ch)
	close(s.doneCh)
}

// Done returns a channel closed once the stream has been closed.
func (s *PointStream) Done() <-chan struct{} { return s.doneCh }

// ResultStream streams insertion outcomes back to a caller that wants
// to observe per-point success/failure without blocking the ingestion
// loop on a synchronous callback.
type ResultStream struct {
	ch     chan InsertResult
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	mu     sync.RWMutex
}

// NewResultStream creates a ResultStream buffered to bufferSize (100 if
// bufferSize <= 0).
func NewResultStream(ctx context.Context, bufferSize int) *ResultStream {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	streamCtx, cancel := context.WithCancel(ctx)
	return &ResultStream{
		ch:     make(chan InsertResult, bufferSize),
		ctx:    streamCtx,
		cancel: cancel,
	}
}

// Send reports one insertion outcome, blocking until buffer room frees
// up or the stream's context is done.
func (s *ResultStream) Send(r InsertResult) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStreamClosed
	}

	select {
	case s.ch <- r:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Recv receives the next outcome. ok is false once the stream is
// closed and drained; outcomes buffered before Close are always
// delivered first.
func (s *ResultStream) Recv() (r InsertResult, ok bool) {
	select {
	case r, open := <-s.ch:
		return r, open
	default:
	}
	select {
	case r, open := <-s.ch:
		return r, open
	case <-s.ctx.Done():
		return InsertResult{}, false
	}
}

// Close closes the stream; further Send calls fail with
// ErrStreamClosed.
func (s *ResultStream) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
