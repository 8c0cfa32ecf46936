// Package batch provides batch-insertion buffering: pending points are
// accumulated and handed to the insertion loop in bulk, so producers
// that discover points incrementally don't call into the builder one
// point at a time.
package batch

import (
	"fmt"
	"sync"
)

// Point is a single pending insertion: a point id, its vector, and its
// pre-sampled top layer.
type Point struct {
	ID     uint64
	Vector []float32
	Level  int
}

// PointBatch buffers points for bulk insertion into a Builder.
type PointBatch struct {
	points  []Point
	mu      sync.Mutex
	maxSize int
}

// NewPointBatch creates a PointBatch that reports IsFull at maxSize
// points (1000 if maxSize <= 0). Add does not refuse points beyond it.
func NewPointBatch(maxSize int) *PointBatch {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &PointBatch{
		points:  make([]Point, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add adds a single point to the batch.
func (pb *PointBatch) Add(p Point) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.points = append(pb.points, p)
}

// AddBulk adds multiple points to the batch.
func (pb *PointBatch) AddBulk(points []Point) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.points = append(pb.points, points...)
}

// Size returns the current batch size.
func (pb *PointBatch) Size() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return len(pb.points)
}

// IsFull reports whether the batch has reached its configured cap.
func (pb *PointBatch) IsFull() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return len(pb.points) >= pb.maxSize
}

// Flush returns and clears the batch; nil if it was empty.
func (pb *PointBatch) Flush() []Point {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if len(pb.points) == 0 {
		return nil
	}
	result := make([]Point, len(pb.points))
	copy(result, pb.points)
	pb.points = pb.points[:0]
	return result
}

// FlushCallback is invoked when a BatchProcessor flushes its points.
type FlushCallback func([]Point) error

// BatchProcessor wraps a PointBatch with automatic flushing once it
// fills.
type BatchProcessor struct {
	batch     *PointBatch
	callback  FlushCallback
	autoFlush bool
	mu        sync.Mutex
}

// NewBatchProcessor creates a BatchProcessor with the given cap,
// auto-flush policy, and flush callback.
func NewBatchProcessor(maxSize int, autoFlush bool, callback FlushCallback) *BatchProcessor {
	return &BatchProcessor{
		batch:     NewPointBatch(maxSize),
		callback:  callback,
		autoFlush: autoFlush,
	}
}

// Add adds a point, flushing automatically if the batch is now full and
// auto-flush is enabled.
func (bp *BatchProcessor) Add(p Point) error {
	bp.batch.Add(p)
	if bp.autoFlush && bp.batch.IsFull() {
		return bp.Flush()
	}
	return nil
}

// Flush flushes the underlying batch through the configured callback.
func (bp *BatchProcessor) Flush() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	points := bp.batch.Flush()
	if len(points) == 0 {
		return nil
	}
	if bp.callback != nil {
		if err := bp.callback(points); err != nil {
			return fmt.Errorf("batch: flush callback: %w", err)
		}
	}
	return nil
}

// Size returns the current pending point count.
func (bp *BatchProcessor) Size() int {
	return bp.batch.Size()
}
