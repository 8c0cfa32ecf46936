// Package gpuscore implements an optional GPU-style staging-buffer
// pipeline for candidate scoring.
//
// There is no real GPU device binding in this module's dependency
// stack, so Storage below models the upload pipeline and the
// kernel-dispatch-then-readback contract entirely in host memory: a
// uniform "buffer" of (dim, count), a row-major storage "buffer" of
// count*dim float32s, and a one-vector-at-a-time staging "buffer"
// reused across the upload loop. The byte layout matches what a real
// device backend would use, so one could drop in behind the same
// Storage interface.
package gpuscore

import (
	"fmt"
)

// Params mirrors the packed uniform-buffer layout: two u32 fields,
// dim then count, tightly packed.
type Params struct {
	Dim   uint32
	Count uint32
}

// Storage holds an uploaded copy of a vector set in the layout a real
// GPU backend's storage buffer would use: count*dim row-major float32.
// Upload happens once, at construction, staged through a reused
// dim-sized block one vector at a time; Storage itself never mutates
// afterward.
type Storage struct {
	params Params
	data   []float32 // row-major, len == count*dim
}

// SourceStorage is the minimal vector source Upload stages from: any
// scorer.VectorStorage-shaped collection.
type SourceStorage interface {
	Dim() int
	Count() int
	Get(id uint64) []float32
}

// Upload stages src's vectors into a Storage, one vector at a time
// through a reused staging block rather than one bulk copy, keeping
// host-side memory for the transfer bounded by a single vector.
func Upload(src SourceStorage) (*Storage, error) {
	dim := src.Dim()
	count := src.Count()
	if dim <= 0 {
		return nil, fmt.Errorf("gpuscore: invalid dim %d", dim)
	}

	data := make([]float32, 0, dim*count)
	staging := make([]float32, dim)
	for i := 0; i < count; i++ {
		v := src.Get(uint64(i))
		if len(v) != dim {
			return nil, fmt.Errorf("gpuscore: vector %d has dim %d, want %d", i, len(v), dim)
		}
		copy(staging, v)
		data = append(data, staging...)
	}

	return &Storage{
		params: Params{Dim: uint32(dim), Count: uint32(count)},
		data:   data,
	}, nil
}

// Params returns the uploaded uniform-buffer parameters.
func (s *Storage) Params() Params { return s.params }

// Dim returns the vector dimensionality, satisfying scorer.VectorStorage.
func (s *Storage) Dim() int { return int(s.params.Dim) }

// Count returns the uploaded vector count, satisfying
// scorer.VectorStorage.
func (s *Storage) Count() int { return int(s.params.Count) }

// Get returns row id of the device-layout storage buffer as a slice
// aliasing it, satisfying scorer.VectorStorage.
func (s *Storage) Get(id uint64) []float32 {
	dim := int(s.params.Dim)
	start := int(id) * dim
	return s.data[start : start+dim]
}

// Dispatch computes the dot-product score of query against every
// uploaded vector in one batch, modeling a single kernel dispatch that
// writes a scores buffer the caller then reads back — the CPU-side
// equivalent of the real pipeline's scores_buffer round-trip.
func (s *Storage) Dispatch(query []float32) ([]float32, error) {
	dim := int(s.params.Dim)
	if len(query) != dim {
		return nil, fmt.Errorf("gpuscore: query dim %d, want %d", len(query), dim)
	}
	count := int(s.params.Count)
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		row := s.data[i*dim : i*dim+dim]
		var sum float32
		for j, x := range row {
			sum += x * query[j]
		}
		out[i] = sum
	}
	return out, nil
}
