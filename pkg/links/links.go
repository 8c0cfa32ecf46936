// Package links provides the layered link store: the per-point,
// per-layer neighbor lists that make up the HNSW graph adjacency, plus
// a checksummed binary snapshot codec, split out as its own package so
// the link store can be exercised and persisted independently of the
// insertion engine.
package links

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Store holds, for every point, the neighbor ids at each layer the point
// participates in. Layer 0 is pre-reserved at M0 capacity; layers above 0
// are pre-reserved at M.
type Store struct {
	m      int
	m0     int
	points []pointLinks
}

type pointLinks struct {
	layers [][]uint64
}

// New creates an empty Store. m is the per-layer neighbor cap above layer
// 0; m0 is the layer-0 cap (conventionally 2*m).
func New(m, m0 int) *Store {
	return &Store{m: m, m0: m0}
}

// M returns the configured per-layer neighbor cap.
func (s *Store) M() int { return s.m }

// M0 returns the configured layer-0 neighbor cap.
func (s *Store) M0() int { return s.m0 }

// Len returns the number of points registered in the store.
func (s *Store) Len() int { return len(s.points) }

// capacityFor returns the pre-reserved neighbor-slice capacity at level.
func (s *Store) capacityFor(level int) int {
	if level == 0 {
		return s.m0
	}
	return s.m
}

// AddPoint registers a new point with levels [0, level], each with an
// empty, pre-reserved neighbor list, and returns its assigned id. Ids are
// assigned densely, starting at 0, matching the builder's point
// enumeration.
func (s *Store) AddPoint(level int) uint64 {
	layers := make([][]uint64, level+1)
	for l := 0; l <= level; l++ {
		layers[l] = make([]uint64, 0, s.capacityFor(l))
	}
	id := uint64(len(s.points))
	s.points = append(s.points, pointLinks{layers: layers})
	return id
}

// LevelsOf returns the highest layer point participates in. It panics if
// point is out of range, matching the store's role as an internal
// collaborator the builder has already validated ids against.
func (s *Store) LevelsOf(point uint64) int {
	return len(s.points[point].layers) - 1
}

// Neighbors returns the neighbor list for point at level. The returned
// slice aliases internal storage; callers must not retain it across a
// SetNeighbors call for the same (point, level).
func (s *Store) Neighbors(point uint64, level int) []uint64 {
	return s.points[point].layers[level]
}

// SetNeighbors replaces the neighbor list for point at level.
func (s *Store) SetNeighbors(point uint64, level int, neighbors []uint64) {
	s.points[point].layers[level] = neighbors
}

// AppendNeighbor appends a single neighbor id to point's list at level.
func (s *Store) AppendNeighbor(point uint64, level int, neighbor uint64) {
	s.points[point].layers[level] = append(s.points[point].layers[level], neighbor)
}

const (
	magic         uint32 = 0x484e5357 // "HNSW"
	formatVersion uint32 = 1
)

// header is the fixed-size, binary.Write-compatible snapshot prologue.
type header struct {
	Magic   uint32
	Version uint32
	M       int32
	M0      int32
	Count   int32
}

// Save serializes the store to w as a length-prefixed, checksummed
// binary stream: a fixed header followed by, per point, its level count
// and each layer's neighbor list, followed by a trailing xxHash64
// checksum of everything written before it. Round-tripping through
// Save/Load must reproduce bit-identical adjacency lists.
func (s *Store) Save(w io.Writer) error {
	h := xxhash.New()
	mw := io.MultiWriter(w, h)

	hdr := header{
		Magic:   magic,
		Version: formatVersion,
		M:       int32(s.m),
		M0:      int32(s.m0),
		Count:   int32(len(s.points)),
	}
	if err := binary.Write(mw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("links: write header: %w", err)
	}

	for _, p := range s.points {
		levelCount := int32(len(p.layers))
		if err := binary.Write(mw, binary.LittleEndian, levelCount); err != nil {
			return fmt.Errorf("links: write level count: %w", err)
		}
		for _, neighbors := range p.layers {
			n := int32(len(neighbors))
			if err := binary.Write(mw, binary.LittleEndian, n); err != nil {
				return fmt.Errorf("links: write neighbor count: %w", err)
			}
			if n > 0 {
				if err := binary.Write(mw, binary.LittleEndian, neighbors); err != nil {
					return fmt.Errorf("links: write neighbors: %w", err)
				}
			}
		}
	}

	if err := binary.Write(w, binary.LittleEndian, h.Sum64()); err != nil {
		return fmt.Errorf("links: write checksum: %w", err)
	}
	return nil
}

// ErrChecksumMismatch is returned by Load when the trailing checksum does
// not match the body that was read.
var ErrChecksumMismatch = fmt.Errorf("links: checksum mismatch")

// ErrUnsupportedVersion is returned by Load when the snapshot's format
// version is not one this build understands.
var ErrUnsupportedVersion = fmt.Errorf("links: unsupported snapshot version")

// ErrBadMagic is returned by Load when the snapshot does not start with
// the expected magic number.
var ErrBadMagic = fmt.Errorf("links: not a links snapshot")

// Load reads a snapshot from r into a new Store, verifying the trailing
// checksum before returning it.
func Load(r io.Reader) (*Store, error) {
	br := bufio.NewReader(r)
	h := xxhash.New()
	tr := io.TeeReader(br, h)

	var hdr header
	if err := binary.Read(tr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("links: read header: %w", err)
	}
	if hdr.Magic != magic {
		return nil, ErrBadMagic
	}
	if hdr.Version != formatVersion {
		return nil, ErrUnsupportedVersion
	}

	s := &Store{m: int(hdr.M), m0: int(hdr.M0)}
	s.points = make([]pointLinks, hdr.Count)

	for i := range s.points {
		var levelCount int32
		if err := binary.Read(tr, binary.LittleEndian, &levelCount); err != nil {
			return nil, fmt.Errorf("links: read level count: %w", err)
		}
		layers := make([][]uint64, levelCount)
		for l := range layers {
			var n int32
			if err := binary.Read(tr, binary.LittleEndian, &n); err != nil {
				return nil, fmt.Errorf("links: read neighbor count: %w", err)
			}
			neighbors := make([]uint64, n)
			if n > 0 {
				if err := binary.Read(tr, binary.LittleEndian, neighbors); err != nil {
					return nil, fmt.Errorf("links: read neighbors: %w", err)
				}
			}
			layers[l] = neighbors
		}
		s.points[i] = pointLinks{layers: layers}
	}

	var wantChecksum uint64
	if err := binary.Read(br, binary.LittleEndian, &wantChecksum); err != nil {
		return nil, fmt.Errorf("links: read checksum: %w", err)
	}
	if h.Sum64() != wantChecksum {
		return nil, ErrChecksumMismatch
	}

	return s, nil
}
