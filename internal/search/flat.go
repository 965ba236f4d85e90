package search

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when vectors of different lengths are mixed.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// FlatIndex is an exact nearest-neighbour index using squared L2 distance.
// Position i holds the vector of catalog tool i.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex builds an index over vectors. All vectors must share a dimension.
func NewFlatIndex(vectors [][]float32) (*FlatIndex, error) {
	if len(vectors) == 0 {
		return &FlatIndex{}, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("vector 0 is empty: %w", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dims, want %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
	}
	cp := make([][]float32, len(vectors))
	copy(cp, vectors)
	return &FlatIndex{dim: dim, vectors: cp}, nil
}

// Len returns the number of indexed vectors.
func (f *FlatIndex) Len() int { return len(f.vectors) }

// Dim returns the vector dimension.
func (f *FlatIndex) Dim() int { return f.dim }

// Nearest returns up to k positions ordered by ascending distance to q.
func (f *FlatIndex) Nearest(q []float32, k int) ([]Neighbor, error) {
	if len(f.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(q) != f.dim {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w", len(q), f.dim, ErrDimensionMismatch)
	}

	out := make([]Neighbor, len(f.vectors))
	for i, v := range f.vectors {
		out[i] = Neighbor{Index: i, Distance: squaredL2(q, v)}
	}
	sortNeighbors(out)
	return truncate(out, k), nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
