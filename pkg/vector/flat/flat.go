// Package flat provides an exact brute-force vector index held in memory.
package flat

import (
	"context"
	"fmt"
	"sort"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

// Index stores vectors in one contiguous slice and scans all of them per query.
// It is not safe for concurrent mutation; the synchronizer only mutates
// indexes that have not been published to readers yet.
type Index struct {
	dims int
	data []float32
}

// New returns an empty flat index. The dimension is fixed by the first
// vectors stored.
func New() *Index {
	return &Index{}
}

// NewFactory returns a vector.Factory producing flat indexes.
func NewFactory() vector.Factory {
	return func() (vector.Index, error) {
		return New(), nil
	}
}

// Rebuild replaces the index contents.
func (x *Index) Rebuild(ctx context.Context, vectors [][]float32) error {
	x.dims = 0
	x.data = nil
	return x.Add(ctx, vectors)
}

// Add appends vectors in order.
func (x *Index) Add(_ context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	dims := x.dims
	if dims == 0 {
		dims = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dims || dims == 0 {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", vector.ErrDimensionMismatch, i, len(v), dims)
		}
	}

	grown := make([]float32, len(x.data), len(x.data)+len(vectors)*dims)
	copy(grown, x.data)
	for _, v := range vectors {
		grown = append(grown, v...)
	}

	x.dims = dims
	x.data = grown
	return nil
}

// Search scans every stored vector and returns the k closest.
func (x *Index) Search(_ context.Context, query []float32, k int) ([]vector.Hit, error) {
	count := x.Count()
	if count == 0 || k <= 0 {
		return []vector.Hit{}, nil
	}
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", vector.ErrDimensionMismatch, len(query), x.dims)
	}

	hits := make([]vector.Hit, count)
	for i := range count {
		row := x.data[i*x.dims : (i+1)*x.dims]
		hits[i] = vector.Hit{Position: i, Distance: vector.SquaredL2(query, row)}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})

	return hits[:min(k, count)], nil
}

// Count returns the number of stored vectors.
func (x *Index) Count() int {
	if x.dims == 0 {
		return 0
	}
	return len(x.data) / x.dims
}

// Dimensions returns the vector dimension.
func (x *Index) Dimensions() int {
	return x.dims
}

// MarshalBinary encodes the stored rows.
func (x *Index) MarshalBinary() ([]byte, error) {
	rows := make([][]float32, x.Count())
	for i := range rows {
		rows[i] = x.data[i*x.dims : (i+1)*x.dims]
	}
	return vector.EncodeVectors(x.dims, rows)
}

// UnmarshalBinary replaces the contents with decoded rows.
func (x *Index) UnmarshalBinary(data []byte) error {
	_, rows, err := vector.DecodeVectors(data)
	if err != nil {
		return err
	}
	return x.Rebuild(context.Background(), rows)
}

// Close is a no-op.
func (x *Index) Close() error {
	return nil
}

var _ vector.Index = (*Index)(nil)
