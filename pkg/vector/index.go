// Package vector provides the nearest-neighbour index capability used by the
// index synchronizer and the retrieval API.
//
// Indexes are positional: vector i added to an index is reported back as
// Position i by Search. Distances are squared Euclidean (L2) distances.
package vector

import "context"

// Hit is a single search result.
type Hit struct {
	// Position is the row of the matched vector within the index.
	Position int

	// Distance is the squared L2 distance to the query (lower = closer).
	Distance float32
}

// Index is an exact nearest-neighbour structure over fixed-dimension vectors.
type Index interface {
	// Rebuild replaces the contents of the index with vectors in bulk.
	Rebuild(ctx context.Context, vectors [][]float32) error

	// Add appends vectors after the existing rows.
	Add(ctx context.Context, vectors [][]float32) error

	// Search returns up to k hits ordered by ascending distance. k is
	// clamped to Count; an empty index or k <= 0 yields no hits.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Count returns the number of stored vectors.
	Count() int

	// Dimensions returns the vector dimension, or 0 when nothing has been
	// stored yet.
	Dimensions() int

	// MarshalBinary serializes the stored rows in order.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary replaces the contents with previously marshaled rows.
	UnmarshalBinary(data []byte) error

	// Close releases any resources held by the index.
	Close() error
}

// Factory creates empty indexes. The synchronizer builds a fresh index for
// every state it publishes.
type Factory func() (Index, error)
