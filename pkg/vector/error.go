package vector

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch is returned when a vector does not match the
	// dimension of the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptBlob is returned when a serialized index cannot be decoded.
	ErrCorruptBlob = errors.New("corrupt vector index blob")
)
