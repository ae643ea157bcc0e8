// Package indexstate holds the positional index state: chunk texts, chunk
// metadata, embeddings and the nearest-neighbour index built over them.
//
// Position i in every sequence refers to the same logical chunk. A State is
// never mutated once it has been published to readers; synchronizer passes
// build a new State and swap it in.
package indexstate

import (
	"errors"
	"fmt"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

// ErrMisaligned is returned by Validate when the parallel sequences disagree.
var ErrMisaligned = errors.New("index state misaligned")

// Meta describes where a chunk came from.
type Meta struct {
	// Source is the base filename of the source document.
	Source string `json:"source"`

	// ChunkID is the zero-based position of the chunk within its source.
	ChunkID int `json:"chunk_id"`

	// FileHash is the content hash of the source at chunking time.
	FileHash string `json:"file_hash"`

	// FilePath is the absolute path of the source document.
	FilePath string `json:"file_path"`
}

// Stats summarizes a State.
type Stats struct {
	IndexedDocuments int `json:"indexed_documents"`
	TotalChunks      int `json:"total_chunks"`
	IndexSize        int `json:"index_size"`
}

// State is the aligned tuple of chunks, metadata, embeddings and index.
type State struct {
	Chunks     []string
	Metadata   []Meta
	Embeddings [][]float32
	Index      vector.Index
}

// Empty returns a State with no chunks backed by idx.
func Empty(idx vector.Index) *State {
	return &State{
		Chunks:     []string{},
		Metadata:   []Meta{},
		Embeddings: [][]float32{},
		Index:      idx,
	}
}

// Len returns the number of chunks.
func (s *State) Len() int {
	return len(s.Chunks)
}

// Validate checks the positional alignment invariant.
func (s *State) Validate() error {
	if s.Index == nil {
		return fmt.Errorf("%w: no vector index", ErrMisaligned)
	}

	n := len(s.Chunks)
	if len(s.Metadata) != n || len(s.Embeddings) != n || s.Index.Count() != n {
		return fmt.Errorf("%w: chunks=%d metadata=%d embeddings=%d index=%d",
			ErrMisaligned, n, len(s.Metadata), len(s.Embeddings), s.Index.Count())
	}
	return nil
}

// Stats reports the distinct source count, chunk count and index size.
func (s *State) Stats() Stats {
	sources := make(map[string]struct{}, len(s.Metadata))
	for _, m := range s.Metadata {
		sources[m.Source] = struct{}{}
	}

	size := 0
	if s.Index != nil {
		size = s.Index.Count()
	}

	return Stats{
		IndexedDocuments: len(sources),
		TotalChunks:      len(s.Chunks),
		IndexSize:        size,
	}
}

// Paths returns the number of chunks each source file path contributes.
func (s *State) Paths() map[string]int {
	paths := make(map[string]int)
	for _, m := range s.Metadata {
		paths[m.FilePath]++
	}
	return paths
}

// Keep returns the positions whose source path is not in drop, in ascending
// order.
func (s *State) Keep(drop map[string]bool) []int {
	keep := make([]int, 0, len(s.Metadata))
	for i, m := range s.Metadata {
		if !drop[m.FilePath] {
			keep = append(keep, i)
		}
	}
	return keep
}

// Select copies the chunks, metadata and embeddings at positions, in the
// given order. Embedding slices are shared, not cloned; they are never
// written after creation.
func (s *State) Select(positions []int) ([]string, []Meta, [][]float32) {
	chunks := make([]string, 0, len(positions))
	metas := make([]Meta, 0, len(positions))
	vectors := make([][]float32, 0, len(positions))
	for _, p := range positions {
		chunks = append(chunks, s.Chunks[p])
		metas = append(metas, s.Metadata[p])
		vectors = append(vectors, s.Embeddings[p])
	}
	return chunks, metas, vectors
}
