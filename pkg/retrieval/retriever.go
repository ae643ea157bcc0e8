// Package retrieval answers top-k similarity queries against the committed
// index state.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

// DefaultTopK is the number of chunks returned when a caller does not ask
// for a specific count.
const DefaultTopK = 3

// Source hands out the committed state for reading. The release function
// must be called once the caller is done with the state.
type Source interface {
	Acquire() (*indexstate.State, func())
}

// Result is a retrieved chunk with its provenance.
type Result struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	ChunkID  int     `json:"chunk_id"`
	FilePath string  `json:"file_path"`
	Distance float32 `json:"distance"`
}

// Retriever embeds queries and searches the committed index.
type Retriever struct {
	source   Source
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// New creates a Retriever.
func New(source Source, embedder embeddings.Embedder, log *slog.Logger) *Retriever {
	if log == nil {
		log = logger.Nop()
	}
	return &Retriever{source: source, embedder: embedder, logger: log}
}

// Retrieve returns the texts of the k chunks nearest to query, closest first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	results, err := r.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Text
	}
	return texts, nil
}

// Search returns up to k results ordered by ascending distance. An empty
// index or a non-positive k yields no results without embedding the query.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Result, error) {
	state, release := r.source.Acquire()
	defer release()

	k = min(k, state.Len())
	if k <= 0 {
		return []Result{}, nil
	}

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", vector.ErrEmbedding, err)
	}

	hits, err := state.Index.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	seen := make(map[int]bool, len(hits))
	for _, hit := range hits {
		if seen[hit.Position] || hit.Position < 0 || hit.Position >= state.Len() {
			continue
		}
		seen[hit.Position] = true

		meta := state.Metadata[hit.Position]
		results = append(results, Result{
			Text:     state.Chunks[hit.Position],
			Source:   meta.Source,
			ChunkID:  meta.ChunkID,
			FilePath: meta.FilePath,
			Distance: hit.Distance,
		})
	}

	r.logger.Debug("retrieved chunks", "k", k, "results", len(results))
	return results, nil
}

// Stats reports statistics for the committed state.
func (r *Retriever) Stats() indexstate.Stats {
	state, release := r.source.Acquire()
	defer release()
	return state.Stats()
}

// Sources returns the distinct source names of results in rank order.
func Sources(results []Result) []string {
	seen := make(map[string]bool, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		if seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		out = append(out, r.Source)
	}
	return out
}
