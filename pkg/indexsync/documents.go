package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/loader"
)

// document is the chunked text of one source file.
type document struct {
	path   string
	chunks []string
	metas  []indexstate.Meta
}

// loadDocuments loads and chunks paths concurrently, preserving their order.
// Files whose text cannot be extracted contribute zero chunks.
func (s *Synchronizer) loadDocuments(ctx context.Context, log *slog.Logger, paths []string, hashes map[string]string) ([]document, error) {
	docs := make([]document, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			chunks, metas, err := s.loader.LoadChunks(gctx, path, hashes[path])
			var extractErr *loader.ExtractionError
			switch {
			case errors.As(err, &extractErr):
				log.Warn("could not extract text, indexing zero chunks",
					"path", path,
					"kind", extractErr.Kind.String(),
					"error", extractErr.Err,
				)
				docs[i] = document{path: path}
			case err != nil:
				return fmt.Errorf("loading %s: %w", path, err)
			default:
				docs[i] = document{path: path, chunks: chunks, metas: metas}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return docs, nil
}

// embedDocuments embeds each document's chunks with one provider call per
// document and concatenates the results in document order.
func (s *Synchronizer) embedDocuments(ctx context.Context, log *slog.Logger, docs []document) ([]string, []indexstate.Meta, [][]float32, error) {
	var (
		chunks  = []string{}
		metas   = []indexstate.Meta{}
		vectors = [][]float32{}
	)

	for _, doc := range docs {
		if len(doc.chunks) == 0 {
			continue
		}

		embedded, err := embeddings.EmbedAll(ctx, s.embedder, doc.chunks)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: embedding %s: %w", ErrEmbeddingProvider, doc.path, err)
		}

		log.Debug("embedded document", "path", doc.path, "chunks", len(doc.chunks))
		chunks = append(chunks, doc.chunks...)
		metas = append(metas, doc.metas...)
		vectors = append(vectors, embedded...)
	}

	return chunks, metas, vectors, nil
}
