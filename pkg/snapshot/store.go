// Package snapshot persists and restores the committed index state as a set
// of files in the storage directory.
package snapshot

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/ledger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/utils"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

// Artifact file names inside the storage directory.
const (
	IndexFile      = "index.bin"
	MetadataFile   = "metadata.json"
	ChunksFile     = "chunks.gob"
	EmbeddingsFile = "embeddings.bin"
	LedgerFile     = "ledger.json"
)

// ErrCorruptSnapshot is returned by Load when an artifact is missing,
// undecodable, or disagrees with the others on length.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Store reads and writes snapshot artifacts in one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New returns a Store rooted at dir. The directory is created on first Save.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{dir: dir, logger: log}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a snapshot has been written. Only the index and
// metadata artifacts are checked; the rest are validated by Load.
func (s *Store) Exists() bool {
	for _, name := range []string{IndexFile, MetadataFile} {
		if _, err := os.Stat(s.path(name)); err != nil {
			return false
		}
	}
	return true
}

// Save persists state and then the ledger. Each artifact is replaced
// atomically; a failure leaves earlier artifacts already replaced, which the
// next Load detects through the length checks.
func (s *Store) Save(state *indexstate.State, l ledger.Ledger) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to persist: %w", err)
	}

	blob, err := state.Index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serializing vector index: %w", err)
	}

	writes := []struct {
		name  string
		write func(io.Writer) error
	}{
		{EmbeddingsFile, func(w io.Writer) error { return writeEmbeddings(w, state.Embeddings) }},
		{ChunksFile, func(w io.Writer) error { return gob.NewEncoder(w).Encode(state.Chunks) }},
		{MetadataFile, func(w io.Writer) error { return json.NewEncoder(w).Encode(state.Metadata) }},
		{IndexFile, func(w io.Writer) error {
			_, err := w.Write(blob)
			return err
		}},
	}

	for _, a := range writes {
		if err := utils.WriteFileAtomic(s.path(a.name), 0o644, a.write); err != nil {
			return fmt.Errorf("writing %s: %w", a.name, err)
		}
	}

	if err := s.SaveLedger(l); err != nil {
		return err
	}

	s.logger.Debug("snapshot saved",
		"dir", s.dir,
		"chunks", state.Len(),
		"index_bytes", len(blob),
	)
	return nil
}

// Load restores a State, building its index through factory.
func (s *Store) Load(ctx context.Context, factory vector.Factory) (*indexstate.State, error) {
	var metas []indexstate.Meta
	if err := s.decodeFile(MetadataFile, func(r io.Reader, _ int64) error {
		return json.NewDecoder(r).Decode(&metas)
	}); err != nil {
		return nil, err
	}

	var chunks []string
	if err := s.decodeFile(ChunksFile, func(r io.Reader, _ int64) error {
		return gob.NewDecoder(r).Decode(&chunks)
	}); err != nil {
		return nil, err
	}

	var embeddings [][]float32
	if err := s.decodeFile(EmbeddingsFile, func(r io.Reader, size int64) error {
		var err error
		embeddings, err = readEmbeddings(r, size)
		return err
	}); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(s.path(IndexFile))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrCorruptSnapshot, IndexFile, err)
	}

	if metas == nil {
		metas = []indexstate.Meta{}
	}
	if chunks == nil {
		chunks = []string{}
	}

	idx, err := factory()
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if err := idx.UnmarshalBinary(blob); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrCorruptSnapshot, IndexFile, err)
	}

	state := &indexstate.State{
		Chunks:     chunks,
		Metadata:   metas,
		Embeddings: embeddings,
		Index:      idx,
	}
	if err := state.Validate(); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if err := ctx.Err(); err != nil {
		_ = idx.Close()
		return nil, err
	}

	s.logger.Debug("snapshot loaded", "dir", s.dir, "chunks", state.Len())
	return state, nil
}

func (s *Store) decodeFile(name string, decode func(r io.Reader, size int64) error) error {
	f, err := os.Open(s.path(name))
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrCorruptSnapshot, name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrCorruptSnapshot, name, err)
	}

	if err := decode(f, info.Size()); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", ErrCorruptSnapshot, name, err)
	}
	return nil
}

// LoadLedger reads the ledger artifact.
func (s *Store) LoadLedger() (ledger.Ledger, error) {
	return ledger.Load(s.path(LedgerFile))
}

// SaveLedger replaces the ledger artifact.
func (s *Store) SaveLedger(l ledger.Ledger) error {
	return l.Save(s.path(LedgerFile))
}
