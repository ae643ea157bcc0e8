// Package loader extracts plain text from supported documents and turns it
// into positional chunks.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/chunker"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
)

// Loader extracts text and chunks it with a fixed window.
type Loader struct {
	chunkSize    int
	chunkOverlap int
}

// New returns a Loader for the given chunk window.
func New(chunkSize, chunkOverlap int) (*Loader, error) {
	if err := chunker.Validate(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Loader{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Load returns the plain text of the document at path. Failures are
// reported as *ExtractionError.
func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	kind, ok := KindOf(path)
	if !ok {
		return "", fmt.Errorf("unsupported document type: %s", path)
	}

	var (
		text string
		err  error
	)
	switch kind {
	case PlainText, Markdown:
		text, err = loadText(path)
	case Pdf:
		text, err = loadPDF(path)
	case WordProcessor:
		text, err = loadDocx(path)
	}
	if err != nil {
		return "", &ExtractionError{Path: path, Kind: kind, Err: err}
	}

	return text, nil
}

// LoadChunks loads and chunks the document at path. Each chunk gets metadata
// numbered from zero and stamped with fileHash.
func (l *Loader) LoadChunks(ctx context.Context, path, fileHash string) ([]string, []indexstate.Meta, error) {
	text, err := l.Load(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	chunks, err := chunker.Chunk(text, l.chunkSize, l.chunkOverlap)
	if err != nil {
		return nil, nil, err
	}

	source := filepath.Base(path)
	metas := make([]indexstate.Meta, len(chunks))
	for i := range chunks {
		metas[i] = indexstate.Meta{
			Source:   source,
			ChunkID:  i,
			FileHash: fileHash,
			FilePath: path,
		}
	}

	return chunks, metas, nil
}

func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func loadPDF(path string) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
