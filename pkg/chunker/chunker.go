// Package chunker splits extracted document text into overlapping windows of
// whitespace-delimited words.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultSize is the default number of words per chunk.
	DefaultSize = 500

	// DefaultOverlap is the default number of words shared by consecutive chunks.
	DefaultOverlap = 100
)

// ErrInvalidWindow is returned when the size/overlap pair cannot produce
// forward-moving windows.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Validate checks that size and overlap describe a window that always
// advances. Call it once at startup so misconfiguration fails fast.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidWindow, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidWindow, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidWindow, overlap, size)
	}
	return nil
}

// Chunk splits text into windows of size words, advancing size-overlap words
// per window. The last window may be shorter than size. Windows stop once one
// reaches the end of the text, so a text shorter than size yields a single
// chunk holding all of it and empty text yields no chunks.
func Chunk(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))

		chunk := strings.Join(words[start:end], " ")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(words) {
			break
		}
	}

	return chunks, nil
}
