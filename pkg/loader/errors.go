package loader

import (
	"errors"
	"fmt"
)

// ErrExtraction marks a per-file text extraction failure. Files that fail
// extraction contribute zero chunks.
var ErrExtraction = errors.New("text extraction failed")

// ExtractionError describes which file failed to extract and why.
type ExtractionError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: extracting %s from %s: %v", ErrExtraction, e.Kind, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}
