// Package ledger persists the file-hash ledger: the content hash of every
// source file the committed index state was built from.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/utils"
)

// ErrLedgerIO is returned when the ledger file exists but cannot be read or
// decoded, or cannot be written.
var ErrLedgerIO = errors.New("ledger io failure")

// Ledger maps absolute source paths to their content hash.
type Ledger map[string]string

// Load reads the ledger at path. A missing file yields an empty ledger.
func Load(path string) (Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Ledger{}, nil
		}
		return Ledger{}, fmt.Errorf("%w: reading %s: %w", ErrLedgerIO, path, err)
	}

	l := Ledger{}
	if err := json.Unmarshal(data, &l); err != nil {
		return Ledger{}, fmt.Errorf("%w: decoding %s: %w", ErrLedgerIO, path, err)
	}
	if l == nil {
		l = Ledger{}
	}
	return l, nil
}

// Save writes the ledger to path atomically.
func (l Ledger) Save(path string) error {
	err := utils.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	})
	if err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrLedgerIO, path, err)
	}
	return nil
}

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	maps.Copy(out, l)
	return out
}

// Paths returns the ledger paths in sorted order.
func (l Ledger) Paths() []string {
	return slices.Sorted(maps.Keys(l))
}
