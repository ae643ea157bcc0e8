// Package changes finds the supported source files under the data folder and
// classifies them against the hash ledger of the committed index state.
package changes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/hasher"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/ledger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/loader"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
)

// IgnoreFile is the optional gitignore-style file in the data folder root.
const IgnoreFile = ".ragignore"

// Config configures a Detector.
type Config struct {
	// Root is the data folder scanned recursively.
	Root string

	// Exclude lists files never reported by Scan, such as the append-only
	// log which is tracked separately.
	Exclude []string

	// SkipDirs lists directories not descended into, such as a snapshot
	// directory nested in the data folder.
	SkipDirs []string

	Logger *slog.Logger
}

// Detector scans the data folder.
type Detector struct {
	root     string
	exclude  map[string]bool
	skipDirs map[string]bool
	ignore   *ignore.GitIgnore
	logger   *slog.Logger
}

// New creates a Detector, compiling the root IgnoreFile when present.
func New(c Config) (*Detector, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving data folder %s: %w", c.Root, err)
	}

	d := &Detector{
		root:     root,
		exclude:  make(map[string]bool, len(c.Exclude)),
		skipDirs: make(map[string]bool, len(c.SkipDirs)),
		logger:   c.Logger,
	}
	if d.logger == nil {
		d.logger = logger.Nop()
	}

	for _, p := range c.Exclude {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving excluded path %s: %w", p, err)
		}
		d.exclude[abs] = true
	}
	for _, p := range c.SkipDirs {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving skipped directory %s: %w", p, err)
		}
		d.skipDirs[abs] = true
	}

	ignorePath := filepath.Join(root, IgnoreFile)
	gi, err := ignore.CompileIgnoreFile(ignorePath)
	switch {
	case err == nil:
		d.ignore = gi
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("compiling %s: %w", ignorePath, err)
	}

	return d, nil
}

// Root returns the absolute data folder.
func (d *Detector) Root() string {
	return d.root
}

// Accepts reports whether path would be picked up by Scan.
func (d *Detector) Accepts(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if d.exclude[abs] || !loader.Supported(abs) {
		return false
	}
	for dir := range d.skipDirs {
		if isWithin(dir, abs) {
			return false
		}
	}
	return !d.ignored(abs, false)
}

// SkipDir reports whether a directory is not descended into.
func (d *Detector) SkipDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	if d.skipDirs[abs] {
		return true
	}
	return abs != d.root && d.ignored(abs, true)
}

func (d *Detector) ignored(abs string, dir bool) bool {
	if d.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(d.root, abs)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if dir {
		return d.ignore.MatchesPath(rel) || d.ignore.MatchesPath(rel+"/")
	}
	return d.ignore.MatchesPath(rel)
}

// Scan returns the content hash of every accepted file under the root. A
// missing root yields an empty result. Files that vanish between listing
// and hashing are skipped.
func (d *Detector) Scan(ctx context.Context) (map[string]string, error) {
	current := make(map[string]string)

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			d.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if entry.IsDir() {
			if d.SkipDir(path) {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || !d.Accepts(path) {
			return nil
		}

		hash, err := hasher.File(path)
		if err != nil {
			d.logger.Warn("could not hash file", "path", path, "error", err)
			return nil
		}
		current[path] = hash
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", d.root, err)
	}

	return current, nil
}

// Detect scans the root and classifies the result against previous.
func (d *Detector) Detect(ctx context.Context, previous ledger.Ledger) (*ChangeSet, error) {
	current, err := d.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return Classify(previous, current, slices.Collect(maps.Keys(d.exclude))...), nil
}

func isWithin(dir, path string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
