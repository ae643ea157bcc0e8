// Package upload stores documents sent by clients into the data folder and
// folds them into the index with an incremental pass.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/loader"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/utils"
)

// DefaultMaxBytes caps an upload when Config.MaxBytes is zero.
const DefaultMaxBytes int64 = 50 << 20

var (
	// ErrUnsupportedType is returned for extensions the loader cannot read.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrInvalidName is returned when no usable base filename remains after
	// sanitizing.
	ErrInvalidName = errors.New("invalid file name")

	// ErrTooLarge is returned when the upload exceeds the size limit.
	ErrTooLarge = errors.New("upload too large")

	// ErrReservedName is returned when the upload would replace a file the
	// service owns, such as the append-only chat log.
	ErrReservedName = errors.New("reserved file name")
)

// Syncer runs index passes.
type Syncer interface {
	Sync(ctx context.Context, opts indexsync.Options) (*indexsync.Result, error)
}

// Config is the configuration for an Uploader.
type Config struct {
	DataDir  string
	MaxBytes int64
	Syncer   Syncer
	Logger   *slog.Logger

	// Reserved lists paths uploads may never overwrite.
	Reserved []string
}

// Uploader writes uploads into the data folder.
type Uploader struct {
	dataDir  string
	maxBytes int64
	syncer   Syncer
	logger   *slog.Logger
	reserved map[string]struct{}
}

// Result reports where an upload was stored and the pass that indexed it.
type Result struct {
	Filename string            `json:"filename"`
	Path     string            `json:"path"`
	Bytes    int64             `json:"bytes"`
	Sync     *indexsync.Result `json:"sync"`
}

// New creates an Uploader.
func New(c Config) (*Uploader, error) {
	if c.Syncer == nil {
		return nil, errors.New("syncer is required")
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	dataDir, err := filepath.Abs(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data folder: %w", err)
	}

	reserved := make(map[string]struct{}, len(c.Reserved))
	for _, p := range c.Reserved {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving reserved path %s: %w", p, err)
		}
		reserved[abs] = struct{}{}
	}

	return &Uploader{
		dataDir:  dataDir,
		maxBytes: c.MaxBytes,
		syncer:   c.Syncer,
		logger:   c.Logger,
		reserved: reserved,
	}, nil
}

// SanitizeFilename reduces a client supplied name to a plain base filename.
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := strings.TrimSpace(filepath.Base(name))
	if base == "" || base == "." || base == ".." || base == "/" || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

// Validate checks the name and extension of an upload without storing it.
func Validate(filename string) (string, error) {
	base, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if !loader.Supported(base) {
		return "", fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedType, filepath.Ext(base), loader.ExtensionList())
	}
	return base, nil
}

// Upload stores r as filename in the data folder, replacing any file of the
// same name, and runs an incremental pass.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	base, err := Validate(filename)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(u.dataDir, base)
	if _, ok := u.reserved[path]; ok {
		return nil, fmt.Errorf("%w: %s", ErrReservedName, base)
	}

	var written int64
	err = utils.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		n, err := io.Copy(w, io.LimitReader(r, u.maxBytes+1))
		written = n
		if err != nil {
			return err
		}
		if n > u.maxBytes {
			return fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, u.maxBytes)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storing %s: %w", base, err)
	}

	u.logger.Info("stored upload", "path", path, "bytes", written)

	res, err := u.syncer.Sync(ctx, indexsync.Options{Reason: "upload"})
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", base, err)
	}

	return &Result{
		Filename: base,
		Path:     path,
		Bytes:    written,
		Sync:     res,
	}, nil
}
