// Package indexsync keeps the committed index state consistent with the data
// folder. A Synchronizer runs one pass at a time: full rebuilds, incremental
// updates for changed files, or no-ops. Each committed pass publishes a new
// immutable state that readers acquire without blocking the writer.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/changes"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream/nop"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/loader"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/snapshot"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

var defaultWorkers uint = 4

var (
	// ErrEmbeddingProvider is returned when the embedding provider fails
	// during a pass. The committed state is left untouched.
	ErrEmbeddingProvider = errors.New("embedding provider failure")

	// ErrClosed is returned by Sync after Close.
	ErrClosed = errors.New("synchronizer closed")
)

// Phase names the kind of pass last run by a Synchronizer.
type Phase string

const (
	PhaseColdStart   Phase = "cold_start"
	PhaseNoChange    Phase = "no_change"
	PhaseFullRebuild Phase = "full_rebuild"
	PhaseIncremental Phase = "incremental_update"
)

// Config is the configuration for a Synchronizer.
type Config struct {
	// DataDir is the folder scanned for source documents.
	DataDir string

	// AppendLog is the optional append-only log. It is excluded from
	// steady-state change detection and only compared on the first pass.
	AppendLog string

	// ChunkSize and ChunkOverlap set the word window.
	ChunkSize    int
	ChunkOverlap int

	// Workers bounds concurrent document loading (defaults to 4).
	Workers uint

	// Embedder generates chunk embeddings.
	Embedder embeddings.Embedder

	// IndexFactory creates the empty index each committed state is built on.
	IndexFactory vector.Factory

	// Store persists committed states and the hash ledger.
	Store *snapshot.Store

	// Publisher receives an event after each committed pass (defaults to nop).
	Publisher eventstream.Publisher

	Logger *slog.Logger
}

// Options tune a single pass.
type Options struct {
	// ForceRebuild discards the snapshot and rebuilds from scratch.
	ForceRebuild bool

	// Reason is recorded in logs and events, e.g. "startup" or "upload".
	Reason string
}

// Result describes a completed pass.
type Result struct {
	PassID     string        `json:"pass_id"`
	Phase      Phase         `json:"phase"`
	New        []string      `json:"new"`
	Modified   []string      `json:"modified"`
	Deleted    []string      `json:"deleted"`
	LogChanged bool          `json:"log_changed"`
	Chunks     int           `json:"chunks"`
	Embedded   int           `json:"embedded"`
	Duration   time.Duration `json:"duration"`
}

// Synchronizer owns the committed index state.
type Synchronizer struct {
	dataDir   string
	appendLog string
	workers   int

	loader    *loader.Loader
	detector  *changes.Detector
	embedder  embeddings.Embedder
	factory   vector.Factory
	store     *snapshot.Store
	publisher eventstream.Publisher
	logger    *slog.Logger

	// publishMu is taken before mu is released so events leave in pass
	// order while the next pass runs.
	publishMu sync.Mutex

	// mu serializes passes. Fields below it are only touched while held.
	mu      sync.Mutex
	loaded  bool
	cold    bool
	closed  bool
	pending atomic.Bool

	current  atomic.Pointer[published]
	phase    atomic.Pointer[Phase]
	retiring sync.WaitGroup
}

// published wraps a committed state with reader accounting so its index can
// be closed once every reader has released it.
type published struct {
	state   *indexstate.State
	mu      sync.RWMutex
	retired bool
}

// New creates a Synchronizer holding an empty state. No pass is run.
func New(c *Config) (*Synchronizer, error) {
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.IndexFactory == nil {
		return nil, errors.New("index factory is required")
	}
	if c.Store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.Workers > uint(math.MaxInt) {
		return nil, fmt.Errorf("Workers %d exceeds max int", c.Workers)
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	dataDir, err := filepath.Abs(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data folder: %w", err)
	}

	appendLog := ""
	if c.AppendLog != "" {
		appendLog, err = filepath.Abs(c.AppendLog)
		if err != nil {
			return nil, fmt.Errorf("resolving append-only log: %w", err)
		}
	}

	ld, err := loader.New(c.ChunkSize, c.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	exclude := []string{}
	if appendLog != "" {
		exclude = append(exclude, appendLog)
	}
	detector, err := changes.New(changes.Config{
		Root:     dataDir,
		Exclude:  exclude,
		SkipDirs: []string{c.Store.Dir()},
		Logger:   c.Logger,
	})
	if err != nil {
		return nil, err
	}

	idx, err := c.IndexFactory()
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	s := &Synchronizer{
		dataDir:   dataDir,
		appendLog: appendLog,
		workers:   int(c.Workers),
		loader:    ld,
		detector:  detector,
		embedder:  c.Embedder,
		factory:   c.IndexFactory,
		store:     c.Store,
		publisher: c.Publisher,
		logger:    c.Logger,
		cold:      true,
	}
	s.current.Store(&published{state: indexstate.Empty(idx)})
	s.setPhase(PhaseColdStart)

	return s, nil
}

// Phase reports the phase of the last successful pass, or PhaseColdStart
// before the first one commits.
func (s *Synchronizer) Phase() Phase {
	return *s.phase.Load()
}

func (s *Synchronizer) setPhase(p Phase) {
	s.phase.Store(&p)
}

// Detector returns the change detector, which also serves as the path filter
// for file watchers.
func (s *Synchronizer) Detector() *changes.Detector {
	return s.detector
}

// DataDir returns the absolute data folder.
func (s *Synchronizer) DataDir() string {
	return s.dataDir
}

// Acquire returns the committed state and a release function that must be
// called once the caller is done reading it. The state's index stays open
// until released, even if a newer state is committed meanwhile.
func (s *Synchronizer) Acquire() (*indexstate.State, func()) {
	for {
		p := s.current.Load()
		p.mu.RLock()
		if p.retired {
			p.mu.RUnlock()
			continue
		}
		return p.state, p.mu.RUnlock
	}
}

// Stats reports statistics for the committed state.
func (s *Synchronizer) Stats() indexstate.Stats {
	state, release := s.Acquire()
	defer release()
	return state.Stats()
}

// Sync runs one pass and returns its result. Triggers that arrived while it
// was running are drained afterwards with one follow-up pass.
func (s *Synchronizer) Sync(ctx context.Context, opts Options) (*Result, error) {
	s.mu.Lock()
	res, err := s.finishLocked(ctx, opts)

	s.drain(context.WithoutCancel(ctx))
	return res, err
}

// finishLocked runs a pass with s.mu held, releases s.mu and then publishes
// the pass event. A slow event backend never holds up the next pass.
func (s *Synchronizer) finishLocked(ctx context.Context, opts Options) (*Result, error) {
	res, event, err := s.runLocked(ctx, opts)
	if event == nil {
		s.mu.Unlock()
		return res, err
	}

	s.publishMu.Lock()
	s.mu.Unlock()
	defer s.publishMu.Unlock()
	s.publish(ctx, event)
	return res, err
}

// Trigger requests an incremental pass. If a pass is already running, the
// request is folded into a single follow-up pass run once it finishes, and
// Trigger returns immediately.
func (s *Synchronizer) Trigger(ctx context.Context) {
	s.pending.Store(true)
	s.drain(ctx)
}

func (s *Synchronizer) drain(ctx context.Context) {
	for s.pending.Load() {
		if !s.mu.TryLock() {
			return
		}
		if !s.pending.Swap(false) {
			s.mu.Unlock()
			return
		}
		_, err := s.finishLocked(ctx, Options{Reason: "trigger"})
		if err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Error("triggered sync failed", "error", err)
		}
	}
}

// Close waits for retired states and in-flight readers to be released, then
// closes the committed index. Later passes fail with ErrClosed.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	p := s.current.Load()
	s.retiring.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Index.Close()
}

// commitLocked swaps in state and retires the previous one in the
// background once its readers release it.
func (s *Synchronizer) commitLocked(state *indexstate.State) {
	old := s.current.Swap(&published{state: state})
	s.loaded = true

	s.retiring.Add(1)
	go func() {
		defer s.retiring.Done()
		old.mu.Lock()
		defer old.mu.Unlock()
		old.retired = true
		if err := old.state.Index.Close(); err != nil {
			s.logger.Warn("closing retired index", "error", err)
		}
	}()
}
