package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/hasher"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/ledger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/snapshot"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

// runLocked runs one pass. The returned event, nil for NoChange and failed
// passes, is published by the caller once s.mu is released.
func (s *Synchronizer) runLocked(ctx context.Context, opts Options) (*Result, *eventstream.IndexSyncedEvent, error) {
	if s.closed {
		return nil, nil, ErrClosed
	}

	started := time.Now()
	res := &Result{
		PassID:   uuid.NewString(),
		New:      []string{},
		Modified: []string{},
		Deleted:  []string{},
	}

	log := s.logger.With("pass_id", res.PassID)
	if opts.Reason != "" {
		log = log.With("reason", opts.Reason)
	}

	var err error
	switch {
	case opts.ForceRebuild:
		log.Info("forced full rebuild requested")
		err = s.fullRebuildLocked(ctx, log, res)
	case !s.store.Exists():
		log.Info("no snapshot found, running full rebuild", "dir", s.store.Dir())
		err = s.fullRebuildLocked(ctx, log, res)
	default:
		err = s.updateLocked(ctx, log, res)
	}

	res.Duration = time.Since(started)
	if err != nil {
		log.Error("sync pass failed", "duration", res.Duration, "error", err)
		return nil, nil, err
	}

	s.cold = false
	s.setPhase(res.Phase)

	log.Info("sync pass complete",
		"phase", res.Phase,
		"new", len(res.New),
		"modified", len(res.Modified),
		"deleted", len(res.Deleted),
		"log_changed", res.LogChanged,
		"chunks", res.Chunks,
		"embedded", res.Embedded,
		"duration", res.Duration,
	)

	if res.Phase == PhaseNoChange {
		return res, nil, nil
	}
	return res, s.eventLocked(res, started, opts.Reason), nil
}

// logCheck is the state of the append-only log relative to the ledger.
type logCheck struct {
	exists  bool
	hash    string
	changed bool
}

// checkLogLocked compares the append-only log with its ledger entry. The
// comparison only happens on the first pass; later passes report it
// unchanged.
func (s *Synchronizer) checkLogLocked(log *slog.Logger, prev ledger.Ledger) logCheck {
	if s.appendLog == "" || !s.cold {
		return logCheck{}
	}

	hash, err := hasher.File(s.appendLog)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not hash append-only log", "path", s.appendLog, "error", err)
		}
		_, indexed := prev[s.appendLog]
		return logCheck{changed: indexed}
	}

	return logCheck{
		exists:  true,
		hash:    hash,
		changed: prev[s.appendLog] != hash,
	}
}

func (s *Synchronizer) updateLocked(ctx context.Context, log *slog.Logger, res *Result) error {
	prev, err := s.store.LoadLedger()
	if err != nil {
		log.Warn("ledger unreadable, treating as empty", "error", err)
		prev = ledger.Ledger{}
	}

	cs, err := s.detector.Detect(ctx, prev)
	if err != nil {
		return err
	}
	lc := s.checkLogLocked(log, prev)

	res.New, res.Modified, res.Deleted = cs.New, cs.Modified, cs.Deleted
	res.LogChanged = lc.changed

	if !s.loaded {
		state, err := s.store.Load(ctx, s.factory)
		if errors.Is(err, snapshot.ErrCorruptSnapshot) {
			log.Warn("snapshot unusable, running full rebuild", "error", err)
			return s.fullRebuildLocked(ctx, log, res)
		}
		if err != nil {
			return err
		}
		s.commitLocked(state)
		log.Info("snapshot loaded", "chunks", state.Len())
	}

	base := s.current.Load().state

	if cs.Empty() && !lc.changed {
		res.Phase = PhaseNoChange
		res.Chunks = base.Len()
		return nil
	}

	drop := make(map[string]bool)
	for _, p := range slices.Concat(cs.New, cs.Modified, cs.Deleted) {
		drop[p] = true
	}
	if lc.changed {
		drop[s.appendLog] = true
	}
	for p := range base.Paths() {
		if _, onDisk := cs.Current[p]; !onDisk && p != s.appendLog && !drop[p] {
			log.Debug("dropping chunks of untracked path", "path", p)
			drop[p] = true
		}
	}

	chunks, metas, vectors := base.Select(base.Keep(drop))
	kept := len(chunks)

	embed := slices.Concat(cs.New, cs.Modified)
	slices.Sort(embed)
	hashes := maps.Clone(cs.Current)
	if lc.changed && lc.exists {
		embed = append(embed, s.appendLog)
		hashes[s.appendLog] = lc.hash
	}

	docs, err := s.loadDocuments(ctx, log, embed, hashes)
	if err != nil {
		return err
	}
	newChunks, newMetas, newVectors, err := s.embedDocuments(ctx, log, docs)
	if err != nil {
		return err
	}

	idx, err := s.buildIndex(ctx, vectors, newVectors)
	if err != nil {
		return err
	}

	state := &indexstate.State{
		Chunks:     slices.Concat(chunks, newChunks),
		Metadata:   slices.Concat(metas, newMetas),
		Embeddings: slices.Concat(vectors, newVectors),
		Index:      idx,
	}

	next := ledger.Ledger(maps.Clone(cs.Current))
	if s.appendLog != "" {
		switch {
		case lc.changed && lc.exists:
			next[s.appendLog] = lc.hash
		case lc.changed:
		default:
			if h, ok := prev[s.appendLog]; ok {
				next[s.appendLog] = h
			}
		}
	}

	if err := s.persistAndCommitLocked(state, next); err != nil {
		return err
	}

	log.Debug("incremental update applied", "kept", kept, "dropped_paths", len(drop))
	res.Phase = PhaseIncremental
	res.Chunks = state.Len()
	res.Embedded = len(newChunks)
	return nil
}

func (s *Synchronizer) fullRebuildLocked(ctx context.Context, log *slog.Logger, res *Result) error {
	current, err := s.detector.Scan(ctx)
	if err != nil {
		return err
	}

	paths := slices.Sorted(maps.Keys(current))
	hashes := maps.Clone(current)
	res.New = slices.Clone(paths)
	res.Modified = []string{}
	res.Deleted = []string{}
	res.LogChanged = false

	if s.appendLog != "" {
		hash, err := hasher.File(s.appendLog)
		switch {
		case err == nil:
			paths = append(paths, s.appendLog)
			hashes[s.appendLog] = hash
			res.LogChanged = true
		case !errors.Is(err, os.ErrNotExist):
			log.Warn("could not hash append-only log", "path", s.appendLog, "error", err)
		}
	}

	docs, err := s.loadDocuments(ctx, log, paths, hashes)
	if err != nil {
		return err
	}
	chunks, metas, vectors, err := s.embedDocuments(ctx, log, docs)
	if err != nil {
		return err
	}

	idx, err := s.buildIndex(ctx, nil, vectors)
	if err != nil {
		return err
	}

	state := &indexstate.State{
		Chunks:     chunks,
		Metadata:   metas,
		Embeddings: vectors,
		Index:      idx,
	}
	if err := s.persistAndCommitLocked(state, hashes); err != nil {
		return err
	}

	res.Phase = PhaseFullRebuild
	res.Chunks = state.Len()
	res.Embedded = len(chunks)
	return nil
}

// buildIndex creates a fresh index holding kept followed by added.
func (s *Synchronizer) buildIndex(ctx context.Context, kept, added [][]float32) (_ vector.Index, err error) {
	idx, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = idx.Close()
		}
	}()

	if err := idx.Rebuild(ctx, kept); err != nil {
		return nil, fmt.Errorf("rebuilding vector index: %w", err)
	}
	if err := idx.Add(ctx, added); err != nil {
		return nil, fmt.Errorf("adding to vector index: %w", err)
	}
	return idx, nil
}

func (s *Synchronizer) persistAndCommitLocked(state *indexstate.State, l ledger.Ledger) error {
	if err := state.Validate(); err != nil {
		_ = state.Index.Close()
		return err
	}
	if err := s.store.Save(state, l); err != nil {
		_ = state.Index.Close()
		return fmt.Errorf("persisting snapshot: %w", err)
	}
	s.commitLocked(state)
	return nil
}

func (s *Synchronizer) eventLocked(res *Result, started time.Time, reason string) *eventstream.IndexSyncedEvent {
	stats := s.current.Load().state.Stats()
	return &eventstream.IndexSyncedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeIndexSynced,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Pass: eventstream.SyncPassMeta{
			PassID:     res.PassID,
			Phase:      string(res.Phase),
			Reason:     reason,
			StartedAt:  started.UTC(),
			DurationMs: res.Duration.Milliseconds(),
		},
		Changes: eventstream.SyncChangeSet{
			New:        res.New,
			Modified:   res.Modified,
			Deleted:    res.Deleted,
			LogChanged: res.LogChanged,
		},
		Index: eventstream.IndexMeta{
			IndexedDocuments: stats.IndexedDocuments,
			TotalChunks:      stats.TotalChunks,
			Embedded:         res.Embedded,
		},
	}
}

func (s *Synchronizer) publish(ctx context.Context, event *eventstream.IndexSyncedEvent) {
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.Warn("could not publish sync event",
			"pass_id", event.Pass.PassID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}
