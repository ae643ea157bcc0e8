// Package engine assembles the synchronizer, retriever and uploader from a
// loaded configuration. Both "lettarag serve" and "lettarag reindex --local"
// build their stack through it.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings"
	embeddingutils "github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings/utils"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream/hub"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream/kafka"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream/nop"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/retrieval"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/snapshot"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/upload"
	vectorutils "github.com/H0NEYP0T-466/lettaXrag/pkg/vector/utils"
)

// Engine holds the wired components of one lettarag process.
type Engine struct {
	Synchronizer *indexsync.Synchronizer
	Retriever    *retrieval.Retriever
	Uploader     *upload.Uploader
	Embedder     embeddings.Embedder
	Publisher    eventstream.Publisher

	// Events receives every published pass for in-process subscribers,
	// alongside the configured backend.
	Events *hub.Hub

	config *config.Config
	logger *slog.Logger
}

// Option overrides a component that would otherwise be built from config.
type Option func(*options)

type options struct {
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
}

// WithEmbedder uses e instead of the configured embedding provider.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithPublisher uses p instead of the configured event backend.
func WithPublisher(p eventstream.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// New validates cfg, creates the data and storage folders when missing and
// wires every component. No sync pass is run.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	for _, dir := range []string{cfg.Data.Folder, cfg.Storage.Dir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	e := &Engine{config: cfg, logger: log}

	embedder := o.embedder
	if embedder == nil {
		var err error
		embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			Dimensions:   cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		log.Info("using embedder",
			"provider", cfg.Embedding.Provider,
			"target", cfg.Embedding.Target,
			"model", cfg.Embedding.Model,
		)
	}
	e.Embedder = embedder

	factory, err := vectorutils.NewFactory(&vectorutils.NewFactoryOpts{
		ProviderType: cfg.VectorStore.Provider,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       log,
	})
	if err != nil {
		e.closeQuietly()
		return nil, fmt.Errorf("creating vector index factory: %w", err)
	}
	log.Info("using vector index", "provider", cfg.VectorStore.Provider)

	publisher := o.publisher
	if publisher == nil {
		publisher, err = newPublisher(cfg.Events, log)
		if err != nil {
			e.closeQuietly()
			return nil, err
		}
	}
	e.Publisher = publisher
	e.Events = hub.New(log)

	appendLog := cfg.ResolveAppendLog()

	e.Synchronizer, err = indexsync.New(&indexsync.Config{
		DataDir:      cfg.Data.Folder,
		AppendLog:    appendLog,
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		Workers:      cfg.Sync.Workers,
		Embedder:     embedder,
		IndexFactory: factory,
		Store:        snapshot.New(filepath.Clean(cfg.Storage.Dir), log),
		Publisher:    eventstream.Multi(e.Events, publisher),
		Logger:       log,
	})
	if err != nil {
		e.closeQuietly()
		return nil, fmt.Errorf("creating synchronizer: %w", err)
	}

	e.Retriever = retrieval.New(e.Synchronizer, embedder, log)

	e.Uploader, err = upload.New(upload.Config{
		DataDir:  cfg.Data.Folder,
		Syncer:   e.Synchronizer,
		Logger:   log,
		Reserved: []string{appendLog},
	})
	if err != nil {
		e.closeQuietly()
		return nil, fmt.Errorf("creating uploader: %w", err)
	}

	return e, nil
}

func newPublisher(c config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.Brokers,
			Topic:   c.Topic,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing sync events to kafka", "brokers", c.Brokers, "topic", c.Topic)
		return p, nil
	case "nop", "":
		return nop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", c.Provider)
	}
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config {
	return e.config
}

// Close shuts down the synchronizer, then the publishers and embedder.
// Closing the publishers ends every event subscription.
func (e *Engine) Close() error {
	var errs []error
	if e.Synchronizer != nil {
		errs = append(errs, e.Synchronizer.Close())
	}
	if e.Events != nil {
		errs = append(errs, e.Events.Close())
	}
	if e.Publisher != nil {
		errs = append(errs, e.Publisher.Close())
	}
	if e.Embedder != nil {
		errs = append(errs, e.Embedder.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) closeQuietly() {
	if err := e.Close(); err != nil {
		e.logger.Warn("closing partially built engine", "error", err)
	}
}
