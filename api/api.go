package api

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/H0NEYP0T-466/lettaXrag/api/mcp"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/retrieval"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/upload"
)

const (
	multipartOverhead = 1 << 20
	defaultKeepAlive  = 15 * time.Second
)

// Server is the API server in front of the index synchronizer.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App

	// done ends open event streams so Shutdown does not wait on them.
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new API server. The synchronizer, retriever and
// uploader are injected so the CLI can share them with the file watcher.
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	if config.Indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if config.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if config.Uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = retrieval.DefaultTopK
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = int(upload.DefaultMaxBytes + multipartOverhead)
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = defaultKeepAlive
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
		done:   make(chan struct{}),
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Searcher:    config.Searcher,
		Status:      config.Indexer,
		DefaultTopK: config.DefaultTopK,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)
	app.Get("/v1/retrieve", s.handleRetrieve)
	app.Get("/v1/stats", s.handleStats)
	app.Post("/v1/upload", s.handleUpload)
	app.Post("/v1/reindex", s.handleReindex)
	if config.Events != nil {
		app.Get("/v1/events", s.handleEvents)
	}
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown ends open event streams and gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.app.Shutdown()
}
