// Package servecmder provides the serve command: it runs the startup sync
// pass, watches the data folder and serves the HTTP and MCP API.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/H0NEYP0T-466/lettaXrag/api"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/engine"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/watcher"
)

type serveCommander struct {
	dataFolder     string
	appendLog      string
	storageDir     string
	listen         string
	vectorProvider string
	embedProvider  string
	embedTarget    string
	embedModel     string
	embedDims      uint
	workers        uint
	debounceMs     uint
	noWatch        bool
	logFile        string
	logLevel       string

	debug  bool
	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the lettarag server.

On start the data folder is synchronized with the last snapshot: unchanged
documents are restored without re-embedding, new and modified documents are
embedded, and deleted ones are dropped. The folder is then watched and every
burst of changes triggers an incremental pass.

The API exposes:
  GET  /health             phase and index stats
  GET  /v1/retrieve        ?query=...&k=3
  GET  /v1/stats           index stats
  POST /v1/upload          multipart "file" field
  POST /v1/reindex         ?force=true for a full rebuild
       /mcp                MCP tools "retrieve" and "stats"

Examples:
  lettarag serve
  lettarag serve --data ./docs --listen :9000
  lettarag serve --vector-store-provider sqlite --embedding-dimensions 768`

const serveShortDesc string = "Run the lettarag server"

// bindKeys are the registry flags serve binds into viper.
var bindKeys = []string{
	config.FlagDataFolder,
	config.FlagAppendLog,
	config.FlagStorageDir,
	config.FlagAPIListen,
	config.FlagVectorStoreProv,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagWorkers,
	config.FlagDebounceMs,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, bindKeys)
			cmder.cfg = configFromViper(v, cmder.noWatch)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagDataFolder, &cmder.dataFolder)
	config.AddStringFlag(cmd, config.Flags, config.FlagAppendLog, &cmder.appendLog)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDir, &cmder.storageDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagDebounceMs, &cmder.debounceMs)
	cmd.Flags().BoolVar(&cmder.noWatch, "no-watch", false, "Do not watch the data folder for changes")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().StringVar(&cmder.logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")

	return cmd
}

func configFromViper(v *viper.Viper, noWatch bool) *config.Config {
	cfg := config.FromViper(v)
	if noWatch {
		cfg.Sync.Watch = false
	}
	return cfg
}

func (c *serveCommander) newLogger() (*slog.Logger, func(), error) {
	level, err := logger.ParseLevel(c.logLevel)
	if err != nil {
		return nil, nil, err
	}

	console := logger.New(
		logger.WithTerminalDetection(os.Stdout),
		logger.WithLevel(level),
		logger.WithDebug(c.debug),
	)
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithJSON(true),
		logger.WithWriter(f),
		logger.WithLevel(level),
		logger.WithDebug(c.debug),
	)
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}

func (c *serveCommander) run(parent context.Context) error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.New(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			c.logger.Warn("closing engine", "error", err)
		}
	}()

	// A failed startup pass leaves an empty or restored index; the server
	// still starts so uploads and reindex requests can repair it.
	if res, err := e.Synchronizer.Sync(ctx, indexsync.Options{Reason: "startup"}); err != nil {
		c.logger.Error("startup sync failed", "error", err)
	} else {
		c.logger.Info("startup sync complete",
			"phase", res.Phase,
			"chunks", res.Chunks,
			"embedded", res.Embedded,
		)
	}

	var w *watcher.Watcher
	if c.cfg.Sync.Watch {
		w, err = watcher.New(watcher.Config{
			Root:     e.Synchronizer.DataDir(),
			Debounce: time.Duration(c.cfg.Sync.DebounceMs) * time.Millisecond,
			Filter:   e.Synchronizer.Detector(),
			Logger:   c.logger,
		}, func() {
			e.Synchronizer.Trigger(ctx)
		})
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer w.Close()

		go func() {
			if err := w.Run(ctx); err != nil {
				c.logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr:  c.cfg.API.Listen,
		DefaultTopK: int(c.cfg.Retrieval.TopK),
		Indexer:     e.Synchronizer,
		Searcher:    e.Retriever,
		Uploader:    e.Uploader,
		Events:      e.Events,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return apiServer.Shutdown()
	}
}
