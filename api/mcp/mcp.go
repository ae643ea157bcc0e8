// Package mcp provides an MCP (Model Context Protocol) server exposing the
// lettarag index to agents.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/retrieval"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/utils"
)

// Searcher runs similarity queries against the committed index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

// Status reports the synchronizer phase and index sizes.
type Status interface {
	Phase() indexsync.Phase
	Stats() indexstate.Stats
}

type Config struct {
	// Searcher answers the retrieve tool.
	Searcher Searcher

	// Status answers the stats tool.
	Status Status

	// DefaultTopK is used when a retrieve call omits k.
	DefaultTopK int

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the retrieve and stats tools.
func NewServer(c Config) (*Server, error) {
	if c.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if c.Status == nil {
		return nil, errors.New("status source is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = retrieval.DefaultTopK
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "lettarag",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        retrieveToolName,
		Description: retrieveDescription,
	}, s.handleRetrieve)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        statsToolName,
		Description: statsDescription,
	}, s.handleStats)

	s.mcpServer = mcpServer

	// Stateless: every request is served by the same tool set.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
