// Package api provides the lettarag HTTP server: retrieval, stats, uploads,
// reindexing and the MCP endpoint.
package api

import (
	"context"
	"io"
	"time"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/retrieval"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/upload"
)

// Indexer runs sync passes and reports on the committed index.
type Indexer interface {
	Sync(ctx context.Context, opts indexsync.Options) (*indexsync.Result, error)
	Phase() indexsync.Phase
	Stats() indexstate.Stats
}

// Searcher runs similarity queries against the committed index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

// Uploader stores a document in the data folder and indexes it.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*upload.Result, error)
}

// Subscriber hands out streams of committed sync passes. The channel is
// closed when the subscription ends.
type Subscriber interface {
	Subscribe(buffer int) (<-chan *eventstream.IndexSyncedEvent, func())
}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// DefaultTopK is used when a retrieve request omits k.
	DefaultTopK int

	// BodyLimit caps request bodies in bytes. Defaults to the upload limit
	// plus room for multipart framing.
	BodyLimit int

	// KeepAlive is the comment interval on idle event streams.
	KeepAlive time.Duration

	Indexer  Indexer
	Searcher Searcher
	Uploader Uploader

	// Events enables GET /v1/events when set.
	Events Subscriber
}
