package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent lettarag configuration stored as
// config.toml in the .lettarag/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Data        DataConfig        `toml:"data"`
	Storage     StorageConfig     `toml:"storage"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Sync        SyncConfig        `toml:"sync"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Events      EventsConfig      `toml:"events"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
}

// DataConfig locates the source documents.
type DataConfig struct {
	// Folder is scanned recursively for supported documents.
	Folder string `toml:"folder,omitempty"`

	// AppendLog is the append-only conversation log. Relative paths resolve
	// against Folder.
	AppendLog string `toml:"append_log"`
}

// StorageConfig locates the snapshot artifacts.
type StorageConfig struct {
	Dir string `toml:"dir,omitempty"`
}

// ChunkingConfig holds the word window used to split documents.
type ChunkingConfig struct {
	Size    int `toml:"size,omitempty"`
	Overlap int `toml:"overlap"`
}

// SyncConfig holds synchronizer and file watcher settings.
type SyncConfig struct {
	DebounceMs uint `toml:"debounce_ms,omitempty"`
	Workers    uint `toml:"workers,omitempty"`
	Watch      bool `toml:"watch"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// server (e.g. lettarag search, lettarag upload). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EventsConfig holds sync event publishing settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	TopK uint `toml:"top_k,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"data.folder":      stringKey(func(c *Config) *string { return &c.Data.Folder }),
	"data.append_log":  stringKey(func(c *Config) *string { return &c.Data.AppendLog }),
	"storage.dir":      stringKey(func(c *Config) *string { return &c.Storage.Dir }),
	"chunking.size":    intKey("chunking.size", func(c *Config) *int { return &c.Chunking.Size }),
	"chunking.overlap": intKey("chunking.overlap", func(c *Config) *int { return &c.Chunking.Overlap }),
	"sync.debounce_ms": uintKey("sync.debounce_ms", func(c *Config) *uint { return &c.Sync.DebounceMs }),
	"sync.workers":     uintKey("sync.workers", func(c *Config) *uint { return &c.Sync.Workers }),
	"sync.watch": {
		get: func(c *Config) string { return strconv.FormatBool(c.Sync.Watch) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for sync.watch: %w", err)
			}
			c.Sync.Watch = b
			return nil
		},
	},
	"api.listen":            stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target":     stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"embedding.provider":    stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":      stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":       stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":  uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"events.provider":       stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = splitList(v)
			return nil
		},
	},
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"retrieval.top_k": uintKey("retrieval.top_k", func(c *Config) *uint { return &c.Retrieval.TopK }),
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(v string) []string {
	out := []string{}
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
