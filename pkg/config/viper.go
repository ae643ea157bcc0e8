package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by lettarag.
const EnvPrefix = "LETTARAG"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), loads a .env file from the working
// directory when present, and binds environment variables with the
// LETTARAG_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (LETTARAG_DATA_FOLDER, LETTARAG_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. A .env file never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	// 4. Environment variables: LETTARAG_DATA_FOLDER, LETTARAG_STORAGE_DIR, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Data
	v.SetDefault("data.folder", d.Data.Folder)
	v.SetDefault("data.append_log", d.Data.AppendLog)

	// Storage
	v.SetDefault("storage.dir", d.Storage.Dir)

	// Chunking
	v.SetDefault("chunking.size", d.Chunking.Size)
	v.SetDefault("chunking.overlap", d.Chunking.Overlap)

	// Sync
	v.SetDefault("sync.debounce_ms", d.Sync.DebounceMs)
	v.SetDefault("sync.workers", d.Sync.Workers)
	v.SetDefault("sync.watch", d.Sync.Watch)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Retrieval
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
}

// FromViper materializes the effective configuration from v.
func FromViper(v *viper.Viper) *Config {
	brokers := v.GetStringSlice("events.brokers")
	if len(brokers) == 1 && strings.Contains(brokers[0], ",") {
		// Environment variables arrive as one comma separated string.
		brokers = splitList(brokers[0])
	}

	return &Config{
		Version: v.GetInt("version"),
		Data: DataConfig{
			Folder:    v.GetString("data.folder"),
			AppendLog: v.GetString("data.append_log"),
		},
		Storage: StorageConfig{
			Dir: v.GetString("storage.dir"),
		},
		Chunking: ChunkingConfig{
			Size:    v.GetInt("chunking.size"),
			Overlap: v.GetInt("chunking.overlap"),
		},
		Sync: SyncConfig{
			DebounceMs: v.GetUint("sync.debounce_ms"),
			Workers:    v.GetUint("sync.workers"),
			Watch:      v.GetBool("sync.watch"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  brokers,
			Topic:    v.GetString("events.topic"),
		},
		Retrieval: RetrievalConfig{
			TopK: v.GetUint("retrieval.top_k"),
		},
	}
}
