package config

const (
	defaultDataFolder = "./data"
	defaultAppendLog  = "chat_history.txt"
	defaultStorageDir = "./storage"

	defaultChunkSize    = 500
	defaultChunkOverlap = 100

	defaultDebounceMs = 2000
	defaultWorkers    = 4

	defaultAPIListen       = ":8000"
	defaultClientAPITarget = "http://localhost:8000"

	defaultVectorProvider = "flat"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "all-minilm"
	defaultEmbeddingDimensions = 384

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "lettarag.index"

	defaultTopK = 3
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Data: DataConfig{
			Folder:    defaultDataFolder,
			AppendLog: defaultAppendLog,
		},
		Storage: StorageConfig{
			Dir: defaultStorageDir,
		},
		Chunking: ChunkingConfig{
			Size:    defaultChunkSize,
			Overlap: defaultChunkOverlap,
		},
		Sync: SyncConfig{
			DebounceMs: defaultDebounceMs,
			Workers:    defaultWorkers,
			Watch:      true,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Brokers:  []string{},
			Topic:    defaultEventsTopic,
		},
		Retrieval: RetrievalConfig{
			TopK: defaultTopK,
		},
	}
}
