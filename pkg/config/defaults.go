package config

const (
	defaultOllamaTarget = "http://localhost:11434"
	defaultAPIListen    = ":8081"

	defaultStorageDriver  = "sqlite"
	defaultVectorProvider = "sqlite"
	defaultCollection     = "docchat_chunks"

	defaultSessionProvider = "inmemory"
	defaultSessionTTL      = "168h"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultCompletionProvider = "ollama"
	defaultCompletionModel    = "llama3.2"

	defaultChunkSize = 1500
	defaultOverlap   = 200

	defaultConcurrency = 4
	defaultTopK        = 5
	defaultWorkers     = 2
	defaultQueueSize   = 64

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "docchat.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Session: SessionConfig{
			Provider: defaultSessionProvider,
			TTL:      defaultSessionTTL,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Completion: CompletionConfig{
			Provider: defaultCompletionProvider,
			Target:   defaultOllamaTarget,
			Model:    defaultCompletionModel,
		},
		Chunker: ChunkerConfig{
			ChunkSize: defaultChunkSize,
			Overlap:   defaultOverlap,
		},
		Pipeline: PipelineConfig{
			Concurrency: defaultConcurrency,
			TopK:        defaultTopK,
			Workers:     defaultWorkers,
			QueueSize:   defaultQueueSize,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
