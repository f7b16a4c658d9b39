package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/docchat/pkg/dotdir"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "DOCCHAT"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the DOCCHAT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (DOCCHAT_API_LISTEN, DOCCHAT_SESSION_TTL, etc.)
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

	// 3. Environment variables: DOCCHAT_API_LISTEN, DOCCHAT_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the resolved viper values. Auth users
// are not part of the dotted key space and are copied from the file as-is.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Blob: BlobConfig{
			Root: v.GetString("blob.root"),
		},
		API: APIConfig{
			Listen:        v.GetString("api.listen"),
			SecureCookies: v.GetBool("api.secure_cookies"),
		},
		Session: SessionConfig{
			Provider:  v.GetString("session.provider"),
			RedisAddr: v.GetString("session.redis_addr"),
			TTL:       v.GetString("session.ttl"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Completion: CompletionConfig{
			Provider: v.GetString("completion.provider"),
			Target:   v.GetString("completion.target"),
			Model:    v.GetString("completion.model"),
		},
		Chunker: ChunkerConfig{
			ChunkSize: v.GetUint("chunker.chunk_size"),
			Overlap:   v.GetUint("chunker.overlap"),
		},
		Pipeline: PipelineConfig{
			Concurrency: v.GetUint("pipeline.concurrency"),
			TopK:        v.GetUint("pipeline.top_k"),
			Workers:     v.GetUint("pipeline.workers"),
			QueueSize:   v.GetUint("pipeline.queue_size"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}

	if err := v.UnmarshalKey("auth.users", &cfg.Auth.Users); err != nil {
		return nil, fmt.Errorf("decoding auth.users: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Blob
	v.SetDefault("blob.root", d.Blob.Root)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.secure_cookies", d.API.SecureCookies)

	// Session
	v.SetDefault("session.provider", d.Session.Provider)
	v.SetDefault("session.redis_addr", d.Session.RedisAddr)
	v.SetDefault("session.ttl", d.Session.TTL)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Completion
	v.SetDefault("completion.provider", d.Completion.Provider)
	v.SetDefault("completion.target", d.Completion.Target)
	v.SetDefault("completion.model", d.Completion.Model)

	// Chunker
	v.SetDefault("chunker.chunk_size", d.Chunker.ChunkSize)
	v.SetDefault("chunker.overlap", d.Chunker.Overlap)

	// Pipeline
	v.SetDefault("pipeline.concurrency", d.Pipeline.Concurrency)
	v.SetDefault("pipeline.top_k", d.Pipeline.TopK)
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	v.SetDefault("pipeline.queue_size", d.Pipeline.QueueSize)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
