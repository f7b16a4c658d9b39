package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent docchat configuration stored as config.toml
// in the .docchat/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Blob        BlobConfig        `toml:"blob"`
	API         APIConfig         `toml:"api"`
	Auth        AuthConfig        `toml:"auth"`
	Session     SessionConfig     `toml:"session"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Completion  CompletionConfig  `toml:"completion"`
	Chunker     ChunkerConfig     `toml:"chunker"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig holds document metadata store settings.
// Driver is one of "sqlite", "postgres", or "inmemory". For sqlite an empty
// SQLitePath resolves to docchat.sqlite inside the .docchat/ directory.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// BlobConfig holds blob store settings. An empty Root resolves to
// .docchat/blobs.
type BlobConfig struct {
	Root string `toml:"root,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen        string `toml:"listen,omitempty"`
	SecureCookies bool   `toml:"secure_cookies,omitempty"`
}

// AuthConfig lists the accounts allowed to log in. Only editable in the TOML
// file; there is no dotted key for it.
type AuthConfig struct {
	Users []UserConfig `toml:"users,omitempty"`
}

// UserConfig is a single account. PasswordHash is a bcrypt hash.
type UserConfig struct {
	ID           string `toml:"id" mapstructure:"id"`
	Email        string `toml:"email" mapstructure:"email"`
	Name         string `toml:"name,omitempty" mapstructure:"name"`
	PasswordHash string `toml:"password_hash" mapstructure:"password_hash"`
}

// SessionConfig holds session cache settings.
// Provider is "inmemory" or "redis". TTL is a Go duration string.
type SessionConfig struct {
	Provider  string `toml:"provider,omitempty"`
	RedisAddr string `toml:"redis_addr,omitempty"`
	TTL       string `toml:"ttl,omitempty"`
}

// TTLDuration parses TTL.
func (s SessionConfig) TTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session.ttl %q: %w", s.TTL, err)
	}
	return d, nil
}

// VectorStoreConfig holds vector index settings.
// Provider is one of "sqlite", "pgvector", "qdrant", or "inmemory".
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// CompletionConfig holds chat completion provider settings.
type CompletionConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// ChunkerConfig holds text splitting settings, measured in characters.
type ChunkerConfig struct {
	ChunkSize uint `toml:"chunk_size,omitempty"`
	Overlap   uint `toml:"overlap,omitempty"`
}

// PipelineConfig holds ingestion and retrieval settings.
type PipelineConfig struct {
	Concurrency uint `toml:"concurrency,omitempty"`
	TopK        uint `toml:"top_k,omitempty"`
	Workers     uint `toml:"workers,omitempty"`
	QueueSize   uint `toml:"queue_size,omitempty"`
}

// EventsConfig holds document event publishing settings.
// Provider is "nop" or "kafka"; Brokers is a comma separated list.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers on commas, dropping blanks.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string, dst *uint) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dst = uint(n)
	return nil
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"blob.root": {
		get: func(c *Config) string { return c.Blob.Root },
		set: func(c *Config, v string) error { c.Blob.Root = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.secure_cookies": {
		get: func(c *Config) string { return strconv.FormatBool(c.API.SecureCookies) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for api.secure_cookies: %w", err)
			}
			c.API.SecureCookies = b
			return nil
		},
	},
	"session.provider": {
		get: func(c *Config) string { return c.Session.Provider },
		set: func(c *Config, v string) error { c.Session.Provider = v; return nil },
	},
	"session.redis_addr": {
		get: func(c *Config) string { return c.Session.RedisAddr },
		set: func(c *Config, v string) error { c.Session.RedisAddr = v; return nil },
	},
	"session.ttl": {
		get: func(c *Config) string { return c.Session.TTL },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for session.ttl: %w", err)
			}
			c.Session.TTL = v
			return nil
		},
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string { return formatUint(c.Embedding.Dimensions) },
		set: func(c *Config, v string) error { return parseUint("embedding.dimensions", v, &c.Embedding.Dimensions) },
	},
	"completion.provider": {
		get: func(c *Config) string { return c.Completion.Provider },
		set: func(c *Config, v string) error { c.Completion.Provider = v; return nil },
	},
	"completion.target": {
		get: func(c *Config) string { return c.Completion.Target },
		set: func(c *Config, v string) error { c.Completion.Target = v; return nil },
	},
	"completion.model": {
		get: func(c *Config) string { return c.Completion.Model },
		set: func(c *Config, v string) error { c.Completion.Model = v; return nil },
	},
	"chunker.chunk_size": {
		get: func(c *Config) string { return formatUint(c.Chunker.ChunkSize) },
		set: func(c *Config, v string) error { return parseUint("chunker.chunk_size", v, &c.Chunker.ChunkSize) },
	},
	"chunker.overlap": {
		get: func(c *Config) string { return formatUint(c.Chunker.Overlap) },
		set: func(c *Config, v string) error { return parseUint("chunker.overlap", v, &c.Chunker.Overlap) },
	},
	"pipeline.concurrency": {
		get: func(c *Config) string { return formatUint(c.Pipeline.Concurrency) },
		set: func(c *Config, v string) error { return parseUint("pipeline.concurrency", v, &c.Pipeline.Concurrency) },
	},
	"pipeline.top_k": {
		get: func(c *Config) string { return formatUint(c.Pipeline.TopK) },
		set: func(c *Config, v string) error { return parseUint("pipeline.top_k", v, &c.Pipeline.TopK) },
	},
	"pipeline.workers": {
		get: func(c *Config) string { return formatUint(c.Pipeline.Workers) },
		set: func(c *Config, v string) error { return parseUint("pipeline.workers", v, &c.Pipeline.Workers) },
	},
	"pipeline.queue_size": {
		get: func(c *Config) string { return formatUint(c.Pipeline.QueueSize) },
		set: func(c *Config, v string) error { return parseUint("pipeline.queue_size", v, &c.Pipeline.QueueSize) },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
