// Package app assembles the docchat collaborators from a resolved Config.
// Every CLI command that touches documents builds its pipeline here so the
// server and the local commands share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/papercomputeco/docchat/pkg/auth"
	"github.com/papercomputeco/docchat/pkg/blob"
	"github.com/papercomputeco/docchat/pkg/chunker"
	"github.com/papercomputeco/docchat/pkg/config"
	"github.com/papercomputeco/docchat/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/docchat/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/docchat/pkg/eventstream/utils"
	llmutils "github.com/papercomputeco/docchat/pkg/llm/utils"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/retry"
	"github.com/papercomputeco/docchat/pkg/session"
	sessionmem "github.com/papercomputeco/docchat/pkg/session/inmemory"
	sessionredis "github.com/papercomputeco/docchat/pkg/session/redis"
	storageutils "github.com/papercomputeco/docchat/pkg/storage/utils"
	vectorutils "github.com/papercomputeco/docchat/pkg/vector/utils"
)

const (
	// metadataDBName is the default SQLite metadata database in .docchat/.
	metadataDBName = "docchat.sqlite"

	// vectorDBName is the default sqlite-vec database in .docchat/.
	vectorDBName = "vectors.sqlite"
)

// Options selects what Build constructs.
type Options struct {
	// ConfigDir overrides .docchat/ resolution.
	ConfigDir string

	// Server builds the session cache and authenticator as well.
	Server bool

	// Synchronous disables background ingestion workers regardless of
	// pipeline.workers.
	Synchronous bool
}

// App holds the constructed collaborators. Close releases them in reverse
// order of construction.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Splitter *chunker.Splitter

	// Sessions and Auth are set when Options.Server is true.
	Sessions *session.Cache
	Auth     *auth.Authenticator

	closers []io.Closer
	logger  *slog.Logger
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Build constructs every collaborator named by cfg. On error the parts
// already built are closed.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	ddm := dotdir.NewManager()
	dir, err := ddm.Target(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolving docchat dir: %w", err)
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(int(cfg.Chunker.ChunkSize)),
		chunker.WithOverlap(int(cfg.Chunker.Overlap)),
		chunker.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	a.Splitter = splitter

	sqlitePath := cfg.Storage.SQLitePath
	if cfg.Storage.Driver == "sqlite" && sqlitePath == "" {
		sqlitePath = filepath.Join(dir, metadataDBName)
	}
	store, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		DriverType:  cfg.Storage.Driver,
		SQLitePath:  sqlitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("creating metadata store: %w", err)
	}
	a.closers = append(a.closers, store)
	logger.Info("using metadata store", "driver", cfg.Storage.Driver)

	vectorTarget := cfg.VectorStore.Target
	if cfg.VectorStore.Provider == "sqlite" && vectorTarget == "" {
		vectorTarget = filepath.Join(dir, vectorDBName)
	}
	index, err := vectorutils.NewIndex(ctx, &vectorutils.NewIndexOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       vectorTarget,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	a.closers = append(a.closers, index)
	logger.Info("using vector index",
		"provider", cfg.VectorStore.Provider,
		"dimensions", cfg.Embedding.Dimensions,
	)

	policy := retry.DefaultPolicy()
	policy.OnRetry = func(attempt int, err error) {
		logger.Warn("retrying embedding", "attempt", attempt, "error", err)
	}
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		Retry:        policy,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	a.closers = append(a.closers, embedder)

	completer, err := llmutils.NewCompleter(&llmutils.NewCompleterOpts{
		ProviderType: cfg.Completion.Provider,
		TargetURL:    cfg.Completion.Target,
		Model:        cfg.Completion.Model,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completer: %w", err)
	}
	a.closers = append(a.closers, completer)

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.BrokerList(),
		Topic:        cfg.Events.Topic,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	a.closers = append(a.closers, publisher)

	blobRoot := cfg.Blob.Root
	if blobRoot == "" {
		if blobRoot, err = ddm.BlobRoot(opts.ConfigDir); err != nil {
			return nil, fmt.Errorf("resolving blob root: %w", err)
		}
	}

	workers := cfg.Pipeline.Workers
	if opts.Synchronous {
		workers = 0
	}

	p, err := pipeline.New(&pipeline.Config{
		Splitter:    splitter,
		Embedder:    embedder,
		Index:       index,
		Store:       store,
		Blobs:       blob.NewOSStore(blobRoot, logger),
		Completer:   completer,
		Publisher:   publisher,
		Concurrency: cfg.Pipeline.Concurrency,
		TopK:        cfg.Pipeline.TopK,
		Workers:     workers,
		QueueSize:   cfg.Pipeline.QueueSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	a.Pipeline = p
	a.closers = append(a.closers, closerFunc(func() error {
		p.Close()
		return nil
	}))

	if !opts.Server {
		built = true
		return a, nil
	}

	sessions, err := newSessionCache(ctx, cfg.Session, logger)
	if err != nil {
		return nil, err
	}
	a.Sessions = sessions
	a.closers = append(a.closers, a.Sessions)

	authn, err := auth.NewAuthenticator(cfg.Auth.Users)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	a.Auth = authn
	if len(cfg.Auth.Users) == 0 {
		logger.Warn("no users configured; every login will be rejected")
	}

	built = true
	return a, nil
}

func newSessionCache(ctx context.Context, c config.SessionConfig, logger *slog.Logger) (*session.Cache, error) {
	ttl, err := c.TTLDuration()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session.ttl must be positive, got %s", ttl)
	}

	var store session.Store
	switch c.Provider {
	case "inmemory":
		store = sessionmem.NewStore()
	case "redis":
		if c.RedisAddr == "" {
			return nil, errors.New("redis sessions require session.redis_addr")
		}
		if store, err = sessionredis.NewStore(ctx, c.RedisAddr); err != nil {
			return nil, fmt.Errorf("creating session store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported session provider: %s", c.Provider)
	}

	logger.Info("using session cache", "provider", c.Provider, "ttl", ttl)
	return session.NewCache(store, ttl, logger), nil
}

// Close stops ingestion and closes every collaborator, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
