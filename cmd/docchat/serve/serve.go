// Package servecmder provides the docchat serve command.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docchat/api"
	"github.com/papercomputeco/docchat/pkg/app"
	"github.com/papercomputeco/docchat/pkg/config"
	"github.com/papercomputeco/docchat/pkg/dotdir"
	"github.com/papercomputeco/docchat/pkg/logger"
)

const logFileName = "server.log"

type serveCommander struct {
	flags serveFlags

	configDir string
	debug     bool
	logger    *slog.Logger
}

// serveFlags are bound to viper; run reads the resolved Config, not these.
type serveFlags struct {
	listen            string
	secureCookies     bool
	storageDriver     string
	sqlitePath        string
	postgresDSN       string
	blobRoot          string
	sessionProvider   string
	redisAddr         string
	sessionTTL        string
	vectorProvider    string
	vectorTarget      string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	completionTarget  string
	completionModel   string
	chunkSize         uint
	chunkOverlap      uint
	topK              uint
	kafkaBrokers      string
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagSecureCookies,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagBlobRoot,
	config.FlagSessionProvider,
	config.FlagRedisAddr,
	config.FlagSessionTTL,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCompletionTgt,
	config.FlagCompletionModel,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagTopK,
	config.FlagKafkaBrokers,
}

const serveLongDesc string = `Run the docchat HTTP API.

Every setting comes from config.toml in the .docchat/ directory, overridden
by DOCCHAT_* environment variables and then by flags.

Logs are written to the terminal and, as JSON, to server.log in the
.docchat/ directory.

Examples:
  docchat serve
  docchat serve --listen :9000 --session-provider redis --redis-addr localhost:6379
  docchat serve --vector-store-provider qdrant --vector-store-target localhost:6334`

const serveShortDesc string = "Run the docchat HTTP API"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfg, err := config.LoadForCommand(cmd, serveFlagKeys)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			return cmder.run(cmd.Context(), cfg)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Registry, config.FlagListen, &f.listen)
	config.AddBoolFlag(cmd, config.Registry, config.FlagSecureCookies, &f.secureCookies)
	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &f.storageDriver)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Registry, config.FlagBlobRoot, &f.blobRoot)
	config.AddStringFlag(cmd, config.Registry, config.FlagSessionProvider, &f.sessionProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagRedisAddr, &f.redisAddr)
	config.AddStringFlag(cmd, config.Registry, config.FlagSessionTTL, &f.sessionTTL)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingProv, &f.embeddingProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingTgt, &f.embeddingTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingModel, &f.embeddingModel)
	config.AddUintFlag(cmd, config.Registry, config.FlagEmbeddingDims, &f.embeddingDims)
	config.AddStringFlag(cmd, config.Registry, config.FlagCompletionTgt, &f.completionTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagCompletionModel, &f.completionModel)
	config.AddUintFlag(cmd, config.Registry, config.FlagChunkSize, &f.chunkSize)
	config.AddUintFlag(cmd, config.Registry, config.FlagChunkOverlap, &f.chunkOverlap)
	config.AddUintFlag(cmd, config.Registry, config.FlagTopK, &f.topK)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaBrokers, &f.kafkaBrokers)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logFile, err := c.openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()

	c.logger = logger.Tee(
		logger.New(logger.WithPretty(true), logger.WithDebug(c.debug), logger.WithWriter(os.Stderr)),
		logger.New(logger.WithJSON(true), logger.WithDebug(c.debug), logger.WithWriter(logFile), logger.WithComponent("server")),
	)

	a, err := app.Build(ctx, cfg, app.Options{ConfigDir: c.configDir, Server: true}, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Error("error closing collaborators", "error", err)
		}
	}()

	server, err := api.NewServer(api.Config{
		ListenAddr:    cfg.API.Listen,
		SecureCookies: cfg.API.SecureCookies,
	}, a.Pipeline, a.Sessions, a.Auth, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

func (c *serveCommander) openLogFile() (*os.File, error) {
	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving docchat dir: %w", err)
	}

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return f, nil
}
