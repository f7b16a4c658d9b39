// Package ingestcmder provides the ingest command for indexing a local file.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docchat/pkg/app"
	"github.com/papercomputeco/docchat/pkg/chunker"
	"github.com/papercomputeco/docchat/pkg/cliui"
	"github.com/papercomputeco/docchat/pkg/config"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/extract"
	"github.com/papercomputeco/docchat/pkg/logger"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/storage"
)

// LocalOwner owns documents ingested from the command line.
const LocalOwner = "local"

type ingestCommander struct {
	path        string
	owner       string
	contentType string
	dryRun      bool

	// Bound to viper; run reads the resolved Config.
	storageDriver   string
	sqlitePath      string
	postgresDSN     string
	blobRoot        string
	vectorProvider  string
	vectorTarget    string
	embeddingTarget string
	embeddingModel  string
	embeddingDims   uint
	chunkSize       uint
	chunkOverlap    uint

	configDir string
	debug     bool
	out       io.Writer
	logger    *slog.Logger
}

var ingestFlagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagBlobRoot,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
}

const ingestLongDesc string = `Ingest a PDF or text file into the configured index.

The file is extracted, split into chunks, embedded, and indexed using the
same configuration as docchat serve. Ingestion runs in the foreground and
reports chunks that failed so they can be retried through the API.

Use --dry-run to print the chunks without contacting the embedder or
writing anything.

Examples:
  docchat ingest report.pdf
  docchat ingest notes.txt --owner u-alice
  docchat ingest notes.txt --dry-run --chunk-size 500 --chunk-overlap 50`

const ingestShortDesc string = "Ingest a local file"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.path = args[0]
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.out = cmd.OutOrStdout()

			cfg, err := config.LoadForCommand(cmd, ingestFlagKeys)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			return cmder.run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cmder.owner, "owner", LocalOwner, "Owner ID recorded on the document")
	cmd.Flags().StringVar(&cmder.contentType, "content-type", "", "Media type of the file (default: detected)")
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Print the chunks without embedding or storing them")

	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Registry, config.FlagBlobRoot, &cmder.blobRoot)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Registry, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddUintFlag(cmd, config.Registry, config.FlagChunkSize, &cmder.chunkSize)
	config.AddUintFlag(cmd, config.Registry, config.FlagChunkOverlap, &cmder.chunkOverlap)

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.Nop()
	if c.debug {
		c.logger = logger.New(logger.WithPretty(true), logger.WithDebug(true), logger.WithWriter(os.Stderr), logger.WithComponent("ingest"))
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.path, err)
	}

	contentType := c.contentType
	if contentType == "" {
		contentType = DetectContentType(c.path, data)
	}

	if c.dryRun {
		return c.printChunks(ctx, cfg, contentType, data)
	}

	a, err := app.Build(ctx, cfg, app.Options{ConfigDir: c.configDir, Synchronous: true}, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var doc *storage.Document
	err = cliui.Step(c.out, "Ingesting "+filepath.Base(c.path), func() error {
		var ingestErr error
		doc, ingestErr = a.Pipeline.Upload(ctx, c.owner, filepath.Base(c.path), contentType, data)
		return ingestErr
	})

	var partial *errs.PartialIngestionError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		fmt.Fprintf(c.out, "\n  %s %s\n",
			cliui.KeyStyle.Render("Failed chunks:"),
			cliui.ValueStyle.Render(fmt.Sprint(partial.FailedIndices)),
		)
	default:
		return err
	}

	fmt.Fprintf(c.out, "\n  %s %s\n  %s %s\n\n",
		cliui.KeyStyle.Render("Document:"), cliui.ValueStyle.Render(doc.ID),
		cliui.KeyStyle.Render("Status:  "), cliui.ValueStyle.Render(string(doc.Status)),
	)
	return err
}

// printChunks extracts and splits the file, printing every chunk.
func (c *ingestCommander) printChunks(ctx context.Context, cfg *config.Config, contentType string, data []byte) error {
	if !extract.Supported(contentType) {
		return fmt.Errorf("%w: %q", pipeline.ErrUnsupportedType, contentType)
	}

	text, err := extract.Extract(ctx, contentType, data)
	if err != nil {
		return err
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(int(cfg.Chunker.ChunkSize)),
		chunker.WithOverlap(int(cfg.Chunker.Overlap)),
		chunker.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	chunks := splitter.Split(text)
	fmt.Fprintf(c.out, "%s %s\n\n",
		cliui.HeaderStyle.Render(fmt.Sprintf("%d chunks", len(chunks))),
		cliui.DimStyle.Render(fmt.Sprintf("(size %d, overlap %d)", splitter.ChunkSize(), splitter.Overlap())),
	)
	for i, chunk := range chunks {
		fmt.Fprintf(c.out, "%s\n%s\n\n", cliui.RankStyle.Render(fmt.Sprintf("#%d", i)), chunk)
	}
	return nil
}

// DetectContentType guesses the media type of a file from its extension,
// falling back to sniffing its first bytes.
func DetectContentType(path string, data []byte) string {
	switch filepath.Ext(path) {
	case ".md", ".markdown", ".txt", ".text":
		return extract.MimeText
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
