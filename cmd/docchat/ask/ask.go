// Package askcmder provides the ask command for questions against the index.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docchat/pkg/app"
	"github.com/papercomputeco/docchat/pkg/cliui"
	"github.com/papercomputeco/docchat/pkg/config"
	"github.com/papercomputeco/docchat/pkg/logger"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/utils"
)

const previewLen = 72

type askCommander struct {
	question    string
	showSources bool

	// Bound to viper; run reads the resolved Config.
	storageDriver    string
	sqlitePath       string
	postgresDSN      string
	vectorProvider   string
	vectorTarget     string
	embeddingTarget  string
	embeddingModel   string
	embeddingDims    uint
	completionTarget string
	completionModel  string
	topK             uint

	configDir string
	debug     bool
	out       io.Writer
	logger    *slog.Logger
}

var askFlagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCompletionTgt,
	config.FlagCompletionModel,
	config.FlagTopK,
}

const askLongDesc string = `Ask a question about the indexed documents.

The question is embedded, the closest chunks are retrieved from the
configured index, and the answer is streamed from the completion model with
those chunks as context.

Examples:
  docchat ask "What were the findings in the 2024 report?"
  docchat ask "Summarize the onboarding guide" --top-k 8 --sources`

const askShortDesc string = "Ask a question about your documents"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.question = strings.Join(args, " ")
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.out = cmd.OutOrStdout()

			cfg, err := config.LoadForCommand(cmd, askFlagKeys)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			return cmder.run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&cmder.showSources, "sources", false, "Print the retrieved chunks after the answer")

	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Registry, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Registry, config.FlagCompletionTgt, &cmder.completionTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagCompletionModel, &cmder.completionModel)
	config.AddUintFlag(cmd, config.Registry, config.FlagTopK, &cmder.topK)

	return cmd
}

func (c *askCommander) run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.Nop()
	if c.debug {
		c.logger = logger.New(logger.WithPretty(true), logger.WithDebug(true), logger.WithWriter(os.Stderr), logger.WithComponent("ask"))
	}

	a, err := app.Build(ctx, cfg, app.Options{ConfigDir: c.configDir, Synchronous: true}, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	prompt, err := a.Pipeline.Prepare(ctx, c.question, nil)
	if errors.Is(err, pipeline.ErrNoContext) {
		fmt.Fprintf(c.out, "%s\n", cliui.DimStyle.Render("No relevant document context found. Ingest a document first."))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Q:"),
		cliui.ValueStyle.Render(c.question),
	)

	if err := a.Pipeline.Stream(ctx, prompt, c.out); err != nil {
		fmt.Fprintln(c.out)
		return err
	}
	fmt.Fprintln(c.out)

	if c.showSources {
		fmt.Fprintf(c.out, "\n%s\n", cliui.HeaderStyle.Render("Sources"))
		for i, r := range prompt.Sources {
			preview := strings.ReplaceAll(utils.Truncate(r.Content, previewLen), "\n", " ")
			fmt.Fprintf(c.out, "  %s  %s  %s\n      %s\n",
				cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
				cliui.StepStyle.Render(fmt.Sprintf("distance: %.4f", r.Distance)),
				cliui.KeyStyle.Render(fmt.Sprintf("%s[%d]", r.ParentID, r.Index)),
				cliui.DimStyle.Render(preview),
			)
		}
	}
	fmt.Fprintln(c.out)
	return nil
}
