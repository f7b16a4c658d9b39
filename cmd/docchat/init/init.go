// Package initcmder provides the init command for initializing a local .docchat
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docchat/pkg/cliui"
	"github.com/papercomputeco/docchat/pkg/config"
)

const (
	dirName = ".docchat"
)

const initLongDesc string = `Initialize a new .docchat/ directory in the current working directory.

Creates a local .docchat/ directory that takes precedence over the default
~/.docchat/ directory for metadata, vectors, uploaded blobs, and configuration.
A config.toml with default values is written alongside it.

Use --preset to start from a named configuration:
  local    everything in-process
  sqlite   SQLite metadata and a sqlite-vec index under .docchat/
  stack    PostgreSQL with pgvector, Redis sessions, and Kafka events

Examples:
  docchat init
  docchat init --preset sqlite`

const initShortDesc string = "Initialize a local .docchat/ directory"

type initCommander struct {
	preset string
	out    io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Configuration preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run() error {
	cfg := config.NewDefaultConfig()
	if c.preset != "" {
		preset, err := config.PresetConfig(c.preset)
		if err != nil {
			return err
		}
		cfg = preset
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(c.out, "Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .docchat directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(c.out, "%s Initialized .docchat directory: %s\n", cliui.SuccessMark, dir)
	if c.preset != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("preset:"), cliui.ValueStyle.Render(c.preset))
	}
	return nil
}
