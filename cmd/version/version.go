// Package versioncmder prints build information stamped in at link time.
package versioncmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docchat/pkg/cliui"
	"github.com/papercomputeco/docchat/pkg/utils"
)

type versionCommander struct {
	short bool
	out   io.Writer
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the docchat version",
		Long:  "Display the version, commit, and build time of this docchat binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run()
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version string")

	return cmd
}

func (c *versionCommander) run() error {
	if c.short {
		fmt.Fprintln(c.out, utils.Version)
		return nil
	}

	for _, row := range [][2]string{
		{"Version:", utils.Version},
		{"Sha:", utils.Sha},
		{"Built at:", utils.Buildtime},
	} {
		fmt.Fprintf(c.out, "%s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-9s", row[0])), cliui.ValueStyle.Render(row[1]))
	}
	if !utils.IsRelease() {
		fmt.Fprintln(c.out, cliui.DimStyle.Render("development build"))
	}
	return nil
}
