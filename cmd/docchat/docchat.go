// Package docchatcmder is the root docchat command.
package docchatcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/docchat/cmd/docchat/ask"
	configcmder "github.com/papercomputeco/docchat/cmd/docchat/config"
	hashpasswordcmder "github.com/papercomputeco/docchat/cmd/docchat/hashpassword"
	ingestcmder "github.com/papercomputeco/docchat/cmd/docchat/ingest"
	initcmder "github.com/papercomputeco/docchat/cmd/docchat/init"
	servecmder "github.com/papercomputeco/docchat/cmd/docchat/serve"
	versioncmder "github.com/papercomputeco/docchat/cmd/version"
)

const docchatLongDesc string = `docchat answers questions about your documents.

Upload PDFs or text files, and docchat splits them into chunks, embeds them,
and answers questions using the most relevant chunks as context.

Run the server using:
  docchat serve                  Run the HTTP API

Work with documents locally using:
  docchat ingest <file>          Ingest a file into the configured index
  docchat ask "<question>"       Ask a question against the index`

const docchatShortDesc string = "docchat - chat with your documents"

func NewDocchatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "docchat",
		Short:        docchatShortDesc,
		Long:         docchatLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .docchat/ directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(hashpasswordcmder.NewHashPasswordCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
