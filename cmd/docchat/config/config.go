// Package configcmder provides the config command for managing persistent
// docchat configuration stored in the .docchat/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent docchat configuration.

Configuration is stored as config.toml in the .docchat/ directory and
provides default values for command flags. DOCCHAT_* environment variables
override the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure, for example
storage.driver, session.ttl, vector_store.provider, embedding.model, or
pipeline.top_k. Run "docchat config list" to see every key. Users are
edited directly in the [[auth.users]] section of the file.

Use subcommands to get, set, or list configuration values:
  docchat config set <key> <value>    Set a configuration value
  docchat config get <key>            Get a configuration value
  docchat config list                 List all configuration values

Examples:
  docchat config set session.provider redis
  docchat config set embedding.model nomic-embed-text
  docchat config get vector_store.provider
  docchat config list`

const configShortDesc string = "Manage persistent docchat configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
