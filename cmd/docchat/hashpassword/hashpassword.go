// Package hashpasswordcmder provides the hash-password command used to fill
// password_hash in the [[auth.users]] section of config.toml.
package hashpasswordcmder

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docchat/pkg/auth"
)

const hashPasswordLongDesc string = `Hash a password for a docchat user entry.

The password is read from the first line of standard input and the bcrypt
hash is printed. Paste it into config.toml:

  [[auth.users]]
  id = "u-alice"
  email = "alice@example.com"
  password_hash = "<hash>"

Examples:
  echo 'correct horse' | docchat hash-password`

const hashPasswordShortDesc string = "Hash a password for config.toml"

func NewHashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: hashPasswordShortDesc,
		Long:  hashPasswordLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password on standard input")
			}

			hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	return cmd
}
