package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Mint an API token for a user",
		Long: `Mint a bearer token for the given email. The user is created on its
first authenticated request.`,
		Example: `  finch token analyst@example.com`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			email := strings.TrimSpace(args[0])
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email %q", email)
			}
			iss, err := cliCtx.Issuer()
			if err != nil {
				return err
			}
			tok, err := iss.Mint(email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	return cmd
}
