package cli

import (
	"github.com/spf13/cobra"
)

func cmdJWKS() *cobra.Command {
	c := &cobra.Command{
		Use:   "jwks",
		Short: "Fetch the decision-token signing key set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, _, err := newClient()
			if err != nil {
				return err
			}
			set, err := cl.JWKS(cmd.Context())
			if err != nil {
				return err
			}
			return printAny(set)
		},
	}
	return c
}
