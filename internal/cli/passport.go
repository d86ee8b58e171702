package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cmdPassport() *cobra.Command {
	c := &cobra.Command{
		Use:   "passport <agent-id>",
		Short: "Fetch the verification view of an agent passport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, _, err := newClient()
			if err != nil {
				return err
			}
			view, err := cl.GetPassportView(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch passport view: %w", err)
			}
			return printAny(view)
		},
	}
	return c
}
