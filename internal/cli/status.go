package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// status checks reachability of the API: the key set endpoint always, the
// configured agent's passport view when one is set. The fetches run
// concurrently.
func cmdStatus() *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "Check API reachability and the configured agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, cfg, err := newClient()
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() error {
				if _, err := cl.JWKS(ctx); err != nil {
					return fmt.Errorf("jwks: %w", err)
				}
				fmt.Println("jwks: ok")
				return nil
			})

			if cfg.AgentID != "" {
				agent := cfg.AgentID
				g.Go(func() error {
					if _, err := cl.GetPassportView(ctx, agent); err != nil {
						return fmt.Errorf("passport %s: %w", agent, err)
					}
					fmt.Printf("passport %s: ok\n", agent)
					return nil
				})
			}

			return g.Wait()
		},
	}
	return c
}
