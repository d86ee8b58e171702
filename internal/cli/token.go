package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func cmdToken() *cobra.Command {
	c := &cobra.Command{
		Use:   "token",
		Short: "Get or validate decision tokens",
	}
	c.AddCommand(cmdTokenGet(), cmdTokenValidate())
	return c
}

func cmdTokenGet() *cobra.Command {
	var agent string
	var contextJSON string

	c := &cobra.Command{
		Use:   "get <policy-id>",
		Short: "Get a decision token for later validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, cfg, err := newClient()
			if err != nil {
				return err
			}
			if agent == "" {
				agent = cfg.AgentID
			}
			if agent == "" {
				return fmt.Errorf("no agent id: pass --agent or set APORT_AGENT_ID")
			}

			vctx := map[string]any{}
			if contextJSON != "" {
				if err := json.Unmarshal([]byte(contextJSON), &vctx); err != nil {
					return fmt.Errorf("parse --context: %w", err)
				}
			}

			tok, err := cl.GetDecisionToken(cmd.Context(), agent, args[0], vctx)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	c.Flags().StringVar(&agent, "agent", "", "agent id (defaults to configured agent_id)")
	c.Flags().StringVar(&contextJSON, "context", "", "verification context as a JSON object")
	return c
}

func cmdTokenValidate() *cobra.Command {
	var local bool

	c := &cobra.Command{
		Use:   "validate <token>",
		Short: "Validate a decision token via the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, _, err := newClient()
			if err != nil {
				return err
			}
			if local {
				d, err := cl.ValidateDecisionTokenLocal(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printAny(d)
			}
			d, err := cl.ValidateDecisionToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printAny(d)
		},
	}
	c.Flags().BoolVar(&local, "local", false, "warm the key set cache before validating")
	return c
}
