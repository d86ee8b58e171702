package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aporthq/aport-go/client"
)

func cmdVerify() *cobra.Command {
	var agent string
	var contextJSON string
	var idempotencyKey string

	c := &cobra.Command{
		Use:   "verify <policy-id>",
		Short: "Verify a policy for an agent",
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
			if idempotencyKey == "" {
				idempotencyKey = uuid.NewString()
			}

			d, err := cl.VerifyPolicy(cmd.Context(), agent, args[0], vctx, idempotencyKey)
			if err != nil {
				var ce *client.Error
				if errors.As(err, &ce) {
					fmt.Printf("HTTP %d (%s)\n", ce.Status, ce.Code)
					return printAny(ce.Reasons)
				}
				return err
			}
			return printAny(d)
		},
	}
	c.Flags().StringVar(&agent, "agent", "", "agent id (defaults to configured agent_id)")
	c.Flags().StringVar(&contextJSON, "context", "", "verification context as a JSON object")
	c.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "idempotency key (generated when empty)")
	return c
}

func printAny(v any) error {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}
