package middleware

import (
	"context"

	"github.com/aporthq/aport-go/client"
)

type agentKey struct{}
type passportKey struct{}
type decisionKey struct{}

func withAgentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, agentKey{}, id)
}

// AgentFromContext returns the verified agent id attached by the middleware.
func AgentFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(agentKey{}).(string)
	return id, ok
}

func withPassport(ctx context.Context, view client.PassportView) context.Context {
	return context.WithValue(ctx, passportKey{}, view)
}

// PassportFromContext returns the passport view fetched during an
// existence-only check.
func PassportFromContext(ctx context.Context) (client.PassportView, bool) {
	view, ok := ctx.Value(passportKey{}).(client.PassportView)
	return view, ok
}

func withDecision(ctx context.Context, d *client.Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the allow decision attached after a
// policy-bound check.
func DecisionFromContext(ctx context.Context) (*client.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(*client.Decision)
	return d, ok
}
