// Package middleware enforces agent authorization on inbound HTTP requests:
// it extracts the calling agent's identity, asks the APort service for a
// decision, and either continues the request with the decision attached or
// writes a structured failure. It is a standard func(http.Handler)
// http.Handler and composes with chi or any net/http stack.
package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aporthq/aport-go/client"
	"github.com/aporthq/aport-go/internal/httpx"
	"github.com/aporthq/aport-go/internal/trace"
)

// Options configures the enforcement middleware.
type Options struct {
	// Client talks to the APort service. Required.
	Client *client.Client

	// AgentID, when set, is used instead of any identity header.
	AgentID string

	// PolicyID binds every passing request to a policy verification. When
	// empty, only an existence check of the agent is performed.
	PolicyID string

	// Context is merged over the body-derived verification context on
	// policy-bound requests. Explicit entries win.
	Context map[string]any

	// FailClosed rejects requests with no resolvable identity. When false,
	// such requests continue unauthenticated.
	FailClosed bool

	// SkipPaths are path prefixes that bypass enforcement.
	SkipPaths []string

	// SkipMethods bypass enforcement entirely. Defaults to OPTIONS.
	SkipMethods []string

	// Logger receives denial and error one-liners. Defaults to slog.Default.
	Logger *slog.Logger
}

type failure struct {
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	AgentID    string          `json:"agent_id,omitempty"`
	PolicyID   string          `json:"policy_id,omitempty"`
	DecisionID string          `json:"decision_id,omitempty"`
	Reasons    []client.Reason `json:"reasons,omitempty"`
}

// Enforce returns the enforcement middleware for opts. The per-request flow
// is re-entrant; the only shared state is the client's JWKS cache.
func Enforce(opts Options) func(http.Handler) http.Handler {
	if len(opts.SkipMethods) == 0 {
		opts.SkipMethods = []string{http.MethodOptions}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r, opts) {
				next.ServeHTTP(w, r)
				return
			}

			agentID := extractAgentID(r, opts.AgentID)
			if agentID == "" {
				if opts.FailClosed {
					httpx.WriteJSON(w, http.StatusUnauthorized, failure{
						Error:   client.CodeMissingAgentID,
						Message: "Agent ID is required. Provide it as " + HeaderAgentPassportID + " header.",
					})
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if opts.PolicyID == "" {
				existenceCheck(w, r, next, opts, agentID)
				return
			}
			policyCheck(w, r, next, opts, agentID, opts.PolicyID, opts.Context)
		})
	}
}

// RequirePolicy wraps a single handler with a bound policy id and optional
// static context merged over the request body. Identity extraction and
// failure shapes match Enforce.
func RequirePolicy(c *client.Client, policyID string, staticCtx map[string]any, next http.Handler) http.Handler {
	opts := Options{Client: c, FailClosed: true, Logger: slog.Default()}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentID := extractAgentID(r, "")
		if agentID == "" {
			httpx.WriteJSON(w, http.StatusUnauthorized, failure{
				Error:   client.CodeMissingAgentID,
				Message: "Agent ID is required. Provide it as " + HeaderAgentPassportID + " header.",
			})
			return
		}
		policyCheck(w, r, next, opts, agentID, policyID, staticCtx)
	})
}

func shouldSkip(r *http.Request, opts Options) bool {
	for _, m := range opts.SkipMethods {
		if r.Method == m {
			return true
		}
	}
	for _, prefix := range opts.SkipPaths {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// existenceCheck confirms the agent exists without binding a policy.
func existenceCheck(w http.ResponseWriter, r *http.Request, next http.Handler, opts Options, agentID string) {
	view, err := opts.Client.GetPassportView(r.Context(), agentID)
	if err != nil {
		var ce *client.Error
		if errors.As(err, &ce) {
			opts.Logger.Warn("agent verification failed",
				"trace", trace.From(r.Context()), "agent", agentID, "status", ce.Status)
			httpx.WriteJSON(w, statusFor(ce), failure{
				Error:   client.CodeAgentVerificationFailed,
				Message: ce.Message(),
				AgentID: agentID,
				Reasons: ce.Reasons,
			})
			return
		}
		internalError(w, r, opts, err)
		return
	}

	ctx := withAgentID(r.Context(), agentID)
	ctx = withPassport(ctx, view)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// policyCheck runs the full policy-bound branch: build the verification
// context from the body, merge the explicit context over it, verify, and
// continue or deny.
func policyCheck(w http.ResponseWriter, r *http.Request, next http.Handler, opts Options, agentID, policyID string, explicit map[string]any) {
	vctx := contextFromBody(r)
	for k, v := range explicit {
		vctx[k] = v
	}

	decision, err := opts.Client.VerifyPolicy(r.Context(), agentID, policyID, vctx, r.Header.Get("Idempotency-Key"))
	if err != nil {
		var ce *client.Error
		if errors.As(err, &ce) {
			opts.Logger.Warn("policy verification error",
				"trace", trace.From(r.Context()), "agent", agentID, "policy", policyID,
				"code", ce.Code, "status", ce.Status)
			httpx.WriteJSON(w, statusFor(ce), failure{
				Error:      ce.Code,
				Message:    ce.Message(),
				AgentID:    agentID,
				PolicyID:   policyID,
				DecisionID: ce.DecisionID,
				Reasons:    ce.Reasons,
			})
			return
		}
		internalError(w, r, opts, err)
		return
	}

	if !decision.Allow {
		opts.Logger.Warn("policy violation",
			"trace", trace.From(r.Context()), "agent", agentID, "policy", policyID,
			"decision", decision.DecisionID)
		httpx.WriteJSON(w, http.StatusForbidden, failure{
			Error:      client.CodePolicyViolation,
			Message:    "Policy violation",
			AgentID:    agentID,
			PolicyID:   policyID,
			DecisionID: decision.DecisionID,
			Reasons:    decision.Reasons,
		})
		return
	}

	ctx := withAgentID(r.Context(), agentID)
	ctx = withDecision(ctx, decision)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// contextFromBody reads a JSON body into the verification context and
// restores r.Body so the downstream handler can read it again.
func contextFromBody(r *http.Request) map[string]any {
	vctx := map[string]any{}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return vctx
	}
	if r.Body == nil {
		return vctx
	}
	raw, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return vctx
	}
	// non-JSON bodies contribute nothing
	_ = json.Unmarshal(raw, &vctx)
	return vctx
}

// statusFor maps a client error onto an HTTP response status. Server-sent
// statuses pass through; transport failures with no status become 502.
func statusFor(e *client.Error) int {
	if e.Status >= 400 && e.Status < 600 {
		return e.Status
	}
	return http.StatusBadGateway
}

func internalError(w http.ResponseWriter, r *http.Request, opts Options, err error) {
	// log the original error here; the response carries no internal detail
	opts.Logger.Error("enforcement error",
		"trace", trace.From(r.Context()), "err", err)
	httpx.WriteJSON(w, http.StatusInternalServerError, failure{
		Error:   client.CodeInternalError,
		Message: "Internal server error",
	})
}
