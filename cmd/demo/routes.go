package main

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aporthq/aport-go/capability"
	"github.com/aporthq/aport-go/client"
	"github.com/aporthq/aport-go/internal/httpx"
	"github.com/aporthq/aport-go/internal/version"
	"github.com/aporthq/aport-go/middleware"
	"github.com/aporthq/aport-go/policy"
)

func buildRouter() http.Handler {
	c := client.New(client.Options{
		BaseURL: os.Getenv("APORT_BASE_URL"),
		APIKey:  os.Getenv("APORT_API_KEY"),
	})

	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer, chimw.Timeout(15*time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.HeaderAgentPassportID, "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Trace())
	r.Use(middleware.RequestLogger(middleware.LogOpts{
		SkipPaths: []string{"/healthz", "/version"},
	}))

	r.Get("/healthz", healthCheckHandler)
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, version.Get())
	})

	r.Route("/api", func(api chi.Router) {
		// every /api route gets an existence check plus a route-capability gate
		api.Use(middleware.Enforce(middleware.Options{
			Client:     c,
			FailClosed: true,
		}))
		api.Use(capabilityGate())

		api.Method(http.MethodPost, "/refunds",
			middleware.RequirePolicy(c, policy.RefundV1, nil, http.HandlerFunc(decisionEcho)))
		api.Method(http.MethodPost, "/data/export",
			middleware.RequirePolicy(c, policy.DataExportV1, nil, http.HandlerFunc(decisionEcho)))
		api.Get("/whoami", whoamiHandler)
	})

	return r
}

// capabilityGate denies routes whose required capabilities the verified
// agent does not hold, based on the passport view attached upstream.
func capabilityGate() func(http.Handler) http.Handler {
	check := capability.NewEnforcer(capability.EnforcementConfig{
		AllowUnmappedRoutes: true,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			view, _ := middleware.PassportFromContext(r.Context())
			res := check(r.URL.Path, capabilitiesOf(view))
			if !res.Allowed {
				httpx.WriteJSON(w, http.StatusForbidden, map[string]any{
					"error":    "insufficient_capabilities",
					"required": res.Required,
					"missing":  res.Missing,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// capabilitiesOf extracts capability ids from a passport view, accepting
// both plain strings and {id: ...} objects.
func capabilitiesOf(view client.PassportView) []string {
	raw, _ := view["capabilities"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch c := v.(type) {
		case string:
			out = append(out, c)
		case map[string]any:
			if id, ok := c["id"].(string); ok {
				out = append(out, id)
			}
		}
	}
	return out
}

func decisionEcho(w http.ResponseWriter, r *http.Request) {
	d, _ := middleware.DecisionFromContext(r.Context())
	agent, _ := middleware.AgentFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "accepted",
		"agent_id":    agent,
		"decision_id": d.DecisionID,
	})
}

func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	agent, _ := middleware.AgentFromContext(r.Context())
	view, _ := middleware.PassportFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"agent_id": agent,
		"passport": view,
	})
}

func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}
