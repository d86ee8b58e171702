package middleware

import (
	"net/http"
	"strings"

	"github.com/aporthq/aport-go/internal/httpx"
)

// Identity headers in precedence order. An explicit AgentID option always
// wins over all of them.
const (
	HeaderAgentPassportID = "X-Agent-Passport-Id"
	HeaderAgentID         = "X-Agent-ID"
)

// legacy ids were written as agents/<id>; strip to the canonical suffix
const legacyAgentPrefix = "agents/"

// NormalizeAgentID trims whitespace and strips the legacy agents/ prefix.
// Returns "" when nothing usable remains.
func NormalizeAgentID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, legacyAgentPrefix)
	return strings.TrimSpace(id)
}

// extractAgentID resolves the calling agent's id: explicit parameter, then
// the primary passport header, then X-Agent-ID, then a bearer Authorization
// header.
func extractAgentID(r *http.Request, explicit string) string {
	if id := NormalizeAgentID(explicit); id != "" {
		return id
	}
	if id := NormalizeAgentID(r.Header.Get(HeaderAgentPassportID)); id != "" {
		return id
	}
	if id := NormalizeAgentID(r.Header.Get(HeaderAgentID)); id != "" {
		return id
	}
	if tok, ok := httpx.ExtractBearerToken(r.Header.Get("Authorization")); ok {
		return NormalizeAgentID(tok)
	}
	return ""
}
