package httpx

import "strings"

func ExtractBearerToken(authz string) (string, bool) {
	const prefix = "Bearer "
	if authz == "" || !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	return strings.TrimSpace(authz[len(prefix):]), true
}
