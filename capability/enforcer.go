package capability

import "strings"

// EnforcementConfig controls route-level capability checks.
type EnforcementConfig struct {
	// EnforceOnAllRoutes, together with AllowUnmappedRoutes=false, makes an
	// unmapped route a denial rather than a no-requirement pass.
	EnforceOnAllRoutes bool
	// SkipRoutes are path prefixes that bypass enforcement entirely.
	SkipRoutes []string
	// AllowUnmappedRoutes permits routes with no mapping.
	AllowUnmappedRoutes bool
	// CustomMappings are merged over DefaultRoutes: custom exact entries
	// replace default ones, and custom wildcard entries are consulted first.
	CustomMappings []RouteCapability
}

// CheckResult is the outcome of one enforcement evaluation.
type CheckResult struct {
	Allowed  bool     `json:"allowed"`
	Required []string `json:"required"`
	Missing  []string `json:"missing"`
}

// CheckFunc evaluates a path against the capabilities an agent holds.
type CheckFunc func(path string, agentCapabilities []string) CheckResult

// NewEnforcer builds an enforcement function from config. The merged route
// table is constructed once; the returned function is read-only and safe
// for concurrent use.
func NewEnforcer(cfg EnforcementConfig) CheckFunc {
	merged := make([]RouteCapability, 0, len(cfg.CustomMappings)+len(DefaultRoutes))
	merged = append(merged, cfg.CustomMappings...)
	merged = append(merged, DefaultRoutes...)
	m := NewMatcher(merged)

	return func(path string, agentCapabilities []string) CheckResult {
		for _, prefix := range cfg.SkipRoutes {
			if strings.HasPrefix(path, prefix) {
				return CheckResult{Allowed: true, Required: []string{}, Missing: []string{}}
			}
		}

		required := m.RequiredCapabilities(path)
		if len(required) == 0 {
			if cfg.EnforceOnAllRoutes && !cfg.AllowUnmappedRoutes {
				// unmapped means denied, not "no requirement"
				return CheckResult{Allowed: false, Required: []string{}, Missing: []string{}}
			}
			return CheckResult{Allowed: true, Required: []string{}, Missing: []string{}}
		}

		held := make(map[string]bool, len(agentCapabilities))
		for _, c := range agentCapabilities {
			held[c] = true
		}
		missing := []string{}
		for _, c := range required {
			if !held[c] {
				missing = append(missing, c)
			}
		}
		return CheckResult{Allowed: len(missing) == 0, Required: required, Missing: missing}
	}
}
