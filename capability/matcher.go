// Package capability maps request paths to the capability identifiers an
// agent must hold to use them.
package capability

import (
	"regexp"
	"strings"
)

// RouteCapability is one entry of the route table: a path pattern (exact
// string, or a wildcard pattern where * matches any characters including
// none) and the capabilities required for matching paths.
//
// The table is an ordered list, not a map: among wildcard patterns the first
// declared match wins, and that ordering is part of the contract.
type RouteCapability struct {
	Pattern      string
	Capabilities []string
}

type compiledPattern struct {
	re           *regexp.Regexp
	capabilities []string
}

// Matcher resolves paths against a fixed route table. Build it once at
// startup; it is read-only afterwards and safe for concurrent use.
type Matcher struct {
	exact    map[string][]string
	patterns []compiledPattern
}

func NewMatcher(routes []RouteCapability) *Matcher {
	m := &Matcher{exact: make(map[string][]string)}
	for _, rc := range routes {
		if !strings.Contains(rc.Pattern, "*") {
			// first declaration wins on duplicates
			if _, ok := m.exact[rc.Pattern]; !ok {
				m.exact[rc.Pattern] = rc.Capabilities
			}
			continue
		}
		m.patterns = append(m.patterns, compiledPattern{
			re:           expandWildcard(rc.Pattern),
			capabilities: rc.Capabilities,
		})
	}
	return m
}

// expandWildcard turns a wildcard pattern into its full-string regular
// expression: every * becomes .* and everything else is literal.
func expandWildcard(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

// RequiredCapabilities returns the capabilities required for path. An exact
// entry always wins over any wildcard that would also match; otherwise the
// first matching wildcard in declaration order wins. Unmapped paths return
// an empty set.
func (m *Matcher) RequiredCapabilities(path string) []string {
	if caps, ok := m.exact[path]; ok {
		return caps
	}
	for _, p := range m.patterns {
		if p.re.MatchString(path) {
			return p.capabilities
		}
	}
	return nil
}

// RequiresCapabilities reports whether path has a non-empty requirement.
func (m *Matcher) RequiresCapabilities(path string) bool {
	return len(m.RequiredCapabilities(path)) > 0
}
