// Package timeout resolves per-statement execution timeouts from named
// pattern rules with a default fallback.
package timeout

import (
	"fmt"
	"regexp"
	"time"
)

// Rule binds a statement pattern to a timeout. Name identifies the rule in
// logs when it fires.
type Rule struct {
	Name    string
	Pattern string
	Timeout time.Duration
}

type compiledRule struct {
	name    string
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves statement timeouts. First matching rule wins.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager compiles the rules. Panics on an invalid regex pattern —
// timeout rules come from startup configuration, not runtime input.
func NewManager(defaultTimeout time.Duration, rules []Rule) *Manager {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			panic(fmt.Sprintf("timeout: invalid regex pattern %q: %v", r.Pattern, err))
		}
		compiled[i] = compiledRule{name: r.Name, pattern: re, timeout: r.Timeout}
	}
	return &Manager{rules: compiled, defaultTimeout: defaultTimeout}
}

// Resolve returns the timeout for sql and the name of the rule that fired.
// The name is empty when the default applies. A rule with an empty Name
// reports its pattern instead.
func (m *Manager) Resolve(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			name := rule.name
			if name == "" {
				name = rule.pattern.String()
			}
			return rule.timeout, name
		}
	}
	return m.defaultTimeout, ""
}
