// Package guidance maps error messages to steering hints for the calling
// agent. A denied or failed statement comes back with the matching hints
// appended, so the agent can self-correct instead of retrying blindly.
package guidance

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule maps an error-message pattern to a hint.
type Rule struct {
	Pattern string
	Hint    string
}

type compiledRule struct {
	pattern *regexp.Regexp
	hint    string
}

// Matcher evaluates error messages against its rules.
type Matcher struct {
	rules []compiledRule
}

// New compiles the given rules into a Matcher.
func New(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("guidance: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, hint: r.Hint}
	}
	return &Matcher{rules: compiled}, nil
}

// Hints returns the hints of all rules matching errMsg, joined by newlines,
// evaluated top to bottom. Empty string when nothing matches.
func (m *Matcher) Hints(errMsg string) string {
	var hints []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			hints = append(hints, rule.hint)
		}
	}
	return strings.Join(hints, "\n")
}

// MatchedPatterns returns the patterns that matched errMsg, for logging.
func (m *Matcher) MatchedPatterns(errMsg string) []string {
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
