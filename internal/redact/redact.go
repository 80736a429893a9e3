// Package redact applies regex-based redaction to query result values
// before they are returned to the calling agent.
package redact

import (
	"fmt"
	"regexp"
)

// Rule defines a single redaction rule. Replacement supports regexp
// capture-group references ($1, $2, ...).
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor rewrites string values in result rows according to its rules.
type Redactor struct {
	rules []compiledRule
}

// New compiles the given rules into a Redactor.
func New(rules []Rule) (*Redactor, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Redactor{rules: compiled}, nil
}

// HasRules reports whether any redaction rules are configured.
func (r *Redactor) HasRules() bool {
	return len(r.rules) > 0
}

// ApplyRows redacts every field value in the given result rows in place and
// returns the same slice. SUPER/JSON columns arrive as nested maps and
// slices; redaction recurses into their string leaves.
func (r *Redactor) ApplyRows(rows []map[string]interface{}) []map[string]interface{} {
	if !r.HasRules() {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = r.apply(v)
		}
	}
	return rows
}

func (r *Redactor) apply(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		out := val
		for _, rule := range r.rules {
			out = rule.pattern.ReplaceAllString(out, rule.replacement)
		}
		return out
	case map[string]interface{}:
		for k, item := range val {
			val[k] = r.apply(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = r.apply(item)
		}
		return val
	default:
		// Numbers, bools, nil pass through untouched.
		return v
	}
}
