// Package classify decides whether a SQL statement may be executed under
// the configured access mode, before the statement reaches Redshift.
//
// Classification is lexical: only the leading keyword of the statement is
// inspected, never the statement body. A statement whose leading keyword
// cannot be determined (leading comment, digit, terminator) or is not in
// any known keyword set is denied in every mode except admin. This means
// semicolon-batched statements are classified by their first keyword only —
// callers that need stronger guarantees must reject multi-statement input
// themselves.
package classify

import (
	"fmt"
	"strings"
)

// Mode is the process-wide access mode. It is set once at startup and
// governs every classification decision.
type Mode string

const (
	ModeReadOnly  Mode = "readonly"
	ModeReadWrite Mode = "readwrite"
	ModeAdmin     Mode = "admin"
)

// ParseMode validates a mode string from configuration. Any value other
// than the three known modes is a configuration error.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReadOnly:
		return ModeReadOnly, nil
	case ModeReadWrite:
		return ModeReadWrite, nil
	case ModeAdmin:
		return ModeAdmin, nil
	default:
		return "", fmt.Errorf("invalid access mode %q (allowed: %s|%s|%s)", s, ModeReadOnly, ModeReadWrite, ModeAdmin)
	}
}

// Kind is the coarse category of a statement, derived from its leading keyword.
type Kind string

const (
	KindSelect      Kind = "select-like"
	KindWrite       Kind = "write"
	KindDestructive Kind = "destructive"
	KindUnknown     Kind = "unknown"
)

// keywordKinds maps a lowercased leading keyword to its Kind. Keywords not
// present map to KindUnknown. Adding a statement kind is a data change here,
// not a logic change in Classify.
var keywordKinds = map[string]Kind{
	"select":   KindSelect,
	"show":     KindSelect,
	"describe": KindSelect,
	"explain":  KindSelect,

	"insert": KindWrite,
	"update": KindWrite,
	"create": KindWrite,

	"delete":   KindDestructive,
	"drop":     KindDestructive,
	"truncate": KindDestructive,
	"alter":    KindDestructive,
	"grant":    KindDestructive,
	"revoke":   KindDestructive,
	"comment":  KindDestructive,
	"set":      KindDestructive,
	"copy":     KindDestructive,
	"unload":   KindDestructive,
	"vacuum":   KindDestructive,
	"analyze":  KindDestructive,
	"merge":    KindDestructive,
}

// allowedKinds is the mode × kind policy table. Unknown kinds are denied
// everywhere except admin (fail-closed).
var allowedKinds = map[Mode]map[Kind]bool{
	ModeReadOnly: {
		KindSelect: true,
	},
	ModeReadWrite: {
		KindSelect: true,
		KindWrite:  true,
	},
	ModeAdmin: {
		KindSelect:      true,
		KindWrite:       true,
		KindDestructive: true,
		KindUnknown:     true,
	},
}

// Decision is the classifier's output. Allowed is true for permitted
// statements; otherwise Reason explains the denial. Malformed marks
// denials caused by unusable input (empty statement, no extractable
// keyword) rather than by policy.
type Decision struct {
	Allowed   bool
	Kind      Kind
	Keyword   string
	Reason    string
	Malformed bool
}

func allow(kind Kind, keyword string) Decision {
	return Decision{Allowed: true, Kind: kind, Keyword: keyword}
}

func denyMalformed(reason string) Decision {
	return Decision{Kind: KindUnknown, Reason: reason, Malformed: true}
}

// Classify decides whether statement may execute under mode. It is a pure
// function: no state, no I/O, safe for concurrent use. The mode must be one
// of the values produced by ParseMode.
func Classify(statement string, mode Mode) Decision {
	trimmed := strings.TrimSpace(statement)
	if trimmed == "" {
		return denyMalformed("malformed statement: empty or whitespace-only input")
	}

	keyword := leadingKeyword(trimmed)
	if keyword == "" {
		return denyMalformed("malformed statement: no leading keyword found")
	}

	kind, known := keywordKinds[strings.ToLower(keyword)]
	if !known {
		kind = KindUnknown
	}

	if allowedKinds[mode][kind] {
		return allow(kind, strings.ToUpper(keyword))
	}

	upper := strings.ToUpper(keyword)
	if kind == KindUnknown {
		return Decision{
			Kind:    kind,
			Keyword: upper,
			Reason:  fmt.Sprintf("unrecognized statement type %s is not permitted in %s mode", upper, mode),
		}
	}
	return Decision{
		Kind:    kind,
		Keyword: upper,
		Reason:  fmt.Sprintf("statement type %s is not permitted in %s mode", upper, mode),
	}
}

// leadingKeyword returns the run of ASCII letters at the start of s.
// Returns "" when s does not start with a letter.
func leadingKeyword(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			end++
			continue
		}
		break
	}
	return s[:end]
}
