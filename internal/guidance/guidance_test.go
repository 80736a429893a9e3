package guidance

import (
	"strings"
	"testing"
)

func TestHintsPermissionDenied(t *testing.T) {
	t.Parallel()
	m, err := New([]Rule{
		{Pattern: `(?i)permission denied`, Hint: "Insufficient privileges. Ask the user to check grants on the table."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Hints("permission denied for relation users")
	if got != "Insufficient privileges. Ask the user to check grants on the table." {
		t.Fatalf("unexpected hint: %q", got)
	}
}

func TestHintsModeDenial(t *testing.T) {
	t.Parallel()
	m, err := New([]Rule{
		{Pattern: `not permitted in readonly mode`, Hint: "The server is running in readonly mode. Only SELECT, SHOW, DESCRIBE, and EXPLAIN are permitted."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Hints("statement type DROP is not permitted in readonly mode")
	if !strings.Contains(got, "readonly mode") {
		t.Fatalf("expected readonly hint, got %q", got)
	}
}

func TestHintsNoMatch(t *testing.T) {
	t.Parallel()
	m, err := New([]Rule{
		{Pattern: `(?i)serializable isolation`, Hint: "Retry the statement; Redshift aborted it due to a serialization conflict."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Hints("relation \"foo\" does not exist"); got != "" {
		t.Fatalf("expected no hint, got %q", got)
	}
}

func TestHintsMultipleMatchesJoined(t *testing.T) {
	t.Parallel()
	m, err := New([]Rule{
		{Pattern: `does not exist`, Hint: "Use list_tables to see available tables."},
		{Pattern: `relation`, Hint: "Check the schema qualifier."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Hints(`relation "foo" does not exist`)
	want := "Use list_tables to see available tables.\nCheck the schema qualifier."
	if got != want {
		t.Fatalf("expected joined hints %q, got %q", want, got)
	}
}

func TestMatchedPatterns(t *testing.T) {
	t.Parallel()
	m, err := New([]Rule{
		{Pattern: `timeout`, Hint: "Narrow the query or add a LIMIT."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	patterns := m.MatchedPatterns("query timeout after 30s")
	if len(patterns) != 1 || patterns[0] != "timeout" {
		t.Fatalf("unexpected matched patterns: %v", patterns)
	}
	if got := m.MatchedPatterns("all good"); got != nil {
		t.Fatalf("expected nil for no match, got %v", got)
	}
}

func TestInvalidPatternRejected(t *testing.T) {
	t.Parallel()
	if _, err := New([]Rule{{Pattern: `[`, Hint: "x"}}); err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
}
