package rsmcp_test

import (
	"context"
	"strings"
	"testing"

	rsmcp "github.com/redshift-tools/redshift-mcp"
)

// newEngine builds a disconnected engine in the given mode. Classifier
// denials happen before any database access, so these tests need no server.
func newEngine(t *testing.T, mode string) *rsmcp.RedshiftMcp {
	t.Helper()
	cfg := validConfig()
	cfg.AccessMode = mode
	p, err := rsmcp.New(context.Background(), "", cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })
	return p
}

func TestQueryDeniedInReadonly(t *testing.T) {
	t.Parallel()
	p := newEngine(t, "readonly")

	out := p.Query(context.Background(), rsmcp.QueryInput{SQL: "DROP TABLE users"})
	if out.Error == "" {
		t.Fatal("expected DROP to be denied in readonly mode")
	}
	if !strings.Contains(out.Error, "DROP") || !strings.Contains(out.Error, "readonly") {
		t.Fatalf("expected deny reason to mention DROP and readonly, got %q", out.Error)
	}
}

func TestExecuteDeniedInReadonly(t *testing.T) {
	t.Parallel()
	p := newEngine(t, "readonly")

	out := p.Execute(context.Background(), rsmcp.ExecuteInput{SQL: "INSERT INTO users (name) VALUES ($1)", Params: []any{"x"}})
	if out.Error == "" {
		t.Fatal("expected INSERT to be denied in readonly mode")
	}
	if !strings.Contains(out.Error, "INSERT") || !strings.Contains(out.Error, "readonly") {
		t.Fatalf("expected deny reason to mention INSERT and readonly, got %q", out.Error)
	}
}

func TestExecuteDestructiveDeniedInReadwrite(t *testing.T) {
	t.Parallel()
	p := newEngine(t, "readwrite")

	out := p.Execute(context.Background(), rsmcp.ExecuteInput{SQL: "TRUNCATE users"})
	if !strings.Contains(out.Error, "TRUNCATE") || !strings.Contains(out.Error, "readwrite") {
		t.Fatalf("expected deny reason to mention TRUNCATE and readwrite, got %q", out.Error)
	}
}

func TestAllowedStatementReachesConnectionCheck(t *testing.T) {
	t.Parallel()
	// A permitted statement on a disconnected engine fails with the
	// not-connected error — proof the classifier let it through.
	p := newEngine(t, "readonly")
	out := p.Query(context.Background(), rsmcp.QueryInput{SQL: "SELECT 1"})
	if !strings.Contains(out.Error, "not connected") {
		t.Fatalf("expected not-connected error for allowed statement, got %q", out.Error)
	}

	rw := newEngine(t, "readwrite")
	exec := rw.Execute(context.Background(), rsmcp.ExecuteInput{SQL: "INSERT INTO t VALUES (1)"})
	if !strings.Contains(exec.Error, "not connected") {
		t.Fatalf("expected not-connected error for allowed statement, got %q", exec.Error)
	}
}

func TestAdminAllowsUnknownThroughToConnectionCheck(t *testing.T) {
	t.Parallel()
	p := newEngine(t, "admin")
	out := p.Execute(context.Background(), rsmcp.ExecuteInput{SQL: "CALL refresh_all()"})
	if !strings.Contains(out.Error, "not connected") {
		t.Fatalf("expected unknown statement to pass the gate in admin mode, got %q", out.Error)
	}
}

func TestEmptyStatementDenied(t *testing.T) {
	t.Parallel()
	for _, mode := range []string{"readonly", "readwrite", "admin"} {
		p := newEngine(t, mode)
		out := p.Query(context.Background(), rsmcp.QueryInput{SQL: "   "})
		if !strings.Contains(out.Error, "malformed") {
			t.Fatalf("expected malformed denial in %s mode, got %q", mode, out.Error)
		}
	}
}

func TestOversizedStatementRejected(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Query.MaxSQLLength = 10
	p, err := rsmcp.New(context.Background(), "", cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(context.Background())

	out := p.Query(context.Background(), rsmcp.QueryInput{SQL: "SELECT * FROM a_table_with_a_long_name"})
	if !strings.Contains(out.Error, "too long") {
		t.Fatalf("expected length rejection, got %q", out.Error)
	}
}

func TestGuidanceHintAppendedToDenial(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Guidance = []rsmcp.GuidanceRule{
		{Pattern: `not permitted in readonly mode`, Hint: "The server is readonly. Only SELECT, SHOW, DESCRIBE, and EXPLAIN statements run."},
	}
	p, err := rsmcp.New(context.Background(), "", cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(context.Background())

	out := p.Query(context.Background(), rsmcp.QueryInput{SQL: "DELETE FROM users"})
	if !strings.Contains(out.Error, "statement type DELETE is not permitted in readonly mode") {
		t.Fatalf("expected policy denial, got %q", out.Error)
	}
	if !strings.Contains(out.Error, "The server is readonly.") {
		t.Fatalf("expected guidance hint appended, got %q", out.Error)
	}
}

func TestCancelledContextWhileSlotsBusy(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Pool.MaxConns = 1
	p, err := rsmcp.New(context.Background(), "", cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// With a cancelled context and nothing else running, the semaphore
	// acquire still wins the select most of the time; the important part
	// is that Query returns an error output either way, never panics.
	out := p.Query(ctx, rsmcp.QueryInput{SQL: "SELECT 1"})
	if out.Error == "" {
		t.Fatal("expected error output with cancelled context and no connection")
	}
}
