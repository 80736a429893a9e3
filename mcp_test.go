package rsmcp

import (
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestArrayArgumentValid(t *testing.T) {
	t.Parallel()
	req := callRequest(map[string]any{"params": []any{"x", float64(2)}})

	arr, err := arrayArgument(req, "params")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(arr) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(arr))
	}
	if arr[0] != "x" {
		t.Fatalf("expected first element 'x', got %v", arr[0])
	}
}

func TestArrayArgumentAbsent(t *testing.T) {
	t.Parallel()
	req := callRequest(map[string]any{"sql": "SELECT 1"})

	arr, err := arrayArgument(req, "params")
	if err != nil {
		t.Fatalf("unexpected error for absent argument: %v", err)
	}
	if arr != nil {
		t.Fatalf("expected nil for absent argument, got %v", arr)
	}
}

func TestArrayArgumentNull(t *testing.T) {
	t.Parallel()
	req := callRequest(map[string]any{"params": nil})

	arr, err := arrayArgument(req, "params")
	if err != nil {
		t.Fatalf("unexpected error for null argument: %v", err)
	}
	if arr != nil {
		t.Fatalf("expected nil for null argument, got %v", arr)
	}
}

// A params value of the wrong JSON type must surface an error instead of
// running the statement with its parameters silently dropped.
func TestArrayArgumentWrongType(t *testing.T) {
	t.Parallel()
	for _, wrong := range []any{"not-an-array", float64(42), map[string]any{"a": 1}} {
		req := callRequest(map[string]any{"params": wrong})

		arr, err := arrayArgument(req, "params")
		if err == nil {
			t.Fatalf("expected error for %T params, got %v", wrong, arr)
		}
		if !strings.Contains(err.Error(), "params must be an array") {
			t.Fatalf("expected 'params must be an array' error, got %q", err.Error())
		}
	}
}
