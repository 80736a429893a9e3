package rsmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/redshift-tools/redshift-mcp/internal/audit"
)

// RegisterMCPTools registers the Redshift tools on the given MCP server.
// Every handler is wrapped in the audit recorder; a nil recorder disables
// audit logging.
func RegisterMCPTools(mcpServer *server.MCPServer, engine *RedshiftMcp, recorder *audit.Recorder) {
	// Query tool
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Execute a SELECT-like SQL statement against the Redshift database. Returns results as JSON. Statements are gated by the server's access mode."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithArray("params",
			mcp.Description("Optional positional parameters bound via the extended query protocol ($1, $2, ...)"),
		),
	)

	mcpServer.AddTool(queryTool, auditedHandler(engine, recorder, "query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		params, err := arrayArgument(req, "params")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		output := engine.Query(ctx, QueryInput{SQL: sql, Params: params})
		if output.Error != "" {
			return mcp.NewToolResultError(output.Error), nil
		}
		return marshalResult(output, "query")
	}))

	// Execute tool
	executeTool := mcp.NewTool("execute",
		mcp.WithDescription("Execute an INSERT, UPDATE, CREATE, or DDL statement. Runs in a transaction: commit on success, rollback on error. Statements are gated by the server's access mode."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithArray("params",
			mcp.Description("Optional positional parameters bound via the extended query protocol ($1, $2, ...)"),
		),
	)

	mcpServer.AddTool(executeTool, auditedHandler(engine, recorder, "execute", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		params, err := arrayArgument(req, "params")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		output := engine.Execute(ctx, ExecuteInput{SQL: sql, Params: params})
		if output.Error != "" {
			return mcp.NewToolResultError(output.Error), nil
		}
		return marshalResult(output, "execute")
	}))

	// ListSchemas tool
	listSchemasTool := mcp.NewTool("list_schemas",
		mcp.WithDescription("List all schemas in the Redshift database, excluding system schemas."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listSchemasTool, auditedHandler(engine, recorder, "list_schemas", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := engine.ListSchemas(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(output, "list_schemas")
	}))

	// ListTables tool
	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List base tables in a schema (defaults to 'public')."),
		mcp.WithString("schema",
			mcp.Description("The schema name (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, auditedHandler(engine, recorder, "list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := engine.ListTables(ctx, ListTablesInput{Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(output, "list_tables")
	}))

	// DescribeTable tool
	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Describe the columns of a table: types, nullability, defaults, length/precision."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithString("schema",
			mcp.Description("The schema name (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(describeTableTool, auditedHandler(engine, recorder, "describe_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		output, err := engine.DescribeTable(ctx, DescribeTableInput{Table: table, Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(output, "describe_table")
	}))

	// Connect tool
	connectTool := mcp.NewTool("connect",
		mcp.WithDescription("Connect to a Redshift database. Parameters left out fall back to the server's configured defaults and REDSHIFT_* environment variables."),
		mcp.WithString("host", mcp.Description("Redshift cluster endpoint")),
		mcp.WithNumber("port", mcp.Description("Port number (default: 5439)")),
		mcp.WithString("database", mcp.Description("Database name")),
		mcp.WithString("user", mcp.Description("Username")),
		mcp.WithString("password", mcp.Description("Password")),
		mcp.WithString("sslmode", mcp.Description("SSL mode (e.g. require, verify-full)")),
	)

	mcpServer.AddTool(connectTool, auditedHandler(engine, recorder, "connect", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, err := engine.Connect(ctx, ConnectParams{
			Host:     req.GetString("host", ""),
			Port:     req.GetInt("port", 0),
			Database: req.GetString("database", ""),
			User:     req.GetString("user", ""),
			Password: req.GetString("password", ""),
			SSLMode:  req.GetString("sslmode", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(info, "connect")
	}))

	// Disconnect tool
	disconnectTool := mcp.NewTool("disconnect",
		mcp.WithDescription("Disconnect from the Redshift database."),
	)

	mcpServer.AddTool(disconnectTool, auditedHandler(engine, recorder, "disconnect", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		engine.Disconnect(ctx)
		return mcp.NewToolResultText(`{"status":"disconnected"}`), nil
	}))
}

// auditedHandler wraps a tool handler to emit one audit completion entry
// per call, with request/response sizes and duration.
func auditedHandler(engine *RedshiftMcp, recorder *audit.Recorder, tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := handler(ctx, req)
		recorder.Complete(audit.Completion{
			Tool:          tool,
			AccessMode:    string(engine.Mode()),
			Arguments:     req.GetArguments(),
			RequestBytes:  requestLength(req),
			ResponseBytes: resultLength(result),
			Duration:      time.Since(start),
			ErrorDetail:   errorDetail(result, err),
		})
		return result, err
	}
}

// marshalResult JSON-encodes a tool output into a text result.
func marshalResult(v any, tool string) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal " + tool + " result"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// arrayArgument extracts an optional array argument from the request. A
// present value of any other type is an error, so a mistyped argument never
// runs the statement with its parameters silently dropped.
func arrayArgument(req mcp.CallToolRequest, key string) ([]any, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array", key)
	}
	return arr, nil
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}

// errorDetail extracts an error string for the audit entry: the Go error if
// present, otherwise the text of an error-flagged result.
func errorDetail(result *mcp.CallToolResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if result == nil || !result.IsError {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
