// Package rsmcp provides safe, mode-gated Amazon Redshift access for AI
// agents through the Model Context Protocol (MCP).
//
// It exposes the tools Query, Execute, ListSchemas, ListTables,
// DescribeTable, Connect, and Disconnect. Every statement submitted through
// Query or Execute passes a lexical statement-safety classifier before it
// reaches the database: the process-wide access mode (readonly, readwrite,
// or admin) decides which statement kinds may execute, and anything the
// classifier cannot recognize is denied outside admin mode. See
// internal/classify for the policy table.
//
// Redshift speaks the PostgreSQL wire protocol, so connections run over
// pgx. Statement parameters use the extended query protocol
// (QueryExecModeExec), which keeps values out of the SQL text.
//
// # Library Usage
//
//	p, err := rsmcp.New(ctx, connString, rsmcp.Config{
//		AccessMode: "readonly",
//		Pool:       rsmcp.PoolConfig{MaxConns: 10},
//		Query: rsmcp.QueryConfig{
//			DefaultTimeoutSeconds:  30,
//			MetadataTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	// Use directly
//	output := p.Query(ctx, rsmcp.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or register as MCP tools
//	rsmcp.RegisterMCPTools(mcpServer, p, recorder)
//
// Query and Execute never return Go errors: denials, Redshift errors, and
// timeouts all land in the output's Error field, with any configured
// guidance hints appended so the agent can self-correct.
package rsmcp
