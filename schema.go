package rsmcp

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const listSchemasSQL = `
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
ORDER BY schema_name;
`

const listTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1
  AND table_type = 'BASE TABLE'
ORDER BY table_name;
`

const describeTableSQL = `
SELECT
    column_name,
    data_type,
    character_maximum_length,
    numeric_precision,
    numeric_scale,
    is_nullable,
    column_default
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position;
`

// ListSchemas returns all schemas visible to the current user, excluding
// system schemas. Metadata tools run fixed catalog queries with no caller
// SQL, so they bypass the classifier by construction.
func (p *RedshiftMcp) ListSchemas(ctx context.Context) (*ListSchemasOutput, error) {
	queryCtx, cancel, pool, err := p.metadataContext(ctx, "ListSchemas")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() { <-p.semaphore }()

	rows, err := pool.Query(queryCtx, listSchemasSQL)
	if err != nil {
		return nil, fmt.Errorf("ListSchemas query failed: %w", err)
	}
	defer rows.Close()

	schemas := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ListSchemas scan failed: %w", err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSchemas iteration failed: %w", err)
	}

	p.logger.Info().Int("schema_count", len(schemas)).Msg("schemas listed")
	return &ListSchemasOutput{Schemas: schemas}, nil
}

// ListTables returns the base tables of a schema (default "public").
func (p *RedshiftMcp) ListTables(ctx context.Context, input ListTablesInput) (*ListTablesOutput, error) {
	schema := input.Schema
	if schema == "" {
		schema = "public"
	}

	queryCtx, cancel, pool, err := p.metadataContext(ctx, "ListTables")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() { <-p.semaphore }()

	rows, err := pool.Query(queryCtx, listTablesSQL, schema)
	if err != nil {
		return nil, fmt.Errorf("ListTables query failed: %w", err)
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ListTables scan failed: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTables iteration failed: %w", err)
	}

	p.logger.Info().Str("schema", schema).Int("table_count", len(tables)).Msg("tables listed")
	return &ListTablesOutput{Schema: schema, Tables: tables}, nil
}

// DescribeTable returns column metadata for a table (schema defaults to
// "public").
func (p *RedshiftMcp) DescribeTable(ctx context.Context, input DescribeTableInput) (*DescribeTableOutput, error) {
	if input.Table == "" {
		return nil, fmt.Errorf("DescribeTable: table name is required")
	}
	schema := input.Schema
	if schema == "" {
		schema = "public"
	}

	queryCtx, cancel, pool, err := p.metadataContext(ctx, "DescribeTable")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() { <-p.semaphore }()

	rows, err := pool.Query(queryCtx, describeTableSQL, schema, input.Table)
	if err != nil {
		return nil, fmt.Errorf("DescribeTable query failed: %w", err)
	}
	defer rows.Close()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var (
			name, dataType, nullable    string
			maxLength, precision, scale *int
			columnDefault               *string
		)
		if err := rows.Scan(&name, &dataType, &maxLength, &precision, &scale, &nullable, &columnDefault); err != nil {
			return nil, fmt.Errorf("DescribeTable scan failed: %w", err)
		}
		col := ColumnInfo{
			Name:     name,
			Type:     dataType,
			Nullable: nullable == "YES",
		}
		if columnDefault != nil {
			col.Default = *columnDefault
		}
		if maxLength != nil {
			col.Length = *maxLength
		} else if precision != nil {
			col.Precision = *precision
			if scale != nil {
				col.Scale = *scale
			}
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("DescribeTable iteration failed: %w", err)
	}

	p.logger.Info().
		Str("schema", schema).
		Str("table", input.Table).
		Int("column_count", len(columns)).
		Msg("table described")
	return &DescribeTableOutput{Schema: schema, Table: input.Table, Columns: columns}, nil
}

// metadataContext acquires the semaphore, the metadata timeout, and the
// live pool for a metadata operation. On success the caller must release
// the semaphore and cancel the context.
func (p *RedshiftMcp) metadataContext(ctx context.Context, op string) (context.Context, context.CancelFunc, *pgxpool.Pool, error) {
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, nil, fmt.Errorf("%s: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", op, cap(p.semaphore), ctx.Err())
	}

	pool, err := p.livePool()
	if err != nil {
		<-p.semaphore
		return nil, nil, nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.MetadataTimeoutSeconds)*time.Second)
	return queryCtx, cancel, pool, nil
}
