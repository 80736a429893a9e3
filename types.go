package rsmcp

// QueryInput is the input for the Query tool. Params are bound server-side
// via the extended query protocol, never interpolated into SQL.
type QueryInput struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// QueryOutput is the output of the Query tool. All failures (classifier
// denials, Redshift errors, timeouts) are placed in Error with matching
// guidance hints appended.
type QueryOutput struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Error    string           `json:"error,omitempty"`
}

// ExecuteInput is the input for the Execute tool.
type ExecuteInput struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// ExecuteOutput is the output of the Execute tool.
type ExecuteOutput struct {
	RowsAffected int64  `json:"rows_affected"`
	Error        string `json:"error,omitempty"`
}

// ListSchemasOutput is the output of the ListSchemas tool.
type ListSchemasOutput struct {
	Schemas []string `json:"schemas"`
}

// ListTablesInput is the input for the ListTables tool. Schema defaults to
// "public".
type ListTablesInput struct {
	Schema string `json:"schema"`
}

// ListTablesOutput is the output of the ListTables tool.
type ListTablesOutput struct {
	Schema string   `json:"schema"`
	Tables []string `json:"tables"`
}

// DescribeTableInput is the input for the DescribeTable tool.
type DescribeTableInput struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	Default   string `json:"default,omitempty"`
	Length    int    `json:"length,omitempty"`
	Precision int    `json:"precision,omitempty"`
	Scale     int    `json:"scale,omitempty"`
}

// DescribeTableOutput is the output of the DescribeTable tool.
type DescribeTableOutput struct {
	Schema  string       `json:"schema"`
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

// ConnectParams are the parameters for the Connect tool. Fields left empty
// fall back to the defaults configured at startup.
type ConnectParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslmode"`
}

// ConnectionInfo identifies the live connection. Never carries credentials.
type ConnectionInfo struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	User     string `json:"user"`
}
