package rsmcp

// Config is the base configuration used by library mode via New().
type Config struct {
	// AccessMode is one of "readonly", "readwrite", "admin". Empty means
	// readonly. Any other value is a configuration error. Set once at
	// startup; immutable for the process lifetime.
	AccessMode string `json:"access_mode"`

	Pool      PoolConfig      `json:"pool"`
	Query     QueryConfig     `json:"query"`
	Guidance  []GuidanceRule  `json:"guidance"`
	Redaction []RedactionRule `json:"redaction"`

	// Timezone, when set, is applied to every new connection.
	Timezone string `json:"timezone"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds default Redshift connection parameters for CLI
// mode. The password is never stored in config; it comes from the
// REDSHIFT_PASSWORD environment variable or an interactive prompt.
type ConnectionConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	SSLMode  string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// QueryConfig holds statement execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds  int           `json:"default_timeout_seconds"`
	MetadataTimeoutSeconds int           `json:"metadata_timeout_seconds"`
	MaxSQLLength           int           `json:"max_sql_length"`
	MaxResultLength        int           `json:"max_result_length"`
	TimeoutRules           []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a statement pattern to a specific timeout duration.
type TimeoutRule struct {
	Name           string `json:"name"`
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// GuidanceRule maps an error-message pattern to an agent-steering hint.
type GuidanceRule struct {
	Pattern string `json:"pattern"`
	Hint    string `json:"hint"`
}

// RedactionRule defines a regex-based result redaction rule.
type RedactionRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}
