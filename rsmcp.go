package rsmcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/redshift-tools/redshift-mcp/internal/classify"
	"github.com/redshift-tools/redshift-mcp/internal/guidance"
	"github.com/redshift-tools/redshift-mcp/internal/redact"
	"github.com/redshift-tools/redshift-mcp/internal/timeout"
)

const defaultRedshiftPort = 5439

// errNotConnected is returned by every data path when no connection is live.
var errNotConnected = errors.New("not connected to database: use the connect tool or set the REDSHIFT_* environment variables")

// RedshiftMcp is the core engine behind the MCP tools. All exported methods
// are safe for concurrent use from multiple goroutines. The access mode is
// fixed at construction and never changes for the process lifetime.
type RedshiftMcp struct {
	config    Config
	mode      classify.Mode
	semaphore chan struct{}
	redactor  *redact.Redactor
	guidance  *guidance.Matcher
	timeouts  *timeout.Manager
	logger    zerolog.Logger

	// The live pool is swappable at runtime through Connect/Disconnect.
	mu       sync.RWMutex
	pool     *pgxpool.Pool
	connInfo ConnectionInfo

	connDefaults ConnectParams
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	connDefaults ConnectParams
}

// WithConnectDefaults supplies fallback connection parameters for the
// Connect tool: fields the caller leaves empty are filled from these.
func WithConnectDefaults(p ConnectParams) Option {
	return func(o *options) {
		o.connDefaults = p
	}
}

// New creates a new RedshiftMcp instance. When connString is non-empty, a
// connection pool is created immediately; when empty, the engine starts
// disconnected and waits for the Connect tool.
// Panics on invalid config. Returns error only for runtime failures
// (e.g., pool creation).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger, opts ...Option) (*RedshiftMcp, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// --- Config validation (panics on invalid config) ---

	if config.AccessMode == "" {
		config.AccessMode = string(classify.ModeReadOnly)
	}
	mode, err := classify.ParseMode(config.AccessMode)
	if err != nil {
		panic(fmt.Sprintf("rsmcp: %v", err))
	}

	if config.Pool.MaxConns <= 0 {
		panic("rsmcp: pool.max_conns must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("rsmcp: query.default_timeout_seconds must be > 0")
	}
	if config.Query.MetadataTimeoutSeconds <= 0 {
		panic("rsmcp: query.metadata_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("rsmcp: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("rsmcp: query.max_result_length must be > 0")
	}

	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("rsmcp: timeout_rule %q has timeout_seconds <= 0", rule.Name))
		}
	}

	// --- Initialize internal components ---

	redactor, err := redact.New(mapRedactionRules(config.Redaction))
	if err != nil {
		panic(fmt.Sprintf("rsmcp: %v", err))
	}
	matcher, err := guidance.New(mapGuidanceRules(config.Guidance))
	if err != nil {
		panic(fmt.Sprintf("rsmcp: %v", err))
	}
	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Name:    r.Name,
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr := timeout.NewManager(time.Duration(config.Query.DefaultTimeoutSeconds)*time.Second, timeoutRules)

	p := &RedshiftMcp{
		config:       config,
		mode:         mode,
		semaphore:    make(chan struct{}, config.Pool.MaxConns),
		redactor:     redactor,
		guidance:     matcher,
		timeouts:     tmgr,
		logger:       logger,
		connDefaults: o.connDefaults,
	}

	// --- Create pool when credentials are already known ---

	if connString != "" {
		pool, err := p.newPool(ctx, connString)
		if err != nil {
			return nil, err
		}
		p.pool = pool
		p.connInfo = connInfoFromString(connString)
	}

	return p, nil
}

// Mode returns the process-wide access mode.
func (p *RedshiftMcp) Mode() classify.Mode {
	return p.mode
}

// Connected reports whether a connection pool is currently live.
func (p *RedshiftMcp) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool != nil
}

// ConnectionInfo returns host/database/user of the live connection, or the
// zero value when disconnected.
func (p *RedshiftMcp) ConnectionInfo() ConnectionInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connInfo
}

// Connect establishes (or replaces) the live connection. Empty fields in
// params fall back to the defaults given via WithConnectDefaults. The new
// pool is pinged before the old one is swapped out, so a failed Connect
// leaves an existing connection intact.
func (p *RedshiftMcp) Connect(ctx context.Context, params ConnectParams) (ConnectionInfo, error) {
	merged := p.mergeConnectParams(params)

	var missing []string
	if merged.Host == "" {
		missing = append(missing, "host (or REDSHIFT_HOST)")
	}
	if merged.Database == "" {
		missing = append(missing, "database (or REDSHIFT_DATABASE)")
	}
	if merged.User == "" {
		missing = append(missing, "user (or REDSHIFT_USER)")
	}
	if merged.Password == "" {
		missing = append(missing, "password (or REDSHIFT_PASSWORD)")
	}
	if len(missing) > 0 {
		return ConnectionInfo{}, fmt.Errorf("missing required connection parameters: %s", strings.Join(missing, ", "))
	}

	pool, err := p.newPool(ctx, BuildConnString(merged))
	if err != nil {
		return ConnectionInfo{}, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return ConnectionInfo{}, fmt.Errorf("connection test failed: %w", err)
	}

	info := ConnectionInfo{Host: merged.Host, Database: merged.Database, User: merged.User}

	p.mu.Lock()
	old := p.pool
	p.pool = pool
	p.connInfo = info
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}

	p.logger.Info().
		Str("host", info.Host).
		Str("database", info.Database).
		Str("user", info.User).
		Msg("connected to Redshift")
	return info, nil
}

// Disconnect closes the live connection pool, if any.
func (p *RedshiftMcp) Disconnect(ctx context.Context) {
	p.mu.Lock()
	old := p.pool
	p.pool = nil
	p.connInfo = ConnectionInfo{}
	p.mu.Unlock()

	if old != nil {
		old.Close()
		p.logger.Info().Msg("disconnected from Redshift")
	}
}

// Ping verifies the live connection.
func (p *RedshiftMcp) Ping(ctx context.Context) error {
	pool, err := p.livePool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Close closes the connection pool. Accepts context for API
// forward-compatibility; pgxpool.Pool.Close() has no context-based shutdown.
func (p *RedshiftMcp) Close(ctx context.Context) {
	p.Disconnect(ctx)
}

// livePool returns the current pool or errNotConnected.
func (p *RedshiftMcp) livePool() (*pgxpool.Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return nil, errNotConnected
	}
	return p.pool, nil
}

// newPool builds a pgxpool from the engine's pool config. Panics on invalid
// duration strings (config error), returns error on runtime failures.
func (p *RedshiftMcp) newPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(p.config.Pool.MaxConns)
	poolConfig.MinConns = int32(p.config.Pool.MinConns)
	// Redshift drops prepared statements aggressively across sessions;
	// exec mode keeps parameter binding without statement caching.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if p.config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(p.config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("rsmcp: invalid pool.max_conn_lifetime %q: %v", p.config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if p.config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(p.config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("rsmcp: invalid pool.max_conn_idle_time %q: %v", p.config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}
	if p.config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(p.config.Pool.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("rsmcp: invalid pool.health_check_period %q: %v", p.config.Pool.HealthCheckPeriod, err))
		}
		poolConfig.HealthCheckPeriod = d
	}

	if p.config.Timezone != "" {
		tz := strings.ReplaceAll(p.config.Timezone, "'", "''")
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", tz)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// mergeConnectParams fills empty fields of params from the configured
// defaults, and applies the standard Redshift port as a last resort.
func (p *RedshiftMcp) mergeConnectParams(params ConnectParams) ConnectParams {
	d := p.connDefaults
	if params.Host == "" {
		params.Host = d.Host
	}
	if params.Port == 0 {
		params.Port = d.Port
	}
	if params.Port == 0 {
		params.Port = defaultRedshiftPort
	}
	if params.Database == "" {
		params.Database = d.Database
	}
	if params.User == "" {
		params.User = d.User
	}
	if params.Password == "" {
		params.Password = d.Password
	}
	if params.SSLMode == "" {
		params.SSLMode = d.SSLMode
	}
	return params
}

// BuildConnString renders ConnectParams as a libpq-style connection string.
func BuildConnString(p ConnectParams) string {
	var parts []string
	if p.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", p.Host))
	}
	if p.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", p.Port))
	}
	if p.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", p.Database))
	}
	if p.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", p.User))
	}
	if p.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", p.Password))
	}
	if p.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", p.SSLMode))
	}
	return strings.Join(parts, " ")
}

// connInfoFromString extracts non-secret connection identity from a
// connection string for logging and the status surface.
func connInfoFromString(connString string) ConnectionInfo {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return ConnectionInfo{}
	}
	return ConnectionInfo{
		Host:     cfg.ConnConfig.Host,
		Database: cfg.ConnConfig.Database,
		User:     cfg.ConnConfig.User,
	}
}

// mapRedactionRules converts rsmcp RedactionRules to internal redact.Rules.
func mapRedactionRules(rules []RedactionRule) []redact.Rule {
	result := make([]redact.Rule, len(rules))
	for i, r := range rules {
		result[i] = redact.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapGuidanceRules converts rsmcp GuidanceRules to internal guidance.Rules.
func mapGuidanceRules(rules []GuidanceRule) []guidance.Rule {
	result := make([]guidance.Rule, len(rules))
	for i, r := range rules {
		result[i] = guidance.Rule{
			Pattern: r.Pattern,
			Hint:    r.Hint,
		}
	}
	return result
}
