package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"

	rsmcp "github.com/redshift-tools/redshift-mcp"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/redshift-tools/redshift-mcp/internal/audit"
	"github.com/redshift-tools/redshift-mcp/internal/classify"
	"github.com/redshift-tools/redshift-mcp/internal/meta"
)

const defaultConfigPath = ".redshift-mcp/config.json"

func runServe() error {
	ctx := context.Background()

	// 1. Load ServerConfig and layer environment overrides on top
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyEnvOverrides(serverConfig); err != nil {
		return err
	}
	applyServerDefaults(serverConfig)

	if serverConfig.Server.Port <= 0 {
		panic("redshift-mcp: server.port must be > 0")
	}

	// Validate the access mode up front so a typo in DB_MCP_MODE is a
	// startup error instead of a silently wrong policy.
	if _, err := classify.ParseMode(serverConfig.AccessMode); err != nil {
		return err
	}

	// 2. Setup logger
	logger := setupLogger(serverConfig.Logging)

	// 3. Resolve connection parameters: env > config file > prompt
	defaults := resolveConnectDefaults(serverConfig.Connection)
	if defaults.Password == "" && defaults.Host != "" && isTTY(os.Stdin.Fd()) {
		defaults.Password = promptPassword(fmt.Sprintf("Password for %s@%s: ", defaults.User, defaults.Host))
	}

	connString := ""
	if defaults.Host != "" && defaults.Database != "" && defaults.User != "" && defaults.Password != "" {
		connString = rsmcp.BuildConnString(defaults)
	}

	// 4. Create RedshiftMcp instance
	engine, err := rsmcp.New(ctx, connString, serverConfig.Config, logger,
		rsmcp.WithConnectDefaults(defaults))
	if err != nil {
		return fmt.Errorf("failed to create RedshiftMcp: %w", err)
	}
	defer engine.Close(ctx)

	// 5. Test database connection. Startup connectivity is best effort:
	// the agent can retry with the connect tool once the database is up.
	if connString != "" {
		logger.Info().
			Str("host", defaults.Host).
			Str("database", defaults.Database).
			Msg("testing database connection")
		if err := engine.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("database connection test failed, serving anyway")
		} else {
			logger.Info().Msg("database connection test successful")
		}
	} else {
		logger.Info().Msg("no connection parameters configured, waiting for connect tool")
	}

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		clientName := req.Params.ClientInfo.Name
		clientVersion := req.Params.ClientInfo.Version
		logger.Info().
			Str("client_name", clientName).
			Str("client_version", clientVersion).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("redshift-mcp", meta.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	recorder := audit.NewRecorder(logger)
	rsmcp.RegisterMCPTools(mcpServer, engine, recorder)

	// 7. Start HTTP server with optional health check
	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("redshift-mcp: health_check_path must be set when health_check_enabled is true")
		}
		if serverConfig.Server.HealthCheckPath == "/mcp" {
			panic("redshift-mcp: health_check_path must not be /mcp (reserved for the MCP endpoint)")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Create StreamableHTTPServer with custom http.Server
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().
		Int("port", serverConfig.Server.Port).
		Str("access_mode", serverConfig.AccessMode).
		Msg("starting redshift-mcp server")
	return streamableServer.Start(addr)
}

// loadServerConfig reads the JSON config file. The file is optional because
// the server can be configured entirely through environment variables; a
// missing file is only an error when its path was set explicitly.
func loadServerConfig() (*rsmcp.ServerConfig, error) {
	configPath := os.Getenv("REDSHIFT_MCP_CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return &rsmcp.ServerConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config rsmcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides layers REDSHIFT_* and DB_MCP_MODE environment variables
// over the config file values. Environment always wins.
func applyEnvOverrides(config *rsmcp.ServerConfig) error {
	if v := os.Getenv("DB_MCP_MODE"); v != "" {
		config.AccessMode = v
	}
	if v := os.Getenv("REDSHIFT_HOST"); v != "" {
		config.Connection.Host = v
	}
	if v := os.Getenv("REDSHIFT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDSHIFT_PORT %q: %w", v, err)
		}
		config.Connection.Port = port
	}
	if v := os.Getenv("REDSHIFT_DATABASE"); v != "" {
		config.Connection.Database = v
	}
	if v := os.Getenv("REDSHIFT_USER"); v != "" {
		config.Connection.User = v
	}
	if v := os.Getenv("REDSHIFT_SSLMODE"); v != "" {
		config.Connection.SSLMode = v
	}
	return nil
}

// applyServerDefaults fills zero values so an empty config (env-only setup)
// still yields a working server.
func applyServerDefaults(config *rsmcp.ServerConfig) {
	if config.AccessMode == "" {
		config.AccessMode = "readonly"
	}
	if config.Pool.MaxConns == 0 {
		config.Pool.MaxConns = 5
	}
	if config.Query.DefaultTimeoutSeconds == 0 {
		config.Query.DefaultTimeoutSeconds = 30
	}
	if config.Query.MetadataTimeoutSeconds == 0 {
		config.Query.MetadataTimeoutSeconds = 10
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
}

// resolveConnectDefaults turns the config-file connection block plus the
// REDSHIFT_PASSWORD environment variable into ConnectParams. The password
// never lives in the config file.
func resolveConnectDefaults(conn rsmcp.ConnectionConfig) rsmcp.ConnectParams {
	params := rsmcp.ConnectParams{
		Host:     conn.Host,
		Port:     conn.Port,
		Database: conn.Database,
		User:     conn.User,
		Password: os.Getenv("REDSHIFT_PASSWORD"),
		SSLMode:  conn.SSLMode,
	}
	if params.Port == 0 {
		params.Port = 5439
	}
	return params
}

func setupLogger(config rsmcp.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
