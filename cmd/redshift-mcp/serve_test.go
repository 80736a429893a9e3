package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	rsmcp "github.com/redshift-tools/redshift-mcp"
)

// validServerConfig returns a minimal valid ServerConfig for testing.
func validServerConfig() rsmcp.ServerConfig {
	return rsmcp.ServerConfig{
		Config: rsmcp.Config{
			AccessMode: "readonly",
			Pool:       rsmcp.PoolConfig{MaxConns: 5},
			Query: rsmcp.QueryConfig{
				DefaultTimeoutSeconds:  30,
				MetadataTimeoutSeconds: 10,
			},
		},
		Server: rsmcp.ServerSettings{
			Port: 8000,
		},
		Connection: rsmcp.ConnectionConfig{
			Host:     "cluster.example.redshift.amazonaws.com",
			Port:     5439,
			Database: "analytics",
			User:     "mcp_agent",
		},
	}
}

func writeConfigFile(t *testing.T, dir string, config rsmcp.ServerConfig) string {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// clearRedshiftEnv unsets every environment variable serve reads so tests
// are isolated from the ambient environment.
// Note: Tests using t.Setenv() cannot use t.Parallel() in Go.
func clearRedshiftEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDSHIFT_MCP_CONFIG_PATH",
		"REDSHIFT_HOST",
		"REDSHIFT_PORT",
		"REDSHIFT_DATABASE",
		"REDSHIFT_USER",
		"REDSHIFT_PASSWORD",
		"REDSHIFT_SSLMODE",
		"DB_MCP_MODE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfigValid(t *testing.T) {
	clearRedshiftEnv(t)
	dir := t.TempDir()
	cfg := validServerConfig()
	path := writeConfigFile(t, dir, cfg)

	t.Setenv("REDSHIFT_MCP_CONFIG_PATH", path)

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Port != 8000 {
		t.Fatalf("expected port 8000, got %d", loaded.Server.Port)
	}
	if loaded.Pool.MaxConns != 5 {
		t.Fatalf("expected max_conns 5, got %d", loaded.Pool.MaxConns)
	}
	if loaded.AccessMode != "readonly" {
		t.Fatalf("expected access_mode 'readonly', got %q", loaded.AccessMode)
	}
	if loaded.Connection.Host != "cluster.example.redshift.amazonaws.com" {
		t.Fatalf("expected cluster host, got %q", loaded.Connection.Host)
	}
	if loaded.Connection.Port != 5439 {
		t.Fatalf("expected connection port 5439, got %d", loaded.Connection.Port)
	}
	if loaded.Connection.Database != "analytics" {
		t.Fatalf("expected database 'analytics', got %q", loaded.Connection.Database)
	}
}

func TestLoadConfigMissingDefaultPathIsNotAnError(t *testing.T) {
	clearRedshiftEnv(t)
	// Run from an empty directory so .redshift-mcp/config.json is absent.
	t.Chdir(t.TempDir())

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error for missing default config: %v", err)
	}
	if loaded.Server.Port != 0 {
		t.Fatalf("expected zero config, got port %d", loaded.Server.Port)
	}
}

func TestLoadConfigMissingExplicitPathIsAnError(t *testing.T) {
	clearRedshiftEnv(t)
	t.Setenv("REDSHIFT_MCP_CONFIG_PATH", "/nonexistent/path/config.json")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/config.json") {
		t.Fatalf("expected error to contain config path, got %q", err.Error())
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	clearRedshiftEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	t.Setenv("REDSHIFT_MCP_CONFIG_PATH", path)

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %q", err.Error())
	}
}

func TestEnvOverridesWinOverConfigFile(t *testing.T) {
	clearRedshiftEnv(t)
	t.Setenv("REDSHIFT_HOST", "other.example.com")
	t.Setenv("REDSHIFT_PORT", "5440")
	t.Setenv("REDSHIFT_DATABASE", "dev")
	t.Setenv("REDSHIFT_USER", "alice")
	t.Setenv("DB_MCP_MODE", "readwrite")

	config := validServerConfig()
	if err := applyEnvOverrides(&config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Connection.Host != "other.example.com" {
		t.Fatalf("expected env host to win, got %q", config.Connection.Host)
	}
	if config.Connection.Port != 5440 {
		t.Fatalf("expected env port 5440, got %d", config.Connection.Port)
	}
	if config.Connection.Database != "dev" {
		t.Fatalf("expected env database 'dev', got %q", config.Connection.Database)
	}
	if config.Connection.User != "alice" {
		t.Fatalf("expected env user 'alice', got %q", config.Connection.User)
	}
	if config.AccessMode != "readwrite" {
		t.Fatalf("expected DB_MCP_MODE to win, got %q", config.AccessMode)
	}
}

func TestEnvOverridesLeaveConfigWhenUnset(t *testing.T) {
	clearRedshiftEnv(t)

	config := validServerConfig()
	if err := applyEnvOverrides(&config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Connection.Host != "cluster.example.redshift.amazonaws.com" {
		t.Fatalf("expected config host to survive, got %q", config.Connection.Host)
	}
	if config.AccessMode != "readonly" {
		t.Fatalf("expected config access mode to survive, got %q", config.AccessMode)
	}
}

func TestEnvOverridesInvalidPort(t *testing.T) {
	clearRedshiftEnv(t)
	t.Setenv("REDSHIFT_PORT", "not-a-port")

	config := validServerConfig()
	err := applyEnvOverrides(&config)
	if err == nil {
		t.Fatal("expected error for invalid REDSHIFT_PORT")
	}
	if !strings.Contains(err.Error(), "REDSHIFT_PORT") {
		t.Fatalf("expected error to name REDSHIFT_PORT, got %q", err.Error())
	}
}

func TestServerDefaultsForEmptyConfig(t *testing.T) {
	config := rsmcp.ServerConfig{}
	applyServerDefaults(&config)

	if config.AccessMode != "readonly" {
		t.Fatalf("expected default access_mode 'readonly', got %q", config.AccessMode)
	}
	if config.Pool.MaxConns != 5 {
		t.Fatalf("expected default max_conns 5, got %d", config.Pool.MaxConns)
	}
	if config.Query.DefaultTimeoutSeconds != 30 {
		t.Fatalf("expected default timeout 30s, got %d", config.Query.DefaultTimeoutSeconds)
	}
	if config.Query.MetadataTimeoutSeconds != 10 {
		t.Fatalf("expected metadata timeout 10s, got %d", config.Query.MetadataTimeoutSeconds)
	}
	if config.Server.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", config.Server.Port)
	}
}

func TestServerDefaultsDoNotOverrideSetValues(t *testing.T) {
	config := validServerConfig()
	config.Server.Port = 9000
	config.AccessMode = "admin"
	applyServerDefaults(&config)

	if config.Server.Port != 9000 {
		t.Fatalf("expected port 9000 to survive, got %d", config.Server.Port)
	}
	if config.AccessMode != "admin" {
		t.Fatalf("expected access_mode 'admin' to survive, got %q", config.AccessMode)
	}
}

func TestResolveConnectDefaults(t *testing.T) {
	clearRedshiftEnv(t)
	t.Setenv("REDSHIFT_PASSWORD", "hunter2")

	params := resolveConnectDefaults(rsmcp.ConnectionConfig{
		Host:     "cluster.example.redshift.amazonaws.com",
		Database: "analytics",
		User:     "mcp_agent",
	})

	if params.Password != "hunter2" {
		t.Fatalf("expected password from REDSHIFT_PASSWORD, got %q", params.Password)
	}
	if params.Port != 5439 {
		t.Fatalf("expected default Redshift port 5439, got %d", params.Port)
	}
	if params.Host != "cluster.example.redshift.amazonaws.com" {
		t.Fatalf("expected host from config, got %q", params.Host)
	}
}

func TestResolveConnectDefaultsKeepsConfiguredPort(t *testing.T) {
	clearRedshiftEnv(t)

	params := resolveConnectDefaults(rsmcp.ConnectionConfig{Port: 5440})
	if params.Port != 5440 {
		t.Fatalf("expected configured port 5440, got %d", params.Port)
	}
	if params.Password != "" {
		t.Fatalf("expected empty password, got %q", params.Password)
	}
}
