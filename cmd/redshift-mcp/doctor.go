package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"

	rsmcp "github.com/redshift-tools/redshift-mcp"

	"github.com/redshift-tools/redshift-mcp/internal/classify"
	"github.com/redshift-tools/redshift-mcp/internal/meta"
)

func runDoctor() error {
	defaultPath := os.Getenv("REDSHIFT_MCP_CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = defaultConfigPath
	}

	flags := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := flags.String("config", defaultPath, "Path to configuration file")
	flags.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath)
}

func doctor(w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "redshift-mcp %s\n\n", meta.Version)

	// Load and validate config
	config, ok := doctorValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'redshift-mcp doctor' again.")
		return nil
	}

	// Print agent connection snippets
	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads the config file (optional), layers the
// environment on top exactly like serve does, and prints check results.
// Returns the resolved config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*rsmcp.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file readable (absence is fine, the server can run
	// entirely from environment variables)
	config := &rsmcp.ServerConfig{}
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		printCheck(w, useColor, true, fmt.Sprintf("Config file not found (%s), using environment variables and defaults", configPath))
	case err != nil:
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s): %v", configPath, err))
		allPassed = false
		return nil, allPassed
	default:
		printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

		if err := json.Unmarshal(data, config); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
			allPassed = false
			return nil, allPassed
		}
		printCheck(w, useColor, true, "Config file is valid JSON")
	}

	if err := applyEnvOverrides(config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Environment overrides are valid: %v", err))
		allPassed = false
		return nil, allPassed
	}
	applyServerDefaults(config)

	// Check 2: access mode is valid
	if _, err := classify.ParseMode(config.AccessMode); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("access_mode is valid: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("access_mode is valid (%s)", config.AccessMode))
	}

	// Check 3: server.port > 0
	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
	}

	// Check 4: Health check path set when enabled, and not the MCP endpoint
	if config.Server.HealthCheckEnabled {
		switch config.Server.HealthCheckPath {
		case "":
			printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
			allPassed = false
		case "/mcp":
			printCheck(w, useColor, false, "health_check_path does not collide with the /mcp endpoint")
			allPassed = false
		default:
			printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	// Check 5: Connection parameters are complete or absent. Partial
	// settings mean every connect tool call will fail the same way.
	conn := config.Connection
	var missing []string
	if conn.Host == "" {
		missing = append(missing, "host")
	}
	if conn.Database == "" {
		missing = append(missing, "database")
	}
	if conn.User == "" {
		missing = append(missing, "user")
	}
	switch len(missing) {
	case 0:
		printCheck(w, useColor, true, fmt.Sprintf("Connection parameters configured (%s@%s/%s)", conn.User, conn.Host, conn.Database))
	case 3:
		printCheck(w, useColor, true, "No connection parameters set (agent must use the connect tool)")
	default:
		printCheck(w, useColor, false, fmt.Sprintf("Connection parameters incomplete (missing %s)", strings.Join(missing, ", ")))
		allPassed = false
	}

	// Check 6: Regex patterns compile
	regexOK := true

	for i, rule := range config.Guidance {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("guidance[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Redaction {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("redaction[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return config, allPassed
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI agents.
func printAgentSnippets(w io.Writer, useColor bool, config *rsmcp.ServerConfig) {
	port := config.Server.Port
	url := fmt.Sprintf("http://localhost:%d/mcp", port)

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	// Claude Code
	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http redshift %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "redshift": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Copilot CLI
	subheading("Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "redshift": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Gemini CLI
	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "redshift": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// OpenCode
	subheading("OpenCode (opencode.json)")
	fmt.Fprintf(w, `  {
    "mcp": {
      "redshift": {
        "type": "remote",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Cursor
	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "redshift": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Windsurf
	subheading("Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "redshift": {
        "serverUrl": "%s"
      }
    }
  }
`, url)
}
