// Package audit emits one structured log entry per finished MCP tool call.
package audit

import (
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var bearerTokenPattern = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`)

// secretArgKeys are tool-argument names whose values are never logged.
// The connect tool carries a password; everything matching here is masked.
var secretArgKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"authorization": true,
}

// Completion captures one finalized tool-call outcome.
type Completion struct {
	Tool          string
	AccessMode    string
	Arguments     map[string]any
	RequestBytes  int
	ResponseBytes int
	Duration      time.Duration
	ErrorDetail   string
}

// Recorder writes completion entries through zerolog.
type Recorder struct {
	logger zerolog.Logger
}

// NewRecorder creates a Recorder tagged as the audit component.
func NewRecorder(logger zerolog.Logger) *Recorder {
	return &Recorder{logger: logger.With().Str("component", "audit").Logger()}
}

// Complete writes a single entry for one tool call.
func (r *Recorder) Complete(event Completion) {
	if r == nil {
		return
	}

	tool := strings.TrimSpace(event.Tool)
	if tool == "" {
		tool = "unknown"
	}
	duration := event.Duration
	if duration < 0 {
		duration = 0
	}

	entry := r.logger.Info().
		Str("event", "mcp.tool_call.completed").
		Str("tool", tool).
		Str("access_mode", strings.TrimSpace(event.AccessMode)).
		Int("request_bytes", event.RequestBytes).
		Int("response_bytes", event.ResponseBytes).
		Int64("duration_ms", duration.Milliseconds())

	if args := MaskArguments(event.Arguments); len(args) > 0 {
		entry = entry.Interface("arguments", args)
	}
	if detail := RedactSensitiveText(event.ErrorDetail); detail != "" {
		entry = entry.Str("error_detail", detail)
	}

	entry.Msg("tool call completed")
}

// MaskArguments returns a copy of args with secret-bearing values replaced
// by a marker. SQL text is truncated so log entries stay bounded.
func MaskArguments(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	masked := make(map[string]any, len(args))
	for k, v := range args {
		if secretArgKeys[strings.ToLower(k)] {
			masked[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok && len(s) > 200 {
			masked[k] = s[:200] + "...[truncated]"
			continue
		}
		masked[k] = v
	}
	return masked
}

// RedactSensitiveText removes obvious secrets from free-text error details.
func RedactSensitiveText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return bearerTokenPattern.ReplaceAllString(trimmed, "Bearer [REDACTED]")
}
