package rsmcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/redshift-tools/redshift-mcp/internal/classify"
)

// Query executes a read statement and returns only QueryOutput. All errors
// (classifier denials, Redshift errors, Go errors) are converted to
// output.Error, with matching guidance hints appended — callers only need
// to check output.Error, never a Go error.
func (p *RedshiftMcp) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sql := input.SQL

	// 1. Acquire semaphore (respects context cancellation to prevent deadlock)
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return p.queryError(fmt.Errorf("failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(p.semaphore), ctx.Err()))
	}
	defer func() { <-p.semaphore }()

	// 2. Check SQL length before any other processing
	if len(sql) > p.config.Query.MaxSQLLength {
		return p.queryError(fmt.Errorf("SQL statement too long: %d bytes exceeds maximum of %d bytes", len(sql), p.config.Query.MaxSQLLength))
	}

	// 3. Classifier gate: a deny returns before the database is touched
	if decision := classify.Classify(sql, p.mode); !decision.Allowed {
		return p.queryError(errors.New(decision.Reason))
	}

	// 4. Resolve timeout
	timeoutDur, timeoutRule := p.timeouts.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, timeoutDur)
	defer cancel()

	// 5. Execute against the live pool
	pool, err := p.livePool()
	if err != nil {
		return p.queryError(err)
	}

	rows, err := pool.Query(queryCtx, sql, input.Params...)
	if err != nil {
		return p.queryError(err)
	}

	// 6. Collect results
	result, err := p.collectRows(rows)
	if err != nil {
		return p.queryError(err)
	}

	// 7. Apply redaction (per-field, recursive into SUPER/arrays)
	redacted := p.redactor.HasRules()
	result.Rows = p.redactor.ApplyRows(result.Rows)

	// 8. Apply max result length truncation
	p.truncateIfNeeded(result)

	// 9. Log execution with pipeline details
	logEvent := p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", result.RowCount)
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if redacted {
		logEvent = logEvent.Bool("redacted", true)
	}
	logEvent.Msg("query executed")

	return result
}

// collectRows reads all rows from pgx.Rows and returns a QueryOutput.
func (p *RedshiftMcp) collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{Columns: columns, Rows: resultRows, RowCount: len(resultRows)}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
// Covers the types Redshift serves over the wire: timestamps, floats with
// NaN/Inf, numerics, times, intervals, uuid, varbyte, and SUPER values
// (nested maps/arrays).
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		us := val.Microseconds
		hours := us / 3_600_000_000
		us -= hours * 3_600_000_000
		minutes := us / 60_000_000
		us -= minutes * 60_000_000
		seconds := us / 1_000_000
		us -= seconds * 1_000_000
		if us > 0 {
			return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, us)
		}
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		return formatInterval(val)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// varbyte — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	case string:
		return val
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = convertValue(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertValue(item)
		}
		return result
	default:
		return val
	}
}

func convertFloat(f float64) any {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}

func formatInterval(val pgtype.Interval) string {
	var parts []string
	if val.Months != 0 {
		years := val.Months / 12
		months := val.Months % 12
		if years != 0 {
			parts = append(parts, fmt.Sprintf("%d year(s)", years))
		}
		if months != 0 {
			parts = append(parts, fmt.Sprintf("%d mon(s)", months))
		}
	}
	if val.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
	}
	if val.Microseconds != 0 {
		dur := time.Duration(val.Microseconds) * time.Microsecond
		parts = append(parts, dur.String())
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " ")
}

// enrichError appends matching guidance hints to an error message and logs
// it. Shared by the Query and Execute error paths.
func (p *RedshiftMcp) enrichError(err error) string {
	errMsg := err.Error()
	hints := p.guidance.Hints(errMsg)
	patterns := p.guidance.MatchedPatterns(errMsg)

	logEvent := p.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("guidance", patterns)
	}
	logEvent.Msg("statement error")

	if hints != "" {
		errMsg = errMsg + "\n\n" + hints
	}
	return errMsg
}

func (p *RedshiftMcp) queryError(err error) *QueryOutput {
	return &QueryOutput{Error: p.enrichError(err)}
}

// truncateIfNeeded truncates query output rows if they exceed
// MaxResultLength (in characters).
func (p *RedshiftMcp) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= p.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:p.config.Query.MaxResultLength])
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
