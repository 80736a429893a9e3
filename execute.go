package rsmcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redshift-tools/redshift-mcp/internal/classify"
)

// Execute runs a write or DDL statement inside a transaction: commit on
// success, rollback on error. Like Query, it never returns a Go error —
// every failure lands in output.Error with guidance hints appended.
func (p *RedshiftMcp) Execute(ctx context.Context, input ExecuteInput) *ExecuteOutput {
	startTime := time.Now()
	sql := input.SQL

	// 1. Acquire semaphore
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return p.executeError(fmt.Errorf("failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(p.semaphore), ctx.Err()))
	}
	defer func() { <-p.semaphore }()

	// 2. Check SQL length
	if len(sql) > p.config.Query.MaxSQLLength {
		return p.executeError(fmt.Errorf("SQL statement too long: %d bytes exceeds maximum of %d bytes", len(sql), p.config.Query.MaxSQLLength))
	}

	// 3. Classifier gate
	if decision := classify.Classify(sql, p.mode); !decision.Allowed {
		return p.executeError(errors.New(decision.Reason))
	}

	// 4. Resolve timeout
	timeoutDur, timeoutRule := p.timeouts.Resolve(sql)
	execCtx, cancel := context.WithTimeout(ctx, timeoutDur)
	defer cancel()

	// 5. Run in a transaction
	pool, err := p.livePool()
	if err != nil {
		return p.executeError(err)
	}

	tx, err := pool.Begin(execCtx)
	if err != nil {
		return p.executeError(err)
	}
	// Rollback with parent ctx: if the statement timed out, execCtx is
	// already cancelled and rollback would fail.
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(execCtx, sql, input.Params...)
	if err != nil {
		return p.executeError(err)
	}

	if err := tx.Commit(execCtx); err != nil {
		return p.executeError(err)
	}

	result := &ExecuteOutput{RowsAffected: tag.RowsAffected()}

	logEvent := p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int64("rows_affected", result.RowsAffected)
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	logEvent.Msg("statement executed")

	return result
}

func (p *RedshiftMcp) executeError(err error) *ExecuteOutput {
	return &ExecuteOutput{Error: p.enrichError(err)}
}
