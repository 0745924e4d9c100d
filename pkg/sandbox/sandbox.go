// Package sandbox executes validated, translated SQL against a
// datasource under hard resource bounds: a statement timeout, a row
// cap, and an injection screen over every bound parameter. The
// sandbox trusts nothing upstream; a statement reaches the database
// only after every bound here holds.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/models"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// Sandbox bounds query execution. It is stateless; the executor it
// runs against arrives per call so one sandbox serves every
// datasource.
type Sandbox struct {
	timeout time.Duration
	maxRows int
	logger  *zap.Logger
}

func New(cfg config.ExecutionConfig, logger *zap.Logger) *Sandbox {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 || maxRows > datasource.MaxQueryLimit {
		maxRows = datasource.MaxQueryLimit
	}
	return &Sandbox{
		timeout: timeout,
		maxRows: maxRows,
		logger:  logger.Named("sandbox"),
	}
}

// Execute runs one parameterized statement. The statement must already
// be in the executor's dialect with literals bound as params. Failures
// classify as Timeout (retryable, no feedback) or Execution
// (retryable, with the database error as correction feedback);
// injection hits are a non-retryable security rejection.
func (s *Sandbox) Execute(ctx context.Context, exec datasource.QueryExecutor, stmt string, params []any) (*models.ExecutionResult, error) {
	if hits := enginesql.CheckParameters(params); len(hits) > 0 {
		s.logger.Warn("injection pattern in bound parameter",
			zap.Int("param_index", hits[0].ParamIndex),
			zap.String("fingerprint", hits[0].Fingerprint))
		return nil, apperrors.NewNonRetryableValidation(
			"bound parameter rejected by injection screen", hits[0].String())
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Over-fetch one row past the cap so truncation is observable.
	// At the hard limit the extra row is unavailable and a full page
	// is reported as truncated.
	fetch := s.maxRows + 1
	if fetch > datasource.MaxQueryLimit {
		fetch = datasource.MaxQueryLimit
	}

	start := time.Now()
	raw, err := exec.Query(execCtx, stmt, params, fetch)
	elapsed := time.Since(start)
	if err != nil {
		return nil, s.classify(err, execCtx, elapsed)
	}

	result := &models.ExecutionResult{
		Columns:  make([]models.ColumnMeta, len(raw.Columns)),
		Rows:     raw.Rows,
		RowCount: raw.RowCount,
		Elapsed:  elapsed,
	}
	for i, col := range raw.Columns {
		result.Columns[i] = models.ColumnMeta{Name: col.Name, Type: col.Type}
	}

	if result.RowCount > s.maxRows {
		result.Rows = result.Rows[:s.maxRows]
		result.RowCount = s.maxRows
		result.Truncated = true
	} else if fetch == datasource.MaxQueryLimit && result.RowCount == fetch {
		result.Truncated = true
	}

	s.logger.Debug("statement executed",
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

func (s *Sandbox) classify(err error, execCtx context.Context, elapsed time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("statement timed out",
			zap.Duration("timeout", s.timeout),
			zap.Duration("elapsed", elapsed))
		return apperrors.NewTimeout("execute", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// The database's own message is the correction feedback for the
	// next generation attempt.
	return apperrors.NewExecution("query execution failed",
		fmt.Sprintf("database error: %v", err), err)
}
