package sandbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/config"
)

// stubExecutor is a scriptable QueryExecutor.
type stubExecutor struct {
	result    *datasource.QueryExecutionResult
	err       error
	lastStmt  string
	lastLimit int
	calls     int
}

func (s *stubExecutor) Query(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	s.calls++
	s.lastStmt = sqlQuery
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubExecutor) TestConnection(ctx context.Context) error { return nil }

func (s *stubExecutor) Close() error { return nil }

func rowsResult(n int) *datasource.QueryExecutionResult {
	res := &datasource.QueryExecutionResult{
		Columns:  []datasource.ColumnInfo{{Name: "id", Type: "INT4"}, {Name: "name", Type: "TEXT"}},
		RowCount: n,
	}
	for i := 0; i < n; i++ {
		res.Rows = append(res.Rows, map[string]any{"id": i, "name": fmt.Sprintf("row-%d", i)})
	}
	return res
}

func newSandbox(maxRows int) *Sandbox {
	return New(config.ExecutionConfig{Timeout: time.Second, MaxRows: maxRows}, zap.NewNop())
}

func TestExecuteMapsResult(t *testing.T) {
	exec := &stubExecutor{result: rowsResult(2)}
	sb := newSandbox(10)

	result, err := sb.Execute(context.Background(), exec, "SELECT id, name FROM employees WHERE id > $1", []any{int64(5)})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name FROM employees WHERE id > $1", exec.lastStmt)
	assert.Equal(t, 11, exec.lastLimit) // one past the cap to observe truncation
	assert.Equal(t, 2, result.RowCount)
	assert.False(t, result.Truncated)
	assert.Equal(t, "id", result.Columns[0].Name)
	assert.Equal(t, "TEXT", result.Columns[1].Type)
	assert.GreaterOrEqual(t, result.Elapsed, time.Duration(0))
}

func TestExecuteTruncatesAtRowCap(t *testing.T) {
	exec := &stubExecutor{result: rowsResult(3)}
	sb := newSandbox(2)

	result, err := sb.Execute(context.Background(), exec, "SELECT * FROM employees", nil)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 2, result.RowCount)
	assert.Len(t, result.Rows, 2)
}

func TestExecuteTruncationAtHardLimit(t *testing.T) {
	// At the hard cap there is no room to over-fetch; a full page is
	// reported as truncated.
	exec := &stubExecutor{result: rowsResult(datasource.MaxQueryLimit)}
	sb := newSandbox(datasource.MaxQueryLimit)

	result, err := sb.Execute(context.Background(), exec, "SELECT * FROM employees", nil)
	require.NoError(t, err)

	assert.Equal(t, datasource.MaxQueryLimit, exec.lastLimit)
	assert.True(t, result.Truncated)
	assert.Equal(t, datasource.MaxQueryLimit, result.RowCount)
}

func TestExecuteRejectsInjectionParameter(t *testing.T) {
	exec := &stubExecutor{result: rowsResult(1)}
	sb := newSandbox(10)

	_, err := sb.Execute(context.Background(), exec,
		"SELECT * FROM employees WHERE name = $1", []any{"' OR 1=1 --"})
	require.Error(t, err)

	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.False(t, apperrors.IsRetryable(err))
	assert.Zero(t, exec.calls, "statement must never reach the database")
}

func TestExecuteClassifiesTimeout(t *testing.T) {
	exec := &stubExecutor{err: fmt.Errorf("query: %w", context.DeadlineExceeded)}
	sb := newSandbox(10)

	_, err := sb.Execute(context.Background(), exec, "SELECT * FROM employees", nil)
	require.Error(t, err)

	assert.Equal(t, apperrors.KindTimeout, apperrors.KindOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestExecuteClassifiesDatabaseError(t *testing.T) {
	exec := &stubExecutor{err: errors.New(`relation "employes" does not exist`)}
	sb := newSandbox(10)

	_, err := sb.Execute(context.Background(), exec, "SELECT * FROM employes", nil)
	require.Error(t, err)

	assert.Equal(t, apperrors.KindExecution, apperrors.KindOf(err))
	assert.True(t, apperrors.IsRetryable(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Detail, `relation "employes" does not exist`)
}

func TestExecutePropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &stubExecutor{err: context.Canceled}
	sb := newSandbox(10)

	_, err := sb.Execute(ctx, exec, "SELECT * FROM employees", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, apperrors.KindOf(err))
}
