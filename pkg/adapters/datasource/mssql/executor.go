//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/logging"
)

// Adapter provides SQL Server connectivity: bounded query execution
// and schema introspection, plus the dialect translator.
type Adapter struct {
	*Dialect
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter connects a SQL Server adapter. The connection is owned by
// the adapter and released on Close.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger = logger.Named("mssql-adapter")

	connStr := buildConnectionString(cfg)
	logger.Debug("connecting", zap.String("dsn", logging.SanitizeConnectionString(connStr)))

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlserver: %w", err)
	}

	return &Adapter{
		Dialect: NewDialect(),
		db:      db,
		logger:  logger,
	}, nil
}

// newAdapterWithDB wires an adapter over an existing connection, for
// tests against a mocked driver.
func newAdapterWithDB(db *sql.DB, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{Dialect: NewDialect(), db: db, logger: logger}
}

// Query runs a parameterized SELECT with bounded results. The query is
// always wrapped with a TOP subselect so results stay bounded even
// when the statement carries none.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	limit = datasource.EffectiveLimit(limit)
	wrapped := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", limit, sqlQuery)

	rows, err := a.db.QueryContext(ctx, wrapped, params...)
	if err != nil {
		a.logger.Warn("query failed",
			zap.String("query", logging.TruncateQuery(sqlQuery)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	columns := make([]datasource.ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = datasource.ColumnInfo{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any)
		for i, col := range columns {
			rowMap[col.Name] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// TestConnection verifies the database is reachable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlserver ping failed: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// normalizeValue converts driver byte slices to strings so result
// rows are JSON friendly.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

var _ datasource.Adapter = (*Adapter)(nil)
