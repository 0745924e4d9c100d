//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/logging"
)

// Adapter provides PostgreSQL connectivity: bounded query execution
// and schema introspection, plus the dialect translator.
type Adapter struct {
	*Dialect
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAdapter connects a PostgreSQL adapter. The pool is owned by the
// adapter and released on Close.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger = logger.Named("postgres-adapter")

	connStr := buildConnectionString(cfg)
	logger.Debug("connecting", zap.String("dsn", logging.SanitizeConnectionString(connStr)))

	poolCfg, err := poolConfig(connStr)
	if err != nil {
		logger.Error("failed to parse connection string",
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to create pool",
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{
		Dialect: NewDialect(),
		pool:    pool,
		logger:  logger,
	}, nil
}

// Query runs a parameterized SELECT with bounded results. The query is
// always wrapped with a LIMIT subselect so results stay bounded even
// when the statement carries none.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	limit = datasource.EffectiveLimit(limit)
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, limit)

	rows, err := a.pool.Query(ctx, wrapped, params...)
	if err != nil {
		a.logger.Warn("query failed",
			zap.String("query", logging.TruncateQuery(sqlQuery)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: string(fd.Name),
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any)
		for i, col := range columns {
			rowMap[col.Name] = values[i]
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

// poolConfig parses the connection string and forces every session
// into read-only transactions, so even a statement that slipped past
// validation cannot write.
func poolConfig(connStr string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	return poolCfg, nil
}

// TestConnection verifies the database is reachable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type
// names. Unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 17:
		return "BYTEA"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 114:
		return "JSON"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}

var _ datasource.Adapter = (*Adapter)(nil)
