// Package datasource defines the dialect adapter boundary: schema
// introspection for catalog sync, plan translation into executable
// dialect SQL, and bounded parameterized query execution. Concrete
// dialects live in subpackages and register themselves by explicit
// dialect tag.
package datasource

import (
	"context"

	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// SchemaExtractor extracts database schema information. Used to build
// catalog snapshots.
type SchemaExtractor interface {
	// GetTables returns all user tables in the database.
	GetTables(ctx context.Context) ([]Table, error)

	// GetColumns returns columns for a specific table.
	GetColumns(ctx context.Context, table string) ([]Column, error)

	// GetForeignKeys returns foreign key relationships for a table.
	GetForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
}

// Dialect translates a validated logical plan into executable SQL for
// one backend. Literals are replaced with the dialect's parameter
// placeholders and returned as ordered bind values; constructs the
// dialect cannot express produce an UnsupportedConstruct error.
type Dialect interface {
	// Name returns the dialect tag ("postgres", "sqlserver").
	Name() string

	// Translate renders the plan as dialect SQL plus bind values.
	Translate(plan *enginesql.LogicalPlan) (string, []any, error)

	// QuoteIdentifier safely quotes a table or column name.
	QuoteIdentifier(name string) string

	// Placeholder returns the bind marker for the 1-based position.
	Placeholder(position int) string
}

// QueryExecutor executes parameterized SELECT statements against a
// datasource. All queries are bounded: implementations wrap the
// statement with a dialect row limit. Each implementation owns its
// connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a parameterized SELECT with bounded results. The
	// statement must already use the dialect's placeholder syntax.
	//
	// Limit behavior:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	//   - otherwise: uses the specified limit
	Query(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error)

	// TestConnection verifies the database is reachable.
	TestConnection(ctx context.Context) error

	// Close releases any resources held by the executor.
	Close() error
}

// Adapter bundles the per-backend capabilities the engine needs.
type Adapter interface {
	SchemaExtractor
	QueryExecutor
	Dialect
}

// Table represents a database table.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Column represents a database column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// ForeignKey represents a foreign key relationship.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// MaxQueryLimit is the hard cap on rows returned by Query. This
// protects against unbounded queries that could exhaust the engine.
const MaxQueryLimit = 1000

// ColumnInfo describes a result column with database-agnostic type
// information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// EffectiveLimit normalizes a requested row limit against
// MaxQueryLimit.
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
