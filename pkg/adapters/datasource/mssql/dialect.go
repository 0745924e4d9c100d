//go:build mssql || all_adapters

package mssql

import (
	"fmt"
	"strings"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// Dialect renders logical plans as T-SQL with @pN parameter
// placeholders. LIMIT clauses become TOP.
type Dialect struct{}

func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string {
	return "sqlserver"
}

// Placeholder returns the @pN bind marker for the 1-based position.
func (d *Dialect) Placeholder(position int) string {
	return fmt.Sprintf("@p%d", position)
}

// QuoteIdentifier safely quotes a SQL identifier using SQL Server
// bracket quoting.
func (d *Dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *Dialect) Translate(plan *enginesql.LogicalPlan) (string, []any, error) {
	return datasource.TranslatePlan(plan, datasource.TranslationRules{
		Name:        d.Name(),
		Placeholder: d.Placeholder,
		FuncRenames: map[string]string{
			"NOW":    "GETDATE",
			"LENGTH": "LEN",
			"SUBSTR": "SUBSTRING",
		},
		UnsupportedFuncs: map[string]bool{
			// PostgreSQL date functions with no argument-compatible
			// T-SQL spelling.
			"DATE_TRUNC":   true,
			"EXTRACT":      true,
			"AGE":          true,
			"TO_CHAR":      true,
			"CURRENT_DATE": true,
		},
		NativeLimit: false,
	})
}

var _ datasource.Dialect = (*Dialect)(nil)
