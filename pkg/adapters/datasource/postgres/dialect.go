//go:build postgres || all_adapters

package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// Dialect renders logical plans as PostgreSQL SQL with $n parameter
// placeholders. LIMIT is native; TOP clauses are converted.
type Dialect struct{}

func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string {
	return "postgres"
}

// Placeholder returns the $n bind marker for the 1-based position.
func (d *Dialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

// QuoteIdentifier safely quotes a SQL identifier to prevent SQL
// injection. Uses PostgreSQL's standard double-quote quoting.
func (d *Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (d *Dialect) Translate(plan *enginesql.LogicalPlan) (string, []any, error) {
	return datasource.TranslatePlan(plan, datasource.TranslationRules{
		Name:        d.Name(),
		Placeholder: d.Placeholder,
		FuncRenames: map[string]string{
			"GETDATE": "NOW",
			"LEN":     "LENGTH",
			"ISNULL":  "COALESCE",
		},
		UnsupportedFuncs: map[string]bool{
			// T-SQL date arithmetic has no argument-compatible
			// PostgreSQL spelling.
			"DATEADD":   true,
			"DATEDIFF":  true,
			"CHARINDEX": true,
			"IIF":       true,
		},
		NativeLimit: true,
	})
}

var _ datasource.Dialect = (*Dialect)(nil)
