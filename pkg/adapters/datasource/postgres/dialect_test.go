//go:build postgres || all_adapters

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

func TestDialect_Translate(t *testing.T) {
	d := NewDialect()

	plan, err := enginesql.Parse("SELECT TOP 5 name FROM employees WHERE salary > 50000")
	require.NoError(t, err)

	stmt, params, err := d.Translate(plan)
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees WHERE salary > $1 LIMIT 5", stmt)
	require.Len(t, params, 1)
	assert.Equal(t, int64(50000), params[0])
}

func TestDialect_TranslateRenamesFunctions(t *testing.T) {
	d := NewDialect()

	plan, err := enginesql.Parse("SELECT name FROM employees WHERE hired_at > GETDATE()")
	require.NoError(t, err)

	stmt, _, err := d.Translate(plan)
	require.NoError(t, err)
	assert.Contains(t, stmt, "NOW()")
}

func TestDialect_TranslateRejectsTSQLDateMath(t *testing.T) {
	d := NewDialect()

	plan, err := enginesql.Parse("SELECT name FROM employees WHERE hired_at > DATEADD(day, -30, GETDATE())")
	require.NoError(t, err)

	_, _, err = d.Translate(plan)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnsupportedConstruct, apperrors.KindOf(err))
}

func TestDialect_QuoteIdentifier(t *testing.T) {
	d := NewDialect()
	assert.Equal(t, `"employees"`, d.QuoteIdentifier("employees"))
	assert.Equal(t, `"odd""name"`, d.QuoteIdentifier(`odd"name`))
}

func TestDialect_Placeholder(t *testing.T) {
	d := NewDialect()
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$12", d.Placeholder(12))
}
