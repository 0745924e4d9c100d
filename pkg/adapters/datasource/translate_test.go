package datasource

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

func dollarRules() TranslationRules {
	return TranslationRules{
		Name:        "postgres",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		FuncRenames: map[string]string{"GETDATE": "NOW"},
		UnsupportedFuncs: map[string]bool{
			"DATEADD": true,
		},
		NativeLimit: true,
	}
}

func atRules() TranslationRules {
	return TranslationRules{
		Name:        "sqlserver",
		Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		FuncRenames: map[string]string{"NOW": "GETDATE"},
		NativeLimit: false,
	}
}

func parsePlan(t *testing.T, input string) *enginesql.LogicalPlan {
	t.Helper()
	plan, err := enginesql.Parse(input)
	require.NoError(t, err)
	return plan
}

func TestTranslatePlan_LiteralsBecomeParameters(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees WHERE salary > 50000 AND name LIKE 'A%'")

	stmt, params, err := TranslatePlan(plan, dollarRules())
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees WHERE salary > $1 AND name LIKE $2", stmt)
	require.Len(t, params, 2)
	assert.Equal(t, int64(50000), params[0])
	assert.Equal(t, "A%", params[1])
}

func TestTranslatePlan_BooleanAndFloatValues(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees WHERE active = true AND rate < 9.5")

	_, params, err := TranslatePlan(plan, dollarRules())
	require.NoError(t, err)

	require.Len(t, params, 2)
	assert.Equal(t, true, params[0])
	assert.Equal(t, 9.5, params[1])
}

func TestTranslatePlan_TopBecomesLimit(t *testing.T) {
	plan := parsePlan(t, "SELECT TOP 10 name FROM employees")

	stmt, _, err := TranslatePlan(plan, dollarRules())
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees LIMIT 10", stmt)
}

func TestTranslatePlan_LimitBecomesTop(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees ORDER BY name LIMIT 25")

	stmt, _, err := TranslatePlan(plan, atRules())
	require.NoError(t, err)

	assert.Equal(t, "SELECT TOP (25) name FROM employees ORDER BY name", stmt)
}

func TestTranslatePlan_FunctionRename(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees WHERE hired_at > GETDATE()")

	stmt, _, err := TranslatePlan(plan, dollarRules())
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees WHERE hired_at > NOW()", stmt)
}

func TestTranslatePlan_UnsupportedFunction(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees WHERE hired_at > DATEADD(day, 1, hired_at)")

	_, _, err := TranslatePlan(plan, dollarRules())
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindUnsupportedConstruct, appErr.Kind)
	assert.False(t, appErr.Retryable)
	assert.Contains(t, err.Error(), "DATEADD")
}

func TestTranslatePlan_ParameterOrderFollowsPosition(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees WHERE department_id = 3 AND name LIKE 'B%' AND salary >= 1000")

	stmt, params, err := TranslatePlan(plan, atRules())
	require.NoError(t, err)

	assert.Contains(t, stmt, "@p1")
	assert.Contains(t, stmt, "@p2")
	assert.Contains(t, stmt, "@p3")
	require.Len(t, params, 3)
	assert.Equal(t, int64(3), params[0])
	assert.Equal(t, "B%", params[1])
	assert.Equal(t, int64(1000), params[2])
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(0))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(-5))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(MaxQueryLimit+1))
	assert.Equal(t, 10, EffectiveLimit(10))
}

func TestTranslatePlan_OffsetBecomesFetch(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees ORDER BY name LIMIT 10 OFFSET 5")

	stmt, _, err := TranslatePlan(plan, atRules())
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees ORDER BY name OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY", stmt)
}

func TestTranslatePlan_OffsetAloneBecomesRowsClause(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees ORDER BY name OFFSET 5")

	stmt, _, err := TranslatePlan(plan, atRules())
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees ORDER BY name OFFSET 5 ROWS", stmt)
}

func TestTranslatePlan_OffsetWithoutOrderByUnsupported(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees LIMIT 10 OFFSET 5")

	_, _, err := TranslatePlan(plan, atRules())
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindUnsupportedConstruct, appErr.Kind)
	assert.Contains(t, err.Error(), "OFFSET")
}

func TestTranslatePlan_OffsetUntouchedWithNativeLimit(t *testing.T) {
	plan := parsePlan(t, "SELECT name FROM employees ORDER BY name LIMIT 10 OFFSET 5")

	stmt, _, err := TranslatePlan(plan, dollarRules())
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees ORDER BY name LIMIT 10 OFFSET 5", stmt)
}
