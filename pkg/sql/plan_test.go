package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPlan(t *testing.T, input string) *LogicalPlan {
	t.Helper()
	normalized, err := Normalize(input)
	require.NoError(t, err)
	tokens, err := tokenize(normalized)
	require.NoError(t, err)
	return buildPlan(normalized, tokens)
}

func TestBuildPlan_TablesAndAliases(t *testing.T) {
	plan := mustPlan(t, "SELECT e.name FROM employees e JOIN departments AS d ON e.department_id = d.id")

	require.Len(t, plan.Tables, 2)
	assert.Equal(t, "employees", plan.Tables[0].Name)
	assert.Equal(t, "e", plan.Tables[0].Alias)
	assert.Equal(t, "departments", plan.Tables[1].Name)
	assert.Equal(t, "d", plan.Tables[1].Alias)

	name, ok := plan.ResolveTable("E")
	assert.True(t, ok)
	assert.Equal(t, "employees", name)

	require.Len(t, plan.JoinConds, 1)
	assert.Equal(t, "department_id", plan.JoinConds[0].Left.Column)
	assert.Equal(t, "id", plan.JoinConds[0].RightColumn.Column)
}

func TestBuildPlan_LiteralSpans(t *testing.T) {
	sqlText := "SELECT name FROM employees WHERE salary > 50000 AND name LIKE 'A%'"
	plan := mustPlan(t, sqlText)

	require.Len(t, plan.Literals, 2)

	num := plan.Literals[0]
	assert.Equal(t, "50000", num.Value)
	assert.Equal(t, LiteralNumber, num.Class)
	assert.Equal(t, "50000", sqlText[num.Start:num.End])

	str := plan.Literals[1]
	assert.Equal(t, "A%", str.Value)
	assert.Equal(t, LiteralString, str.Class)
	assert.Equal(t, "'A%'", sqlText[str.Start:str.End])
}

func TestBuildPlan_ComparisonKinds(t *testing.T) {
	plan := mustPlan(t, "SELECT name FROM employees WHERE salary >= 100 AND active = true AND manager_id = id")

	require.Len(t, plan.Comparisons, 3)
	assert.Equal(t, ">=", plan.Comparisons[0].Operator)
	assert.Equal(t, LiteralNumber, plan.Comparisons[0].RightLiteral.Class)
	assert.Equal(t, LiteralBool, plan.Comparisons[1].RightLiteral.Class)
	assert.NotNil(t, plan.Comparisons[2].RightColumn)
}

func TestBuildPlan_LimitAndTop(t *testing.T) {
	withLimit := mustPlan(t, "SELECT name FROM employees LIMIT 25")
	require.NotNil(t, withLimit.Limit)
	assert.Equal(t, "25", withLimit.Limit.Count)
	assert.Equal(t, "LIMIT 25", withLimit.SQL[withLimit.Limit.Start:withLimit.Limit.End])

	withTop := mustPlan(t, "SELECT TOP 10 name FROM employees")
	require.NotNil(t, withTop.Top)
	assert.Equal(t, "10", withTop.Top.Count)
	assert.Equal(t, "TOP 10", withTop.SQL[withTop.Top.Start:withTop.Top.End])
	assert.Nil(t, withTop.Limit)

	withOffset := mustPlan(t, "SELECT name FROM employees ORDER BY name LIMIT 10 OFFSET 5")
	require.NotNil(t, withOffset.Offset)
	assert.Equal(t, "5", withOffset.Offset.Count)
	assert.Equal(t, "OFFSET 5", withOffset.SQL[withOffset.Offset.Start:withOffset.Offset.End])
	assert.Empty(t, withOffset.Literals)
}

func TestBuildPlan_SelectItems(t *testing.T) {
	plan := mustPlan(t, "SELECT d.name AS department, COUNT(*) AS headcount, salary pay FROM employees GROUP BY d.name")

	require.Len(t, plan.Select, 3)
	assert.Equal(t, "department", plan.Select[0].Alias)
	assert.False(t, plan.Select[0].Aggregate)
	assert.True(t, plan.Select[1].Aggregate)
	assert.Equal(t, "headcount", plan.Select[1].Alias)
	assert.Equal(t, "pay", plan.Select[2].Alias)
	assert.True(t, plan.Aggregated())
	require.Len(t, plan.GroupBy, 1)
	assert.Equal(t, "d.name", plan.GroupBy[0].String())
}

func TestBuildPlan_FunctionSpans(t *testing.T) {
	sqlText := "SELECT name FROM employees WHERE hired_at > NOW()"
	plan := mustPlan(t, sqlText)

	require.Len(t, plan.Funcs, 1)
	fn := plan.Funcs[0]
	assert.Equal(t, "NOW", fn.Name)
	assert.Equal(t, "NOW", sqlText[fn.Start:fn.End])
}

func TestBuildPlan_DerivedSources(t *testing.T) {
	plan := mustPlan(t, "SELECT t.total FROM (SELECT SUM(salary) AS total FROM employees) t")
	assert.True(t, plan.HasDerived)

	name, ok := plan.ResolveTable("t")
	assert.True(t, ok)
	assert.Empty(t, name)

	cte := mustPlan(t, "WITH recent AS (SELECT id FROM employees) SELECT recent.id FROM recent")
	assert.True(t, cte.HasDerived)
	require.NotEmpty(t, cte.Tables)
}

func TestBuildPlan_StarAndDistinct(t *testing.T) {
	plan := mustPlan(t, "SELECT DISTINCT e.* FROM employees e")
	assert.True(t, plan.Distinct)
	require.Len(t, plan.Select, 1)
	assert.True(t, plan.Select[0].Star)
}

func TestBuildPlan_CommentsStripped(t *testing.T) {
	plan := mustPlan(t, "SELECT name -- trailing note\nFROM employees /* block */ WHERE id = 1")
	require.Len(t, plan.Tables, 1)
	assert.Equal(t, "employees", plan.Tables[0].Name)
	require.Len(t, plan.Literals, 1)
}
