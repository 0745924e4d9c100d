package glossary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-inc/askdb-engine/pkg/models"
)

func testTerms() []models.GlossaryTerm {
	return []models.GlossaryTerm{
		{
			Term:       "headcount",
			Definition: "number of employees",
			Target:     "employees",
			Confidence: 0.95,
			Scope:      models.GlossaryScopeGlobal,
			Aliases:    []string{"staff count"},
		},
		{
			Term:           "engineering department",
			Target:         "departments",
			DefiningFilter: "departments.name = 'Engineering'",
			Confidence:     0.9,
			Scope:          models.GlossaryScopeGlobal,
		},
		{
			Term:       "pay",
			Target:     "employees.salary",
			Confidence: 0.8,
			Scope:      models.GlossaryScopeTable,
			ScopeTable: "employees",
			Aliases:    []string{"compensation", "wages"},
		},
		{
			Term:       "comp",
			Target:     "employees.salary",
			Confidence: 0.8,
			Scope:      models.GlossaryScopeTable,
			ScopeTable: "employees",
		},
	}
}

func TestResolver_ExactTermMatch(t *testing.T) {
	r := NewResolver(testTerms())

	got := r.Resolve("headcount")
	require.Len(t, got, 1)
	assert.True(t, got[0].Exact)
	assert.Equal(t, "employees", got[0].Term.Target)
	assert.Equal(t, 0.95, got[0].Score)
}

func TestResolver_AliasAndCaseInsensitive(t *testing.T) {
	r := NewResolver(testTerms())

	got := r.Resolve("Staff Count")
	require.Len(t, got, 1)
	assert.Equal(t, "headcount", got[0].Term.Term)

	got = r.Resolve("COMPENSATION")
	require.Len(t, got, 1)
	assert.Equal(t, "employees.salary", got[0].Term.Target)
}

func TestResolver_SingularPluralNormalization(t *testing.T) {
	r := NewResolver(testTerms())

	// "wages" is registered; the singular form should hit too.
	got := r.Resolve("wage")
	require.Len(t, got, 1)
	assert.Equal(t, "employees.salary", got[0].Term.Target)
}

func TestResolver_ExactBeatsFuzzy(t *testing.T) {
	r := NewResolver(testTerms())

	got := r.Resolve("engineering department")
	require.NotEmpty(t, got)
	assert.True(t, got[0].Exact)
	assert.Equal(t, "departments.name = 'Engineering'", got[0].Term.DefiningFilter)
}

func TestResolver_FuzzyTokenOverlap(t *testing.T) {
	r := NewResolver(testTerms())

	// Not an exact term, but overlaps "engineering department".
	got := r.Resolve("department engineering team")
	require.NotEmpty(t, got)
	assert.False(t, got[0].Exact)
	assert.Equal(t, "departments", got[0].Term.Target)
}

func TestResolver_NoMatch(t *testing.T) {
	r := NewResolver(testTerms())
	assert.Empty(t, r.Resolve("quarterly revenue"))
	assert.Empty(t, r.Resolve(""))
}

func TestResolver_TiesAllReturnedDeterministically(t *testing.T) {
	terms := []models.GlossaryTerm{
		{Term: "margin", Target: "orders.gross_margin", Confidence: 0.7},
		{Term: "margin", Target: "orders.net_margin", Confidence: 0.7},
	}
	r := NewResolver(terms)

	got := r.Resolve("margin")
	require.Len(t, got, 2)
	assert.Equal(t, "orders.gross_margin", got[0].Term.Target)
	assert.Equal(t, "orders.net_margin", got[1].Term.Target)
}

func TestResolver_ResolveInScansLongestFirst(t *testing.T) {
	r := NewResolver(testTerms())

	got := r.ResolveIn("What is the headcount of the engineering department?")
	require.Len(t, got, 2)
	assert.Equal(t, "headcount", got[0].Term.Term)
	assert.Equal(t, "engineering department", got[1].Term.Term)
}

func TestResolver_ResolveInConsumesMatchedWords(t *testing.T) {
	terms := []models.GlossaryTerm{
		{Term: "staff count", Target: "employees", Confidence: 0.9},
		{Term: "count", Target: "orders.count", Confidence: 0.5},
	}
	r := NewResolver(terms)

	got := r.ResolveIn("show staff count by region")
	require.Len(t, got, 1)
	assert.Equal(t, "employees", got[0].Term.Target)
}

func TestResolver_ConcurrentReads(t *testing.T) {
	r := NewResolver(testTerms())

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				r.Resolve("headcount")
				r.ResolveIn("pay for the engineering department")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
