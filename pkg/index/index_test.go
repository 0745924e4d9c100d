package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v(xs ...float32) []float32 { return xs }

func TestVersionSearch_RanksBySimilarity(t *testing.T) {
	version := newVersion("v1", 3, []Entry{
		{Identifier: "employees.salary", Vector: v(1, 0, 0)},
		{Identifier: "employees.name", Vector: v(0, 1, 0)},
		{Identifier: "departments.name", Vector: v(0.9, 0.1, 0)},
	})

	matches := version.Search(v(1, 0, 0), 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "employees.salary", matches[0].Entry.Identifier)
	assert.Equal(t, "departments.name", matches[1].Entry.Identifier)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestVersionSearch_DeterministicTieBreaks(t *testing.T) {
	version := newVersion("v1", 2, []Entry{
		{Identifier: "orders.total_amount", Vector: v(1, 0)},
		{Identifier: "orders.total", Vector: v(1, 0)},
		{Identifier: "orders.notes", Vector: v(1, 0)},
	})

	matches := version.Search(v(1, 0), 3)
	require.Len(t, matches, 3)
	// Equal scores: shorter identifier first, then lexical.
	assert.Equal(t, "orders.notes", matches[0].Entry.Identifier)
	assert.Equal(t, "orders.total", matches[1].Entry.Identifier)
	assert.Equal(t, "orders.total_amount", matches[2].Entry.Identifier)
}

func TestVersionSearch_DimensionMismatchReturnsNothing(t *testing.T) {
	version := newVersion("v1", 3, []Entry{
		{Identifier: "a", Vector: v(1, 0, 0)},
	})
	assert.Nil(t, version.Search(v(1, 0), 5))
}

func TestVersionSearch_KLargerThanIndex(t *testing.T) {
	version := newVersion("v1", 2, []Entry{
		{Identifier: "a", Vector: v(1, 0)},
		{Identifier: "b", Vector: v(0, 1)},
	})
	assert.Len(t, version.Search(v(1, 0), 10), 2)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity(v(1, 2, 3), v(1, 2, 3)), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity(v(1, 0), v(0, 1)), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity(v(1, 0), v(-1, 0)), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(v(0, 0), v(1, 1)))
}
