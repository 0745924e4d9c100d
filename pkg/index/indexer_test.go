package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/models"
)

func testItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Identifier: string(rune('a' + i)),
			Text:       "text",
			Source:     models.ContextSourceSemantic,
		}
	}
	return items
}

func TestIndexer_BuildsCompleteVersion(t *testing.T) {
	client := llm.NewMockClient()
	client.EmbedDim = 3

	ix := NewIndexer(client, config.EmbeddingConfig{
		Dimension:     3,
		BatchSize:     2,
		MaxConcurrent: 1,
	}, zap.NewNop())

	version, err := ix.Index(context.Background(), "v1", testItems(5))
	require.NoError(t, err)

	assert.Equal(t, 5, version.Len())
	assert.Equal(t, models.SchemaVersion("v1"), version.SchemaVersion())
	assert.Equal(t, 3, version.Dimension())
	assert.Equal(t, 3, client.EmbedCalls) // ceil(5/2) batches
}

func TestIndexer_BatchesRunInParallel(t *testing.T) {
	var mu sync.Mutex
	var batchSizes []int

	client := llm.NewMockClient()
	client.EmbedFunc = func(ctx context.Context, inputs []string) ([][]float32, error) {
		mu.Lock()
		batchSizes = append(batchSizes, len(inputs))
		mu.Unlock()

		out := make([][]float32, len(inputs))
		for i := range out {
			out[i] = []float32{1, 0}
		}
		return out, nil
	}

	ix := NewIndexer(client, config.EmbeddingConfig{
		Dimension:     2,
		BatchSize:     3,
		MaxConcurrent: 4,
	}, zap.NewNop())

	version, err := ix.Index(context.Background(), "v1", testItems(8))
	require.NoError(t, err)
	assert.Equal(t, 8, version.Len())

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{3, 3, 2}, batchSizes)
}

func TestIndexer_DimensionMismatchFails(t *testing.T) {
	client := llm.NewMockClient()
	client.EmbedDim = 7 // config says 3

	ix := NewIndexer(client, config.EmbeddingConfig{
		Dimension:     3,
		BatchSize:     10,
		MaxConcurrent: 1,
	}, zap.NewNop())

	_, err := ix.Index(context.Background(), "v1", testItems(2))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindIndexing, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestIndexer_EmbeddingFailureNeverYieldsVersion(t *testing.T) {
	client := llm.NewMockClient()
	client.EmbedFunc = func(ctx context.Context, inputs []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}

	ix := NewIndexer(client, config.EmbeddingConfig{
		Dimension:     3,
		BatchSize:     2,
		MaxConcurrent: 2,
	}, zap.NewNop())

	version, err := ix.Index(context.Background(), "v1", testItems(4))
	require.Error(t, err)
	assert.Nil(t, version)
	assert.Equal(t, apperrors.KindIndexing, apperrors.KindOf(err))
}

func TestIndexer_EmptyInputRejected(t *testing.T) {
	ix := NewIndexer(llm.NewMockClient(), config.EmbeddingConfig{Dimension: 3}, zap.NewNop())
	_, err := ix.Index(context.Background(), "v1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindIndexing, apperrors.KindOf(err))
}

func TestItemsFromSchema(t *testing.T) {
	elements := []models.SchemaElement{
		{Kind: models.ElementKindTable, Table: "employees", Description: "Staff records"},
		{Kind: models.ElementKindColumn, Table: "employees", Column: "salary", DataType: "numeric"},
	}

	items := ItemsFromSchema(elements)
	require.Len(t, items, 2)
	assert.Equal(t, "employees", items[0].Identifier)
	assert.Equal(t, "employees.salary", items[1].Identifier)
	assert.NotEmpty(t, items[1].Text)
}
