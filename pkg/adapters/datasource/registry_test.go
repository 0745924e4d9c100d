package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	Register(AdapterRegistration{
		Info: AdapterInfo{
			Type:        "test-dialect",
			DisplayName: "Test Dialect",
		},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (Adapter, error) {
			return nil, nil
		},
	})

	assert.True(t, IsRegistered("test-dialect"))
	assert.False(t, IsRegistered("no-such-dialect"))
	assert.NotNil(t, GetFactory("test-dialect"))
	assert.Nil(t, GetFactory("no-such-dialect"))

	var found bool
	for _, info := range RegisteredAdapters() {
		if info.Type == "test-dialect" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNew_UnknownTypeFails(t *testing.T) {
	_, err := New(context.Background(), "dbase", nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"dbase"`)
}

func TestNewDialect_UnknownTypeFails(t *testing.T) {
	_, err := NewDialect("dbase")
	require.Error(t, err)
}
