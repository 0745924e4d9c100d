//go:build postgres || all_adapters

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfigForcesReadOnlySessions(t *testing.T) {
	cfg := &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "reader",
		Password: "secret",
		Database: "hr",
	}

	poolCfg, err := poolConfig(buildConnectionString(cfg))
	require.NoError(t, err)
	assert.Equal(t, "on", poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"])
}

func TestPoolConfigRejectsMalformedConnString(t *testing.T) {
	_, err := poolConfig("postgresql://bad:conn@:not-a-port/db")
	require.Error(t, err)
}
