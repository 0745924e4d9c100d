package datasource

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered dialect adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "sqlserver"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string `json:"description"`
}

// AdapterRegistration contains info plus factories for one dialect.
// The dialect factory needs no connection; translation is pure.
type AdapterRegistration struct {
	Info           AdapterInfo
	Factory        func(ctx context.Context, config map[string]any, logger *zap.Logger) (Adapter, error)
	DialectFactory func() Dialect
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// GetFactory returns the adapter factory for a dialect tag.
// Returns nil if the tag is not registered.
func GetFactory(dsType string) func(ctx context.Context, config map[string]any, logger *zap.Logger) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// GetDialect returns a connectionless Dialect for a dialect tag.
// Returns nil if the tag is not registered.
func GetDialect(dsType string) Dialect {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok && reg.DialectFactory != nil {
		return reg.DialectFactory()
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
