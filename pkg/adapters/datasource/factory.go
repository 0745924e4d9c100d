package datasource

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// New creates an adapter for the given dialect tag. The tag selects
// the registered implementation explicitly; no driver introspection is
// performed.
func New(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (Adapter, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type %q (registered: %v)", dsType, registeredTypes())
	}
	return factory(ctx, config, logger)
}

// NewDialect returns a connectionless translator for the dialect tag,
// for callers that only need Translate.
func NewDialect(dsType string) (Dialect, error) {
	dialect := GetDialect(dsType)
	if dialect == nil {
		return nil, fmt.Errorf("unsupported datasource type %q (registered: %v)", dsType, registeredTypes())
	}
	return dialect, nil
}

func registeredTypes() []string {
	infos := RegisteredAdapters()
	types := make([]string, 0, len(infos))
	for _, info := range infos {
		types = append(types, info.Type)
	}
	sort.Strings(types)
	return types
}
