package catalog

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/models"
)

// Catalog holds the active snapshot behind an atomic pointer. Reads
// never block; Replace swaps the whole snapshot. Republication
// frequency is caller policy; the version tag is the consistency
// boundary.
type Catalog struct {
	active atomic.Pointer[Snapshot]
	logger *zap.Logger
}

// New creates an empty catalog.
func New(logger *zap.Logger) *Catalog {
	return &Catalog{logger: logger.Named("catalog")}
}

// Active returns the current snapshot, or nil before the first Replace.
func (c *Catalog) Active() *Snapshot {
	return c.active.Load()
}

// Replace swaps in a new snapshot wholesale.
func (c *Catalog) Replace(snap *Snapshot) {
	c.active.Store(snap)
	c.logger.Info("catalog snapshot replaced",
		zap.String("version", string(snap.Version())),
		zap.Int("elements", len(snap.Elements())))
}

// Sync rebuilds a snapshot by introspecting a datasource and replaces
// the active one. The caller supplies the version tag; scheduling of
// sync jobs is an external collaborator's responsibility.
func (c *Catalog) Sync(ctx context.Context, version models.SchemaVersion, extractor datasource.SchemaExtractor) (*Snapshot, error) {
	elements, err := Introspect(ctx, extractor)
	if err != nil {
		return nil, err
	}

	snap, err := NewSnapshot(version, elements, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	c.Replace(snap)
	return snap, nil
}

// Introspect pulls the current schema element set from a datasource.
func Introspect(ctx context.Context, extractor datasource.SchemaExtractor) ([]models.SchemaElement, error) {
	tables, err := extractor.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tables: %w", err)
	}

	var elements []models.SchemaElement
	for _, table := range tables {
		elements = append(elements, models.SchemaElement{
			Kind:  models.ElementKindTable,
			Table: table.Name,
		})

		columns, err := extractor.GetColumns(ctx, table.Name)
		if err != nil {
			return nil, fmt.Errorf("get columns for %s: %w", table.Name, err)
		}
		fks, err := extractor.GetForeignKeys(ctx, table.Name)
		if err != nil {
			return nil, fmt.Errorf("get foreign keys for %s: %w", table.Name, err)
		}

		fkByColumn := make(map[string]datasource.ForeignKey, len(fks))
		for _, fk := range fks {
			fkByColumn[fk.Column] = fk
		}

		for _, col := range columns {
			el := models.SchemaElement{
				Kind:       models.ElementKindColumn,
				Table:      table.Name,
				Column:     col.Name,
				DataType:   col.DataType,
				IsNullable: col.IsNullable,
				IsPrimary:  col.IsPrimary,
			}
			if fk, ok := fkByColumn[col.Name]; ok {
				el.ForeignKey = &models.ForeignKeyRef{
					Table:  fk.ReferencedTable,
					Column: fk.ReferencedColumn,
				}
			}
			elements = append(elements, el)
		}
	}

	return elements, nil
}
