// Package catalog holds the normalized schema description that grounds
// generation: tables, columns, types, foreign keys, and free-text
// descriptions. Snapshots are immutable; the active snapshot is
// replaced wholesale on re-sync.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/askdb-inc/askdb-engine/pkg/models"
)

// Relationship is a joinable column pair: a discovered foreign key or
// an explicitly declared relationship.
type Relationship struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Declared     bool // true when administrator-declared rather than a database FK
}

// Snapshot is one immutable catalog version. All lookups are
// case-insensitive over canonical identifiers.
type Snapshot struct {
	version  models.SchemaVersion
	elements []models.SchemaElement

	byID      map[string]models.SchemaElement
	columns   map[string][]models.SchemaElement // table -> column elements in catalog order
	neighbors map[string][]string               // table -> FK-adjacent tables, sorted
	joins     map[string]Relationship           // normalized "t1.c1=t2.c2" -> relationship
}

// NewSnapshot builds a snapshot from a full element set plus any
// declared relationships. Column elements must name an existing table
// element; dangling references fail the build.
func NewSnapshot(version models.SchemaVersion, elements []models.SchemaElement, declared []Relationship) (*Snapshot, error) {
	s := &Snapshot{
		version:   version,
		elements:  elements,
		byID:      make(map[string]models.SchemaElement, len(elements)),
		columns:   make(map[string][]models.SchemaElement),
		neighbors: make(map[string][]string),
		joins:     make(map[string]Relationship),
	}

	for _, el := range elements {
		if el.Kind == models.ElementKindTable {
			key := strings.ToLower(el.Identifier())
			s.byID[key] = el
			if _, ok := s.columns[key]; !ok {
				s.columns[key] = nil
			}
		}
	}

	var rels []Relationship
	for _, el := range elements {
		if el.Kind != models.ElementKindColumn {
			continue
		}
		tableKey := strings.ToLower(el.Table)
		if _, ok := s.byID[tableKey]; !ok {
			return nil, fmt.Errorf("column %s references unknown table %s", el.Identifier(), el.Table)
		}
		s.byID[strings.ToLower(el.Identifier())] = el
		s.columns[tableKey] = append(s.columns[tableKey], el)

		if el.ForeignKey != nil {
			rels = append(rels, Relationship{
				SourceTable:  el.Table,
				SourceColumn: el.Column,
				TargetTable:  el.ForeignKey.Table,
				TargetColumn: el.ForeignKey.Column,
			})
		}
	}

	rels = append(rels, declared...)
	for _, rel := range rels {
		srcTable := strings.ToLower(rel.SourceTable)
		dstTable := strings.ToLower(rel.TargetTable)
		if _, ok := s.byID[srcTable]; !ok {
			return nil, fmt.Errorf("relationship source table %s does not exist", rel.SourceTable)
		}
		if _, ok := s.byID[dstTable]; !ok {
			return nil, fmt.Errorf("relationship target table %s does not exist", rel.TargetTable)
		}
		s.joins[joinKey(rel.SourceTable, rel.SourceColumn, rel.TargetTable, rel.TargetColumn)] = rel
		s.addNeighbor(srcTable, dstTable)
		s.addNeighbor(dstTable, srcTable)
	}

	for table, ns := range s.neighbors {
		sort.Strings(ns)
		s.neighbors[table] = dedupeSorted(ns)
	}

	return s, nil
}

func (s *Snapshot) addNeighbor(table, neighbor string) {
	if table == neighbor {
		return
	}
	s.neighbors[table] = append(s.neighbors[table], neighbor)
}

func dedupeSorted(in []string) []string {
	out := in[:0]
	var prev string
	for i, v := range in {
		if i == 0 || v != prev {
			out = append(out, v)
		}
		prev = v
	}
	return out
}

// joinKey normalizes a column pair so either direction maps to the same
// relationship.
func joinKey(t1, c1, t2, c2 string) string {
	a := strings.ToLower(t1 + "." + c1)
	b := strings.ToLower(t2 + "." + c2)
	if a > b {
		a, b = b, a
	}
	return a + "=" + b
}

// Version returns the snapshot's schema version tag.
func (s *Snapshot) Version() models.SchemaVersion {
	return s.version
}

// Elements returns the full element set in catalog order.
func (s *Snapshot) Elements() []models.SchemaElement {
	return s.elements
}

// Lookup resolves a canonical identifier (table or table.column).
func (s *Snapshot) Lookup(identifier string) (models.SchemaElement, bool) {
	el, ok := s.byID[strings.ToLower(identifier)]
	return el, ok
}

// HasTable reports whether the table exists.
func (s *Snapshot) HasTable(table string) bool {
	el, ok := s.byID[strings.ToLower(table)]
	return ok && el.Kind == models.ElementKindTable
}

// HasColumn reports whether table.column exists.
func (s *Snapshot) HasColumn(table, column string) bool {
	el, ok := s.byID[strings.ToLower(table+"."+column)]
	return ok && el.Kind == models.ElementKindColumn
}

// Columns returns a table's column elements in catalog order.
func (s *Snapshot) Columns(table string) []models.SchemaElement {
	return s.columns[strings.ToLower(table)]
}

// ColumnType returns the declared data type of table.column.
func (s *Snapshot) ColumnType(table, column string) (string, bool) {
	el, ok := s.byID[strings.ToLower(table+"."+column)]
	if !ok || el.Kind != models.ElementKindColumn {
		return "", false
	}
	return el.DataType, true
}

// TablesWithColumn returns the tables containing a column of the given
// name, sorted for determinism. Used to qualify bare column references.
func (s *Snapshot) TablesWithColumn(column string) []string {
	lower := strings.ToLower(column)
	var tables []string
	for table, cols := range s.columns {
		for _, el := range cols {
			if strings.ToLower(el.Column) == lower {
				tables = append(tables, table)
				break
			}
		}
	}
	sort.Strings(tables)
	return tables
}

// Neighbors returns the FK-adjacent tables of a table, sorted. This is
// the one-hop expansion set used to preserve joinability in retrieval.
func (s *Snapshot) Neighbors(table string) []string {
	return s.neighbors[strings.ToLower(table)]
}

// Joinable reports whether the column pair is backed by a foreign key
// or a declared relationship, in either direction.
func (s *Snapshot) Joinable(t1, c1, t2, c2 string) bool {
	_, ok := s.joins[joinKey(t1, c1, t2, c2)]
	return ok
}
