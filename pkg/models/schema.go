package models

import "strings"

// ElementKind distinguishes table-level from column-level schema elements.
type ElementKind string

const (
	ElementKindTable  ElementKind = "table"
	ElementKindColumn ElementKind = "column"
)

// ForeignKeyRef names the target of a foreign key as table.column.
type ForeignKeyRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Identifier returns the canonical table.column form.
func (r ForeignKeyRef) Identifier() string {
	return r.Table + "." + r.Column
}

// SchemaElement is one entry of the schema catalog: a table or a
// table.column, with the free-text description used for embedding.
// Elements are immutable once loaded for a schema version and replaced
// wholesale on re-sync.
type SchemaElement struct {
	Kind        ElementKind    `json:"kind"`
	Table       string         `json:"table"`
	Column      string         `json:"column,omitempty"` // empty for table elements
	DataType    string         `json:"data_type,omitempty"`
	IsNullable  bool           `json:"is_nullable,omitempty"`
	IsPrimary   bool           `json:"is_primary,omitempty"`
	ForeignKey  *ForeignKeyRef `json:"foreign_key,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Identifier returns the canonical identifier: "table" for table
// elements, "table.column" for column elements.
func (e SchemaElement) Identifier() string {
	if e.Kind == ElementKindColumn {
		return e.Table + "." + e.Column
	}
	return e.Table
}

// EmbeddingText is the textual representation handed to the embedding
// model: name, type, and description joined in a stable order so
// re-indexing the same catalog produces the same vectors.
func (e SchemaElement) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(e.Identifier())
	if e.DataType != "" {
		b.WriteString(" ")
		b.WriteString(e.DataType)
	}
	if e.Description != "" {
		b.WriteString(" ")
		b.WriteString(e.Description)
	}
	return b.String()
}

// SchemaVersion tags one immutable catalog snapshot. Versions are
// opaque to the query path; equality is the only operation.
type SchemaVersion string
