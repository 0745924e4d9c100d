package models

// Scope values for glossary terms.
const (
	GlossaryScopeGlobal = "global" // applies across the whole schema
	GlossaryScopeTable  = "table"  // only meaningful within one table
)

// GlossaryTerm maps a domain phrase to a canonical schema element.
// Terms are administrator-owned and read-only on the query path.
type GlossaryTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition,omitempty"`
	// Target is the canonical identifier the phrase resolves to
	// (table or table.column).
	Target string `json:"target"`
	// DefiningFilter is an optional predicate the term implies, e.g.
	// "Engineering department" -> departments.id = 3. Included in
	// generation prompts so the model grounds business vocabulary.
	DefiningFilter string  `json:"defining_filter,omitempty"`
	Confidence     float64 `json:"confidence"`
	Scope          string  `json:"scope"`
	// ScopeTable restricts a table-local term to one table.
	ScopeTable string   `json:"scope_table,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
}

// EmbeddingText is the representation handed to the embedding model.
func (t GlossaryTerm) EmbeddingText() string {
	s := t.Term
	if t.Definition != "" {
		s += " " + t.Definition
	}
	return s + " " + t.Target
}
