package models

// ContextItemSource records how an item entered the bundle.
const (
	ContextSourceSemantic = "semantic" // nearest-neighbor hit on the index
	ContextSourceAlias    = "alias"    // glossary phrase rewritten to its target
	ContextSourceGlossary = "glossary" // glossary term surfaced by embedding similarity
	ContextSourceNeighbor = "neighbor" // one-hop foreign-key expansion
)

// ContextItem is one entry of a context bundle: a canonical identifier
// with its relevance score and the snippet included in the prompt.
type ContextItem struct {
	Identifier string  `json:"identifier"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
	Source     string  `json:"source"`
	// Term carries the glossary term for alias-sourced items so the
	// generator can surface the defining filter.
	Term *GlossaryTerm `json:"term,omitempty"`
}

// ContextBundle is the ordered set of schema and glossary items
// selected for one question. Built fresh per question, never persisted.
type ContextBundle struct {
	SchemaVersion SchemaVersion `json:"schema_version"`
	Items         []ContextItem `json:"items"`
	TokenBudget   int           `json:"token_budget"`
	TokensUsed    int           `json:"tokens_used"`
}

// Empty reports whether retrieval found nothing above the threshold.
// An empty bundle is a valid terminal state, not an error.
func (b *ContextBundle) Empty() bool {
	return b == nil || len(b.Items) == 0
}

// Identifiers returns the canonical identifiers in bundle order.
func (b *ContextBundle) Identifiers() []string {
	ids := make([]string, len(b.Items))
	for i, it := range b.Items {
		ids[i] = it.Identifier
	}
	return ids
}

// EstimateTokens approximates the token cost of a snippet. The 4
// chars/token heuristic matches what the prompt budgeting needs:
// stable, cheap, and slightly conservative for SQL identifiers.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
