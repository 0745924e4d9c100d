package prompts

import (
	"fmt"
	"strings"

	"github.com/askdb-inc/askdb-engine/pkg/models"
)

// PriorError carries one failed attempt into the next prompt so every
// retry is strictly more informed than the last.
type PriorError struct {
	SQL     string
	Message string
	Detail  string
}

// SQLGenerationSystemMessage is the fixed system message for SQL
// generation. The read-only contract is restated here even though the
// validator enforces it; a model that never writes DML wastes fewer
// retries.
const SQLGenerationSystemMessage = `You are a SQL generation engine. You translate natural language questions into a single read-only SQL query against the schema provided.

Rules:
- Produce exactly one SELECT statement (WITH ... SELECT is allowed).
- Use only the tables and columns listed in the schema context.
- Never generate INSERT, UPDATE, DELETE, DDL, or any other write operation.
- Prefer explicit JOIN ... ON over comma joins.
- Qualify column names with their table when more than one table is involved.
- Respond with the SQL statement alone inside a ` + "```sql" + ` fenced block. No explanation.`

// BuildSQLGenerationPrompt assembles the user prompt for one
// generation attempt: the question, the retrieved schema context with
// glossary vocabulary, and the full history of failed attempts.
func BuildSQLGenerationPrompt(question string, bundle *models.ContextBundle, priors []PriorError) string {
	var prompt strings.Builder

	prompt.WriteString("# SQL Generation Request\n\n")

	prompt.WriteString("## Schema Context\n\n")
	prompt.WriteString("Only the following schema elements may appear in the query:\n\n")
	for _, item := range bundle.Items {
		prompt.WriteString(fmt.Sprintf("- %s", item.Snippet))
		if item.Source == models.ContextSourceNeighbor {
			prompt.WriteString(" (included for joins)")
		}
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")

	if vocab := vocabularyItems(bundle); len(vocab) > 0 {
		prompt.WriteString("## Business Vocabulary\n\n")
		prompt.WriteString("The question uses domain terms that map to schema elements:\n\n")
		for _, item := range vocab {
			term := item.Term
			prompt.WriteString(fmt.Sprintf("- %q means %s", term.Term, term.Target))
			if term.Definition != "" {
				prompt.WriteString(fmt.Sprintf(" (%s)", term.Definition))
			}
			prompt.WriteString("\n")
			if term.DefiningFilter != "" {
				prompt.WriteString(fmt.Sprintf("  When the question refers to %q, apply the filter: %s\n",
					term.Term, term.DefiningFilter))
			}
		}
		prompt.WriteString("\n")
	}

	if len(priors) > 0 {
		prompt.WriteString("## Previous Failed Attempts\n\n")
		prompt.WriteString("Earlier queries for this question failed. Do not repeat these mistakes:\n\n")
		for i, prior := range priors {
			prompt.WriteString(fmt.Sprintf("### Attempt %d\n", i+1))
			if prior.SQL != "" {
				prompt.WriteString("```sql\n")
				prompt.WriteString(prior.SQL)
				prompt.WriteString("\n```\n")
			}
			prompt.WriteString(fmt.Sprintf("Error: %s\n", prior.Message))
			if prior.Detail != "" {
				prompt.WriteString(fmt.Sprintf("Detail: %s\n", prior.Detail))
			}
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Response\n\n")
	prompt.WriteString("Return one SELECT statement in a ```sql fenced block.\n")

	return prompt.String()
}

// vocabularyItems returns the bundle items that entered through a
// glossary rewrite, in bundle order.
func vocabularyItems(bundle *models.ContextBundle) []models.ContextItem {
	var out []models.ContextItem
	for _, item := range bundle.Items {
		if item.Term != nil {
			out = append(out, item)
		}
	}
	return out
}
