package datasource

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// TranslationRules parameterize the shared plan renderer for one
// dialect. Dialect subpackages supply these instead of re-implementing
// span rewriting.
type TranslationRules struct {
	// Dialect tag, used in UnsupportedConstruct errors.
	Name string

	// Placeholder returns the bind marker for the 1-based position.
	Placeholder func(position int) string

	// FuncRenames maps upper-case function names onto this dialect's
	// spelling.
	FuncRenames map[string]string

	// UnsupportedFuncs are function names this dialect cannot express.
	UnsupportedFuncs map[string]bool

	// NativeLimit reports LIMIT n support. Dialects without it get a
	// TOP clause instead.
	NativeLimit bool
}

type spanEdit struct {
	start int
	end   int
	text  string
}

// TranslatePlan renders a validated plan as executable dialect SQL:
// every literal span is replaced with a bind placeholder, functions
// are renamed where the dialect spells them differently, and the
// row-limiting clause is converted between LIMIT and TOP. Bind values
// are returned in placeholder order.
func TranslatePlan(plan *enginesql.LogicalPlan, rules TranslationRules) (string, []any, error) {
	var edits []spanEdit

	for _, fn := range plan.Funcs {
		if rules.UnsupportedFuncs[fn.Name] {
			return "", nil, apperrors.NewUnsupportedConstruct(rules.Name, fn.Name+"()")
		}
		if renamed, ok := rules.FuncRenames[fn.Name]; ok {
			edits = append(edits, spanEdit{start: fn.Start, end: fn.End, text: renamed})
		}
	}

	literals := uniqueLiterals(plan.Literals)
	params := make([]any, 0, len(literals))
	for i, lit := range literals {
		value, err := bindValue(lit)
		if err != nil {
			return "", nil, err
		}
		params = append(params, value)
		edits = append(edits, spanEdit{start: lit.Start, end: lit.End, text: rules.Placeholder(i + 1)})
	}

	suffix := ""
	wrapTop := ""
	if rules.NativeLimit {
		if plan.Top != nil {
			edits = append(edits, spanEdit{start: plan.Top.Start, end: plan.Top.End, text: ""})
			if plan.Limit == nil {
				suffix = " LIMIT " + plan.Top.Count
			}
		}
	} else {
		switch {
		case plan.Offset != nil:
			// TOP cannot coexist with a row offset; T-SQL expresses
			// pagination as OFFSET n ROWS FETCH NEXT m ROWS ONLY, and
			// only after an ORDER BY.
			if len(plan.OrderBy) == 0 {
				return "", nil, apperrors.NewUnsupportedConstruct(rules.Name, "OFFSET without ORDER BY")
			}
			edits = append(edits, spanEdit{
				start: plan.Offset.Start,
				end:   plan.Offset.End,
				text:  "OFFSET " + plan.Offset.Count + " ROWS",
			})
			if plan.Limit != nil {
				edits = append(edits, spanEdit{start: plan.Limit.Start, end: plan.Limit.End, text: ""})
				suffix = " FETCH NEXT " + plan.Limit.Count + " ROWS ONLY"
			}
		case plan.Limit != nil:
			edits = append(edits, spanEdit{start: plan.Limit.Start, end: plan.Limit.End, text: ""})
			if plan.Top == nil {
				wrapTop = plan.Limit.Count
			}
		}
	}

	rendered := applyEdits(plan.SQL, edits) + suffix
	rendered = strings.TrimSpace(collapseSpaces(rendered))

	if wrapTop != "" {
		rendered = injectTop(rendered, wrapTop)
	}

	return rendered, params, nil
}

// applyEdits splices replacement texts into sqlText. Edits are applied
// end to start so earlier offsets stay valid.
func applyEdits(sqlText string, edits []spanEdit) string {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	for _, e := range edits {
		sqlText = sqlText[:e.start] + e.text + sqlText[e.end:]
	}
	return sqlText
}

// uniqueLiterals orders literal spans by position and drops any
// duplicate span.
func uniqueLiterals(literals []enginesql.Literal) []enginesql.Literal {
	sorted := make([]enginesql.Literal, len(literals))
	copy(sorted, literals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := sorted[:0]
	lastStart := -1
	for _, lit := range sorted {
		if lit.Start == lastStart {
			continue
		}
		out = append(out, lit)
		lastStart = lit.Start
	}
	return out
}

// bindValue converts a literal into the Go value bound at execution.
func bindValue(lit enginesql.Literal) (any, error) {
	switch lit.Class {
	case enginesql.LiteralNumber:
		if n, err := strconv.ParseInt(lit.Value, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(lit.Value, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("unparseable numeric literal %q", lit.Value)
	case enginesql.LiteralBool:
		return lit.Value == "true", nil
	default:
		return lit.Value, nil
	}
}

// injectTop places a TOP clause after the outermost SELECT, falling
// back to subquery wrapping when the statement does not start with one
// (CTE forms).
func injectTop(sqlText, count string) string {
	upper := strings.ToUpper(sqlText)
	if strings.HasPrefix(upper, "SELECT ") {
		rest := sqlText[len("SELECT "):]
		if strings.HasPrefix(strings.ToUpper(rest), "DISTINCT ") {
			return "SELECT DISTINCT TOP (" + count + ") " + rest[len("DISTINCT "):]
		}
		return "SELECT TOP (" + count + ") " + rest
	}
	return "SELECT TOP (" + count + ") * FROM (" + sqlText + ") AS _limited"
}

// collapseSpaces normalizes runs of spaces left behind by span
// removals. Literal content has already been lifted into parameters,
// so statement text contains no user strings at this point.
func collapseSpaces(sqlText string) string {
	var b strings.Builder
	b.Grow(len(sqlText))
	prevSpace := false
	for _, r := range sqlText {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
