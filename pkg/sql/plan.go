package sql

import "strings"

// LiteralClass is a coarse type family for comparison literals, used
// for type-compatibility checks and for choosing the Go value bound at
// execution time.
type LiteralClass int

const (
	LiteralString LiteralClass = iota
	LiteralNumber
	LiteralBool
)

// ColumnRef is a column reference as written, with byte offsets into
// the validated statement. Qualifier is the table name or alias if the
// reference was qualified.
type ColumnRef struct {
	Qualifier string
	Column    string
	Start     int
	End       int
}

func (c ColumnRef) String() string {
	if c.Qualifier != "" {
		return c.Qualifier + "." + c.Column
	}
	return c.Column
}

// Literal is a constant value in the statement. Dialects replace the
// span with a bound parameter placeholder; the sandbox binds the
// corresponding Go value.
type Literal struct {
	Value string
	Class LiteralClass
	Start int
	End   int
}

// Comparison is a binary predicate. Exactly one of RightColumn or
// RightLiteral is set.
type Comparison struct {
	Left         ColumnRef
	Operator     string
	RightColumn  *ColumnRef
	RightLiteral *Literal
}

// TableRef is a FROM or JOIN source. Derived sources (subqueries and
// CTEs) are opaque: their inner columns are not resolvable against the
// catalog, so checks involving them are skipped.
type TableRef struct {
	Name    string
	Alias   string
	Derived bool
}

// SelectItem summarizes one projection list entry.
type SelectItem struct {
	Expr      string
	Star      bool
	Aggregate bool
	Columns   []ColumnRef
	Alias     string
}

// FuncCall records a function invocation name span so dialects can
// rename functions in place.
type FuncCall struct {
	Name  string
	Start int
	End   int
}

// LimitClause covers the span of a row-limiting clause and its count.
type LimitClause struct {
	Count string
	Start int
	End   int
}

// LogicalPlan is the dialect-neutral result of validation. Spans index
// into SQL, which is the normalized statement text.
type LogicalPlan struct {
	SQL         string
	Tables      []TableRef
	Aliases     map[string]string // lowercase alias -> table name, "" for derived
	Select      []SelectItem
	Comparisons []Comparison // WHERE and HAVING predicates
	JoinConds   []Comparison // ON clause column-to-column equalities
	GroupBy     []ColumnRef
	OrderBy     []ColumnRef
	Columns     []ColumnRef // every resolvable column reference
	Literals    []Literal   // ordered by position, excludes limit counts
	Funcs       []FuncCall
	Limit       *LimitClause
	Offset      *LimitClause
	Top         *LimitClause
	Distinct    bool
	HasDerived  bool
}

// Aggregated reports whether any projection entry applies an aggregate
// function.
func (p *LogicalPlan) Aggregated() bool {
	for _, item := range p.Select {
		if item.Aggregate {
			return true
		}
	}
	return false
}

// ResolveTable maps a qualifier (alias or table name, any case) to the
// underlying table name. The second return is false for unknown
// qualifiers, and the name is empty for derived sources.
func (p *LogicalPlan) ResolveTable(qualifier string) (string, bool) {
	name, ok := p.Aliases[strings.ToLower(qualifier)]
	return name, ok
}

var reservedWords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true,
	"BY": true, "HAVING": true, "ORDER": true, "LIMIT": true,
	"OFFSET": true, "AS": true, "ON": true, "AND": true, "OR": true,
	"NOT": true, "IN": true, "IS": true, "NULL": true, "LIKE": true,
	"ILIKE": true, "BETWEEN": true, "JOIN": true, "LEFT": true,
	"RIGHT": true, "INNER": true, "OUTER": true, "FULL": true,
	"CROSS": true, "UNION": true, "ALL": true, "DISTINCT": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true,
	"END": true, "ASC": true, "DESC": true, "TRUE": true,
	"FALSE": true, "EXISTS": true, "TOP": true, "WITH": true,
	"INTERSECT": true, "EXCEPT": true, "USING": true, "CAST": true,
	"INTERVAL": true, "FETCH": true, "NULLS": true, "FIRST": true,
	"LAST": true, "OVER": true, "PARTITION": true, "ROWS": true,
	"ONLY": true, "NEXT": true, "ESCAPE": true,
}

var aggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

var comparisonOps = map[string]bool{
	"=": true, "<": true, ">": true, "<=": true, ">=": true,
	"<>": true, "!=": true,
}

type clauseRegion int

const (
	clauseNone clauseRegion = iota
	clauseSelect
	clauseFrom
	clauseOn
	clauseWhere
	clauseGroupBy
	clauseHaving
	clauseOrderBy
	clauseLimit
)

// planState is the per-nesting-level parser state, saved on an open
// paren and restored on the matching close so subqueries cannot
// corrupt the enclosing clause context.
type planState struct {
	clause      clauseRegion
	selectDepth int
	currentItem []token
}

// buildPlan shallow-parses the tokenized statement into a LogicalPlan.
// It does not attempt grammar-complete parsing: it tracks clause
// context and paren depth, collects table sources and column
// references wherever they occur (subqueries included), and records
// the spans dialect translation and parameter binding need.
func buildPlan(sqlText string, tokens []token) *LogicalPlan {
	plan := &LogicalPlan{
		SQL:     sqlText,
		Aliases: map[string]string{},
	}

	derivedNames := collectCTENames(tokens)
	for name := range derivedNames {
		plan.Aliases[name] = ""
		plan.HasDerived = true
	}

	state := planState{clause: clauseNone, selectDepth: -1}
	var stack []planState
	depth := 0

	// flushItem closes the current projection entry. Only the outer
	// query's entries land on plan.Select; references found in
	// subquery projections still feed the shared pools.
	flushItem := func() {
		if len(state.currentItem) == 0 {
			return
		}
		item := buildSelectItem(sqlText, state.currentItem)
		if state.selectDepth == 0 {
			plan.Select = append(plan.Select, item)
		}
		plan.Columns = append(plan.Columns, item.Columns...)
		collectItemSpans(plan, state.currentItem)
		state.currentItem = nil
	}

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		upper := ""
		if tok.kind == tokenIdent && !tok.quoted {
			upper = strings.ToUpper(tok.text)
		}

		if tok.kind == tokenPunct && tok.text == "(" {
			if state.clause == clauseSelect && depth == state.selectDepth {
				state.currentItem = append(state.currentItem, tok)
			}
			stack = append(stack, state)
			depth++
			i++
			continue
		}
		if tok.kind == tokenPunct && tok.text == ")" {
			// A subquery projection with no FROM clause ends here.
			if state.clause == clauseSelect && state.selectDepth == depth {
				flushItem()
			}
			if len(stack) > 0 {
				state = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			depth--
			if state.clause == clauseSelect && depth == state.selectDepth {
				state.currentItem = append(state.currentItem, tok)
			}
			i++
			continue
		}

		switch upper {
		case "SELECT":
			flushItem()
			state.clause = clauseSelect
			state.selectDepth = depth
			i++
			if i < len(tokens) && tokens[i].kind == tokenIdent && strings.EqualFold(tokens[i].text, "DISTINCT") {
				if depth == 0 {
					plan.Distinct = true
				}
				i++
			}
			if i+1 < len(tokens) && tokens[i].kind == tokenIdent && strings.EqualFold(tokens[i].text, "TOP") &&
				tokens[i+1].kind == tokenNumber {
				if depth == 0 {
					plan.Top = &LimitClause{
						Count: tokens[i+1].text,
						Start: tokens[i].start,
						End:   tokens[i+1].end,
					}
				}
				i += 2
			}
			continue
		case "FROM":
			flushItem()
			state.clause = clauseFrom
			i++
			i = parseTableSource(tokens, i, plan, derivedNames)
			continue
		case "JOIN":
			state.clause = clauseFrom
			i++
			i = parseTableSource(tokens, i, plan, derivedNames)
			continue
		case "ON":
			state.clause = clauseOn
			i++
			continue
		case "WHERE":
			state.clause = clauseWhere
			i++
			continue
		case "GROUP":
			state.clause = clauseGroupBy
			i++
			if i < len(tokens) && strings.EqualFold(tokens[i].text, "BY") {
				i++
			}
			continue
		case "HAVING":
			state.clause = clauseHaving
			i++
			continue
		case "ORDER":
			state.clause = clauseOrderBy
			i++
			if i < len(tokens) && strings.EqualFold(tokens[i].text, "BY") {
				i++
			}
			continue
		case "LIMIT":
			state.clause = clauseLimit
			if depth == 0 && i+1 < len(tokens) && tokens[i+1].kind == tokenNumber {
				plan.Limit = &LimitClause{
					Count: tokens[i+1].text,
					Start: tok.start,
					End:   tokens[i+1].end,
				}
				i += 2
				continue
			}
			i++
			continue
		case "OFFSET", "FETCH":
			state.clause = clauseLimit
			if upper == "OFFSET" && depth == 0 && i+1 < len(tokens) && tokens[i+1].kind == tokenNumber {
				plan.Offset = &LimitClause{
					Count: tokens[i+1].text,
					Start: tok.start,
					End:   tokens[i+1].end,
				}
				i += 2
				continue
			}
			i++
			continue
		}

		// Projection list: accumulate tokens at the SELECT's own
		// depth, splitting entries on commas. Reference and span
		// collection for these tokens happens at flush.
		if state.clause == clauseSelect && depth == state.selectDepth {
			if tok.kind == tokenPunct && tok.text == "," {
				flushItem()
			} else {
				state.currentItem = append(state.currentItem, tok)
			}
			i++
			continue
		}

		// Additional comma-separated FROM sources.
		if state.clause == clauseFrom && tok.kind == tokenPunct && tok.text == "," {
			i++
			i = parseTableSource(tokens, i, plan, derivedNames)
			continue
		}

		// Function call spans.
		if tok.kind == tokenIdent && !tok.quoted && !reservedWords[upper] &&
			i+1 < len(tokens) && tokens[i+1].kind == tokenPunct && tokens[i+1].text == "(" {
			plan.Funcs = append(plan.Funcs, FuncCall{Name: upper, Start: tok.start, End: tok.end})
			i++
			continue
		}

		// Boolean literals.
		if upper == "TRUE" || upper == "FALSE" {
			if state.clause != clauseLimit {
				plan.Literals = append(plan.Literals, Literal{
					Value: strings.ToLower(upper),
					Class: LiteralBool,
					Start: tok.start,
					End:   tok.end,
				})
			}
			i++
			continue
		}

		// Constant literals become bound parameters.
		if tok.kind == tokenString || tok.kind == tokenNumber {
			if state.clause != clauseLimit {
				class := LiteralString
				if tok.kind == tokenNumber {
					class = LiteralNumber
				}
				plan.Literals = append(plan.Literals, Literal{
					Value: tok.text,
					Class: class,
					Start: tok.start,
					End:   tok.end,
				})
			}
			i++
			continue
		}

		// Column references and the predicates around them.
		if ref, next, ok := parseColumnRef(tokens, i); ok {
			plan.Columns = append(plan.Columns, ref)
			switch state.clause {
			case clauseGroupBy:
				plan.GroupBy = append(plan.GroupBy, ref)
			case clauseOrderBy:
				plan.OrderBy = append(plan.OrderBy, ref)
			case clauseWhere, clauseHaving, clauseOn:
				if cmp, after, found := parseComparison(tokens, ref, next); found {
					if state.clause == clauseOn && cmp.RightColumn != nil {
						plan.JoinConds = append(plan.JoinConds, cmp)
						plan.Columns = append(plan.Columns, *cmp.RightColumn)
					} else {
						plan.Comparisons = append(plan.Comparisons, cmp)
						if cmp.RightColumn != nil {
							plan.Columns = append(plan.Columns, *cmp.RightColumn)
						}
						if cmp.RightLiteral != nil {
							plan.Literals = append(plan.Literals, *cmp.RightLiteral)
						}
					}
					i = after
					continue
				}
			}
			i = next
			continue
		}

		i++
	}
	flushItem()

	return plan
}

// collectItemSpans feeds literal and function spans from a projection
// entry into the shared pools.
func collectItemSpans(plan *LogicalPlan, run []token) {
	for i, tok := range run {
		switch {
		case tok.kind == tokenString:
			plan.Literals = append(plan.Literals, Literal{
				Value: tok.text, Class: LiteralString, Start: tok.start, End: tok.end,
			})
		case tok.kind == tokenNumber:
			plan.Literals = append(plan.Literals, Literal{
				Value: tok.text, Class: LiteralNumber, Start: tok.start, End: tok.end,
			})
		case tok.kind == tokenIdent && !tok.quoted:
			upper := strings.ToUpper(tok.text)
			if !reservedWords[upper] && i+1 < len(run) && run[i+1].text == "(" {
				plan.Funcs = append(plan.Funcs, FuncCall{Name: upper, Start: tok.start, End: tok.end})
			}
		}
	}
}

// collectCTENames registers WITH clause names so later references
// resolve as derived sources.
func collectCTENames(tokens []token) map[string]bool {
	names := map[string]bool{}
	if len(tokens) == 0 || !strings.EqualFold(tokens[0].text, "WITH") {
		return names
	}

	i := 1
	for i < len(tokens) {
		if tokens[i].kind != tokenIdent {
			break
		}
		names[strings.ToLower(tokens[i].text)] = true
		i++
		if i < len(tokens) && strings.EqualFold(tokens[i].text, "AS") {
			i++
		}
		if i >= len(tokens) || tokens[i].text != "(" {
			break
		}
		depth := 0
		for i < len(tokens) {
			if tokens[i].text == "(" {
				depth++
			} else if tokens[i].text == ")" {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
			i++
		}
		if i < len(tokens) && tokens[i].text == "," {
			i++
			continue
		}
		break
	}
	return names
}

// parseTableSource consumes one FROM/JOIN source starting at index i
// and registers it on the plan. Returns the index after the source.
func parseTableSource(tokens []token, i int, plan *LogicalPlan, derivedNames map[string]bool) int {
	if i >= len(tokens) {
		return i
	}

	// Derived table: the subquery body is left for the main loop only
	// when it appears elsewhere; as a FROM source we skip it whole and
	// register the alias as opaque. Inner references are collected in
	// a separate scan by the caller via the alias skip being best
	// effort; existence checks inside an opaque source are not
	// resolvable anyway.
	if tokens[i].kind == tokenPunct && tokens[i].text == "(" {
		depth := 0
		for i < len(tokens) {
			if tokens[i].text == "(" {
				depth++
			} else if tokens[i].text == ")" {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
			i++
		}
		alias, next := parseAlias(tokens, i)
		if alias != "" {
			plan.Tables = append(plan.Tables, TableRef{Alias: alias, Derived: true})
			plan.Aliases[strings.ToLower(alias)] = ""
		}
		plan.HasDerived = true
		return next
	}

	if tokens[i].kind != tokenIdent {
		return i
	}

	name := tokens[i].text
	i++
	// Schema-qualified source: keep the table part.
	if i+1 < len(tokens) && tokens[i].text == "." && tokens[i+1].kind == tokenIdent {
		name = tokens[i+1].text
		i += 2
	}

	alias, i := parseAlias(tokens, i)
	derived := derivedNames[strings.ToLower(name)]
	ref := TableRef{Name: name, Alias: alias, Derived: derived}
	if derived {
		ref.Name = ""
		plan.HasDerived = true
	}
	plan.Tables = append(plan.Tables, ref)

	if alias != "" {
		if derived {
			plan.Aliases[strings.ToLower(alias)] = ""
		} else {
			plan.Aliases[strings.ToLower(alias)] = name
		}
	}
	if !derived {
		plan.Aliases[strings.ToLower(name)] = name
	}
	return i
}

func parseAlias(tokens []token, i int) (string, int) {
	if i < len(tokens) && tokens[i].kind == tokenIdent && strings.EqualFold(tokens[i].text, "AS") {
		i++
	}
	if i < len(tokens) && tokens[i].kind == tokenIdent {
		if !tokens[i].quoted && reservedWords[strings.ToUpper(tokens[i].text)] {
			return "", i
		}
		return tokens[i].text, i + 1
	}
	return "", i
}

// parseColumnRef reads ident or ident.ident at index i. Reserved words
// and function call names do not qualify.
func parseColumnRef(tokens []token, i int) (ColumnRef, int, bool) {
	if i >= len(tokens) || tokens[i].kind != tokenIdent {
		return ColumnRef{}, i, false
	}
	if !tokens[i].quoted && reservedWords[strings.ToUpper(tokens[i].text)] {
		return ColumnRef{}, i, false
	}
	// Function name, not a column.
	if i+1 < len(tokens) && tokens[i+1].kind == tokenPunct && tokens[i+1].text == "(" {
		return ColumnRef{}, i, false
	}

	if i+2 < len(tokens) && tokens[i+1].kind == tokenPunct && tokens[i+1].text == "." {
		if tokens[i+2].kind != tokenIdent {
			// `t.*` and similar are not column references.
			return ColumnRef{}, i, false
		}
		ref := ColumnRef{
			Qualifier: tokens[i].text,
			Column:    tokens[i+2].text,
			Start:     tokens[i].start,
			End:       tokens[i+2].end,
		}
		return ref, i + 3, true
	}

	ref := ColumnRef{
		Column: tokens[i].text,
		Start:  tokens[i].start,
		End:    tokens[i].end,
	}
	return ref, i + 1, true
}

// parseComparison reads an optional binary predicate following a
// left-hand column reference at token index i.
func parseComparison(tokens []token, left ColumnRef, i int) (Comparison, int, bool) {
	if i >= len(tokens) {
		return Comparison{}, i, false
	}

	op := tokens[i].text
	if tokens[i].kind == tokenIdent {
		upper := strings.ToUpper(tokens[i].text)
		if upper == "LIKE" || upper == "ILIKE" {
			op = upper
		} else {
			return Comparison{}, i, false
		}
	} else if !comparisonOps[op] {
		return Comparison{}, i, false
	}
	i++
	if i >= len(tokens) {
		return Comparison{}, i, false
	}

	rhs := tokens[i]
	switch {
	case rhs.kind == tokenString:
		lit := Literal{Value: rhs.text, Class: LiteralString, Start: rhs.start, End: rhs.end}
		return Comparison{Left: left, Operator: op, RightLiteral: &lit}, i + 1, true
	case rhs.kind == tokenNumber:
		lit := Literal{Value: rhs.text, Class: LiteralNumber, Start: rhs.start, End: rhs.end}
		return Comparison{Left: left, Operator: op, RightLiteral: &lit}, i + 1, true
	case rhs.kind == tokenIdent && !rhs.quoted && (strings.EqualFold(rhs.text, "TRUE") || strings.EqualFold(rhs.text, "FALSE")):
		lit := Literal{Value: strings.ToLower(rhs.text), Class: LiteralBool, Start: rhs.start, End: rhs.end}
		return Comparison{Left: left, Operator: op, RightLiteral: &lit}, i + 1, true
	default:
		if ref, next, ok := parseColumnRef(tokens, i); ok {
			return Comparison{Left: left, Operator: op, RightColumn: &ref}, next, true
		}
	}
	return Comparison{}, i, false
}

// buildSelectItem summarizes one projection entry from its token run.
func buildSelectItem(sqlText string, run []token) SelectItem {
	item := SelectItem{}
	if len(run) == 0 {
		return item
	}
	item.Expr = strings.TrimSpace(sqlText[run[0].start:run[len(run)-1].end])

	// Trailing alias: `expr AS name` or `expr name`.
	if len(run) >= 2 {
		last := run[len(run)-1]
		prev := run[len(run)-2]
		if last.kind == tokenIdent && (last.quoted || !reservedWords[strings.ToUpper(last.text)]) {
			if prev.kind == tokenIdent && strings.EqualFold(prev.text, "AS") {
				item.Alias = last.text
				run = run[:len(run)-2]
			} else if (prev.kind == tokenIdent && !strings.EqualFold(prev.text, "AS")) ||
				(prev.kind == tokenPunct && prev.text == ")") {
				if prev.text != "." {
					item.Alias = last.text
					run = run[:len(run)-1]
				}
			}
		}
	}

	for i := 0; i < len(run); i++ {
		tok := run[i]
		if tok.kind == tokenPunct && tok.text == "*" {
			item.Star = true
			continue
		}
		if tok.kind == tokenIdent && !tok.quoted && aggregateFuncs[strings.ToUpper(tok.text)] &&
			i+1 < len(run) && run[i+1].text == "(" {
			item.Aggregate = true
			i++
			continue
		}
		if ref, next, ok := parseColumnRef(run, i); ok {
			item.Columns = append(item.Columns, ref)
			i = next - 1
		}
	}
	// `t.*` counts as star.
	for i := 0; i+1 < len(run); i++ {
		if run[i].text == "." && run[i+1].text == "*" {
			item.Star = true
		}
	}
	return item
}
