package sql

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
)

// Schema is the catalog view the validator checks statements against.
// catalog.Snapshot satisfies it.
type Schema interface {
	HasTable(table string) bool
	HasColumn(table, column string) bool
	ColumnType(table, column string) (string, bool)
	TablesWithColumn(column string) []string
	Joinable(t1, c1, t2, c2 string) bool
}

// Validator runs the ordered semantic checks and produces the logical
// plan consumed by dialect translation and the sandbox.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger.Named("sql-validator")}
}

// Parse normalizes and shallow-parses a statement without any schema
// checks. Callers that need the full validation pipeline use
// Validator.Validate; Parse serves translation of already-validated
// text and tests.
func Parse(sqlQuery string) (*LogicalPlan, error) {
	normalized, err := Normalize(sqlQuery)
	if err != nil {
		return nil, err
	}
	tokens, err := tokenize(normalized)
	if err != nil {
		return nil, err
	}
	return buildPlan(normalized, tokens), nil
}

// Validate normalizes the candidate statement and runs the checks in
// order, stopping at the first failure: statement form, table and
// column existence, join grounding, aggregate consistency, literal
// typing. On success it returns the plan for the normalized text.
func (v *Validator) Validate(sqlQuery string, schema Schema) (*LogicalPlan, error) {
	normalized, err := Normalize(sqlQuery)
	if err != nil {
		v.logger.Warn("statement rejected", zap.Error(err))
		return nil, err
	}

	tokens, err := tokenize(normalized)
	if err != nil {
		return nil, err
	}

	plan := buildPlan(normalized, tokens)

	if err := v.checkTables(plan, schema); err != nil {
		return nil, err
	}
	if err := v.checkColumns(plan, schema); err != nil {
		return nil, err
	}
	if err := v.checkJoins(plan, schema); err != nil {
		return nil, err
	}
	if err := v.checkGrouping(plan); err != nil {
		return nil, err
	}
	if err := v.checkLiteralTypes(plan, schema); err != nil {
		return nil, err
	}

	return plan, nil
}

func (v *Validator) checkTables(plan *LogicalPlan, schema Schema) error {
	if len(plan.Tables) == 0 {
		return apperrors.NewValidation("no table source", "statement has no FROM clause")
	}
	for _, ref := range plan.Tables {
		if ref.Derived {
			continue
		}
		if !schema.HasTable(ref.Name) {
			return apperrors.NewValidation(
				"unknown table",
				fmt.Sprintf("table %q does not exist in the schema", ref.Name))
		}
	}
	return nil
}

// checkColumns resolves every collected reference. Qualified refs are
// checked against their resolved table; bare refs must exist in at
// least one statement table. References that resolve to a derived
// source, a projection alias, or an unknown qualifier inside an opaque
// scope are skipped rather than guessed at.
func (v *Validator) checkColumns(plan *LogicalPlan, schema Schema) error {
	selectAliases := map[string]bool{}
	for _, item := range plan.Select {
		if item.Alias != "" {
			selectAliases[strings.ToLower(item.Alias)] = true
		}
	}

	for _, ref := range plan.Columns {
		if ref.Qualifier != "" {
			table, known := plan.ResolveTable(ref.Qualifier)
			if !known {
				if plan.HasDerived {
					continue
				}
				return apperrors.NewValidation(
					"unknown table alias",
					fmt.Sprintf("qualifier %q in %q does not match any FROM or JOIN source", ref.Qualifier, ref.String()))
			}
			if table == "" {
				// Derived source, not resolvable.
				continue
			}
			if !schema.HasColumn(table, ref.Column) {
				return apperrors.NewValidation(
					"unknown column",
					columnDetail(schema, ref.Column,
						fmt.Sprintf("column %q does not exist on table %q", ref.Column, table)))
			}
			continue
		}

		if selectAliases[strings.ToLower(ref.Column)] {
			continue
		}
		if v.bareColumnResolves(plan, schema, ref.Column) {
			continue
		}
		if plan.HasDerived {
			continue
		}
		return apperrors.NewValidation(
			"unknown column",
			columnDetail(schema, ref.Column,
				fmt.Sprintf("column %q does not exist on any table in the statement", ref.Column)))
	}
	return nil
}

// columnDetail extends an unknown-column message with the tables that
// do carry the column, so the next generation can pull them in.
func columnDetail(schema Schema, column, msg string) string {
	hosts := schema.TablesWithColumn(column)
	if len(hosts) == 0 {
		return msg
	}
	return msg + fmt.Sprintf("; it exists on: %s", strings.Join(hosts, ", "))
}

func (v *Validator) bareColumnResolves(plan *LogicalPlan, schema Schema, column string) bool {
	for _, ref := range plan.Tables {
		if ref.Derived {
			continue
		}
		if schema.HasColumn(ref.Name, column) {
			return true
		}
	}
	return false
}

// checkJoins requires every ON equality between two columns to match a
// foreign key or a declared relationship, in either direction.
func (v *Validator) checkJoins(plan *LogicalPlan, schema Schema) error {
	for _, cond := range plan.JoinConds {
		if cond.RightColumn == nil || cond.Operator != "=" {
			continue
		}
		leftTable, leftOK := v.resolveSide(plan, cond.Left)
		rightTable, rightOK := v.resolveSide(plan, *cond.RightColumn)
		if !leftOK || !rightOK || leftTable == "" || rightTable == "" {
			// One side is derived or unresolvable.
			continue
		}
		if !schema.Joinable(leftTable, cond.Left.Column, rightTable, cond.RightColumn.Column) {
			return apperrors.NewValidation(
				"ungrounded join",
				fmt.Sprintf("join condition %s = %s does not correspond to a foreign key or declared relationship",
					cond.Left.String(), cond.RightColumn.String()))
		}
	}
	return nil
}

func (v *Validator) resolveSide(plan *LogicalPlan, ref ColumnRef) (string, bool) {
	if ref.Qualifier != "" {
		return plan.ResolveTable(ref.Qualifier)
	}
	var owner string
	for _, t := range plan.Tables {
		if t.Derived {
			continue
		}
		if owner != "" {
			// Ambiguous bare column across tables.
			return "", false
		}
		owner = t.Name
	}
	return owner, owner != ""
}

// checkGrouping enforces aggregate consistency: when any projection
// entry aggregates, every non-aggregated projected column must appear
// in GROUP BY.
func (v *Validator) checkGrouping(plan *LogicalPlan) error {
	if !plan.Aggregated() {
		return nil
	}

	grouped := map[string]bool{}
	for _, ref := range plan.GroupBy {
		grouped[strings.ToLower(ref.String())] = true
		grouped[strings.ToLower(ref.Column)] = true
	}

	for _, item := range plan.Select {
		if item.Aggregate || item.Star {
			continue
		}
		for _, ref := range item.Columns {
			if grouped[strings.ToLower(ref.String())] || grouped[strings.ToLower(ref.Column)] {
				continue
			}
			return apperrors.NewValidation(
				"column not grouped",
				fmt.Sprintf("column %q must appear in GROUP BY or be wrapped in an aggregate function", ref.String()))
		}
	}
	return nil
}

var numericTypes = regexp.MustCompile(`(?i)^(int|integer|bigint|smallint|tinyint|serial|bigserial|decimal|numeric|real|float|double|money)`)
var boolTypes = regexp.MustCompile(`(?i)^(bool|boolean|bit)`)
var temporalTypes = regexp.MustCompile(`(?i)^(date|time|timestamp|datetime|smalldatetime|datetimeoffset|interval)`)

// checkLiteralTypes verifies each column-to-literal comparison against
// the column's declared type family.
func (v *Validator) checkLiteralTypes(plan *LogicalPlan, schema Schema) error {
	for _, cmp := range plan.Comparisons {
		if cmp.RightLiteral == nil {
			continue
		}
		table, ok := v.resolveSide(plan, cmp.Left)
		if !ok || table == "" {
			continue
		}
		colType, found := schema.ColumnType(table, cmp.Left.Column)
		if !found {
			continue
		}

		lit := cmp.RightLiteral
		switch {
		case numericTypes.MatchString(colType):
			if lit.Class == LiteralString && !looksNumeric(lit.Value) {
				return typeMismatch(cmp.Left, colType, "string literal "+quoteLit(lit.Value))
			}
			if lit.Class == LiteralBool {
				return typeMismatch(cmp.Left, colType, "boolean literal "+lit.Value)
			}
		case boolTypes.MatchString(colType):
			if lit.Class == LiteralNumber && lit.Value != "0" && lit.Value != "1" {
				return typeMismatch(cmp.Left, colType, "numeric literal "+lit.Value)
			}
		case temporalTypes.MatchString(colType):
			if lit.Class == LiteralNumber || lit.Class == LiteralBool {
				return typeMismatch(cmp.Left, colType, "non-date literal "+lit.Value)
			}
			if lit.Class == LiteralString && !looksTemporal(lit.Value) {
				return typeMismatch(cmp.Left, colType, "string literal "+quoteLit(lit.Value)+" is not a recognizable date or time")
			}
		default:
			// Text and unrecognized families accept any literal.
		}
	}
	return nil
}

func typeMismatch(ref ColumnRef, colType, literal string) error {
	return apperrors.NewValidation(
		"literal type mismatch",
		fmt.Sprintf("column %q has type %s but is compared to %s", ref.String(), colType, literal))
}

func quoteLit(v string) string {
	return "'" + v + "'"
}

var numericLiteral = regexp.MustCompile(`^[+-]?\d+(\.\d+)?([eE][+-]?\d+)?$`)
var temporalLiteral = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([ T]\d{2}:\d{2}(:\d{2}(\.\d+)?)?([+-]\d{2}:?\d{2}|Z)?)?$|^\d{2}:\d{2}(:\d{2})?$`)

func looksNumeric(v string) bool {
	return numericLiteral.MatchString(strings.TrimSpace(v))
}

func looksTemporal(v string) bool {
	return temporalLiteral.MatchString(strings.TrimSpace(v))
}
