// Package sql validates candidate SQL statements before execution:
// single read-only statement enforcement, catalog checks, join and
// aggregate consistency, literal typing, and parameter injection
// screening. Validation output is a dialect-neutral logical plan.
package sql

import (
	"strings"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
)

// Normalize strips surrounding whitespace and a single trailing
// semicolon, then rejects anything that still contains a statement
// separator or a write/DDL verb. This is the hard security boundary:
// failures here are never replayed to the generator as correction
// feedback.
func Normalize(sqlQuery string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if normalized == "" {
		return "", apperrors.NewNonRetryableValidation("empty statement", "candidate SQL is empty")
	}

	if hasSemicolonOutsideStrings(normalized) {
		return "", apperrors.NewNonRetryableValidation(
			"multiple statements",
			"input contains more than one SQL statement; only a single SELECT is permitted")
	}

	tokens, err := tokenize(normalized)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", apperrors.NewNonRetryableValidation("empty statement", "candidate SQL is empty")
	}

	first := strings.ToUpper(tokens[0].text)
	if tokens[0].kind != tokenIdent || (first != "SELECT" && first != "WITH") {
		return "", apperrors.NewNonRetryableValidation(
			"not a read-only statement",
			"statement must begin with SELECT, got "+first)
	}

	for _, tok := range tokens {
		if tok.kind != tokenIdent || tok.quoted {
			continue
		}
		upper := strings.ToUpper(tok.text)
		if writeVerbs[upper] {
			return "", apperrors.NewNonRetryableValidation(
				"write operation rejected",
				"statement contains forbidden keyword "+upper+"; only read-only SELECT is permitted")
		}
	}

	return normalized, nil
}

// writeVerbs are rejected anywhere in the statement. SELECT ... INTO
// and FOR UPDATE style locking count as writes here.
var writeVerbs = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"GRANT": true, "REVOKE": true, "EXEC": true, "EXECUTE": true,
	"CALL": true, "INTO": true, "VACUUM": true, "COPY": true,
}

// hasSemicolonOutsideStrings reports whether the SQL contains any
// semicolon outside of string literals or quoted identifiers.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Handles both backslash escape (\') and SQL standard
			// doubled quote ('') - the doubled quote exits and
			// immediately re-enters on the next quote.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes one trailing semicolon and any
// whitespace around it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}
