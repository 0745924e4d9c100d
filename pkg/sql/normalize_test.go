package sql

import (
	"errors"
	"testing"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
)

func TestNormalize_ValidStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple select without semicolon",
			input:    "SELECT name FROM employees",
			expected: "SELECT name FROM employees",
		},
		{
			name:     "trailing semicolon stripped",
			input:    "SELECT name FROM employees;",
			expected: "SELECT name FROM employees",
		},
		{
			name:     "trailing semicolon with whitespace",
			input:    "  SELECT name FROM employees ;  ",
			expected: "SELECT name FROM employees",
		},
		{
			name:     "semicolon inside single quoted string",
			input:    "SELECT * FROM employees WHERE name = 'a;b'",
			expected: "SELECT * FROM employees WHERE name = 'a;b'",
		},
		{
			name:     "semicolon inside quoted identifier",
			input:    `SELECT * FROM "odd;table"`,
			expected: `SELECT * FROM "odd;table"`,
		},
		{
			name:     "escaped single quote",
			input:    "SELECT * FROM employees WHERE name = 'O''Brien'",
			expected: "SELECT * FROM employees WHERE name = 'O''Brien'",
		},
		{
			name:     "cte statement",
			input:    "WITH top_earners AS (SELECT id FROM employees) SELECT * FROM top_earners",
			expected: "WITH top_earners AS (SELECT id FROM employees) SELECT * FROM top_earners",
		},
		{
			name:     "multiline select",
			input:    "SELECT name\nFROM employees\nWHERE id = 1;",
			expected: "SELECT name\nFROM employees\nWHERE id = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "whitespace only", input: "   "},
		{name: "two statements", input: "SELECT 1; SELECT 2"},
		{name: "piggybacked drop", input: "SELECT 1; DROP TABLE employees"},
		{name: "no space after semicolon", input: "SELECT 1;DELETE FROM employees"},
		{name: "update statement", input: "UPDATE employees SET salary = 0"},
		{name: "insert statement", input: "INSERT INTO employees (name) VALUES ('x')"},
		{name: "delete statement", input: "DELETE FROM employees"},
		{name: "truncate statement", input: "TRUNCATE TABLE employees"},
		{name: "create statement", input: "CREATE TABLE t (id int)"},
		{name: "exec statement", input: "EXEC sp_who"},
		{name: "select into", input: "SELECT * INTO backup FROM employees"},
		{name: "explain statement", input: "EXPLAIN SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.input)
			if err == nil {
				t.Fatal("expected rejection, got nil error")
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *apperrors.Error, got %T", err)
			}
			if appErr.Retryable {
				t.Errorf("security rejections must not be retryable: %v", err)
			}
		})
	}
}

func TestNormalize_WriteVerbInsideStringAllowed(t *testing.T) {
	input := "SELECT * FROM audit_log WHERE action = 'DELETE'"
	got, err := Normalize(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != input {
		t.Errorf("got %q, want %q", got, input)
	}
}
