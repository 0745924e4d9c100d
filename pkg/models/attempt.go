package models

import (
	"time"

	"github.com/google/uuid"
)

// Attempt status values recorded on the audit trail.
const (
	AttemptStatusValid   = "VALID"   // validated and, if executed, succeeded
	AttemptStatusInvalid = "INVALID" // failed static validation
	AttemptStatusError   = "ERROR"   // transport or execution failure
)

// GenerationAttempt records one pass through the generate -> validate
// -> execute loop. Attempts are immutable once recorded; indices per
// question are strictly increasing and capped by the retry budget.
type GenerationAttempt struct {
	ID            uuid.UUID     `json:"id"`
	Question      string        `json:"question"`
	SchemaVersion SchemaVersion `json:"schema_version"`
	Index         int           `json:"index"`
	SQL           string        `json:"sql,omitempty"`
	Status        string        `json:"status"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	ErrorDetail   string        `json:"error_detail,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ColumnMeta describes one column of an execution result.
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExecutionResult is the bounded row set produced by the sandbox.
// Ephemeral: owned by the request that produced it.
type ExecutionResult struct {
	Columns   []ColumnMeta     `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	Elapsed   time.Duration    `json:"elapsed"`
}
