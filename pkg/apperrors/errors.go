// Package apperrors defines the error taxonomy shared across the engine.
//
// Errors fall into two groups: sentinel values for simple conditions
// (errors.Is) and the structured Error type carrying a classification,
// retryability, and enough detail to be replayed to the SQL generator
// as correction feedback.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientContext signals that retrieval found nothing above
	// the similarity threshold. Reported to the caller, never retried.
	ErrInsufficientContext = errors.New("insufficient context: no schema element cleared the similarity threshold")

	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRetryBudgetExhausted indicates the semantic correction budget ran out.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrWallClockExceeded indicates the overall per-question deadline passed.
	ErrWallClockExceeded = errors.New("wall-clock ceiling exceeded")
)

// Kind classifies a structured Error.
type Kind string

const (
	// KindIndexing covers failed index builds. Non-retryable; blocks publication.
	KindIndexing Kind = "indexing"
	// KindGenerationUnavailable covers transport/model failures while
	// calling the generator. Retryable under the transport budget.
	KindGenerationUnavailable Kind = "generation_unavailable"
	// KindValidation covers structural or semantic SQL problems found by
	// static validation. Retryable with feedback under the semantic budget.
	KindValidation Kind = "validation"
	// KindUnsupportedConstruct covers dialect limitations. The generator
	// cannot fix the adapter, so these are non-retryable.
	KindUnsupportedConstruct Kind = "unsupported_construct"
	// KindExecution covers engine-level failures at run time. Retryable
	// with feedback, counted against the shared semantic budget.
	KindExecution Kind = "execution"
	// KindTimeout covers generation or execution stage timeouts.
	KindTimeout Kind = "timeout"
)

// Error is a classified engine error. Detail holds the generator-facing
// description (offending identifier, expected vs actual) used as prior
// error feedback on retries.
type Error struct {
	Kind      Kind
	Stage     string // "retrieve", "generate", "validate", "execute"
	Message   string
	Detail    string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	parts := []string{string(e.Kind)}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	parts = append(parts, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// Feedback returns the text replayed to the generator on the next
// attempt. Falls back to the message when no structured detail exists.
func (e *Error) Feedback() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// NewIndexing builds a non-retryable index build failure.
func NewIndexing(message string, cause error) *Error {
	return &Error{Kind: KindIndexing, Stage: "index", Message: message, Retryable: false, Cause: cause}
}

// NewGenerationUnavailable builds a retryable transport-layer failure.
func NewGenerationUnavailable(message string, cause error) *Error {
	return &Error{Kind: KindGenerationUnavailable, Stage: "generate", Message: message, Retryable: true, Cause: cause}
}

// NewValidation builds a semantic-retryable validation failure. detail
// must name the offending identifier and expected vs actual so the
// generator can correct it.
func NewValidation(message, detail string) *Error {
	return &Error{Kind: KindValidation, Stage: "validate", Message: message, Detail: detail, Retryable: true}
}

// NewNonRetryableValidation builds a validation failure that must never
// be replayed to the generator (hard security boundary, e.g. multi-statement input).
func NewNonRetryableValidation(message, detail string) *Error {
	return &Error{Kind: KindValidation, Stage: "validate", Message: message, Detail: detail, Retryable: false}
}

// NewUnsupportedConstruct builds a non-retryable dialect limitation.
func NewUnsupportedConstruct(dialect, construct string) *Error {
	return &Error{
		Kind:    KindUnsupportedConstruct,
		Stage:   "validate",
		Message: fmt.Sprintf("dialect %s cannot express %s", dialect, construct),
		Detail:  fmt.Sprintf("construct %q is not supported on dialect %s", construct, dialect),
	}
}

// NewExecution builds an engine-level run-time failure, retryable with feedback.
func NewExecution(message, detail string, cause error) *Error {
	return &Error{Kind: KindExecution, Stage: "execute", Message: message, Detail: detail, Retryable: true, Cause: cause}
}

// NewTimeout builds a stage timeout, retryable like a transport error.
func NewTimeout(stage string, cause error) *Error {
	return &Error{Kind: KindTimeout, Stage: stage, Message: "deadline exceeded", Retryable: true, Cause: cause}
}

// KindOf extracts the Kind from an error chain, or "" if the error is
// not a classified engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the error chain contains a retryable
// classified error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
