// Package errors defines the typed error taxonomy for the OMR engine.
//
// Two families of failure exist: per-sheet fatal errors (an unreadable image,
// a missing or malformed answer key, inconsistent scoring rules) and
// non-fatal conditions (validation warnings, detection anomalies). Only the
// fatal family is represented here; non-fatal conditions are reported as
// diagnostic notes on results and never surface as errors.
package errors

import "fmt"

// Kind categorizes a fatal processing error.
type Kind string

const (
	// KindInput marks unreadable or corrupt input: a broken image file or
	// an answer key that cannot be parsed.
	KindInput Kind = "input"

	// KindScoring marks an inconsistent answer key: invalid score bounds
	// or a key that cannot be applied to the detected answers.
	KindScoring Kind = "scoring"

	// KindInternal marks an unexpected engine failure.
	KindInternal Kind = "internal"
)

// Error is a structured processing error carrying its kind for the
// orchestrator's failure records.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewInputError creates an input error for unreadable or corrupt input.
func NewInputError(message string, cause error) *Error {
	return &Error{Kind: KindInput, Message: message, Cause: cause}
}

// NewScoringError creates a scoring inconsistency error.
func NewScoringError(message string, cause error) *Error {
	return &Error{Kind: KindScoring, Message: message, Cause: cause}
}

// NewInternalError creates an internal engine error.
func NewInternalError(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
