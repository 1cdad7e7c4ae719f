// Package errors provides the structured error type shared by BlueStar packages.
//
// ContextualError captures the component and operation that failed, an optional
// status code and details, and a Kind from the workflow failure taxonomy. Stages
// never inspect provider-specific error types; they ask for the Kind instead.
//
// Usage:
//
//	err := errors.New("github", "FetchChange", cause).
//		WithKind(errors.KindNotFound).
//		WithStatusCode(404)
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure for diagnostics and routing.
type Kind string

// Failure kinds.
const (
	KindUnknown          Kind = ""
	KindConfiguration    Kind = "configuration"
	KindNotFound         Kind = "not_found"
	KindAccess           Kind = "access"
	KindProvider         Kind = "provider"
	KindRateLimited      Kind = "rate_limited"
	KindTimeout          Kind = "timeout"
	KindSchemaValidation Kind = "schema_validation"
	KindPublishing       Kind = "publishing"
	KindPrecondition     Kind = "precondition"
	KindInvalidInput     Kind = "invalid_input"
)

// ContextualError is a structured error type that records where and why a
// failure happened.
type ContextualError struct {
	// Component identifies the package that produced the error (e.g. "github", "openai", "ghost").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// Kind is the taxonomy bucket used by the classifier.
	Kind Kind

	// StatusCode is an optional HTTP status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Newf creates a ContextualError whose cause is a formatted message.
func Newf(component, operation, format string, args ...any) *ContextualError {
	return New(component, operation, fmt.Errorf(format, args...))
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithKind sets the failure kind and returns the error for chaining.
func (e *ContextualError) WithKind(kind Kind) *ContextualError {
	e.Kind = kind
	return e
}

// WithStatusCode sets the status code and returns the error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// KindOf returns the Kind of the outermost ContextualError in err's chain
// that carries one, or KindUnknown.
func KindOf(err error) Kind {
	for err != nil {
		var ce *ContextualError
		if !stderrors.As(err, &ce) {
			return KindUnknown
		}
		if ce.Kind != KindUnknown {
			return ce.Kind
		}
		err = ce.Cause
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusCodeOf returns the first non-zero status code in err's chain.
func StatusCodeOf(err error) int {
	for err != nil {
		var ce *ContextualError
		if !stderrors.As(err, &ce) {
			return 0
		}
		if ce.StatusCode != 0 {
			return ce.StatusCode
		}
		err = ce.Cause
	}
	return 0
}

// KindForStatus maps an HTTP status code to the failure kind used across
// BlueStar's HTTP collaborators.
func KindForStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAccess
	case code == 404 || code == 422:
		return KindNotFound
	case code == 408:
		return KindTimeout
	case code == 429:
		return KindRateLimited
	case code >= 500:
		return KindProvider
	case code >= 400:
		return KindProvider
	default:
		return KindUnknown
	}
}
