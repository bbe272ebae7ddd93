package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies status-client failures. The engine treats every
// kind the same way (degrade to fallback), but the kind drives logging
// and lets tests assert on the failure mode.
type ErrorKind string

const (
	// KindTimeout means the call exceeded its hard wall-clock budget.
	KindTimeout ErrorKind = "TIMEOUT"

	// KindAPIError means the upstream returned a non-2xx response.
	KindAPIError ErrorKind = "API_ERROR"

	// KindInvalidResponse means the upstream returned a 2xx with an
	// empty or unparseable payload.
	KindInvalidResponse ErrorKind = "INVALID_RESPONSE"

	// KindUnknown covers every other failure.
	KindUnknown ErrorKind = "UNKNOWN"
)

// StatusError is the error type returned by status clients. It carries
// the failure kind, the provider tag, and the wrapped cause.
type StatusError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *StatusError) Unwrap() error { return e.Err }

// NewStatusError builds a StatusError.
func NewStatusError(kind ErrorKind, provider string, err error) *StatusError {
	return &StatusError{Kind: kind, Provider: provider, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindUnknown when err is not
// a StatusError.
func KindOf(err error) ErrorKind {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
