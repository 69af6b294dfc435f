// Package apperr defines the error taxonomy shared by the client,
// validator, and orchestrator. Validation errors never reach the
// network; transport and backend errors carry the most specific
// message the backend provided.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError is a client-side precondition failure (file size or
// type, input length). It blocks the action before any request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransportError is a non-2xx status or a network-level failure.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: request failed (status %d)", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is a 2xx response whose body carries an explicit
// failure flag.
type BackendError struct {
	Op      string
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend reported failure", e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// UserMessage extracts the text fit for an error banner: the backend's
// own message when present, a generic fallback otherwise. The error
// may be wrapped; the outermost taxonomy error in the chain wins.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Reason
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		if tErr.Message != "" {
			return tErr.Message
		}
		return "The request could not be completed. Please try again."
	}
	var bErr *BackendError
	if errors.As(err, &bErr) {
		if bErr.Message != "" {
			return bErr.Message
		}
		return "The service could not process your request."
	}
	return "Something went wrong. Please try again."
}
