// Package errors defines the error taxonomy used across the engine.
package errors

import (
	"errors"
	"fmt"
)

// Error codes, one per error kind the engine distinguishes.
const (
	CodeUnknown          = "UNKNOWN_ERROR"
	CodeInvariant        = "INVARIANT_VIOLATION"
	CodeProtocolMismatch = "PROTOCOL_MISMATCH"
	CodeNumericEdgeCase  = "NUMERIC_EDGE_CASE"
	CodeEmptyDomain      = "EMPTY_DOMAIN"
	CodeConfigError      = "CONFIG_ERROR"
	CodeTimeout          = "TIMEOUT_ERROR"
	CodeCommError        = "COMM_ERROR"
)

// AppError represents an engine error with a code, message, and optional cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Common error instances.
var (
	ErrInvariant        = New(CodeInvariant, "programming invariant violated")
	ErrProtocolMismatch = New(CodeProtocolMismatch, "unexpected message type")
	ErrEmptyDomain      = New(CodeEmptyDomain, "rank owns no bodies")
	ErrConfigError      = New(CodeConfigError, "configuration error")
	ErrTimeout          = New(CodeTimeout, "operation timeout")
	ErrCommError        = New(CodeCommError, "communicator error")
)

// IsInvariant reports whether err is (or wraps) a programming invariant violation.
// Invariant violations are never recoverable; callers that see true here should abort.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}

// IsProtocolMismatch reports whether err is an unexpected-message-type error.
// Per the error handling design, these are advisory: log and continue with NULLTAG semantics.
func IsProtocolMismatch(err error) bool {
	return errors.Is(err, ErrProtocolMismatch)
}

// IsEmptyDomain reports whether err signals a rank with no local bodies.
func IsEmptyDomain(err error) bool {
	return errors.Is(err, ErrEmptyDomain)
}

// GetErrorCode extracts the error code from an error, or CodeUnknown if not an AppError.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
