package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors. Sentinels are wrapped by AppError so callers
// can branch with errors.Is.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")

	// ErrIllegalTransition is a programmer/invariant error (e.g. asking to
	// re-extract a DONE document), not a recoverable runtime condition.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")

	// ErrExtractionFailed covers service errors and timeouts alike; the
	// operator can always proceed manually.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrExtractionInFlight rejects a second trigger for a document whose
	// extraction call is still outstanding.
	ErrExtractionInFlight = errors.New("extraction already in flight")

	// ErrMissingEvidence is a user-correctable commit precondition failure.
	ErrMissingEvidence = errors.New("missing evidence")

	// ErrPersistence is a storage collaborator error, surfaced to the
	// operator and never retried automatically.
	ErrPersistence = errors.New("persistence failure")

	ErrNoActiveDocument = errors.New("no active document")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
