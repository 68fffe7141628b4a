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

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")

	// ErrStaleToken is returned when a mutating call presents a
	// concurrency token that no longer matches the batch row.
	ErrStaleToken = errors.New("stale concurrency token")

	// ErrIllegalTransition is returned for batch state changes the
	// transition table does not allow.
	ErrIllegalTransition = errors.New("illegal batch state transition")

	// ErrCommitBlocked is returned when ERROR-level validation issues
	// remain at commit time.
	ErrCommitBlocked = errors.New("commit blocked by validation errors")

	// ErrNoSourceText marks a document from which no text could be read.
	ErrNoSourceText = errors.New("no source text")

	// ErrExtractorResponse marks a transport or parse failure of the
	// AI extraction endpoint, distinct from "ran but found nothing".
	ErrExtractorResponse = errors.New("extractor response invalid")
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
