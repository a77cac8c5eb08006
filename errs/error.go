// Package errs provides the structured error type shared by every
// component of the review orchestrator.
package errs

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the class of failure, independent of message text.
type ErrorCode string

const (
	// Submission boundary.
	ErrInvalidSubmission ErrorCode = "INVALID_SUBMISSION"

	// Job Store (C3).
	ErrJobNotFound   ErrorCode = "JOB_NOT_FOUND"
	ErrStoreWrite    ErrorCode = "STORE_WRITE_FAILED"
	ErrStoreRead     ErrorCode = "STORE_READ_FAILED"

	// LLM Gateway (C1) / Retrieval Gateway (C2).
	ErrLLMTransient    ErrorCode = "LLM_TRANSIENT"
	ErrLLMFatal        ErrorCode = "LLM_FATAL"
	ErrRetrievalFailed ErrorCode = "RETRIEVAL_FAILED"

	// Feedback Inbox (C4).
	ErrFeedbackTimeout ErrorCode = "FEEDBACK_TIMEOUT"

	// Generic.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is the structured error carried across component boundaries.
// Retryable and HTTPStatus let callers at the edges (HTTP handlers,
// the stage loop's transient-retry check) decide behavior without
// string matching.
type Error struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// Code extracts the ErrorCode of err, or "" if err is not an *Error.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
