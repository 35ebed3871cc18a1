package ai

import (
	"errors"
	"fmt"
)

// ErrorCode classifies AI matching failures.
type ErrorCode string

const (
	CodeMatchingError ErrorCode = "AI_MATCHING_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT"
)

// Error is returned by matchers for every failure: transport, timeout, malformed output.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an AI_MATCHING_ERROR.
func NewError(message string, err error) *Error {
	return &Error{Code: CodeMatchingError, Message: message, Err: err}
}

// NewTimeoutError builds a TIMEOUT error.
func NewTimeoutError(message string, err error) *Error {
	return &Error{Code: CodeTimeout, Message: message, Err: err}
}

// CodeOf extracts the error code, defaulting to AI_MATCHING_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Code
	}
	return CodeMatchingError
}
