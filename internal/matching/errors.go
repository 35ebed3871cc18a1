package matching

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable error kind returned to callers.
type ErrorCode string

const (
	CodeInsufficientInput ErrorCode = "INSUFFICIENT_INPUT"
	CodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	CodeProcessingError   ErrorCode = "PROCESSING_ERROR"
)

const (
	msgInsufficientInput = "Transcript too short. Please provide more details about your situation."
	msgProcessingError   = "Internal server error. Please try again."
)

// Error is a caller-facing failure. Message is safe to return; Err is for logs only.
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

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInsufficientInput, CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// AsError converts any error into a caller-facing *Error, hiding unknown details
// behind PROCESSING_ERROR.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeProcessingError, Message: msgProcessingError, Err: err}
}
