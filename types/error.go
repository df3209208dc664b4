package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Pipeline error codes
const (
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrArchiveCorrupt   ErrorCode = "ARCHIVE_CORRUPT"
	ErrGeometryParse    ErrorCode = "GEOMETRY_PARSE"
	ErrBuildFailed      ErrorCode = "BUILD_FAILED"
)

// Attachment error codes
const (
	ErrAttachTimeout    ErrorCode = "ATTACH_TIMEOUT"
	ErrSceneUnavailable ErrorCode = "SCENE_UNAVAILABLE"
)

// Transport error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrFileTooLarge   ErrorCode = "FILE_TOO_LARGE"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// AsError converts any error into a *Error, wrapping unknown errors
// as INTERNAL_ERROR.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewError(ErrInternalError, err.Error()).WithCause(err)
}

// NewValidationError creates a VALIDATION_FAILED error.
func NewValidationError(message string) *Error {
	return NewError(ErrValidationFailed, message).WithHTTPStatus(400)
}

// NewGeometryError creates a GEOMETRY_PARSE error.
func NewGeometryError(message string, cause error) *Error {
	return NewError(ErrGeometryParse, message).WithCause(cause).WithHTTPStatus(400)
}

// NewBuildError creates a BUILD_FAILED error.
func NewBuildError(message string, cause error) *Error {
	return NewError(ErrBuildFailed, message).WithCause(cause).WithHTTPStatus(500)
}
