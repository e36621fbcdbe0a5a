package types

import "fmt"

// ErrorCode represents a unified error code across the toolkit.
type ErrorCode string

// Browser error codes
const (
	ErrBrowserStartFailed  ErrorCode = "BROWSER_START_FAILED"
	ErrNavigationFailed    ErrorCode = "NAVIGATION_FAILED"
	ErrSearchFailed        ErrorCode = "SEARCH_FAILED"
	ErrSearchInputNotFound ErrorCode = "SEARCH_INPUT_NOT_FOUND"
	ErrSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrSessionCorrupt      ErrorCode = "SESSION_CORRUPT"
	ErrSessionSaveFailed   ErrorCode = "SESSION_SAVE_FAILED"
)

// Extraction error codes
const (
	ErrExtractionFailed    ErrorCode = "EXTRACTION_FAILED"
	ErrResponseParseFailed ErrorCode = "RESPONSE_PARSE_FAILED"
	ErrSchemaUnknown       ErrorCode = "SCHEMA_UNKNOWN"
)

// Inference server error codes
const (
	ErrPortInUse          ErrorCode = "PORT_IN_USE"
	ErrExecutableNotFound ErrorCode = "EXECUTABLE_NOT_FOUND"
	ErrModelNotFound      ErrorCode = "MODEL_NOT_FOUND"
	ErrProcessExited      ErrorCode = "PROCESS_EXITED"
	ErrProcessNotFound    ErrorCode = "PROCESS_NOT_FOUND"
	ErrServerNotConfirmed ErrorCode = "SERVER_NOT_CONFIRMED"
)

// Transport error codes
const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"
	ErrModelOverloaded ErrorCode = "MODEL_OVERLOADED"
	ErrUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrTimeout         ErrorCode = "TIMEOUT"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
	ErrInvalidConfig   ErrorCode = "INVALID_CONFIG"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
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

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
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

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
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
