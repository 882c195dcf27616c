package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrorCode represents a unified error code across the runtime.
type ErrorCode string

// Classified error codes
const (
	ErrNetwork        ErrorCode = "NETWORK_ERROR"
	ErrTimeout        ErrorCode = "TIMEOUT_ERROR"
	ErrRateLimit      ErrorCode = "RATE_LIMIT_ERROR"
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrUnknown        ErrorCode = "UNKNOWN_ERROR"
	ErrCancelled      ErrorCode = "CANCELLED"
)

// Runtime error codes
const (
	ErrMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"
	ErrCircuitBreakerOpen ErrorCode = "CIRCUIT_BREAKER_OPEN"
	ErrConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	ErrState              ErrorCode = "STATE_ERROR"
	ErrToolsNotFound      ErrorCode = "TOOLS_NOT_FOUND"
	ErrContextNotSet      ErrorCode = "CONTEXT_NOT_SET"
	ErrPlugin             ErrorCode = "PLUGIN_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Context   map[string]any `json:"context,omitempty"`
	Cause     error          `json:"-"`
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

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithContext attaches a key/value pair to the error context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewExecutionError creates a general turn failure.
func NewExecutionError(code ErrorCode, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// NewToolExecutionError wraps a failure raised by the named tool.
// The code is derived from the tool name, e.g. updateMemory -> TOOL_UPDATE_MEMORY_ERROR.
func NewToolExecutionError(toolName, message string, cause error) *Error {
	return NewError(ToolErrorCode(toolName), message).
		WithCause(cause).
		WithContext("toolName", toolName)
}

// NewConfigurationError reports invalid configuration. Never retryable.
func NewConfigurationError(message string) *Error {
	return NewError(ErrConfiguration, message)
}

// NewStateError reports a persistence inconsistency. Retryable.
func NewStateError(message string) *Error {
	return NewError(ErrState, message).WithRetryable(true)
}

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonWord       = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// ToolErrorCode returns the error code used for failures of the named tool.
func ToolErrorCode(toolName string) ErrorCode {
	name := camelBoundary.ReplaceAllString(toolName, "${1}_${2}")
	name = strings.Trim(nonWord.ReplaceAllString(name, "_"), "_")
	return ErrorCode("TOOL_" + strings.ToUpper(name) + "_ERROR")
}

// AsError extracts a *Error from the error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
