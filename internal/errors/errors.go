package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNetwork indicates a connection-level failure (refused, reset, DNS).
	ErrCodeNetwork ErrorCode = "network"
	// ErrCodeTimeout indicates no response arrived within budget.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeProtocol indicates a malformed or unparseable message or body.
	ErrCodeProtocol ErrorCode = "protocol"
	// ErrCodeAuth indicates rejected credentials (401/403).
	ErrCodeAuth ErrorCode = "auth"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeNotFound indicates the server does not know the requested resource.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and
// optional cause. It supports error wrapping and unwrapping for use with
// errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Hostname is the remote host the failing operation targeted (optional)
	Hostname string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Network creates a new Network error.
func Network(message string) *AppError {
	return &AppError{Code: ErrCodeNetwork, Message: message}
}

// Networkf creates a new Network error with formatted message.
func Networkf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNetwork, Message: fmt.Sprintf(format, args...)}
}

// Timeout creates a new Timeout error.
func Timeout(message string) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: message}
}

// Timeoutf creates a new Timeout error with formatted message.
func Timeoutf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: fmt.Sprintf(format, args...)}
}

// Protocol creates a new Protocol error.
func Protocol(message string) *AppError {
	return &AppError{Code: ErrCodeProtocol, Message: message}
}

// Protocolf creates a new Protocol error with formatted message.
func Protocolf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeProtocol, Message: fmt.Sprintf(format, args...)}
}

// Auth creates a new Auth error.
func Auth(message string) *AppError {
	return &AppError{Code: ErrCodeAuth, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// WithHost annotates an error with the remote host it concerns and returns
// the annotated AppError. Non-AppErrors are wrapped first.
func WithHost(err error, hostname string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Wrap(err, ErrCodeInternal, err.Error())
	}
	appErr.Hostname = hostname
	return appErr
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNetwork checks if an error is a Network error.
func IsNetwork(err error) bool {
	return isCode(err, ErrCodeNetwork)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsProtocol checks if an error is a Protocol error.
func IsProtocol(err error) bool {
	return isCode(err, ErrCodeProtocol)
}

// IsAuth checks if an error is an Auth error.
func IsAuth(err error) bool {
	return isCode(err, ErrCodeAuth)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetHost returns the Hostname from an error, or empty string if unset.
func GetHost(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Hostname
	}
	return ""
}
