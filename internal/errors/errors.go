package errors

import (
	"fmt"
)

// ServiceError is the structured error type for suggestd.
// It provides context for error handling, logging, and the HTTP layer.
type ServiceError struct {
	// Code is the unique error code (e.g., "ERR_201_STORE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Index, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Recoverable indicates the fusion engine recovers from this error
	// locally instead of surfacing it to the caller.
	Recoverable bool
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ServiceError.
func (e *ServiceError) Is(target error) bool {
	if t, ok := target.(*ServiceError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ServiceError) WithDetail(key, value string) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError with the given code and message.
// Category, severity, and the recoverable flag are derived from the code.
func New(code string, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:        code,
		Message:     message,
		Category:    categoryFromCode(code),
		Severity:    severityFromCode(code),
		Cause:       cause,
		Recoverable: isRecoverableCode(code),
	}
}

// Wrap creates a ServiceError from an existing error.
// The error's message becomes the ServiceError message.
func Wrap(code string, err error) *ServiceError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreError creates a relational-store error. Always fatal for the
// current request; there is no further fallback behind the store.
func StoreError(message string, cause error) *ServiceError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// IndexError creates a full-text-index error. Recoverable: the fusion
// engine falls through to the relational fallback.
func IndexError(message string, cause error) *ServiceError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ServiceError {
	return New(ErrCodeInvalidInput, message, cause)
}

// AccessDenied creates an authorization error for the given profile.
func AccessDenied(profileID string) *ServiceError {
	return New(ErrCodeAccessDenied, "no access to profile", nil).
		WithDetail("profile_id", profileID)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ServiceError {
	return New(ErrCodeInternal, message, cause)
}

// IsRecoverable checks if an error is recovered locally by the caller.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ServiceError); ok {
		return se.Recoverable
	}
	return false
}

// GetCode extracts the error code from a ServiceError.
// Returns empty string if not a ServiceError.
func GetCode(err error) string {
	if se, ok := err.(*ServiceError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ServiceError.
// Returns empty string if not a ServiceError.
func GetCategory(err error) Category {
	if se, ok := err.(*ServiceError); ok {
		return se.Category
	}
	return ""
}
