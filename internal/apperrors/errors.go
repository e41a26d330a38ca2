package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an application error.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeTransient  ErrorType = "TRANSIENT"
	ErrorTypeStructural ErrorType = "STRUCTURAL"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewValidationError creates a validation error
func NewValidationError(format string, args ...any) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a not found error for the named resource.
func NewNotFoundError(kind, name string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: fmt.Sprintf("%s %q not found", kind, name)}
}

// NewTransientError marks a provider failure as retryable.
func NewTransientError(cause error) *AppError {
	return &AppError{Type: ErrorTypeTransient, Message: "transient provider error", Cause: cause}
}

// NewStructuralError reports a plan that cannot make progress.
func NewStructuralError(format string, args ...any) *AppError {
	return &AppError{Type: ErrorTypeStructural, Message: fmt.Sprintf(format, args...)}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Cause: cause}
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsTransient reports whether err is a retryable provider error
func IsTransient(err error) bool { return isType(err, ErrorTypeTransient) }

// IsStructural reports whether err is a structural plan error
func IsStructural(err error) bool { return isType(err, ErrorTypeStructural) }
