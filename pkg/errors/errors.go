package errors

import (
	"errors"
	"fmt"
)

// Domain error types shared by the portal packages

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates a client side rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Filter errors

var (
	// ErrUnknownFilter indicates a filter key that is not part of the catalog
	ErrUnknownFilter = errors.New("unknown filter")

	// ErrUnknownKind indicates a filter kind with no registered renderer
	ErrUnknownKind = errors.New("unknown filter kind")

	// ErrInvalidChoice indicates a value outside a fixed option set
	ErrInvalidChoice = errors.New("value is not one of the allowed options")

	// ErrUnsupportedAction indicates an interaction the filter kind does not handle
	ErrUnsupportedAction = errors.New("action not supported by filter kind")

	// ErrPrerequisiteMissing indicates a dependent filter whose parent has no value
	ErrPrerequisiteMissing = errors.New("prerequisite filter is not set")

	// ErrInvalidHierarchy indicates a malformed cascade definition
	ErrInvalidHierarchy = errors.New("invalid filter hierarchy")
)

// Live session errors

var (
	// ErrSessionClosed indicates the live session is no longer accepting messages
	ErrSessionClosed = errors.New("session closed")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is match validation errors against ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
