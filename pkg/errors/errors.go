package errors

import (
	"errors"
	"fmt"
)

// Generic errors shared by every layer

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a dependency is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the caller hit the API rate limit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Prediction errors

var (
	// ErrModelUnavailable indicates the model bundle is missing, unreadable or incompatible
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrUnknownCategory indicates an input token was never seen during training
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInferenceFailure indicates the classifier failed while scoring an input
	ErrInferenceFailure = errors.New("inference failure")
)

// Training errors

var (
	// ErrMissingColumn indicates the dataset lacks a required column
	ErrMissingColumn = errors.New("missing required column")

	// ErrDegenerateLabelSpace indicates fewer than two labels survived pruning
	ErrDegenerateLabelSpace = errors.New("degenerate label space")

	// ErrEmptyDataset indicates no usable rows remained after filtering
	ErrEmptyDataset = errors.New("empty dataset")
)

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

// Unwrap lets callers match validation failures with ErrInvalidInput
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

// UnknownCategoryError names the first input field whose token has no code
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category for field %q: %q", e.Field, e.Value)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrUnknownCategory
}

// NewUnknownCategoryError creates an unknown category error
func NewUnknownCategoryError(field, value string) *UnknownCategoryError {
	return &UnknownCategoryError{Field: field, Value: value}
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

// Join combines errors, dropping nils; nil when every err is nil
func Join(errs ...error) error {
	return errors.Join(errs...)
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

// New is errors.New, re-exported so callers need a single errors import
func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
