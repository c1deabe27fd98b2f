// Package errors provides structured error types for the evolve system.
// All errors include a category, code, message, and structured details so
// callers and tests can match on the failing app, model, field, or
// operation index rather than on message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure domain.
type ErrorCategory string

const (
	// ErrCategoryConflict covers operations that target a nonexistent or
	// duplicate entity during simulation.
	ErrCategoryConflict ErrorCategory = "CONFLICT"

	// ErrCategoryDivergence covers a simulated signature that does not
	// structurally equal the target signature.
	ErrCategoryDivergence ErrorCategory = "DIVERGENCE"

	// ErrCategoryUnresolved covers foreign-key or rename targets that do
	// not resolve to a known model.
	ErrCategoryUnresolved ErrorCategory = "UNRESOLVED_REFERENCE"

	// ErrCategoryBackend covers statement failures reported by the
	// external executor after validation.
	ErrCategoryBackend ErrorCategory = "BACKEND_EXECUTION"

	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryHistory    ErrorCategory = "HISTORY"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Conflict codes
	CodeDuplicateEntity = "DUPLICATE_ENTITY"
	CodeUnknownEntity   = "UNKNOWN_ENTITY"
	CodeMissingInitial  = "MISSING_INITIAL"
	CodeProtectedEntity = "PROTECTED_ENTITY"
	CodeCannotSimulate  = "CANNOT_SIMULATE"

	// Divergence codes
	CodeSignatureMismatch = "SIGNATURE_MISMATCH"

	// Unresolved reference codes
	CodeUnknownRelation     = "UNKNOWN_RELATION"
	CodeUnknownRenameTarget = "UNKNOWN_RENAME_TARGET"

	// Backend codes
	CodeStatementFailed = "STATEMENT_FAILED"

	// Validation codes
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeInvalidMutation  = "INVALID_MUTATION"
	CodeInvalidConfig    = "INVALID_CONFIG"

	// History codes
	CodeVersionNotFound = "VERSION_NOT_FOUND"
	CodeStoreFailed     = "STORE_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// EvolveError is the structured error type used throughout the system.
type EvolveError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *EvolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *EvolveError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *EvolveError) Is(target error) bool {
	var t *EvolveError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new EvolveError.
func New(category ErrorCategory, code, message string) *EvolveError {
	return &EvolveError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new EvolveError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *EvolveError {
	return &EvolveError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *EvolveError) WithDetails(details map[string]interface{}) *EvolveError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithDetail returns err with one detail key merged in, preserving any
// details already attached. Non-EvolveError errors pass through
// unchanged.
func WithDetail(err error, key string, value interface{}) error {
	var ee *EvolveError
	if !errors.As(err, &ee) {
		return err
	}
	merged := make(map[string]interface{}, len(ee.Details)+1)
	for k, v := range ee.Details {
		merged[k] = v
	}
	merged[key] = value
	return ee.WithDetails(merged)
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an EvolveError.
func GetCategory(err error) ErrorCategory {
	var ee *EvolveError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an EvolveError.
func GetCode(err error) string {
	var ee *EvolveError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// GetDetail extracts a single detail value from an error chain.
// Returns nil if the error is not an EvolveError or the key is absent.
func GetDetail(err error, key string) interface{} {
	var ee *EvolveError
	if errors.As(err, &ee) && ee.Details != nil {
		return ee.Details[key]
	}
	return nil
}

// Convenience constructors for common errors.

func NewConflictError(code, message string) *EvolveError {
	return New(ErrCategoryConflict, code, message)
}

func NewDivergenceError(message string) *EvolveError {
	return New(ErrCategoryDivergence, CodeSignatureMismatch, message)
}

func NewUnresolvedError(code, message string) *EvolveError {
	return New(ErrCategoryUnresolved, code, message)
}

func NewBackendError(message string, cause error) *EvolveError {
	return Wrap(ErrCategoryBackend, CodeStatementFailed, message, cause)
}

func NewValidationError(code, message string) *EvolveError {
	return New(ErrCategoryValidation, code, message)
}

func NewHistoryError(code, message string, cause error) *EvolveError {
	return Wrap(ErrCategoryHistory, code, message, cause)
}

func NewStorageError(code, message string, cause error) *EvolveError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *EvolveError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
