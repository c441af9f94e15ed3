package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an application-specific error type
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// wraps an error with a code and message
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Error code constants
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInvalidArg = "INVALID_ARGUMENT"
	CodeExternal   = "EXTERNAL_ERROR"
	CodeConflict   = "CONFLICT"         // Resource already exists (UNIQUE violation)
	CodeDependency = "DEPENDENCY_ERROR" // Foreign key constraint violation

	// Pipeline taxonomy
	CodeTransient        = "TRANSIENT_TRANSPORT_ERROR" // retryable with backoff
	CodeSchemaValidation = "SCHEMA_VALIDATION_ERROR"   // retryable immediately
	CodePermanentItem    = "PERMANENT_ITEM_ERROR"      // item is marked failed
	CodeFatalConfig      = "FATAL_CONFIGURATION_ERROR" // run aborts before any item
)

// Transient wraps err as a TransientTransportError
func Transient(err error, message string) *AppError {
	return Wrap(err, CodeTransient, message)
}

// SchemaValidation creates a SchemaValidationError
func SchemaValidation(err error, message string) *AppError {
	return Wrap(err, CodeSchemaValidation, message)
}

// PermanentItem wraps err as a PermanentItemError
func PermanentItem(err error, message string) *AppError {
	return Wrap(err, CodePermanentItem, message)
}

// FatalConfig creates a FatalConfigurationError
func FatalConfig(message string) *AppError {
	return New(CodeFatalConfig, message)
}

// IsTransient reports whether err is a TransientTransportError
func IsTransient(err error) bool { return HasCode(err, CodeTransient) }

// IsSchemaValidation reports whether err is a SchemaValidationError
func IsSchemaValidation(err error) bool { return HasCode(err, CodeSchemaValidation) }

// IsFatalConfig reports whether err is a FatalConfigurationError
func IsFatalConfig(err error) bool { return HasCode(err, CodeFatalConfig) }
