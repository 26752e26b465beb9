// Package errors provides structured error handling for netsweep operations.
// It defines error codes and coded error types for the scan engine, the
// history store and configuration, plus helpers to classify them.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeNotFound      ErrorCode = "NOT_FOUND"

	// Engine-level errors abort a whole scan.
	CodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	CodeTargetInvalid     ErrorCode = "TARGET_INVALID"
	CodeDiscoveryFailed   ErrorCode = "DISCOVERY_FAILED"

	// Host-level errors degrade a single host record.
	CodeScanFailed      ErrorCode = "SCAN_FAILED"
	CodeHostUnreachable ErrorCode = "HOST_UNREACHABLE"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
)

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	err := NewScanError(code, message)
	err.Target = target
	return err
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	scanErr := NewScanError(code, message)
	scanErr.Cause = err
	return scanErr
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	scanErr := WrapScanError(code, message, err)
	scanErr.Target = target
	return scanErr
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Query     string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// WithQuery adds the SQL query that caused the error.
func (e *DatabaseError) WithQuery(query string) *DatabaseError {
	e.Query = query
	return e
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
	}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Code
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsNotFound reports whether err signals a missing resource.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

// IsEngine reports whether err is an engine-level failure that aborts a scan.
func IsEngine(err error) bool {
	switch GetCode(err) {
	case CodeEngineUnavailable, CodeTargetInvalid, CodeDiscoveryFailed:
		return true
	default:
		return false
	}
}

// IsProbe reports whether err is a per-host probe failure.
func IsProbe(err error) bool {
	switch GetCode(err) {
	case CodeScanFailed, CodeHostUnreachable, CodeTimeout:
		var scanErr *ScanError
		return errors.As(err, &scanErr)
	default:
		return false
	}
}

// IsStore reports whether err originated in the history store.
func IsStore(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}

// Common error creation functions

// ErrInvalidTarget creates an error for targets the engine refused.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "Invalid target specification", target)
}

// ErrEngineUnavailable creates an error for an engine that cannot be invoked.
func ErrEngineUnavailable(err error) *ScanError {
	return WrapScanError(CodeEngineUnavailable, "Scan engine is not available", err)
}

// ErrHostUnreachable creates an error for hosts missing from a detailed scan.
func ErrHostUnreachable(target string) *ScanError {
	return NewScanErrorWithTarget(CodeHostUnreachable, "Host did not respond to detailed scan", target)
}

// ErrScanTimeout creates an error for scan timeouts.
func ErrScanTimeout(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeTimeout, "Scan operation timed out", target, err)
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}

// ErrNotFound creates an error for a missing resource.
func ErrNotFound(resource string) *DatabaseError {
	return NewDatabaseError(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// ErrValidation creates a validation error for a request field.
func ErrValidation(field, message string) *ConfigError {
	return NewConfigFieldError(CodeValidation, message, field, nil)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Invalid configuration value", field, value)
}
