// Package errors defines the stable error taxonomy for pennant.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// StoreUnavailable indicates neither season store is reachable
	StoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// IngestionSourceError indicates the upstream producer failed for a unit
	IngestionSourceError ErrorCode = "INGESTION_SOURCE_ERROR"
	// DriftViolation indicates a league constant moved beyond the allowed ceiling
	DriftViolation ErrorCode = "DRIFT_VIOLATION"
	// GameNotFound indicates the requested game does not exist in either store
	GameNotFound ErrorCode = "GAME_NOT_FOUND"
	// ConfigInvalid indicates configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// PennantError represents a pennant error with a stable code and message
type PennantError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new PennantError
func New(code ErrorCode, message string) *PennantError {
	return &PennantError{Code: code, Message: message}
}

// Wrap creates a new PennantError wrapping a cause
func Wrap(code ErrorCode, message string, cause error) *PennantError {
	return &PennantError{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *PennantError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PennantError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PennantError) WithDetails(details interface{}) *PennantError {
	e.Details = details
	return e
}

// CodeOf extracts the ErrorCode from an error chain.
// Returns InternalError for errors outside the taxonomy.
func CodeOf(err error) ErrorCode {
	var pe *PennantError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return InternalError
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *PennantError
	if stderrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
