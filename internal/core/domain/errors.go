// Package domain defines the core domain types for metackpt.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "CK-COR-5001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Checkpoint Errors (CK)
// ============================================================================

var (
	// ErrCheckpointInternal indicates a checkpoint could not be written or
	// restored: IO failure, unknown digest algorithm, entity failure or
	// cancellation. The original failure is kept as the cause.
	ErrCheckpointInternal = NewDomainError("CK-INT-5000", "checkpoint operation failed")

	// ErrCheckpointCorrupted indicates the restored payload does not match
	// its digest sidecar, or the sidecar is missing. Always fatal.
	ErrCheckpointCorrupted = NewDomainError("CK-COR-5001", "checkpoint corrupted")

	// ErrInvalidCheckpointName indicates a name that cannot be used as a file name.
	ErrInvalidCheckpointName = NewDomainError("CK-ARG-4000", "invalid checkpoint name")

	// ErrUnknownDigest indicates an unregistered digest algorithm.
	ErrUnknownDigest = NewDomainError("CK-ARG-4001", "unknown digest algorithm")

	// ErrInvalidCatalogKey indicates an empty or oversized catalog key.
	ErrInvalidCatalogKey = NewDomainError("CK-ARG-4002", "invalid catalog key")

	// ErrPoolClosed indicates a task was submitted to a closed worker pool.
	ErrPoolClosed = NewDomainError("CK-SYS-5002", "worker pool closed")
)

// IsCorruption reports whether err is a checkpoint corruption error.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCheckpointCorrupted)
}

// IsInternal reports whether err is a checkpoint internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrCheckpointInternal)
}
