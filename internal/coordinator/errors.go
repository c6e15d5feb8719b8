package coordinator

import (
	"errors"
	"fmt"
)

// ErrStopped is returned for events submitted after the loop stopped, or
// still queued when it did.
var ErrStopped = errors.New("coordinator stopped")

// ErrorCode categorizes ingest errors.
type ErrorCode string

const (
	// ErrCodeInvalidReading indicates the reading failed validation.
	ErrCodeInvalidReading ErrorCode = "INVALID_READING"

	// ErrCodeStoreFailed indicates the store insert failed.
	ErrCodeStoreFailed ErrorCode = "STORE_FAILED"
)

// IngestError represents a reading that was dropped without being
// displayed. The display index is unchanged when Ingest returns one.
type IngestError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IsInvalidReading returns true if the error is a validation failure.
// Uses errors.As to handle wrapped errors.
func IsInvalidReading(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeInvalidReading
	}
	return false
}

// IsStoreError returns true if the error is a store insert failure.
// Uses errors.As to handle wrapped errors.
func IsStoreError(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeStoreFailed
	}
	return false
}

func newInvalidReadingError(err error) *IngestError {
	return &IngestError{
		Code:    ErrCodeInvalidReading,
		Message: "reading rejected",
		Err:     err,
	}
}

func newStoreError(err error) *IngestError {
	return &IngestError{
		Code:    ErrCodeStoreFailed,
		Message: "reading not stored",
		Err:     err,
	}
}
