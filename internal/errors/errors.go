// Package errors provides error code definitions shared across Cadenza.
package errors

import "fmt"

// ErrorCode represents a unique, stable error code.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrStorage       ErrorCode = "STORAGE_ERROR"
	ErrStorageClosed ErrorCode = "STORAGE_CLOSED"

	// Change queue errors
	ErrQueuePersist  ErrorCode = "QUEUE_PERSIST_FAILED"
	ErrQueueNotFound ErrorCode = "QUEUE_ITEM_NOT_FOUND"

	// Sync errors
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"
	ErrSyncTimeout    ErrorCode = "SYNC_TIMEOUT"
	ErrSyncConflict   ErrorCode = "SYNC_CONFLICT"
	ErrSyncProtocol   ErrorCode = "SYNC_PROTOCOL_ERROR"

	// Real-time channel errors
	ErrChannelAuthFailed ErrorCode = "CHANNEL_AUTH_FAILED"
	ErrChannelClosed     ErrorCode = "CHANNEL_CLOSED"
	ErrChannelBadEvent   ErrorCode = "CHANNEL_BAD_EVENT"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of an AppError, or ErrInternal for any other error.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
