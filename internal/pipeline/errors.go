package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodeImageTooLarge indicates the image exceeds the byte ceiling.
	ErrCodeImageTooLarge ErrorCode = "IMAGE_TOO_LARGE"

	// ErrCodeNotReady indicates the recognition model is not loaded yet.
	ErrCodeNotReady ErrorCode = "NOT_READY"

	// ErrCodeBusy indicates recognition is in flight.
	ErrCodeBusy ErrorCode = "BUSY"

	// ErrCodeInvalidTransition indicates the action is not allowed in the current state.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeAcquire indicates the image source failed.
	ErrCodeAcquire ErrorCode = "ACQUIRE_FAILED"

	// ErrCodePersistence indicates recognized text could not be stored.
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILED"
)

// Error is returned by pipeline actions.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// State is the pipeline state when the error was raised.
	State State

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (state=%s): %v", e.Code, e.Message, e.State, e.Err)
	}
	return fmt.Sprintf("%s: %s (state=%s)", e.Code, e.Message, e.State)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsImageTooLarge reports whether err is an ErrCodeImageTooLarge error.
func IsImageTooLarge(err error) bool { return hasCode(err, ErrCodeImageTooLarge) }

// IsNotReady reports whether err is an ErrCodeNotReady error.
func IsNotReady(err error) bool { return hasCode(err, ErrCodeNotReady) }

// IsBusy reports whether err is an ErrCodeBusy error.
func IsBusy(err error) bool { return hasCode(err, ErrCodeBusy) }

// IsInvalidTransition reports whether err is an ErrCodeInvalidTransition error.
func IsInvalidTransition(err error) bool { return hasCode(err, ErrCodeInvalidTransition) }

// IsAcquireError reports whether err is an ErrCodeAcquire error.
func IsAcquireError(err error) bool { return hasCode(err, ErrCodeAcquire) }

// IsPersistenceError reports whether err is an ErrCodePersistence error.
func IsPersistenceError(err error) bool { return hasCode(err, ErrCodePersistence) }

func newTooLargeError(size, limit int64) *Error {
	return &Error{
		Code:    ErrCodeImageTooLarge,
		Message: fmt.Sprintf("image is %d bytes, limit is %d", size, limit),
		State:   StateIdle,
	}
}

func newTransitionError(action string, s State) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s", action),
		State:   s,
	}
}

// PersistenceError wraps a failed insert of recognized text.
func PersistenceError(err error) *Error {
	return &Error{
		Code:    ErrCodePersistence,
		Message: "recognized text was not saved",
		State:   StateFailed,
		Err:     err,
	}
}
