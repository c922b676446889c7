package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrTransient indicates a temporary error that should be retried
	ErrTransient = errors.New("transient error")

	// ErrPermanent indicates a permanent error that should not be retried
	ErrPermanent = errors.New("permanent error")

	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates authentication failure
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("timeout")

	// ErrNoInventory is returned when a session carries no usable software rows
	ErrNoInventory = errors.New("no inventory data")

	// ErrSessionNotFound is returned for unknown audit session keys
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned for audit sessions past their lifetime
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionForbidden is returned when a session is used by another user
	ErrSessionForbidden = errors.New("session belongs to another user")
)

// TransientError wraps an error to mark it as transient (retryable)
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error: %v", e.Cause)
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransient creates a new transient error
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// NewTransientf creates a new transient error with formatting
func NewTransientf(format string, args ...interface{}) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// PermanentError wraps an error to mark it as permanent (not retryable)
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent error: %v", e.Cause)
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// NewPermanent creates a new permanent error
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// NewPermanentf creates a new permanent error with formatting
func NewPermanentf(format string, args ...interface{}) error {
	return &PermanentError{Cause: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	return ClassifyError(err) == ErrorClassTransient
}

// IsPermanent checks if an error is explicitly permanent
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// IsInputRejection reports whether err is a caller mistake that must be surfaced
// immediately rather than retried.
func IsInputRejection(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNoInventory) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionForbidden)
}

// ErrorClass is the retry category of an error
type ErrorClass int

const (
	ErrorClassUnknown ErrorClass = iota
	ErrorClassTransient
	ErrorClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifyError determines the retry category in a single pass.
// Explicit wrappers win over sentinels; anything unrecognised is unknown.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return ErrorClassTransient
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return ErrorClassPermanent
	}

	if errors.Is(err, context.Canceled) {
		return ErrorClassPermanent
	}

	if IsInputRejection(err) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) {
		return ErrorClassPermanent
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}

	return ErrorClassUnknown
}

var permanentPatterns = []string{
	"unauthorized",
	"authentication failed",
	"auth failed",
	"invalid",
	"malformed",
	"permission denied",
	"not configured",
}

// ClassifyStoreError wraps a raw driver error from the corpus or cache store
// as transient or permanent based on its message. Unrecognised driver errors are
// treated as transient since the stores sit behind a network hop.
func ClassifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if ClassifyError(err) != ErrorClassUnknown {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range permanentPatterns {
		if strings.Contains(msg, pattern) {
			return NewPermanent(err)
		}
	}
	return NewTransient(err)
}
