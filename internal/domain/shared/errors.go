// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrNotAuthenticated = errors.New("not authenticated")

	// Store errors. A reconciliation cycle reports exactly one of these.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrReadFailure      = errors.New("read failure")
	ErrWriteFailure     = errors.New("write failure")

	// Transient infrastructure errors
	ErrTimeout = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "skill", "badge"
	Op      string // Operation that failed, e.g., "Create", "UpdateAchievedAt"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Skill domain errors
var (
	ErrSkillNotFound         = NewDomainError("skill", "Find", ErrNotFound, "skill not found")
	ErrSkillAlreadyExists    = NewDomainError("skill", "Create", ErrAlreadyExists, "skill already exists")
	ErrPracticeEntryNotFound = NewDomainError("skill", "FindPracticeEntry", ErrNotFound, "practice entry not found")
	ErrInvalidSkillName      = NewDomainError("skill", "Validate", ErrEmptyValue, "skill name is required")
	ErrInvalidDuration       = NewDomainError("skill", "Validate", ErrValidation, "practice duration must be a positive number of minutes")
	ErrInvalidTarget         = NewDomainError("skill", "Validate", ErrNegativeValue, "target practice time cannot be negative")
)

// Badge domain errors
var (
	ErrBadgeNotFound     = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrUserRequired      = NewDomainError("badge", "Bootstrap", ErrNotAuthenticated, "user id is required")
	ErrControllerBusy    = NewDomainError("badge", "Reconcile", ErrInvalidState, "controller is not ready")
	ErrBadgeStoreOffline = NewDomainError("badge", "Store", ErrStoreUnavailable, "badge store is unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue)
}

// IsStoreFailure checks if the error came from a collaborator store.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrReadFailure) ||
		errors.Is(err, ErrWriteFailure)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout)
}
