package domain

import (
	"errors"
	"fmt"
)

// Sentinel categories. Concrete errors below match them via errors.Is so
// callers can branch on the category without knowing the concrete type.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned when a referenced record does not exist or is
// outside the caller's ownership scope.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports an invariant violation such as double consumption of
// a heat cycle or a second delivery for the same insemination.
type ConflictError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e ConflictError) Error() string {
	if e.Entity == "" {
		return "conflict: " + e.Reason
	}
	if e.ID == "" {
		return fmt.Sprintf("%s conflict: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s %s conflict: %s", e.Entity, e.ID, e.Reason)
}

// Is matches ErrConflict.
func (e ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ErrStaleState is returned by durable stores when another writer committed
// after the state a transaction read was loaded.
var ErrStaleState error = ConflictError{Reason: "herd state was changed by another writer, retry"}

// Conflict builds a ConflictError with a formatted reason.
func Conflict(entity EntityType, id, format string, args ...any) error {
	return ConflictError{Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)}
}

// RuleViolationError is returned when blocking violations are present. It is
// a conflict from the caller's point of view.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rules: %s: %s", v.Rule, v.Message)
		}
	}
	return "transaction blocked by rules"
}

// Is matches ErrConflict.
func (e RuleViolationError) Is(target error) bool {
	return target == ErrConflict
}
