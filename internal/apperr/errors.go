package apperr

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across the typed errors below.
var (
	ErrValidation    = errors.New("validation failed")
	ErrAuthorization = errors.New("not authorized")
	ErrInvariant     = errors.New("invariant violation")
	ErrDependency    = errors.New("dependency failure")
	ErrNotFound      = errors.New("not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type AuthorizationError struct {
	Actor  string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization: actor %q: %s", e.Actor, e.Reason)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorization }

func Unauthorized(actor, reason string) error {
	return &AuthorizationError{Actor: actor, Reason: reason}
}

// InvariantViolation is retryable: the caller should reload state and
// re-attempt the transition if it still applies.
type InvariantViolation struct {
	Rule   string
	Reason string
	Err    error
}

func (e *InvariantViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant %s: %s: %v", e.Rule, e.Reason, e.Err)
	}
	return fmt.Sprintf("invariant %s: %s", e.Rule, e.Reason)
}

func (e *InvariantViolation) Unwrap() error { return e.Err }

func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariant }

func Invariant(rule, reason string) error {
	return &InvariantViolation{Rule: rule, Reason: reason}
}

func InvariantWrap(rule, reason string, err error) error {
	return &InvariantViolation{Rule: rule, Reason: reason, Err: err}
}

type DependencyFailure struct {
	Dependency string
	Err        error
}

func (e *DependencyFailure) Error() string {
	return fmt.Sprintf("dependency %s: %v", e.Dependency, e.Err)
}

func (e *DependencyFailure) Unwrap() error { return e.Err }

func (e *DependencyFailure) Is(target error) bool { return target == ErrDependency }

func Dependency(name string, err error) error {
	return &DependencyFailure{Dependency: name, Err: err}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsRetryable reports whether the caller may reload and retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInvariant) || errors.Is(err, ErrDependency)
}
