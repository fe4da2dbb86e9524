// Package shared contains the error taxonomy used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrNotFound is returned when the referenced entity id does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateEmail is returned when a live student already holds the email.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrStudentNotFound is a cross-entity referential failure: a grade
	// operation names a student that does not exist. It is a client input
	// error, not a resource lookup miss, so it does not match ErrNotFound.
	ErrStudentNotFound = errors.New("referenced student not found")

	// ErrValidation is returned when field constraints are violated.
	ErrValidation = errors.New("validation failed")
)

// DuplicateEmailMessage is the user-visible message for ErrDuplicateEmail.
const DuplicateEmailMessage = "A student with this email already exists."

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "student", "grade"
	Op      string // Operation that failed, e.g. "Create", "Update"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message, safe to show to clients
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

// NotFoundMessage formats the client-facing message for a missing entity.
// Consumers match on this exact shape.
func NotFoundMessage(entity string, id int64) string {
	return fmt.Sprintf("%s with ID %d not found.", entity, id)
}

// NotFound returns an ErrNotFound error for the given entity name ("Student", "Grade").
func NotFound(entity string, id int64) *DomainError {
	return NewDomainError(strings.ToLower(entity), "Find", ErrNotFound, NotFoundMessage(entity, id))
}

// MissingStudent returns an ErrStudentNotFound error for a grade operation
// that references student id.
func MissingStudent(id int64) *DomainError {
	return NewDomainError("grade", "ResolveStudent", ErrStudentNotFound, NotFoundMessage("Student", id))
}

// DuplicateEmail returns an ErrDuplicateEmail error raised by op.
func DuplicateEmail(op string) *DomainError {
	return NewDomainError("student", op, ErrDuplicateEmail, DuplicateEmailMessage)
}

// ValidationError lists every violated field, keyed by the client-facing field name.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no violation was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Err returns e as an error, or nil when no violation was recorded.
func (e *ValidationError) Err() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

// Error implements the error interface. Fields are listed in name order.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], "; ")))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, ", "))
}

// Is implements errors.Is() matching against ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MessageOf returns the client-facing message carried by err, if any.
func MessageOf(err error) (string, bool) {
	var de *DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message, true
	}
	return "", false
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateEmail checks if the error is an email uniqueness violation.
func IsDuplicateEmail(err error) bool {
	return errors.Is(err, ErrDuplicateEmail)
}

// IsStudentNotFound checks if a grade operation referenced a missing student.
func IsStudentNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
