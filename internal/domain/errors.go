package domain

import (
	"errors"
	"fmt"
)

// Error kinds reported to tool callers.
const (
	ErrKindPermission  = "permission_denied"
	ErrKindNotFound    = "not_found"
	ErrKindUnsupported = "unsupported_scope"
	ErrKindValidation  = "invalid_input"
	ErrKindStore       = "store_error"
	ErrKindUnexpected  = "unexpected_error"
)

// PermissionError is returned when the store has not granted access to a kind.
type PermissionError struct {
	Kind  Kind
	State AuthState
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s access %s. %s", e.Kind.Entity(), e.State, e.Instructions())
}

// Instructions tells the user how to get out of the current state.
func (e *PermissionError) Instructions() string {
	switch e.State {
	case AuthDenied:
		return fmt.Sprintf("Please enable %s access for calkit in the store settings, or fix the configured credentials.", e.Kind.Entity())
	case AuthRestricted:
		return "Access is restricted by device policy."
	case AuthWriteOnly:
		return fmt.Sprintf("Full %s access is required; write-only access cannot read items.", e.Kind.Entity())
	default:
		return "Run calkit-setup once to request access."
	}
}

// NotFoundError is returned when an identifier no longer resolves.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// UnsupportedScopeError is returned when a scope cannot be applied to the
// fetched item. Nothing has been written when it is returned.
type UnsupportedScopeError struct {
	ID     string
	Scope  Scope
	Reason string
}

func (e *UnsupportedScopeError) Error() string {
	return fmt.Sprintf("scope %s not supported for %s: %s", e.Scope, e.ID, e.Reason)
}

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps an underlying store failure without interpreting it.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// ErrorKind maps an error to the kind reported to tool callers.
func ErrorKind(err error) string {
	var (
		permErr        *PermissionError
		notFoundErr    *NotFoundError
		unsupportedErr *UnsupportedScopeError
		validationErr  *ValidationError
		storeErr       *StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &permErr):
		return ErrKindPermission
	case errors.As(err, &notFoundErr):
		return ErrKindNotFound
	case errors.As(err, &unsupportedErr):
		return ErrKindUnsupported
	case errors.As(err, &validationErr):
		return ErrKindValidation
	case errors.As(err, &storeErr):
		return ErrKindStore
	default:
		return ErrKindUnexpected
	}
}
