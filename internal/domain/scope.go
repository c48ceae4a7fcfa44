package domain

import (
	"fmt"
	"strings"
)

// Scope is the breadth of an edit or delete on a recurring item.
type Scope string

const (
	ScopeThisOnly      Scope = "this_only"
	ScopeThisAndFuture Scope = "this_and_future"
	ScopeAll           Scope = "all"
)

// ParseScope parses a caller-supplied scope. Empty means this_only.
// The span names used by EventKit ("this_event", "future_events") are
// accepted as aliases.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "this_only", "this_event":
		return ScopeThisOnly, nil
	case "this_and_future", "future_events":
		return ScopeThisAndFuture, nil
	case "all", "series":
		return ScopeAll, nil
	default:
		return "", &ValidationError{Field: "scope", Reason: fmt.Sprintf("must be 'this_only', 'this_and_future' or 'all' (got %q)", s)}
	}
}

// AuthState is the store's authorization status for one kind.
type AuthState string

const (
	AuthNotDetermined AuthState = "not_determined"
	AuthRestricted    AuthState = "restricted"
	AuthDenied        AuthState = "denied"
	AuthAuthorized    AuthState = "authorized"
	AuthWriteOnly     AuthState = "write_only"
)

// CanRequest is true when asking for access may still change the state.
func (s AuthState) CanRequest() bool {
	return s == AuthNotDetermined
}
