package domain

import (
	"fmt"
	"strings"
)

// Priority is the reminder priority as exposed to tool callers
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Native priority values used by calendar stores (RFC 5545 PRIORITY).
const (
	nativePriorityNone   = 0
	nativePriorityHigh   = 1
	nativePriorityMedium = 5
	nativePriorityLow    = 9
)

// ParsePriority parses a caller-supplied priority name.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityNone, nil
	case PriorityNone, PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("must be 'none', 'low', 'medium', or 'high' (got %q)", s)}
	}
}

// Native returns the store value for the priority.
func (p Priority) Native() int {
	switch p {
	case PriorityHigh:
		return nativePriorityHigh
	case PriorityMedium:
		return nativePriorityMedium
	case PriorityLow:
		return nativePriorityLow
	default:
		return nativePriorityNone
	}
}

// PriorityFromNative maps a store value back to a priority name.
// Values other than the four canonical ones read back as none.
func PriorityFromNative(v int) Priority {
	switch v {
	case nativePriorityHigh:
		return PriorityHigh
	case nativePriorityMedium:
		return PriorityMedium
	case nativePriorityLow:
		return PriorityLow
	default:
		return PriorityNone
	}
}
