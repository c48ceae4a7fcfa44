package domain

import (
	"strings"
	"time"
)

// Kind is the item kind an operation targets. It doubles as the
// authorization domain checked by the permission gate.
type Kind string

const (
	KindEvent    Kind = "event"
	KindReminder Kind = "reminder"
)

// Entity returns the user-facing name of the store section for the kind.
func (k Kind) Entity() string {
	switch k {
	case KindEvent:
		return "Calendar"
	case KindReminder:
		return "Reminders"
	default:
		return string(k)
	}
}

// Container is a calendar (events) or a reminder list (reminders)
type Container struct {
	ID                  string
	Title               string
	Kind                Kind
	Color               string
	AllowsModifications bool
	IsDefault           bool
}

// MatchesRef reports whether ref names this container by id or by
// case-insensitive title.
func (c Container) MatchesRef(ref string) bool {
	if ref == "" {
		return false
	}
	return c.ID == ref || strings.EqualFold(c.Title, ref)
}

// RecurrenceMarker says how a record relates to a recurring series.
type RecurrenceMarker string

const (
	RecurrenceNone       RecurrenceMarker = "none"
	RecurrenceOccurrence RecurrenceMarker = "occurrence"
	RecurrenceSeries     RecurrenceMarker = "series"
)

// Record is the store-independent shape of an event or a reminder.
// Notes holds the body with the tag block removed; Tags is derived from
// the stored notes on every read and never persisted on its own.
type Record struct {
	ID             string
	SeriesID       string
	Kind           Kind
	ContainerID    string
	ContainerTitle string

	Title string
	Notes string
	Tags  []string

	// Events
	Start    time.Time
	End      time.Time
	AllDay   bool
	Location string
	URL      string

	// Reminders
	Due         *time.Time
	Priority    Priority
	Completed   bool
	CompletedAt *time.Time

	Recurrence     RecurrenceMarker
	RecurrenceRule string
	Detached       bool
}

// When returns the timestamp used for date-range matching: the start of an
// event or the due date of a reminder.
func (r *Record) When() (time.Time, bool) {
	if r.Kind == KindReminder {
		if r.Due == nil {
			return time.Time{}, false
		}
		return *r.Due, true
	}
	return r.Start, true
}

// IsRecurring returns true for occurrences and series handles
func (r *Record) IsRecurring() bool {
	return r.Recurrence == RecurrenceOccurrence || r.Recurrence == RecurrenceSeries
}

// HasTag reports whether the record carries an already-normalized tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
