// Package calstore defines the contract between calkit and the calendar
// store that owns events and reminders.
package calstore

import (
	"context"
	"errors"
	"time"

	"github.com/tazhate/calkit/internal/domain"
)

var (
	// ErrNotFound is returned when an identifier does not resolve.
	ErrNotFound = errors.New("item not found")
	// ErrUnsupportedSpan is returned when the store cannot apply a span to an item.
	ErrUnsupportedSpan = errors.New("span not supported")
	// ErrNoContainer is returned when a kind has no writable container.
	ErrNoContainer = errors.New("no container available")
)

// HandleKind says which object a native item stands for.
type HandleKind string

const (
	HandleSingle     HandleKind = "single"
	HandleOccurrence HandleKind = "occurrence"
	HandleSeries     HandleKind = "series"
)

// Span is the reach of a write against an occurrence handle. Writes
// against a series handle always cover the whole series.
type Span int

const (
	SpanThisEvent Span = iota
	SpanFutureEvents
)

func (s Span) String() string {
	if s == SpanFutureEvents {
		return "future_events"
	}
	return "this_event"
}

// Capabilities lists the optional primitives a store implements.
type Capabilities struct {
	FutureEdits   bool
	FutureDeletes bool
}

// Item is the store's native representation of an event, a reminder, one
// occurrence of a recurring series, or the series itself. Notes carries
// the raw stored text including any tag block.
type Item struct {
	Kind   domain.Kind
	Handle HandleKind

	ID             string
	SeriesID       string
	ContainerID    string
	ContainerTitle string
	Href           string

	Title    string
	Notes    string
	Location string
	URL      string

	Start  time.Time
	End    time.Time
	AllDay bool

	Due         *time.Time
	Priority    int
	Completed   bool
	CompletedAt *time.Time

	RRule        string
	RecurrenceID *time.Time
	Detached     bool

	Created  time.Time
	Modified time.Time
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	c.Due = cloneTime(it.Due)
	c.CompletedAt = cloneTime(it.CompletedAt)
	c.RecurrenceID = cloneTime(it.RecurrenceID)
	return &c
}

// Anchor is the time a series is expanded from: the start of an event or
// the due date of a reminder.
func (it *Item) Anchor() time.Time {
	if it.Kind == domain.KindReminder {
		if it.Due != nil {
			return *it.Due
		}
		return time.Time{}
	}
	return it.Start
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Store is the calendar and reminder store. Implementations hold no state
// between calls that callers depend on; every call reads or writes the
// backing store.
type Store interface {
	// Authorization reports the current access state for kind.
	Authorization(ctx context.Context, kind domain.Kind) (domain.AuthState, error)
	// RequestAccess asks for access to kind and returns the resulting state.
	RequestAccess(ctx context.Context, kind domain.Kind) (domain.AuthState, error)

	Containers(ctx context.Context, kind domain.Kind) ([]domain.Container, error)
	DefaultContainer(ctx context.Context, kind domain.Kind) (domain.Container, error)

	// Events returns the occurrences overlapping [from, to) ordered by
	// start. Recurring series are expanded. An empty containerIDs means
	// every calendar.
	Events(ctx context.Context, from, to time.Time, containerIDs []string) ([]*Item, error)
	// Reminders returns every reminder in the given lists.
	Reminders(ctx context.Context, containerIDs []string) ([]*Item, error)

	// Item fetches one item by identifier. Occurrence identifiers resolve
	// to occurrence handles, series identifiers to series handles.
	Item(ctx context.Context, kind domain.Kind, id string) (*Item, error)
	// FirstOccurrence returns the earliest remaining occurrence of a series
	// that is not completed.
	FirstOccurrence(ctx context.Context, kind domain.Kind, seriesID string) (*Item, error)

	// Save writes item. An empty ID creates a new item in item.ContainerID.
	// span applies to occurrence handles only.
	Save(ctx context.Context, item *Item, span Span) (*Item, error)
	// Remove deletes item. span applies to occurrence handles only.
	Remove(ctx context.Context, item *Item, span Span) error

	Capabilities() Capabilities
}
