package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/adapter"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/permission"
	"github.com/tazhate/calkit/internal/query"
	"github.com/tazhate/calkit/internal/recurrence"
)

// CalendarService handles the calendar tools
type CalendarService struct {
	gate     *permission.Gate
	adapter  *adapter.Adapter
	resolver *recurrence.Resolver
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewCalendarService creates a new calendar service
func NewCalendarService(gate *permission.Gate, a *adapter.Adapter, r *recurrence.Resolver, opts Options, logger *zap.Logger) *CalendarService {
	return &CalendarService{
		gate:     gate,
		adapter:  a,
		resolver: r,
		opts:     opts.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// === Inputs ===

type ListEventsInput struct {
	Start      string `json:"start" jsonschema:"range start: RFC 3339 timestamp or YYYY-MM-DD" validate:"required"`
	End        string `json:"end" jsonschema:"range end (exclusive); a bare date includes that whole day" validate:"required"`
	CalendarID string `json:"calendar_id,omitempty" jsonschema:"calendar id or title; all calendars when omitted"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum events to return (default 50)" validate:"omitempty,min=1,max=1000"`
}

type EventIDInput struct {
	ID string `json:"id" jsonschema:"event id from a list or search result" validate:"required"`
}

type SearchEventsInput struct {
	QueryText string   `json:"query_text,omitempty" jsonschema:"case-insensitive text matched against title, notes and location"`
	Tags      []string `json:"tags,omitempty" jsonschema:"only events carrying all of these tags"`
	Start     string   `json:"start,omitempty" jsonschema:"search range start (default 30 days ago)"`
	End       string   `json:"end,omitempty" jsonschema:"search range end (default 90 days from now)"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum events to return (default 50)" validate:"omitempty,min=1,max=1000"`
}

type CreateEventInput struct {
	Title      string   `json:"title" jsonschema:"event title" validate:"required,max=1024"`
	Start      string   `json:"start" jsonschema:"start: RFC 3339 timestamp or YYYY-MM-DD" validate:"required"`
	End        string   `json:"end" jsonschema:"end: RFC 3339 timestamp or YYYY-MM-DD" validate:"required"`
	CalendarID string   `json:"calendar_id,omitempty" jsonschema:"calendar id or title; the default calendar when omitted"`
	Location   string   `json:"location,omitempty" jsonschema:"event location"`
	Notes      string   `json:"notes,omitempty" jsonschema:"event notes"`
	URL        string   `json:"url,omitempty" jsonschema:"associated URL" validate:"omitempty,url"`
	AllDay     bool     `json:"all_day,omitempty" jsonschema:"all-day event"`
	Recurrence string   `json:"recurrence,omitempty" jsonschema:"RFC 5545 recurrence rule, e.g. FREQ=WEEKLY;COUNT=5"`
	Tags       []string `json:"tags,omitempty" jsonschema:"tags to apply"`
}

type EditEventInput struct {
	ID         string   `json:"id" jsonschema:"event id" validate:"required"`
	Title      *string  `json:"title,omitempty" jsonschema:"new title"`
	Start      *string  `json:"start,omitempty" jsonschema:"new start"`
	End        *string  `json:"end,omitempty" jsonschema:"new end"`
	Location   *string  `json:"location,omitempty" jsonschema:"new location"`
	Notes      *string  `json:"notes,omitempty" jsonschema:"new notes; existing tags are kept"`
	URL        *string  `json:"url,omitempty" jsonschema:"new URL"`
	Tags       []string `json:"tags,omitempty" jsonschema:"replaces all tags"`
	AddTags    []string `json:"add_tags,omitempty" jsonschema:"tags to add"`
	RemoveTags []string `json:"remove_tags,omitempty" jsonschema:"tags to remove"`
	Scope      string   `json:"scope,omitempty" jsonschema:"for recurring events: this_only (default), this_and_future or all"`
}

type DeleteEventInput struct {
	ID    string `json:"id" jsonschema:"event id" validate:"required"`
	Scope string `json:"scope,omitempty" jsonschema:"for recurring events: this_only (default), this_and_future or all"`
}

// === Results ===

type CalendarsResult struct {
	Success   bool            `json:"success"`
	Calendars []ContainerView `json:"calendars"`
	Count     int             `json:"count"`
}

type EventListResult struct {
	Success bool        `json:"success"`
	Today   *Today      `json:"today,omitempty"`
	Events  []EventView `json:"events"`
	Count   int         `json:"count"`
	Query   string      `json:"query,omitempty"`
}

type EventResult struct {
	Success bool      `json:"success"`
	Event   EventView `json:"event"`
	Message string    `json:"message,omitempty"`
}

type MessageResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// === Operations ===

// ListCalendars returns every calendar that can hold events.
func (s *CalendarService) ListCalendars(ctx context.Context) (*CalendarsResult, error) {
	g, err := s.gate.Require(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	containers, err := s.adapter.Containers(ctx, g, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	views := containerViews(containers)
	return &CalendarsResult{Success: true, Calendars: views, Count: len(views)}, nil
}

// rangeEnd parses the end of a range. A bare date covers the whole day.
func (s *CalendarService) rangeEnd(field, value string) (time.Time, error) {
	t, err := parseTime(field, value, s.opts.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	if isDateOnly(value) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

// ListEvents returns the events starting in [start, end).
func (s *CalendarService) ListEvents(ctx context.Context, in ListEventsInput) (*EventListResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	from, err := parseTime("start", in.Start, s.opts.Timezone)
	if err != nil {
		return nil, err
	}
	to, err := s.rangeEnd("end", in.End)
	if err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, &domain.ValidationError{Field: "end", Reason: "must be after start"}
	}

	g, err := s.gate.Require(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	records, err := s.adapter.FetchRange(ctx, g, from, to, in.CalendarID)
	if err != nil {
		return nil, err
	}
	records = query.Filter(records, query.Predicate{Range: query.DateRange{From: from, To: to}})
	records = query.Limit(records, limitOr(in.Limit, s.opts.EventLimit))
	s.logger.Debug("events listed",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("count", len(records)),
	)

	return &EventListResult{
		Success: true,
		Today:   todayContext(s.now().In(s.opts.Timezone)),
		Events:  eventViews(records, s.opts.Timezone),
		Count:   len(records),
	}, nil
}

// GetEvent returns one event.
func (s *CalendarService) GetEvent(ctx context.Context, in EventIDInput) (*EventResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g, err := s.gate.Require(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.FetchByID(ctx, g, domain.KindEvent, in.ID)
	if err != nil {
		return nil, err
	}
	return &EventResult{Success: true, Event: eventView(rec, s.opts.Timezone)}, nil
}

// SearchEvents matches text and tags against the events of a window that
// defaults to 30 days back and 90 days ahead.
func (s *CalendarService) SearchEvents(ctx context.Context, in SearchEventsInput) (*EventListResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	now := s.now().In(s.opts.Timezone)
	from := now.AddDate(0, 0, -s.opts.SearchBackDays)
	to := now.AddDate(0, 0, s.opts.SearchAheadDays)
	var err error
	if in.Start != "" {
		if from, err = parseTime("start", in.Start, s.opts.Timezone); err != nil {
			return nil, err
		}
	}
	if in.End != "" {
		if to, err = s.rangeEnd("end", in.End); err != nil {
			return nil, err
		}
	}
	if !to.After(from) {
		return nil, &domain.ValidationError{Field: "end", Reason: "must be after start"}
	}

	g, err := s.gate.Require(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	records, err := s.adapter.FetchRange(ctx, g, from, to, "")
	if err != nil {
		return nil, err
	}
	records = query.Filter(records, query.Predicate{
		Range: query.DateRange{From: from, To: to},
		Text:  in.QueryText,
		Tags:  in.Tags,
	})
	records = query.Limit(records, limitOr(in.Limit, s.opts.SearchLimit))

	return &EventListResult{
		Success: true,
		Events:  eventViews(records, s.opts.Timezone),
		Count:   len(records),
		Query:   in.QueryText,
	}, nil
}

// CreateEvent creates an event, or a recurring series when a rule is given.
func (s *CalendarService) CreateEvent(ctx context.Context, in CreateEventInput) (*EventResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	start, err := parseTime("start", in.Start, s.opts.Timezone)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end", in.End, s.opts.Timezone)
	if err != nil {
		return nil, err
	}
	if in.AllDay && !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	if end.Before(start) {
		return nil, &domain.ValidationError{Field: "end", Reason: "must not be before start"}
	}

	g, err := s.gate.Require(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.Create(ctx, g, &domain.NewItem{
		Kind:           domain.KindEvent,
		ContainerRef:   in.CalendarID,
		Title:          in.Title,
		Notes:          s.opts.attribute(in.Notes),
		Tags:           in.Tags,
		Start:          start,
		End:            end,
		AllDay:         in.AllDay,
		Location:       in.Location,
		URL:            in.URL,
		RecurrenceRule: in.Recurrence,
	})
	if err != nil {
		return nil, err
	}
	return &EventResult{
		Success: true,
		Event:   eventView(rec, s.opts.Timezone),
		Message: fmt.Sprintf("Event '%s' created successfully", in.Title),
	}, nil
}

// EditEvent applies a partial update with the requested scope.
func (s *CalendarService) EditEvent(ctx context.Context, in EditEventInput) (*EventResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	scope, err := domain.ParseScope(in.Scope)
	if err != nil {
		return nil, err
	}

	diff := &domain.Diff{
		Title:      in.Title,
		Location:   in.Location,
		Notes:      in.Notes,
		URL:        in.URL,
		SetTags:    in.Tags != nil,
		Tags:       in.Tags,
		AddTags:    in.AddTags,
		RemoveTags: in.RemoveTags,
	}
	if in.Start != nil {
		t, err := parseTime("start", *in.Start, s.opts.Timezone)
		if err != nil {
			return nil, err
		}
		diff.Start = &t
	}
	if in.End != nil {
		t, err := parseTime("end", *in.End, s.opts.Timezone)
		if err != nil {
			return nil, err
		}
		diff.End = &t
	}
	if diff.IsEmpty() {
		return nil, &domain.ValidationError{Field: "id", Reason: "no changes given"}
	}

	g, err := s.gate.Require(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.FetchByID(ctx, g, domain.KindEvent, in.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.resolver.Edit(ctx, g, rec, diff, scope)
	if err != nil {
		return nil, err
	}
	return &EventResult{
		Success: true,
		Event:   eventView(updated, s.opts.Timezone),
		Message: "Event updated successfully",
	}, nil
}

// DeleteEvent removes an event with the requested scope.
func (s *CalendarService) DeleteEvent(ctx context.Context, in DeleteEventInput) (*MessageResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	scope, err := domain.ParseScope(in.Scope)
	if err != nil {
		return nil, err
	}

	g, err := s.gate.Require(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.FetchByID(ctx, g, domain.KindEvent, in.ID)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Delete(ctx, g, rec, scope); err != nil {
		return nil, err
	}
	return &MessageResult{Success: true, Message: "Event deleted successfully"}, nil
}
