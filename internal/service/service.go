// Package service implements one operation per MCP tool: argument
// validation, defaults, permission checks and response shaping.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tazhate/calkit/internal/domain"
)

// Options are the defaults shared by the services.
type Options struct {
	Timezone *time.Location
	// Attribution is prepended to the notes of created items. Empty
	// disables it.
	Attribution string

	SearchBackDays  int
	SearchAheadDays int

	EventLimit    int
	ReminderLimit int
	SearchLimit   int
}

// DefaultOptions returns the defaults used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Timezone:        time.Local,
		Attribution:     "Created by calkit",
		SearchBackDays:  30,
		SearchAheadDays: 90,
		EventLimit:      50,
		ReminderLimit:   100,
		SearchLimit:     50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timezone == nil {
		o.Timezone = d.Timezone
	}
	if o.SearchBackDays <= 0 {
		o.SearchBackDays = d.SearchBackDays
	}
	if o.SearchAheadDays <= 0 {
		o.SearchAheadDays = d.SearchAheadDays
	}
	if o.EventLimit <= 0 {
		o.EventLimit = d.EventLimit
	}
	if o.ReminderLimit <= 0 {
		o.ReminderLimit = d.ReminderLimit
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = d.SearchLimit
	}
	return o
}

// attribute prepends the attribution line to a new item's notes.
func (o Options) attribute(notes string) string {
	if o.Attribution == "" {
		return notes
	}
	if notes == "" {
		return o.Attribution
	}
	return o.Attribution + "\n\n" + notes
}

func limitOr(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}

// === Validation ===

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names, as the caller sent them
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput checks the struct tags of a tool input.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Field: "input", Reason: err.Error()}
	}
	return formatFieldError(fieldErrs[0])
}

func formatFieldError(e validator.FieldError) error {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return &domain.ValidationError{Field: field, Reason: "is required"}
	case "min":
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be at least %s", e.Param())}
	case "max":
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %s", e.Param())}
	case "oneof":
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be one of: %s", e.Param())}
	case "url":
		return &domain.ValidationError{Field: field, Reason: "must be a valid URL"}
	default:
		return &domain.ValidationError{Field: field, Reason: "is invalid"}
	}
}

// === Time parsing ===

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime accepts RFC 3339 timestamps, local date-times without an
// offset, and bare dates, which mean local midnight.
func parseTime(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, &domain.ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("expected an RFC 3339 timestamp or YYYY-MM-DD (got %q)", value),
	}
}

// parseOptionalTime returns nil for an empty value.
func parseOptionalTime(field, value string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseTime(field, value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isDateOnly reports whether value is a bare YYYY-MM-DD date.
func isDateOnly(value string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	return err == nil
}

// === Today context ===

// Today describes the current date so callers can resolve relative dates
// like "next Tuesday".
type Today struct {
	CurrentDate  string            `json:"current_date"`
	CurrentTime  string            `json:"current_time"`
	DayOfWeek    string            `json:"day_of_week"`
	Timezone     string            `json:"timezone"`
	UpcomingDays map[string]string `json:"upcoming_days"`
}

func todayContext(now time.Time) *Today {
	t := &Today{
		CurrentDate:  now.Format("2006-01-02"),
		CurrentTime:  now.Format("15:04:05"),
		DayOfWeek:    now.Weekday().String(),
		Timezone:     now.Location().String(),
		UpcomingDays: make(map[string]string, 7),
	}
	for i := 1; i <= 7; i++ {
		day := now.AddDate(0, 0, i)
		t.UpcomingDays[day.Weekday().String()] = day.Format("2006-01-02")
	}
	return t
}
