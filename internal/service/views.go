package service

import (
	"time"

	"github.com/tazhate/calkit/internal/domain"
)

// ContainerView is a calendar or reminder list in tool responses.
type ContainerView struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Color               string `json:"color,omitempty"`
	AllowsModifications bool   `json:"allows_modifications"`
	IsDefault           bool   `json:"is_default"`
}

func containerViews(containers []domain.Container) []ContainerView {
	out := make([]ContainerView, 0, len(containers))
	for _, c := range containers {
		out = append(out, ContainerView{
			ID:                  c.ID,
			Title:               c.Title,
			Color:               c.Color,
			AllowsModifications: c.AllowsModifications,
			IsDefault:           c.IsDefault,
		})
	}
	return out
}

// EventView is an event in tool responses.
type EventView struct {
	ID             string   `json:"id"`
	SeriesID       string   `json:"series_id,omitempty"`
	Title          string   `json:"title"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	IsAllDay       bool     `json:"is_all_day"`
	Location       string   `json:"location,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Tags           []string `json:"tags"`
	URL            string   `json:"url,omitempty"`
	Calendar       string   `json:"calendar"`
	CalendarID     string   `json:"calendar_id"`
	HasRecurrence  bool     `json:"has_recurrence"`
	Recurrence     string   `json:"recurrence"`
	RecurrenceRule string   `json:"recurrence_rule,omitempty"`
	Detached       bool     `json:"detached,omitempty"`
}

func formatTime(t time.Time, loc *time.Location, allDay bool) string {
	if t.IsZero() {
		return ""
	}
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.In(loc).Format(time.RFC3339)
}

func eventView(r *domain.Record, loc *time.Location) EventView {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return EventView{
		ID:             r.ID,
		SeriesID:       r.SeriesID,
		Title:          r.Title,
		StartDate:      formatTime(r.Start, loc, r.AllDay),
		EndDate:        formatTime(r.End, loc, r.AllDay),
		IsAllDay:       r.AllDay,
		Location:       r.Location,
		Notes:          r.Notes,
		Tags:           tags,
		URL:            r.URL,
		Calendar:       r.ContainerTitle,
		CalendarID:     r.ContainerID,
		HasRecurrence:  r.IsRecurring(),
		Recurrence:     string(r.Recurrence),
		RecurrenceRule: r.RecurrenceRule,
		Detached:       r.Detached,
	}
}

func eventViews(records []domain.Record, loc *time.Location) []EventView {
	out := make([]EventView, 0, len(records))
	for i := range records {
		out = append(out, eventView(&records[i], loc))
	}
	return out
}

// ReminderView is a reminder in tool responses.
type ReminderView struct {
	ID             string   `json:"id"`
	SeriesID       string   `json:"series_id,omitempty"`
	Title          string   `json:"title"`
	Notes          string   `json:"notes,omitempty"`
	Tags           []string `json:"tags"`
	List           string   `json:"list"`
	ListID         string   `json:"list_id"`
	DueDate        string   `json:"due_date,omitempty"`
	Priority       string   `json:"priority"`
	Completed      bool     `json:"completed"`
	CompletionDate string   `json:"completion_date,omitempty"`
	Recurrence     string   `json:"recurrence"`
	RecurrenceRule string   `json:"recurrence_rule,omitempty"`
}

func reminderView(r *domain.Record, loc *time.Location) ReminderView {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	v := ReminderView{
		ID:             r.ID,
		SeriesID:       r.SeriesID,
		Title:          r.Title,
		Notes:          r.Notes,
		Tags:           tags,
		List:           r.ContainerTitle,
		ListID:         r.ContainerID,
		Priority:       string(r.Priority),
		Completed:      r.Completed,
		Recurrence:     string(r.Recurrence),
		RecurrenceRule: r.RecurrenceRule,
	}
	if r.Due != nil {
		v.DueDate = formatTime(*r.Due, loc, false)
	}
	if r.CompletedAt != nil {
		v.CompletionDate = formatTime(*r.CompletedAt, loc, false)
	}
	return v
}

func reminderViews(records []domain.Record, loc *time.Location) []ReminderView {
	out := make([]ReminderView, 0, len(records))
	for i := range records {
		out = append(out, reminderView(&records[i], loc))
	}
	return out
}
