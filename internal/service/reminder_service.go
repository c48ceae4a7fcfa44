package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/adapter"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/permission"
	"github.com/tazhate/calkit/internal/query"
	"github.com/tazhate/calkit/internal/recurrence"
)

// ReminderService handles the reminder tools
type ReminderService struct {
	gate     *permission.Gate
	adapter  *adapter.Adapter
	resolver *recurrence.Resolver
	opts     Options
	logger   *zap.Logger
}

func NewReminderService(gate *permission.Gate, a *adapter.Adapter, r *recurrence.Resolver, opts Options, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		gate:     gate,
		adapter:  a,
		resolver: r,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// === Inputs ===

type ListRemindersInput struct {
	ListID           string `json:"list_id,omitempty" jsonschema:"list id or title; all lists when omitted"`
	Completed        *bool  `json:"completed,omitempty" jsonschema:"only completed (true) or only open (false) reminders"`
	IncludeCompleted bool   `json:"include_completed,omitempty" jsonschema:"include completed reminders when completed is not set (default false)"`
	DueBefore        string `json:"due_before,omitempty" jsonschema:"only reminders due before this time"`
	DueAfter         string `json:"due_after,omitempty" jsonschema:"only reminders due at or after this time"`
	IncludeUndated   bool   `json:"include_undated,omitempty" jsonschema:"keep reminders without a due date when filtering by due date"`
	Limit            int    `json:"limit,omitempty" jsonschema:"maximum reminders to return (default 100)" validate:"omitempty,min=1,max=1000"`
}

type ReminderIDInput struct {
	ID string `json:"id" jsonschema:"reminder id from a list or search result" validate:"required"`
}

type SearchRemindersInput struct {
	QueryText        string   `json:"query_text,omitempty" jsonschema:"case-insensitive text matched against title and notes"`
	Tags             []string `json:"tags,omitempty" jsonschema:"only reminders carrying all of these tags"`
	IncludeCompleted bool     `json:"include_completed,omitempty" jsonschema:"include completed reminders (default false)"`
	Limit            int      `json:"limit,omitempty" jsonschema:"maximum reminders to return (default 50)" validate:"omitempty,min=1,max=1000"`
}

type CreateReminderInput struct {
	Title    string   `json:"title" jsonschema:"reminder title" validate:"required,max=1024"`
	Due      string   `json:"due,omitempty" jsonschema:"due date: RFC 3339 timestamp or YYYY-MM-DD"`
	Priority string   `json:"priority,omitempty" jsonschema:"none, low, medium or high" validate:"omitempty,oneof=none low medium high"`
	Notes    string   `json:"notes,omitempty" jsonschema:"reminder notes"`
	Tags     []string `json:"tags,omitempty" jsonschema:"tags to apply"`
	ListID   string   `json:"list_id,omitempty" jsonschema:"list id or title; the default list when omitted"`
}

type EditReminderInput struct {
	ID         string   `json:"id" jsonschema:"reminder id" validate:"required"`
	Title      *string  `json:"title,omitempty" jsonschema:"new title"`
	Due        *string  `json:"due,omitempty" jsonschema:"new due date"`
	ClearDue   bool     `json:"clear_due,omitempty" jsonschema:"remove the due date"`
	Priority   *string  `json:"priority,omitempty" jsonschema:"none, low, medium or high"`
	Notes      *string  `json:"notes,omitempty" jsonschema:"new notes; existing tags are kept"`
	Tags       []string `json:"tags,omitempty" jsonschema:"replaces all tags"`
	AddTags    []string `json:"add_tags,omitempty" jsonschema:"tags to add"`
	RemoveTags []string `json:"remove_tags,omitempty" jsonschema:"tags to remove"`
	Completed  *bool    `json:"completed,omitempty" jsonschema:"mark completed or open"`
}

type CompleteReminderInput struct {
	ID        string `json:"id" jsonschema:"reminder id" validate:"required"`
	Completed *bool  `json:"completed,omitempty" jsonschema:"false reopens the reminder (default true)"`
}

// === Results ===

type ListsResult struct {
	Success bool            `json:"success"`
	Lists   []ContainerView `json:"lists"`
	Count   int             `json:"count"`
}

type ReminderListResult struct {
	Success   bool           `json:"success"`
	Reminders []ReminderView `json:"reminders"`
	Count     int            `json:"count"`
	Query     string         `json:"query,omitempty"`
}

type ReminderResult struct {
	Success  bool         `json:"success"`
	Reminder ReminderView `json:"reminder"`
	Message  string       `json:"message,omitempty"`
}

// === Operations ===

// ListLists returns every reminder list.
func (s *ReminderService) ListLists(ctx context.Context) (*ListsResult, error) {
	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	containers, err := s.adapter.Containers(ctx, g, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	views := containerViews(containers)
	return &ListsResult{Success: true, Lists: views, Count: len(views)}, nil
}

// List returns reminders filtered by list, completion and due date.
func (s *ReminderService) List(ctx context.Context, in ListRemindersInput) (*ReminderListResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	before, err := parseOptionalTime("due_before", in.DueBefore, s.opts.Timezone)
	if err != nil {
		return nil, err
	}
	after, err := parseOptionalTime("due_after", in.DueAfter, s.opts.Timezone)
	if err != nil {
		return nil, err
	}

	p := query.Predicate{
		IncludeUndated: in.IncludeUndated,
		Completed:      completionFilter(in.Completed, in.IncludeCompleted),
	}
	if before != nil {
		p.Range.To = *before
	}
	if after != nil {
		p.Range.From = *after
	}

	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	records, err := s.adapter.FetchAll(ctx, g, in.ListID)
	if err != nil {
		return nil, err
	}
	records = query.Filter(records, p)
	records = query.Limit(records, limitOr(in.Limit, s.opts.ReminderLimit))
	s.logger.Debug("reminders listed", zap.String("list", in.ListID), zap.Int("count", len(records)))

	return &ReminderListResult{
		Success:   true,
		Reminders: reminderViews(records, s.opts.Timezone),
		Count:     len(records),
	}, nil
}

// completionFilter returns the completion predicate. Without an explicit
// state only open reminders are listed unless completed ones are asked for.
func completionFilter(completed *bool, includeCompleted bool) *bool {
	if completed != nil {
		return completed
	}
	if includeCompleted {
		return nil
	}
	open := false
	return &open
}

// Get returns one reminder.
func (s *ReminderService) Get(ctx context.Context, in ReminderIDInput) (*ReminderResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.FetchByID(ctx, g, domain.KindReminder, in.ID)
	if err != nil {
		return nil, err
	}
	return &ReminderResult{Success: true, Reminder: reminderView(rec, s.opts.Timezone)}, nil
}

// Search matches text and tags against every reminder.
func (s *ReminderService) Search(ctx context.Context, in SearchRemindersInput) (*ReminderListResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	records, err := s.adapter.FetchAll(ctx, g, "")
	if err != nil {
		return nil, err
	}
	records = query.Filter(records, query.Predicate{
		Text:      in.QueryText,
		Tags:      in.Tags,
		Completed: completionFilter(nil, in.IncludeCompleted),
	})
	records = query.Limit(records, limitOr(in.Limit, s.opts.SearchLimit))

	return &ReminderListResult{
		Success:   true,
		Reminders: reminderViews(records, s.opts.Timezone),
		Count:     len(records),
		Query:     in.QueryText,
	}, nil
}

// Create adds a reminder to a list.
func (s *ReminderService) Create(ctx context.Context, in CreateReminderInput) (*ReminderResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	due, err := parseOptionalTime("due", in.Due, s.opts.Timezone)
	if err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(in.Priority)
	if err != nil {
		return nil, err
	}

	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.Create(ctx, g, &domain.NewItem{
		Kind:         domain.KindReminder,
		ContainerRef: in.ListID,
		Title:        in.Title,
		Notes:        s.opts.attribute(in.Notes),
		Tags:         in.Tags,
		Due:          due,
		Priority:     priority,
	})
	if err != nil {
		return nil, err
	}
	return &ReminderResult{
		Success:  true,
		Reminder: reminderView(rec, s.opts.Timezone),
		Message:  fmt.Sprintf("Reminder '%s' created successfully", in.Title),
	}, nil
}

// Edit applies a partial update. Recurring reminders are always edited as
// a whole series.
func (s *ReminderService) Edit(ctx context.Context, in EditReminderInput) (*ReminderResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	diff := &domain.Diff{
		Title:      in.Title,
		Notes:      in.Notes,
		ClearDue:   in.ClearDue,
		Completed:  in.Completed,
		SetTags:    in.Tags != nil,
		Tags:       in.Tags,
		AddTags:    in.AddTags,
		RemoveTags: in.RemoveTags,
	}
	if in.Due != nil && !in.ClearDue {
		due, err := parseTime("due", *in.Due, s.opts.Timezone)
		if err != nil {
			return nil, err
		}
		diff.Due = &due
	}
	if in.Priority != nil {
		p, err := domain.ParsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		diff.Priority = &p
	}
	if diff.IsEmpty() {
		return nil, &domain.ValidationError{Field: "id", Reason: "no changes given"}
	}

	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.FetchByID(ctx, g, domain.KindReminder, in.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.resolver.Edit(ctx, g, rec, diff, domain.ScopeAll)
	if err != nil {
		return nil, err
	}
	return &ReminderResult{
		Success:  true,
		Reminder: reminderView(updated, s.opts.Timezone),
		Message:  "Reminder updated successfully",
	}, nil
}

// Complete marks a reminder completed, or open again.
func (s *ReminderService) Complete(ctx context.Context, in CompleteReminderInput) (*ReminderResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	done := true
	if in.Completed != nil {
		done = *in.Completed
	}

	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.SetCompleted(ctx, g, in.ID, done)
	if err != nil {
		return nil, err
	}
	msg := "Reminder marked as completed"
	if !done {
		msg = "Reminder marked as not completed"
	}
	return &ReminderResult{
		Success:  true,
		Reminder: reminderView(rec, s.opts.Timezone),
		Message:  msg,
	}, nil
}

// Delete removes a reminder, and the whole series when it recurs.
func (s *ReminderService) Delete(ctx context.Context, in ReminderIDInput) (*MessageResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g, err := s.gate.Require(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}
	rec, err := s.adapter.FetchByID(ctx, g, domain.KindReminder, in.ID)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Delete(ctx, g, rec, domain.ScopeAll); err != nil {
		return nil, err
	}
	return &MessageResult{Success: true, Message: "Reminder deleted successfully"}, nil
}

