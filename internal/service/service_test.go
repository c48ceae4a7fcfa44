package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/adapter"
	"github.com/tazhate/calkit/internal/calstore/calstoretest"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/permission"
	"github.com/tazhate/calkit/internal/recurrence"
)

var now = time.Date(2025, 3, 5, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store     *calstoretest.Store
	calendar  *CalendarService
	reminders *ReminderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := calstoretest.Wrap(calstoretest.NewSQLite(t))
	logger := zap.NewNop()

	gate := permission.NewGate(store, logger)
	a := adapter.New(store, logger)
	r := recurrence.NewResolver(a, logger)
	opts := DefaultOptions()
	opts.Timezone = time.UTC

	cal := NewCalendarService(gate, a, r, opts, logger)
	cal.now = func() time.Time { return now }

	return &fixture{
		store:     store,
		calendar:  cal,
		reminders: NewReminderService(gate, a, r, opts, logger),
	}
}

func (f *fixture) createEvent(t *testing.T, in CreateEventInput) EventView {
	t.Helper()
	res, err := f.calendar.CreateEvent(context.Background(), in)
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.Event
}

func TestParseTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-05T10:00:00Z", time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)},
		{"2025-03-05T10:00:00+01:00", time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"2025-03-05T10:00:00", time.Date(2025, 3, 5, 10, 0, 0, 0, loc)},
		{"2025-03-05T10:00", time.Date(2025, 3, 5, 10, 0, 0, 0, loc)},
		{"2025-03-05", time.Date(2025, 3, 5, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime("start", tt.in, loc)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s", got)
		})
	}

	_, err := parseTime("start", "next tuesday", loc)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "start", ve.Field)
}

func TestTodayContext(t *testing.T) {
	today := todayContext(now)
	assert.Equal(t, "2025-03-05", today.CurrentDate)
	assert.Equal(t, "09:30:00", today.CurrentTime)
	assert.Equal(t, "Wednesday", today.DayOfWeek)
	assert.Len(t, today.UpcomingDays, 7)
	assert.Equal(t, "2025-03-06", today.UpcomingDays["Thursday"])
	assert.Equal(t, "2025-03-12", today.UpcomingDays["Wednesday"])
}

func TestPermissionShortCircuit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Auth = map[domain.Kind]domain.AuthState{
		domain.KindEvent:    domain.AuthDenied,
		domain.KindReminder: domain.AuthNotDetermined,
	}

	_, err := f.calendar.ListEvents(ctx, ListEventsInput{Start: "2025-03-01", End: "2025-03-31"})
	var perm *domain.PermissionError
	require.True(t, errors.As(err, &perm))
	assert.Equal(t, domain.AuthDenied, perm.State)

	_, err = f.calendar.DeleteEvent(ctx, DeleteEventInput{ID: "x"})
	assert.Equal(t, domain.ErrKindPermission, domain.ErrorKind(err))

	_, err = f.reminders.List(ctx, ListRemindersInput{})
	require.True(t, errors.As(err, &perm))
	assert.Equal(t, domain.AuthNotDetermined, perm.State)

	_, err = f.reminders.Create(ctx, CreateReminderInput{Title: "x"})
	assert.Equal(t, domain.ErrKindPermission, domain.ErrorKind(err))

	assert.Zero(t, f.store.Fetches())
	assert.Zero(t, f.store.Writes())
}

func TestCreateEvent(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, CreateEventInput{
		Title:    "Dentist",
		Start:    "2025-03-06T14:00:00Z",
		End:      "2025-03-06T15:00:00Z",
		Notes:    "Bring card",
		Location: "Main St",
		Tags:     []string{"Health"},
	})

	assert.Equal(t, "Dentist", ev.Title)
	assert.Equal(t, "2025-03-06T14:00:00Z", ev.StartDate)
	assert.Equal(t, "Created by calkit\n\nBring card", ev.Notes)
	assert.Equal(t, []string{"health"}, ev.Tags)
	assert.Equal(t, "Calendar", ev.Calendar)
	assert.Equal(t, "none", ev.Recurrence)
	assert.False(t, ev.HasRecurrence)
}

func TestCreateEvent_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    CreateEventInput
		field string
	}{
		{"missing title", CreateEventInput{Start: "2025-03-06", End: "2025-03-06"}, "title"},
		{"bad start", CreateEventInput{Title: "x", Start: "soon", End: "2025-03-06"}, "start"},
		{"end before start", CreateEventInput{Title: "x", Start: "2025-03-06T10:00:00Z", End: "2025-03-06T09:00:00Z"}, "end"},
		{"bad url", CreateEventInput{Title: "x", Start: "2025-03-06", End: "2025-03-06", URL: "not a url"}, "url"},
		{"bad rule", CreateEventInput{Title: "x", Start: "2025-03-06", End: "2025-03-06", Recurrence: "FREQ=NEVER"}, "recurrence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.calendar.CreateEvent(ctx, tt.in)
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateEvent_AllDay(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, CreateEventInput{Title: "Holiday", Start: "2025-03-10", End: "2025-03-10", AllDay: true})
	assert.True(t, ev.IsAllDay)
	assert.Equal(t, "2025-03-10", ev.StartDate)
	assert.Equal(t, "2025-03-11", ev.EndDate)
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, CreateEventInput{Title: "Before", Start: "2025-03-04T23:00:00Z", End: "2025-03-05T01:00:00Z"})
	f.createEvent(t, CreateEventInput{Title: "Morning", Start: "2025-03-05T08:00:00Z", End: "2025-03-05T09:00:00Z"})
	f.createEvent(t, CreateEventInput{Title: "Evening", Start: "2025-03-05T18:00:00Z", End: "2025-03-05T19:00:00Z"})
	f.createEvent(t, CreateEventInput{Title: "Tomorrow", Start: "2025-03-06T08:00:00Z", End: "2025-03-06T09:00:00Z"})

	res, err := f.calendar.ListEvents(ctx, ListEventsInput{Start: "2025-03-05", End: "2025-03-05"})
	require.NoError(t, err)
	require.NotNil(t, res.Today)
	assert.Equal(t, "2025-03-05", res.Today.CurrentDate)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "Morning", res.Events[0].Title)
	assert.Equal(t, "Evening", res.Events[1].Title)

	res, err = f.calendar.ListEvents(ctx, ListEventsInput{Start: "2025-03-01", End: "2025-03-31", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)

	_, err = f.calendar.ListEvents(ctx, ListEventsInput{Start: "2025-03-05", End: "2025-03-31", CalendarID: "Work"})
	assert.Equal(t, domain.ErrKindNotFound, domain.ErrorKind(err))

	_, err = f.calendar.ListEvents(ctx, ListEventsInput{Start: "2025-03-31", End: "2025-03-01"})
	assert.Equal(t, domain.ErrKindValidation, domain.ErrorKind(err))
}

func TestSearchEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, CreateEventInput{Title: "Team lunch", Start: "2025-03-07T12:00:00Z", End: "2025-03-07T13:00:00Z", Tags: []string{"work"}})
	f.createEvent(t, CreateEventInput{Title: "Lunch with mum", Start: "2025-03-08T12:00:00Z", End: "2025-03-08T13:00:00Z", Tags: []string{"family"}})
	f.createEvent(t, CreateEventInput{Title: "Far lunch", Start: "2025-09-01T12:00:00Z", End: "2025-09-01T13:00:00Z"})

	res, err := f.calendar.SearchEvents(ctx, SearchEventsInput{QueryText: "LUNCH"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "LUNCH", res.Query)

	res, err = f.calendar.SearchEvents(ctx, SearchEventsInput{QueryText: "lunch", Tags: []string{"Work"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Team lunch", res.Events[0].Title)

	res, err = f.calendar.SearchEvents(ctx, SearchEventsInput{QueryText: "lunch", End: "2025-12-31"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
}

func TestEditEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, CreateEventInput{
		Title: "Call",
		Start: "2025-03-06T10:00:00Z",
		End:   "2025-03-06T10:30:00Z",
		Tags:  []string{"work"},
	})

	title := "Call with Sam"
	start := "2025-03-06T11:00:00Z"
	res, err := f.calendar.EditEvent(ctx, EditEventInput{
		ID:      ev.ID,
		Title:   &title,
		Start:   &start,
		AddTags: []string{"urgent"},
		Scope:   "all",
	})
	require.NoError(t, err)
	assert.Equal(t, "Call with Sam", res.Event.Title)
	assert.Equal(t, "2025-03-06T11:00:00Z", res.Event.StartDate)
	assert.Equal(t, "2025-03-06T11:30:00Z", res.Event.EndDate)
	assert.Equal(t, []string{"urgent", "work"}, res.Event.Tags)

	res, err = f.calendar.EditEvent(ctx, EditEventInput{ID: ev.ID, Tags: []string{}})
	require.NoError(t, err)
	assert.Empty(t, res.Event.Tags)

	_, err = f.calendar.EditEvent(ctx, EditEventInput{ID: ev.ID})
	assert.Equal(t, domain.ErrKindValidation, domain.ErrorKind(err))

	_, err = f.calendar.EditEvent(ctx, EditEventInput{ID: ev.ID, Title: &title, Scope: "sometimes"})
	assert.Equal(t, domain.ErrKindValidation, domain.ErrorKind(err))

	_, err = f.calendar.EditEvent(ctx, EditEventInput{ID: "missing", Title: &title})
	assert.Equal(t, domain.ErrKindNotFound, domain.ErrorKind(err))
}

func TestRecurringEventScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, CreateEventInput{
		Title:      "Standup",
		Start:      "2025-03-03T10:00:00Z",
		End:        "2025-03-03T10:15:00Z",
		Recurrence: "FREQ=WEEKLY;COUNT=5",
	})

	list := func() []EventView {
		res, err := f.calendar.ListEvents(ctx, ListEventsInput{Start: "2025-03-01", End: "2025-04-30"})
		require.NoError(t, err)
		return res.Events
	}
	events := list()
	require.Len(t, events, 5)
	assert.Equal(t, "occurrence", events[2].Recurrence)

	title := "Planning"
	_, err := f.calendar.EditEvent(ctx, EditEventInput{ID: events[2].ID, Title: &title, Scope: "this_and_future"})
	require.NoError(t, err)

	events = list()
	require.Len(t, events, 5)
	assert.Equal(t, "Standup", events[1].Title)
	assert.Equal(t, "Planning", events[2].Title)
	assert.Equal(t, "Planning", events[4].Title)

	res, err := f.calendar.DeleteEvent(ctx, DeleteEventInput{ID: events[3].ID})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, list(), 4)

	_, err = f.calendar.DeleteEvent(ctx, DeleteEventInput{ID: events[0].ID, Scope: "all"})
	require.NoError(t, err)
	assert.Len(t, list(), 2)
}

func TestReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	create := func(in CreateReminderInput) ReminderView {
		t.Helper()
		res, err := f.reminders.Create(ctx, in)
		require.NoError(t, err)
		return res.Reminder
	}
	rent := create(CreateReminderInput{Title: "Pay rent", Due: "2025-03-10", Priority: "high", Tags: []string{"home"}})
	milk := create(CreateReminderInput{Title: "Buy milk", Tags: []string{"errands"}})
	create(CreateReminderInput{Title: "File taxes", Due: "2025-04-15T12:00:00Z", Notes: "ask about rent receipts"})

	assert.Equal(t, "high", rent.Priority)
	assert.Equal(t, "2025-03-10T00:00:00Z", rent.DueDate)
	assert.Equal(t, "Reminders", rent.List)
	assert.Equal(t, "Created by calkit", rent.Notes)

	res, err := f.reminders.List(ctx, ListRemindersInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)

	res, err = f.reminders.List(ctx, ListRemindersInput{DueBefore: "2025-04-01"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Pay rent", res.Reminders[0].Title)

	res, err = f.reminders.List(ctx, ListRemindersInput{DueBefore: "2025-04-01", IncludeUndated: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	done, err := f.reminders.Complete(ctx, CompleteReminderInput{ID: milk.ID})
	require.NoError(t, err)
	assert.True(t, done.Reminder.Completed)
	assert.NotEmpty(t, done.Reminder.CompletionDate)

	res, err = f.reminders.List(ctx, ListRemindersInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	completed := true
	res, err = f.reminders.List(ctx, ListRemindersInput{Completed: &completed})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Buy milk", res.Reminders[0].Title)

	search, err := f.reminders.Search(ctx, SearchRemindersInput{QueryText: "rent"})
	require.NoError(t, err)
	assert.Equal(t, 2, search.Count)

	search, err = f.reminders.Search(ctx, SearchRemindersInput{Tags: []string{"errands"}})
	require.NoError(t, err)
	assert.Zero(t, search.Count)

	search, err = f.reminders.Search(ctx, SearchRemindersInput{Tags: []string{"errands"}, IncludeCompleted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, search.Count)
}

func TestEditReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.reminders.Create(ctx, CreateReminderInput{Title: "Pay rent", Due: "2025-03-10", Tags: []string{"home"}})
	require.NoError(t, err)
	id := created.Reminder.ID

	priority := "low"
	res, err := f.reminders.Edit(ctx, EditReminderInput{ID: id, Priority: &priority, ClearDue: true, RemoveTags: []string{"home"}})
	require.NoError(t, err)
	assert.Equal(t, "low", res.Reminder.Priority)
	assert.Empty(t, res.Reminder.DueDate)
	assert.Empty(t, res.Reminder.Tags)

	bad := "urgent"
	_, err = f.reminders.Edit(ctx, EditReminderInput{ID: id, Priority: &bad})
	assert.Equal(t, domain.ErrKindValidation, domain.ErrorKind(err))

	_, err = f.reminders.Create(ctx, CreateReminderInput{Title: "x", Priority: "urgent"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "priority", ve.Field)

	del, err := f.reminders.Delete(ctx, ReminderIDInput{ID: id})
	require.NoError(t, err)
	assert.True(t, del.Success)

	_, err = f.reminders.Get(ctx, ReminderIDInput{ID: id})
	assert.Equal(t, domain.ErrKindNotFound, domain.ErrorKind(err))
}

func TestLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lists, err := f.reminders.ListLists(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, lists.Count)
	assert.Equal(t, "Reminders", lists.Lists[0].Title)
	assert.True(t, lists.Lists[0].IsDefault)

	cals, err := f.calendar.ListCalendars(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cals.Count)
	assert.Equal(t, "calendar", cals.Calendars[0].ID)
}

func TestAttribution(t *testing.T) {
	assert.Equal(t, "A", Options{Attribution: "A"}.attribute(""))
	assert.Equal(t, "A\n\nbody", Options{Attribution: "A"}.attribute("body"))
	assert.Equal(t, "body", Options{}.attribute("body"))
}
