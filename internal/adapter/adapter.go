// Package adapter translates between store items and records. Every call
// must carry a grant from the permission gate for the kind it touches.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/permission"
	"github.com/tazhate/calkit/internal/tags"
)

// Adapter wraps the store's read and write primitives.
type Adapter struct {
	store  calstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates an adapter over store.
func New(store calstore.Store, logger *zap.Logger) *Adapter {
	return &Adapter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Capabilities returns the optional primitives of the store.
func (a *Adapter) Capabilities() calstore.Capabilities {
	return a.store.Capabilities()
}

func authorize(g permission.Grant, kind domain.Kind) error {
	if !g.Allows(kind) {
		return &domain.PermissionError{Kind: kind, State: domain.AuthNotDetermined}
	}
	return nil
}

// mapError turns store failures into domain errors.
func mapError(op string, kind domain.Kind, id string, span calstore.Span, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, calstore.ErrNotFound):
		return &domain.NotFoundError{Kind: kind, ID: id}
	case errors.Is(err, calstore.ErrUnsupportedSpan):
		return &domain.UnsupportedScopeError{ID: id, Scope: scopeOf(span), Reason: err.Error()}
	}

	var (
		notFound    *domain.NotFoundError
		unsupported *domain.UnsupportedScopeError
		validation  *domain.ValidationError
		perm        *domain.PermissionError
	)
	if errors.As(err, &notFound) || errors.As(err, &unsupported) ||
		errors.As(err, &validation) || errors.As(err, &perm) {
		return err
	}
	return &domain.StoreError{Op: op, Cause: err}
}

func scopeOf(span calstore.Span) domain.Scope {
	if span == calstore.SpanFutureEvents {
		return domain.ScopeThisAndFuture
	}
	return domain.ScopeThisOnly
}

// === Containers ===

// Containers lists the calendars or reminder lists for kind.
func (a *Adapter) Containers(ctx context.Context, g permission.Grant, kind domain.Kind) ([]domain.Container, error) {
	if err := authorize(g, kind); err != nil {
		return nil, err
	}
	containers, err := a.store.Containers(ctx, kind)
	if err != nil {
		return nil, mapError("list containers", kind, "", calstore.SpanThisEvent, err)
	}
	return containers, nil
}

// ResolveContainer finds the container named by ref, matching its id or
// its title case-insensitively. An empty ref selects the default.
func (a *Adapter) ResolveContainer(ctx context.Context, g permission.Grant, kind domain.Kind, ref string) (domain.Container, error) {
	if err := authorize(g, kind); err != nil {
		return domain.Container{}, err
	}
	if ref == "" {
		ct, err := a.store.DefaultContainer(ctx, kind)
		if errors.Is(err, calstore.ErrNoContainer) {
			return domain.Container{}, &domain.NotFoundError{Kind: kind, ID: "default container"}
		}
		if err != nil {
			return domain.Container{}, mapError("default container", kind, "", calstore.SpanThisEvent, err)
		}
		return ct, nil
	}

	containers, err := a.Containers(ctx, g, kind)
	if err != nil {
		return domain.Container{}, err
	}
	for _, ct := range containers {
		if ct.ID == ref {
			return ct, nil
		}
	}
	for _, ct := range containers {
		if ct.MatchesRef(ref) {
			return ct, nil
		}
	}
	return domain.Container{}, &domain.NotFoundError{Kind: kind, ID: ref}
}

func (a *Adapter) containerIDs(ctx context.Context, g permission.Grant, kind domain.Kind, ref string) ([]string, error) {
	if ref == "" {
		return nil, nil
	}
	ct, err := a.ResolveContainer(ctx, g, kind, ref)
	if err != nil {
		return nil, err
	}
	return []string{ct.ID}, nil
}

// === Reads ===

// FetchByID returns the record identified by id.
func (a *Adapter) FetchByID(ctx context.Context, g permission.Grant, kind domain.Kind, id string) (*domain.Record, error) {
	it, err := a.fetch(ctx, g, kind, id)
	if err != nil {
		return nil, err
	}
	rec := ToRecord(it)
	return &rec, nil
}

func (a *Adapter) fetch(ctx context.Context, g permission.Grant, kind domain.Kind, id string) (*calstore.Item, error) {
	if err := authorize(g, kind); err != nil {
		return nil, err
	}
	it, err := a.store.Item(ctx, kind, id)
	if err != nil {
		return nil, mapError("fetch", kind, id, calstore.SpanThisEvent, err)
	}
	return it, nil
}

// FetchRange returns the event occurrences overlapping [from, to), ordered
// by start.
func (a *Adapter) FetchRange(ctx context.Context, g permission.Grant, from, to time.Time, containerRef string) ([]domain.Record, error) {
	if err := authorize(g, domain.KindEvent); err != nil {
		return nil, err
	}
	ids, err := a.containerIDs(ctx, g, domain.KindEvent, containerRef)
	if err != nil {
		return nil, err
	}
	items, err := a.store.Events(ctx, from, to, ids)
	if err != nil {
		return nil, mapError("list events", domain.KindEvent, "", calstore.SpanThisEvent, err)
	}
	return toRecords(items), nil
}

// FetchAll returns every reminder, optionally limited to one list.
func (a *Adapter) FetchAll(ctx context.Context, g permission.Grant, containerRef string) ([]domain.Record, error) {
	if err := authorize(g, domain.KindReminder); err != nil {
		return nil, err
	}
	ids, err := a.containerIDs(ctx, g, domain.KindReminder, containerRef)
	if err != nil {
		return nil, err
	}
	items, err := a.store.Reminders(ctx, ids)
	if err != nil {
		return nil, mapError("list reminders", domain.KindReminder, "", calstore.SpanThisEvent, err)
	}
	return toRecords(items), nil
}

// FetchSeries returns the series handle of rec. Records that are not
// occurrences are fetched again by their own id.
func (a *Adapter) FetchSeries(ctx context.Context, g permission.Grant, rec *domain.Record) (*domain.Record, error) {
	id := rec.ID
	if rec.Recurrence == domain.RecurrenceOccurrence {
		id = rec.SeriesID
	}
	return a.FetchByID(ctx, g, rec.Kind, id)
}

// FirstOccurrence returns the earliest remaining occurrence of the series
// rec belongs to.
func (a *Adapter) FirstOccurrence(ctx context.Context, g permission.Grant, rec *domain.Record) (*domain.Record, error) {
	if err := authorize(g, rec.Kind); err != nil {
		return nil, err
	}
	id := rec.ID
	if rec.Recurrence == domain.RecurrenceOccurrence {
		id = rec.SeriesID
	}
	it, err := a.store.FirstOccurrence(ctx, rec.Kind, id)
	if err != nil {
		return nil, mapError("first occurrence", rec.Kind, id, calstore.SpanThisEvent, err)
	}
	out := ToRecord(it)
	return &out, nil
}

// === Writes ===

// Create writes a new item. The tags are encoded into the notes before
// the write.
func (a *Adapter) Create(ctx context.Context, g permission.Grant, n *domain.NewItem) (*domain.Record, error) {
	if err := authorize(g, n.Kind); err != nil {
		return nil, err
	}
	if n.RecurrenceRule != "" {
		if err := calstore.ValidateRule(n.RecurrenceRule); err != nil {
			return nil, &domain.ValidationError{Field: "recurrence", Reason: err.Error()}
		}
	}
	ct, err := a.ResolveContainer(ctx, g, n.Kind, n.ContainerRef)
	if err != nil {
		return nil, err
	}

	it := &calstore.Item{
		Kind:           n.Kind,
		Handle:         calstore.HandleSingle,
		ContainerID:    ct.ID,
		ContainerTitle: ct.Title,
		Title:          n.Title,
		Notes:          tags.Encode(n.Notes, n.Tags),
		RRule:          n.RecurrenceRule,
	}
	if n.RecurrenceRule != "" {
		it.Handle = calstore.HandleSeries
	}
	switch n.Kind {
	case domain.KindEvent:
		if n.End.Before(n.Start) {
			return nil, &domain.ValidationError{Field: "end", Reason: "must not be before start"}
		}
		it.Start = n.Start
		it.End = n.End
		it.AllDay = n.AllDay
		it.Location = n.Location
		it.URL = n.URL
	case domain.KindReminder:
		if n.RecurrenceRule != "" && n.Due == nil {
			return nil, &domain.ValidationError{Field: "due", Reason: "required for recurring reminders"}
		}
		it.Due = n.Due
		it.Priority = n.Priority.Native()
	}

	saved, err := a.store.Save(ctx, it, calstore.SpanThisEvent)
	if err != nil {
		return nil, mapError("create", n.Kind, "", calstore.SpanThisEvent, err)
	}
	a.logger.Info("item created",
		zap.String("kind", string(n.Kind)),
		zap.String("id", saved.ID),
		zap.String("container", ct.ID),
	)
	rec := ToRecord(saved)
	return &rec, nil
}

// Update applies diff to the item behind rec in one write with span.
func (a *Adapter) Update(ctx context.Context, g permission.Grant, rec *domain.Record, diff *domain.Diff, span calstore.Span) (*domain.Record, error) {
	it, err := a.fetch(ctx, g, rec.Kind, rec.ID)
	if err != nil {
		return nil, err
	}
	if err := a.applyDiff(it, diff); err != nil {
		return nil, err
	}

	saved, err := a.store.Save(ctx, it, span)
	if err != nil {
		return nil, mapError("update", rec.Kind, rec.ID, span, err)
	}
	a.logger.Info("item updated",
		zap.String("kind", string(rec.Kind)),
		zap.String("id", rec.ID),
		zap.String("handle", string(it.Handle)),
		zap.Stringer("span", span),
	)
	out := ToRecord(saved)
	return &out, nil
}

// Delete removes the item behind rec in one write with span.
func (a *Adapter) Delete(ctx context.Context, g permission.Grant, rec *domain.Record, span calstore.Span) error {
	it, err := a.fetch(ctx, g, rec.Kind, rec.ID)
	if err != nil {
		return err
	}
	if err := a.store.Remove(ctx, it, span); err != nil {
		return mapError("delete", rec.Kind, rec.ID, span, err)
	}
	a.logger.Info("item deleted",
		zap.String("kind", string(rec.Kind)),
		zap.String("id", rec.ID),
		zap.String("handle", string(it.Handle)),
		zap.Stringer("span", span),
	)
	return nil
}

// SetCompleted marks a reminder done or not done, stamping or clearing
// its completion time. Completing a recurring reminder by its series id
// completes its first open occurrence; reopening needs the occurrence id.
func (a *Adapter) SetCompleted(ctx context.Context, g permission.Grant, id string, done bool) (*domain.Record, error) {
	it, err := a.fetch(ctx, g, domain.KindReminder, id)
	if err != nil {
		return nil, err
	}
	rec := &domain.Record{ID: id, Kind: domain.KindReminder}
	if it.Handle == calstore.HandleSeries {
		if !done {
			return nil, &domain.ValidationError{Field: "id", Reason: "recurring reminders are reopened by occurrence id"}
		}
		occ, err := a.store.FirstOccurrence(ctx, domain.KindReminder, it.ID)
		if err != nil {
			return nil, mapError("complete", domain.KindReminder, id, calstore.SpanThisEvent, err)
		}
		rec.ID = occ.ID
	}
	return a.Update(ctx, g, rec, &domain.Diff{Completed: &done}, calstore.SpanThisEvent)
}

func (a *Adapter) applyDiff(it *calstore.Item, d *domain.Diff) error {
	if d.Title != nil {
		it.Title = *d.Title
	}
	if d.TouchesNotes() {
		body, current := tags.Decode(it.Notes)
		if d.Notes != nil {
			body = *d.Notes
		}
		if d.SetTags {
			current = d.Tags
		}
		it.Notes = tags.Update(tags.Encode(body, current), d.AddTags, d.RemoveTags)
	}

	switch it.Kind {
	case domain.KindEvent:
		if d.Location != nil {
			it.Location = *d.Location
		}
		if d.URL != nil {
			it.URL = *d.URL
		}
		if d.AllDay != nil {
			it.AllDay = *d.AllDay
		}
		if d.TouchesTimes() {
			duration := it.End.Sub(it.Start)
			if d.Start != nil {
				it.Start = *d.Start
				it.End = it.Start.Add(duration)
			}
			if d.End != nil {
				it.End = *d.End
			}
			if it.End.Before(it.Start) {
				return &domain.ValidationError{Field: "end", Reason: "must not be before start"}
			}
		}

	case domain.KindReminder:
		if d.ClearDue {
			if it.RRule != "" || it.RecurrenceID != nil {
				return &domain.ValidationError{Field: "clear_due", Reason: "recurring reminders need a due date"}
			}
			it.Due = nil
		} else if d.Due != nil {
			due := *d.Due
			it.Due = &due
		}
		if d.Priority != nil {
			it.Priority = d.Priority.Native()
		}
		if d.Completed != nil && *d.Completed != it.Completed {
			it.Completed = *d.Completed
			it.CompletedAt = nil
			if it.Completed {
				now := a.now().UTC().Truncate(time.Second)
				it.CompletedAt = &now
			}
		}

	default:
		return fmt.Errorf("unknown item kind %q", it.Kind)
	}
	return nil
}

// === Mapping ===

// ToRecord maps a store item to a record, decoding the tag block from its
// notes.
func ToRecord(it *calstore.Item) domain.Record {
	body, tagSet := tags.Decode(it.Notes)
	rec := domain.Record{
		ID:             it.ID,
		SeriesID:       it.SeriesID,
		Kind:           it.Kind,
		ContainerID:    it.ContainerID,
		ContainerTitle: it.ContainerTitle,
		Title:          it.Title,
		Notes:          body,
		Tags:           tagSet,
		Detached:       it.Detached,
	}

	switch it.Handle {
	case calstore.HandleOccurrence:
		rec.Recurrence = domain.RecurrenceOccurrence
	case calstore.HandleSeries:
		rec.Recurrence = domain.RecurrenceSeries
		rec.RecurrenceRule = it.RRule
	default:
		rec.Recurrence = domain.RecurrenceNone
	}

	if it.Kind == domain.KindReminder {
		if it.Due != nil {
			due := *it.Due
			rec.Due = &due
		}
		rec.Priority = domain.PriorityFromNative(it.Priority)
		rec.Completed = it.Completed
		if it.CompletedAt != nil {
			done := *it.CompletedAt
			rec.CompletedAt = &done
		}
		return rec
	}

	rec.Start = it.Start
	rec.End = it.End
	rec.AllDay = it.AllDay
	rec.Location = it.Location
	rec.URL = it.URL
	return rec
}

func toRecords(items []*calstore.Item) []domain.Record {
	out := make([]domain.Record, 0, len(items))
	for _, it := range items {
		out = append(out, ToRecord(it))
	}
	return out
}
