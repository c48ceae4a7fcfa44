// Package recurrence decides which store handle and span an edit or delete
// of a recurring item is written against.
package recurrence

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/adapter"
	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/permission"
)

type operation int

const (
	opEdit operation = iota
	opDelete
)

func (o operation) String() string {
	if o == opDelete {
		return "delete"
	}
	return "edit"
}

// target is the handle a mutation is written to.
type target struct {
	record *domain.Record
	span   calstore.Span
	// shiftFrom is set when an occurrence's time change must be moved onto
	// the series as a delta.
	shiftFrom *domain.Record
}

// Resolver drives the adapter through exactly one write per mutation.
type Resolver struct {
	adapter *adapter.Adapter
	logger  *zap.Logger
}

// NewResolver creates a resolver over a.
func NewResolver(a *adapter.Adapter, logger *zap.Logger) *Resolver {
	return &Resolver{adapter: a, logger: logger}
}

// Edit applies diff to rec with the given scope.
func (r *Resolver) Edit(ctx context.Context, g permission.Grant, rec *domain.Record, diff *domain.Diff, scope domain.Scope) (*domain.Record, error) {
	t, err := r.resolve(ctx, g, rec, scope, opEdit)
	if err != nil {
		return nil, err
	}
	if t.shiftFrom != nil && (diff.TouchesTimes() || diff.Due != nil) {
		diff = shiftDiff(t.shiftFrom, t.record, diff)
	}
	out, err := r.adapter.Update(ctx, g, t.record, diff, t.span)
	if err != nil {
		return nil, withScope(err, rec.ID, scope)
	}
	return out, nil
}

// Delete removes rec with the given scope.
func (r *Resolver) Delete(ctx context.Context, g permission.Grant, rec *domain.Record, scope domain.Scope) error {
	t, err := r.resolve(ctx, g, rec, scope, opDelete)
	if err != nil {
		return err
	}
	if err := r.adapter.Delete(ctx, g, t.record, t.span); err != nil {
		return withScope(err, rec.ID, scope)
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context, g permission.Grant, rec *domain.Record, scope domain.Scope, op operation) (*target, error) {
	log := r.logger.With(
		zap.String("id", rec.ID),
		zap.String("marker", string(rec.Recurrence)),
		zap.String("scope", string(scope)),
		zap.Stringer("op", op),
	)

	if rec.Recurrence == domain.RecurrenceNone || rec.Recurrence == "" {
		if scope != domain.ScopeThisOnly {
			log.Debug("scope ignored for non-recurring item")
		}
		return &target{record: rec, span: calstore.SpanThisEvent}, nil
	}

	switch scope {
	case domain.ScopeThisOnly:
		if rec.Recurrence == domain.RecurrenceSeries {
			first, err := r.adapter.FirstOccurrence(ctx, g, rec)
			if err != nil {
				return nil, err
			}
			log.Debug("series resolved to first occurrence", zap.String("occurrence", first.ID))
			return &target{record: first, span: calstore.SpanThisEvent}, nil
		}
		return &target{record: rec, span: calstore.SpanThisEvent}, nil

	case domain.ScopeThisAndFuture:
		caps := r.adapter.Capabilities()
		if (op == opEdit && !caps.FutureEdits) || (op == opDelete && !caps.FutureDeletes) {
			return nil, &domain.UnsupportedScopeError{
				ID:     rec.ID,
				Scope:  scope,
				Reason: "the store cannot " + op.String() + " future occurrences",
			}
		}
		if rec.Recurrence == domain.RecurrenceSeries {
			// Every occurrence is in the future of the series itself.
			return &target{record: rec, span: calstore.SpanThisEvent}, nil
		}
		if rec.Detached {
			return nil, &domain.UnsupportedScopeError{
				ID:     rec.ID,
				Scope:  scope,
				Reason: "the occurrence was already modified on its own",
			}
		}
		return &target{record: rec, span: calstore.SpanFutureEvents}, nil

	case domain.ScopeAll:
		if rec.Recurrence == domain.RecurrenceSeries {
			return &target{record: rec, span: calstore.SpanThisEvent}, nil
		}
		series, err := r.adapter.FetchSeries(ctx, g, rec)
		if err != nil {
			return nil, err
		}
		log.Debug("occurrence resolved to series", zap.String("series", series.ID))
		return &target{record: series, span: calstore.SpanThisEvent, shiftFrom: rec}, nil

	default:
		return nil, &domain.ValidationError{Field: "scope", Reason: "unknown scope " + string(scope)}
	}
}

// shiftDiff rewrites the absolute times in diff, given for occ, as the same
// shift applied to series.
func shiftDiff(occ, series *domain.Record, diff *domain.Diff) *domain.Diff {
	d := *diff
	if diff.Start != nil {
		start := series.Start.Add(diff.Start.Sub(occ.Start))
		d.Start = &start
	}
	if diff.End != nil {
		end := series.End.Add(diff.End.Sub(occ.End))
		d.End = &end
	}
	if diff.Due != nil && occ.Due != nil && series.Due != nil {
		due := series.Due.Add(diff.Due.Sub(*occ.Due))
		d.Due = &due
	}
	return &d
}

// withScope reports a span rejection against the scope the caller asked for.
func withScope(err error, id string, scope domain.Scope) error {
	var unsupported *domain.UnsupportedScopeError
	if errors.As(err, &unsupported) {
		return &domain.UnsupportedScopeError{ID: id, Scope: scope, Reason: unsupported.Reason}
	}
	return err
}
