// Package permission checks store authorization before any other store
// call is made.
package permission

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/domain"
)

// Authorizer is the part of the store the gate talks to.
type Authorizer interface {
	Authorization(ctx context.Context, kind domain.Kind) (domain.AuthState, error)
	RequestAccess(ctx context.Context, kind domain.Kind) (domain.AuthState, error)
}

// Grant proves that access to a kind was checked on this call. Only the
// gate can issue one; the zero value grants nothing.
type Grant struct {
	kind  domain.Kind
	valid bool
}

// Allows reports whether the grant covers kind.
func (g Grant) Allows(kind domain.Kind) bool {
	return g.valid && g.kind == kind
}

// Kind returns the kind the grant was issued for.
func (g Grant) Kind() domain.Kind {
	return g.kind
}

// Gate queries the store's authorization state. Nothing is cached; every
// call asks the store again.
type Gate struct {
	store  Authorizer
	logger *zap.Logger
}

// NewGate creates a gate over store.
func NewGate(store Authorizer, logger *zap.Logger) *Gate {
	return &Gate{store: store, logger: logger}
}

// Check returns the current authorization state for kind.
func (g *Gate) Check(ctx context.Context, kind domain.Kind) (domain.AuthState, error) {
	state, err := g.store.Authorization(ctx, kind)
	if err != nil {
		return "", &domain.StoreError{Op: "authorization", Cause: err}
	}
	return state, nil
}

// Require issues a grant for kind, or a PermissionError when the store has
// not authorized full access.
func (g *Gate) Require(ctx context.Context, kind domain.Kind) (Grant, error) {
	state, err := g.Check(ctx, kind)
	if err != nil {
		return Grant{}, err
	}
	if state != domain.AuthAuthorized {
		g.logger.Debug("access refused",
			zap.String("kind", string(kind)),
			zap.String("state", string(state)),
		)
		return Grant{}, &domain.PermissionError{Kind: kind, State: state}
	}
	return Grant{kind: kind, valid: true}, nil
}

// RequestAccess asks the store for access to kind.
func (g *Gate) RequestAccess(ctx context.Context, kind domain.Kind) (domain.AuthState, error) {
	state, err := g.store.RequestAccess(ctx, kind)
	if err != nil {
		return "", &domain.StoreError{Op: "request access", Cause: err}
	}
	g.logger.Info("access requested",
		zap.String("kind", string(kind)),
		zap.String("state", string(state)),
	)
	return state, nil
}

// Status is the authorization state of one kind.
type Status struct {
	Status     domain.AuthState `json:"status"`
	Authorized bool             `json:"authorized"`
	CanRequest bool             `json:"can_request"`
}

func statusOf(state domain.AuthState) Status {
	return Status{
		Status:     state,
		Authorized: state == domain.AuthAuthorized,
		CanRequest: state.CanRequest(),
	}
}

// Report is the answer to a permission check covering both kinds.
type Report struct {
	Calendar      Status `json:"calendar"`
	Reminders     Status `json:"reminders"`
	AllAuthorized bool   `json:"all_authorized"`
	Instructions  string `json:"instructions,omitempty"`
}

// Report checks both kinds and explains how to fix any missing access.
func (g *Gate) Report(ctx context.Context) (*Report, error) {
	events, err := g.Check(ctx, domain.KindEvent)
	if err != nil {
		return nil, err
	}
	reminders, err := g.Check(ctx, domain.KindReminder)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Calendar:  statusOf(events),
		Reminders: statusOf(reminders),
	}
	r.AllAuthorized = r.Calendar.Authorized && r.Reminders.Authorized

	var lines []string
	for _, k := range []struct {
		kind  domain.Kind
		state domain.AuthState
	}{{domain.KindEvent, events}, {domain.KindReminder, reminders}} {
		if k.state == domain.AuthAuthorized {
			continue
		}
		perm := &domain.PermissionError{Kind: k.kind, State: k.state}
		lines = append(lines, fmt.Sprintf("%s: %s", k.kind.Entity(), perm.Instructions()))
	}
	r.Instructions = strings.Join(lines, " ")
	return r, nil
}
