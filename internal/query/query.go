// Package query filters records fetched from the store.
package query

import (
	"strings"
	"time"

	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/tags"
)

// DateRange is a half-open interval [From, To). A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither bound is set
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Predicate is a conjunction of optional filters. The zero value matches
// every record.
type Predicate struct {
	Range DateRange
	// IncludeUndated lets reminders without a due date through a date range.
	IncludeUndated bool

	Text string
	Tags []string

	// Completed restricts reminders to the given completion state.
	// Events are never excluded by it.
	Completed *bool
}

// IsEmpty reports whether the predicate has no active filter.
func (p Predicate) IsEmpty() bool {
	return p.Range.IsZero() && strings.TrimSpace(p.Text) == "" &&
		len(tags.NormalizeAll(p.Tags)) == 0 && p.Completed == nil
}

// Filter returns the records matching p, in input order.
func Filter(records []domain.Record, p Predicate) []domain.Record {
	if p.IsEmpty() {
		return records
	}
	m := p.compile()

	out := make([]domain.Record, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// Limit truncates records to n entries. n <= 0 means no limit.
func Limit(records []domain.Record, n int) []domain.Record {
	if n <= 0 || len(records) <= n {
		return records
	}
	return records[:n]
}

type matcher struct {
	p    Predicate
	text string
	tags []string
}

func (p Predicate) compile() matcher {
	return matcher{
		p:    p,
		text: strings.ToLower(strings.TrimSpace(p.Text)),
		tags: tags.NormalizeAll(p.Tags),
	}
}

func (m matcher) match(rec *domain.Record) bool {
	return m.matchRange(rec) && m.matchText(rec) && m.matchTags(rec) && m.matchCompleted(rec)
}

func (m matcher) matchRange(rec *domain.Record) bool {
	if m.p.Range.IsZero() {
		return true
	}
	when, ok := rec.When()
	if !ok {
		return m.p.IncludeUndated
	}
	return m.p.Range.Contains(when)
}

func (m matcher) matchText(rec *domain.Record) bool {
	if m.text == "" {
		return true
	}
	for _, field := range []string{rec.Title, rec.Notes, rec.Location} {
		if strings.Contains(strings.ToLower(field), m.text) {
			return true
		}
	}
	return false
}

func (m matcher) matchTags(rec *domain.Record) bool {
	for _, t := range m.tags {
		if !rec.HasTag(t) {
			return false
		}
	}
	return true
}

func (m matcher) matchCompleted(rec *domain.Record) bool {
	if m.p.Completed == nil || rec.Kind != domain.KindReminder {
		return true
	}
	return rec.Completed == *m.p.Completed
}
