package calstore

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/calkit/internal/domain"
)

// maxOccurrences caps expansion of a single series within one range.
const maxOccurrences = 5000

// Series is a recurring item: the master carrying the rule, the detached
// occurrences that override single instances, and the excluded instances.
// Overrides and ExDates are keyed by the instance's original start.
type Series struct {
	Master    *Item
	Overrides []*Item
	ExDates   []time.Time
}

// NewSeries wraps master and checks that its rule parses.
func NewSeries(master *Item) (*Series, error) {
	s := &Series{Master: master}
	if _, err := s.rule(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateRule reports whether rule is a usable RRULE value.
func ValidateRule(rule string) error {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return err
	}
	if _, err := rrule.NewRRule(*opt); err != nil {
		return err
	}
	return nil
}

func (s *Series) options() (*rrule.ROption, error) {
	opt, err := rrule.StrToROption(s.Master.RRule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", s.Master.RRule, err)
	}
	opt.Dtstart = s.Master.Anchor()
	return opt, nil
}

func (s *Series) rule() (*rrule.RRule, error) {
	opt, err := s.options()
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule %q: %w", s.Master.RRule, err)
	}
	return r, nil
}

func (s *Series) set() (*rrule.Set, error) {
	r, err := s.rule()
	if err != nil {
		return nil, err
	}
	var set rrule.Set
	set.RRule(r)
	for _, ex := range s.ExDates {
		set.ExDate(ex)
	}
	return &set, nil
}

func (s *Series) duration() time.Duration {
	if s.Master.Kind == domain.KindReminder {
		return 0
	}
	if d := s.Master.End.Sub(s.Master.Start); d > 0 {
		return d
	}
	return 0
}

// Item returns the series handle.
func (s *Series) Item() *Item {
	it := s.Master.Clone()
	it.Handle = HandleSeries
	it.SeriesID = ""
	it.RecurrenceID = nil
	it.Detached = false
	return it
}

func (s *Series) instance(t time.Time) *Item {
	occ := s.Master.Clone()
	occ.Handle = HandleOccurrence
	occ.ID = OccurrenceID(s.Master.ID, t)
	occ.SeriesID = s.Master.ID
	occ.RRule = ""
	occ.Detached = false
	rid := t
	occ.RecurrenceID = &rid
	if occ.Kind == domain.KindReminder {
		due := t
		occ.Due = &due
	} else {
		occ.Start = t
		occ.End = t.Add(s.duration())
	}
	return occ
}

func (s *Series) detached(o *Item) *Item {
	occ := o.Clone()
	occ.Handle = HandleOccurrence
	occ.ID = OccurrenceID(s.Master.ID, *o.RecurrenceID)
	occ.SeriesID = s.Master.ID
	occ.ContainerID = s.Master.ContainerID
	occ.ContainerTitle = s.Master.ContainerTitle
	occ.Href = s.Master.Href
	occ.RRule = ""
	occ.Detached = true
	return occ
}

func (s *Series) overrideIndex(rid time.Time) int {
	for i, o := range s.Overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(rid) {
			return i
		}
	}
	return -1
}

func (s *Series) excluded(rid time.Time) bool {
	for _, ex := range s.ExDates {
		if ex.Equal(rid) {
			return true
		}
	}
	return false
}

// Occurrences returns the occurrences overlapping [from, to) ordered by
// start, with overrides applied and exclusions removed.
func (s *Series) Occurrences(from, to time.Time) ([]*Item, error) {
	set, err := s.set()
	if err != nil {
		return nil, err
	}

	times := set.Between(from.Add(-s.duration()), to, true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}

	out := make([]*Item, 0, len(times))
	for _, t := range times {
		if s.overrideIndex(t) >= 0 {
			continue
		}
		occ := s.instance(t)
		if Overlaps(occ, from, to) {
			out = append(out, occ)
		}
	}
	for _, o := range s.Overrides {
		if o.RecurrenceID == nil || s.excluded(*o.RecurrenceID) {
			continue
		}
		occ := s.detached(o)
		if Overlaps(occ, from, to) {
			out = append(out, occ)
		}
	}
	SortByAnchor(out)
	return out, nil
}

// Occurrence returns the occurrence originally scheduled at rid.
func (s *Series) Occurrence(rid time.Time) (*Item, error) {
	if s.excluded(rid) {
		return nil, ErrNotFound
	}
	if i := s.overrideIndex(rid); i >= 0 {
		return s.detached(s.Overrides[i]), nil
	}
	r, err := s.rule()
	if err != nil {
		return nil, err
	}
	times := r.Between(rid, rid, true)
	if len(times) == 0 {
		return nil, ErrNotFound
	}
	return s.instance(times[0]), nil
}

// First returns the earliest remaining occurrence.
func (s *Series) First() (*Item, error) {
	set, err := s.set()
	if err != nil {
		return nil, err
	}
	t := set.After(s.Master.Anchor(), true)
	if t.IsZero() {
		return nil, ErrNotFound
	}
	return s.Occurrence(t)
}

// FirstOpen returns the earliest remaining occurrence that is not marked
// completed. For events it is the same as First.
func (s *Series) FirstOpen() (*Item, error) {
	set, err := s.set()
	if err != nil {
		return nil, err
	}
	next := set.Iterator()
	for n := 0; n < maxOccurrences; n++ {
		t, ok := next()
		if !ok {
			break
		}
		occ, err := s.Occurrence(t)
		if err != nil {
			return nil, err
		}
		if !occ.Completed {
			return occ, nil
		}
	}
	return nil, ErrNotFound
}

// HasBefore reports whether any occurrence remains before rid.
func (s *Series) HasBefore(rid time.Time) (bool, error) {
	set, err := s.set()
	if err != nil {
		return false, err
	}
	return !set.Before(rid, false).IsZero(), nil
}

// Override stores occ as the detached version of its instance.
func (s *Series) Override(occ *Item) error {
	if occ.RecurrenceID == nil {
		return fmt.Errorf("override without recurrence id: %w", ErrUnsupportedSpan)
	}
	inst, err := s.Occurrence(*occ.RecurrenceID)
	if err != nil {
		return err
	}

	o := occ.Clone()
	o.ID = inst.ID
	o.Handle = HandleOccurrence
	o.SeriesID = s.Master.ID
	o.RRule = ""
	o.Detached = true
	rid := *inst.RecurrenceID
	o.RecurrenceID = &rid

	if i := s.overrideIndex(rid); i >= 0 {
		s.Overrides[i] = o
	} else {
		s.Overrides = append(s.Overrides, o)
	}
	return nil
}

// Exclude removes the instance at rid from the series.
func (s *Series) Exclude(rid time.Time) error {
	inst, err := s.Occurrence(rid)
	if err != nil {
		return err
	}
	if i := s.overrideIndex(rid); i >= 0 {
		s.Overrides = append(s.Overrides[:i], s.Overrides[i+1:]...)
	}
	s.ExDates = append(s.ExDates, *inst.RecurrenceID)
	return nil
}

// ReplaceMaster swaps in a new master. Content fields that differ from the
// old master are copied onto every override, and overrides and exclusions
// move with the series when its anchor shifts.
func (s *Series) ReplaceMaster(m *Item) error {
	next := m.Clone()
	next.ID = s.Master.ID
	next.Handle = HandleSeries
	next.SeriesID = ""
	next.RecurrenceID = nil
	next.Detached = false

	if err := ValidateRule(next.RRule); err != nil {
		return fmt.Errorf("parse rrule %q: %w", next.RRule, err)
	}

	for _, o := range s.Overrides {
		carryContent(s.Master, next, o)
	}

	delta := next.Anchor().Sub(s.Master.Anchor())
	s.Master = next
	if delta == 0 {
		return nil
	}
	for _, o := range s.Overrides {
		rid := o.RecurrenceID.Add(delta)
		o.RecurrenceID = &rid
		o.ID = OccurrenceID(s.Master.ID, rid)
	}
	for i := range s.ExDates {
		s.ExDates[i] = s.ExDates[i].Add(delta)
	}
	return nil
}

// carryContent sets on o each content field that changed from prev to next.
// Fields the master kept are left as the override has them.
func carryContent(prev, next, o *Item) {
	if next.Title != prev.Title {
		o.Title = next.Title
	}
	if next.Notes != prev.Notes {
		o.Notes = next.Notes
	}
	if next.Location != prev.Location {
		o.Location = next.Location
	}
	if next.URL != prev.URL {
		o.URL = next.URL
	}
	if next.Priority != prev.Priority {
		o.Priority = next.Priority
	}
}

// countBefore returns the number of rule instances strictly before rid,
// ignoring exclusions.
func countBefore(r *rrule.RRule, rid time.Time) int {
	n := 0
	next := r.Iterator()
	for {
		t, ok := next()
		if !ok || !t.Before(rid) {
			return n
		}
		n++
	}
}

// endBefore rewrites opt so that the rule stops before rid.
func endBefore(opt *rrule.ROption, prior int, rid time.Time) {
	if opt.Count > 0 {
		opt.Count = prior
		return
	}
	opt.Until = rid.Add(-time.Second)
}

func (s *Series) dropFrom(rid time.Time) (moved []time.Time) {
	overrides := s.Overrides[:0]
	for _, o := range s.Overrides {
		if o.RecurrenceID.Before(rid) {
			overrides = append(overrides, o)
		}
	}
	s.Overrides = overrides

	exdates := s.ExDates[:0]
	for _, ex := range s.ExDates {
		if ex.Before(rid) {
			exdates = append(exdates, ex)
		} else {
			moved = append(moved, ex)
		}
	}
	s.ExDates = exdates
	return moved
}

// Split ends the series before the instance at rid and returns a new
// series tailID that starts from edited and carries the remaining
// instances. Overrides at or after rid are dropped.
func (s *Series) Split(rid time.Time, edited *Item, tailID string) (*Series, error) {
	inst, err := s.Occurrence(rid)
	if err != nil {
		return nil, err
	}
	rid = *inst.RecurrenceID

	opt, err := s.options()
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule %q: %w", s.Master.RRule, err)
	}
	prior := countBefore(r, rid)

	tailOpt := *opt
	if opt.Count > 0 {
		tailOpt.Count = opt.Count - prior
	}
	headOpt := *opt
	endBefore(&headOpt, prior, rid)

	tm := edited.Clone()
	tm.ID = tailID
	tm.Handle = HandleSeries
	tm.SeriesID = ""
	tm.Href = ""
	tm.RecurrenceID = nil
	tm.Detached = false
	tm.RRule = tailOpt.RRuleString()
	tail := &Series{Master: tm}

	delta := tm.Anchor().Sub(rid)
	for _, ex := range s.dropFrom(rid) {
		tail.ExDates = append(tail.ExDates, ex.Add(delta))
	}
	s.Master.RRule = headOpt.RRuleString()
	return tail, nil
}

// Truncate removes the instance at rid and every later one.
func (s *Series) Truncate(rid time.Time) error {
	inst, err := s.Occurrence(rid)
	if err != nil {
		return err
	}
	rid = *inst.RecurrenceID

	opt, err := s.options()
	if err != nil {
		return err
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return fmt.Errorf("build rrule %q: %w", s.Master.RRule, err)
	}
	endBefore(opt, countBefore(r, rid), rid)
	s.Master.RRule = opt.RRuleString()
	s.dropFrom(rid)
	return nil
}

// Apply writes an edited occurrence back into the series. With
// SpanFutureEvents the series is split at the occurrence and the returned
// tail must be persisted as a new series; when no earlier occurrence
// remains the whole series is edited instead and tail is nil.
func (s *Series) Apply(occ *Item, span Span, newID func() string) (tail *Series, saved *Item, err error) {
	if occ.RecurrenceID == nil {
		return nil, nil, fmt.Errorf("occurrence without recurrence id: %w", ErrUnsupportedSpan)
	}
	rid := *occ.RecurrenceID

	switch span {
	case SpanThisEvent:
		if err := s.Override(occ); err != nil {
			return nil, nil, err
		}
		saved, err := s.Occurrence(rid)
		return nil, saved, err

	case SpanFutureEvents:
		before, err := s.HasBefore(rid)
		if err != nil {
			return nil, nil, err
		}
		if !before {
			if err := s.ReplaceMaster(shiftedMaster(s.Master, occ, rid)); err != nil {
				return nil, nil, err
			}
			saved, err := s.First()
			return nil, saved, err
		}
		tail, err := s.Split(rid, occ, newID())
		if err != nil {
			return nil, nil, err
		}
		saved, err := tail.First()
		return tail, saved, err

	default:
		return nil, nil, fmt.Errorf("span %d: %w", span, ErrUnsupportedSpan)
	}
}

// Drop deletes the occurrence at rid with span. gone reports that no
// occurrence is left and the whole series should be removed.
func (s *Series) Drop(rid time.Time, span Span) (gone bool, err error) {
	if _, err := s.Occurrence(rid); err != nil {
		return false, err
	}

	switch span {
	case SpanThisEvent:
		if err := s.Exclude(rid); err != nil {
			return false, err
		}
		if _, err := s.First(); errors.Is(err, ErrNotFound) {
			return true, nil
		} else if err != nil {
			return false, err
		}
		return false, nil

	case SpanFutureEvents:
		before, err := s.HasBefore(rid)
		if err != nil {
			return false, err
		}
		if !before {
			return true, nil
		}
		return false, s.Truncate(rid)

	default:
		return false, fmt.Errorf("span %d: %w", span, ErrUnsupportedSpan)
	}
}

// shiftedMaster copies the content of an edited occurrence onto master and
// moves the master by the occurrence's time shift.
func shiftedMaster(master, occ *Item, rid time.Time) *Item {
	m := master.Clone()
	m.Title = occ.Title
	m.Notes = occ.Notes
	m.Location = occ.Location
	m.URL = occ.URL
	m.AllDay = occ.AllDay
	m.Priority = occ.Priority
	m.Completed = occ.Completed
	m.CompletedAt = occ.CompletedAt

	delta := occ.Anchor().Sub(rid)
	if m.Kind == domain.KindReminder {
		if m.Due != nil {
			due := m.Due.Add(delta)
			m.Due = &due
		}
		return m
	}
	m.Start = m.Start.Add(delta)
	m.End = m.Start.Add(occ.End.Sub(occ.Start))
	return m
}

// Overlaps reports whether it falls inside [from, to). Zero-length items
// overlap when they start inside the range.
func Overlaps(it *Item, from, to time.Time) bool {
	start, end := it.Anchor(), it.End
	if it.Kind == domain.KindReminder {
		end = start
	}
	if !start.Before(to) {
		return false
	}
	if end.After(start) {
		return end.After(from)
	}
	return !start.Before(from)
}

// SortByAnchor orders items by start or due time.
func SortByAnchor(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Anchor().Before(items[j].Anchor())
	})
}
