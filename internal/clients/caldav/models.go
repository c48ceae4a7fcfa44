package caldav

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/domain"
)

const productID = "-//calkit//CalDAV//EN"

// object is one calendar resource: a single item or a recurring series
// with its overrides.
type object struct {
	Path      string
	Container domain.Container
	Single    *calstore.Item
	Series    *calstore.Series
	// Timezones holds the VTIMEZONE components read from the server,
	// written back for the zones the items still use.
	Timezones []*ical.Component
}

// UID returns the UID shared by every component of the object.
func (o *object) UID() string {
	if o.Series != nil {
		return o.Series.Master.ID
	}
	return o.Single.ID
}

func componentName(kind domain.Kind) string {
	if kind == domain.KindReminder {
		return ical.CompToDo
	}
	return ical.CompEvent
}

// decodeObject maps the components of a calendar resource to native items.
// Components carrying RECURRENCE-ID become overrides of the series master.
func decodeObject(path string, container domain.Container, cal *ical.Calendar, kind domain.Kind) (*object, error) {
	if cal == nil {
		return nil, fmt.Errorf("no data in calendar object %s", path)
	}

	var (
		master    *calstore.Item
		exdates   []time.Time
		overrides []*calstore.Item
		zones     []*ical.Component
	)
	for _, comp := range cal.Children {
		if comp.Name == ical.CompTimezone {
			zones = append(zones, comp)
			continue
		}
		if comp.Name != componentName(kind) {
			continue
		}
		it, ex, err := componentToItem(comp, kind)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		it.Href = path
		it.ContainerID = container.ID
		it.ContainerTitle = container.Title
		if it.RecurrenceID != nil {
			overrides = append(overrides, it)
			continue
		}
		if master == nil {
			master = it
			exdates = ex
		}
	}
	if master == nil {
		return nil, fmt.Errorf("no %s in calendar object %s", componentName(kind), path)
	}

	obj := &object{Path: path, Container: container, Timezones: zones}
	if master.RRule == "" {
		master.Handle = calstore.HandleSingle
		obj.Single = master
		return obj, nil
	}

	master.Handle = calstore.HandleSeries
	series, err := calstore.NewSeries(master)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	series.ExDates = exdates
	for _, o := range overrides {
		o.Handle = calstore.HandleOccurrence
		o.SeriesID = master.ID
		o.Detached = true
		series.Overrides = append(series.Overrides, o)
	}
	obj.Series = series
	return obj, nil
}

func componentToItem(comp *ical.Component, kind domain.Kind) (*calstore.Item, []time.Time, error) {
	it := &calstore.Item{Kind: kind}

	var err error
	if it.ID, err = comp.Props.Text(ical.PropUID); err != nil {
		return nil, nil, err
	}
	if it.Title, err = comp.Props.Text(ical.PropSummary); err != nil {
		return nil, nil, err
	}
	if it.Notes, err = comp.Props.Text(ical.PropDescription); err != nil {
		return nil, nil, err
	}
	if it.Location, err = comp.Props.Text(ical.PropLocation); err != nil {
		return nil, nil, err
	}
	if prop := comp.Props.Get(ical.PropURL); prop != nil {
		it.URL = prop.Value
	}

	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		if it.Start, err = prop.DateTime(time.UTC); err != nil {
			return nil, nil, fmt.Errorf("DTSTART: %w", err)
		}
		it.AllDay = prop.Params.Get(ical.ParamValue) == string(ical.ValueDate)
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if it.End, err = prop.DateTime(time.UTC); err != nil {
			return nil, nil, fmt.Errorf("DTEND: %w", err)
		}
	} else if kind == domain.KindEvent {
		it.End = it.Start
		if it.AllDay {
			it.End = it.Start.AddDate(0, 0, 1)
		}
	}

	if prop := comp.Props.Get(ical.PropDue); prop != nil {
		due, err := prop.DateTime(time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("DUE: %w", err)
		}
		it.Due = &due
	}
	if prop := comp.Props.Get(ical.PropPriority); prop != nil {
		it.Priority, _ = strconv.Atoi(strings.TrimSpace(prop.Value))
	}
	if prop := comp.Props.Get(ical.PropStatus); prop != nil {
		it.Completed = strings.EqualFold(prop.Value, "COMPLETED")
	}
	if prop := comp.Props.Get(ical.PropCompleted); prop != nil {
		done, err := prop.DateTime(time.UTC)
		if err == nil {
			it.CompletedAt = &done
			it.Completed = true
		}
	}

	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
		it.RRule = prop.Value
	}
	if prop := comp.Props.Get(ical.PropRecurrenceID); prop != nil {
		rid, err := prop.DateTime(time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		it.RecurrenceID = &rid
	}
	if prop := comp.Props.Get(ical.PropCreated); prop != nil {
		it.Created, _ = prop.DateTime(time.UTC)
	}
	if prop := comp.Props.Get(ical.PropLastModified); prop != nil {
		it.Modified, _ = prop.DateTime(time.UTC)
	}

	var exdates []time.Time
	for _, prop := range comp.Props[ical.PropExceptionDates] {
		for _, v := range strings.Split(prop.Value, ",") {
			p := prop
			p.Value = strings.TrimSpace(v)
			ex, err := p.DateTime(time.UTC)
			if err != nil {
				return nil, nil, fmt.Errorf("EXDATE: %w", err)
			}
			exdates = append(exdates, ex)
		}
	}

	return it, exdates, nil
}

// encodeObject builds the calendar resource for obj.
func encodeObject(obj *object) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	var comps []*ical.Component
	if obj.Single != nil {
		comps = append(comps, itemToComponent(obj.Single, nil))
	} else {
		s := obj.Series
		comps = append(comps, itemToComponent(s.Master, s.ExDates))
		for _, o := range s.Overrides {
			ov := o.Clone()
			ov.ID = s.Master.ID
			ov.RRule = ""
			comps = append(comps, itemToComponent(ov, nil))
		}
	}

	used := make(map[string]bool)
	for _, comp := range comps {
		for _, props := range comp.Props {
			for _, prop := range props {
				if tzid := prop.Params.Get(ical.PropTimezoneID); tzid != "" {
					used[tzid] = true
				}
			}
		}
	}
	for _, tz := range obj.Timezones {
		if id, _ := tz.Props.Text(ical.PropTimezoneID); used[id] {
			cal.Children = append(cal.Children, tz)
		}
	}
	cal.Children = append(cal.Children, comps...)
	return cal
}

// zoned returns t in a form go-ical writes with a TZID parameter, so that
// recurring items keep their wall-clock time across DST changes. Times in
// zones without an IANA name are written as UTC.
func zoned(t time.Time) time.Time {
	switch name := t.Location().String(); name {
	case "", "UTC", "Local":
		return t.UTC()
	default:
		if _, err := time.LoadLocation(name); err != nil {
			return t.UTC()
		}
	}
	return t
}

func itemToComponent(it *calstore.Item, exdates []time.Time) *ical.Component {
	comp := ical.NewComponent(componentName(it.Kind))
	comp.Props.SetText(ical.PropUID, it.ID)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	comp.Props.SetText(ical.PropSummary, it.Title)

	if it.Notes != "" {
		comp.Props.SetText(ical.PropDescription, it.Notes)
	}
	if it.Location != "" {
		comp.Props.SetText(ical.PropLocation, it.Location)
	}
	if it.URL != "" {
		setRaw(comp, ical.PropURL, it.URL)
	}

	if it.Kind == domain.KindEvent {
		if it.AllDay {
			comp.Props.SetDate(ical.PropDateTimeStart, it.Start)
			if !it.End.IsZero() {
				comp.Props.SetDate(ical.PropDateTimeEnd, it.End)
			}
		} else {
			comp.Props.SetDateTime(ical.PropDateTimeStart, zoned(it.Start))
			if !it.End.IsZero() {
				comp.Props.SetDateTime(ical.PropDateTimeEnd, zoned(it.End))
			}
		}
	} else {
		if it.Due != nil {
			comp.Props.SetDateTime(ical.PropDue, zoned(*it.Due))
			if it.RRule != "" || it.RecurrenceID != nil {
				// RFC 5545 requires DTSTART on recurring to-dos.
				comp.Props.SetDateTime(ical.PropDateTimeStart, zoned(*it.Due))
			}
		}
		if it.Priority != 0 {
			setRaw(comp, ical.PropPriority, strconv.Itoa(it.Priority))
		}
		if it.Completed {
			setRaw(comp, ical.PropStatus, "COMPLETED")
			if it.CompletedAt != nil {
				comp.Props.SetDateTime(ical.PropCompleted, it.CompletedAt.UTC())
			}
		} else {
			setRaw(comp, ical.PropStatus, "NEEDS-ACTION")
		}
	}

	if it.RRule != "" {
		setRaw(comp, ical.PropRecurrenceRule, it.RRule)
	}
	if it.RecurrenceID != nil {
		comp.Props.SetDateTime(ical.PropRecurrenceID, zoned(*it.RecurrenceID))
	}
	for _, ex := range exdates {
		prop := ical.NewProp(ical.PropExceptionDates)
		prop.SetDateTime(zoned(ex))
		comp.Props.Add(prop)
	}
	if !it.Created.IsZero() {
		comp.Props.SetDateTime(ical.PropCreated, it.Created.UTC())
	}
	comp.Props.SetDateTime(ical.PropLastModified, time.Now().UTC())

	return comp
}

// setRaw stores a value without TEXT escaping, for RRULE and other
// structured values.
func setRaw(comp *ical.Component, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	comp.Props.Set(prop)
}
