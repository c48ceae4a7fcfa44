package domain

import "time"

// Diff is a partial update. Nil pointers and empty slices leave the field
// untouched. SetTags replaces the whole tag set with Tags; AddTags and
// RemoveTags are applied afterwards.
type Diff struct {
	Title    *string
	Notes    *string
	Location *string
	URL      *string

	Start  *time.Time
	End    *time.Time
	AllDay *bool

	Due       *time.Time
	ClearDue  bool
	Priority  *Priority
	Completed *bool

	SetTags    bool
	Tags       []string
	AddTags    []string
	RemoveTags []string
}

// TouchesNotes reports whether applying the diff rewrites the stored notes.
func (d *Diff) TouchesNotes() bool {
	return d.Notes != nil || d.SetTags || len(d.AddTags) > 0 || len(d.RemoveTags) > 0
}

// TouchesTimes reports whether the diff moves an event in time.
func (d *Diff) TouchesTimes() bool {
	return d.Start != nil || d.End != nil
}

// IsEmpty returns true if the diff changes nothing
func (d *Diff) IsEmpty() bool {
	return d.Title == nil && d.Location == nil && d.URL == nil &&
		d.Start == nil && d.End == nil && d.AllDay == nil &&
		d.Due == nil && !d.ClearDue && d.Priority == nil && d.Completed == nil &&
		!d.TouchesNotes()
}

// NewItem carries the fields of an item to create.
type NewItem struct {
	Kind         Kind
	ContainerRef string

	Title string
	Notes string
	Tags  []string

	Start          time.Time
	End            time.Time
	AllDay         bool
	Location       string
	URL            string
	RecurrenceRule string

	Due      *time.Time
	Priority Priority
}
