package calstore

import (
	"strings"
	"time"
)

const (
	occurrenceSep    = "::"
	occurrenceLayout = "20060102T150405Z"
)

// OccurrenceID builds the identifier of the occurrence of seriesID that was
// originally scheduled at recurrenceID.
func OccurrenceID(seriesID string, recurrenceID time.Time) string {
	return seriesID + occurrenceSep + recurrenceID.UTC().Format(occurrenceLayout)
}

// SplitOccurrenceID is the inverse of OccurrenceID.
func SplitOccurrenceID(id string) (seriesID string, recurrenceID time.Time, ok bool) {
	i := strings.LastIndex(id, occurrenceSep)
	if i <= 0 {
		return "", time.Time{}, false
	}
	t, err := time.Parse(occurrenceLayout, id[i+len(occurrenceSep):])
	if err != nil {
		return "", time.Time{}, false
	}
	return id[:i], t, true
}
