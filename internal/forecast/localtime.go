package forecast

import (
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
}

// Provider timestamps are UTC; one without a zone designator is read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// LocalTime converts a provider timestamp into the process's local zone.
func LocalTime(s string) (time.Time, error) {
	return ParseTime(s, time.Local)
}

// ParseTime converts an ISO-8601 timestamp into zone, keeping the full date,
// time and offset. A nil zone means time.Local.
func ParseTime(s string, zone *time.Location) (time.Time, error) {
	if zone == nil {
		zone = time.Local
	}
	in := strings.TrimSpace(s)

	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, in)
		if err == nil {
			return t.In(zone), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, in, time.UTC); err == nil {
			return t.In(zone), nil
		}
	}
	return time.Time{}, &ParseError{What: "time", Input: s, Err: firstErr}
}
