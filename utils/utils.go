package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseUnix parses a numeric unix timestamp string. Values above 9999999999 are treated as milliseconds.
// The second return value is false when s is not a plain integer.
func ParseUnix(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	timestamp, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	// If Unix milliseconds - convert to seconds
	if timestamp > 9999999999 {
		return time.UnixMilli(timestamp), true
	}
	return time.Unix(timestamp, 0), true
}

// isoLayouts are the accepted ISO-8601 layouts and whether they carry a clock time.
var isoLayouts = []struct {
	layout   string
	hasClock bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05Z0700", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02 15:04:05", true},
	{time.DateOnly, false},
}

// ParseISO parses an ISO-8601 timestamp. A trailing "Z" means UTC, an explicit offset is kept as is
// and timestamps without a zone are read in loc. hasClock is false for date-only values.
func ParseISO(s string, loc *time.Location) (t time.Time, hasClock bool, err error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}

	for _, l := range isoLayouts {
		t, err = time.ParseInLocation(l.layout, s, loc)
		if err == nil {
			return t, l.hasClock, nil
		}
	}

	return time.Time{}, false, fmt.Errorf("error parsing ISO-8601 date: %s", s)
}
