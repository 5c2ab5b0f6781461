package proto

import (
	"fmt"
	"strings"
	"time"
)

// localLayouts are zone-less ISO-8601 date-times as emitted by servers that store local time.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses an RFC 3339 timestamp, falling back to zone-less local date-times interpreted in loc.
// An empty string yields the zero time.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTime renders t the way the gateway stores and sends it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
