package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date rendering used in API responses, e.g. "Mon Jan 01 2024".
const DateLayout = "Mon Jan 02 2006"

var dateInputLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	DateLayout,
}

// ParseDate reads a calendar date and returns midnight UTC of that day.
// Timestamps keep the calendar day of their own offset.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return StartOfDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrInvalidInput, raw)
}

// StartOfDay truncates t to midnight UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t using DateLayout in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
