package model

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for every stay date.
const DateLayout = "2006-01-02"

// zeroDateTime is the PrestaShop/MySQL placeholder for an unset datetime.
const zeroDateTime = "0000-00-00 00:00:00"

// DateOnly truncates a date or datetime string to its YYYY-MM-DD part. It
// accepts "2006-01-02", "2006-01-02 15:04:05" and RFC 3339 values; the
// timezone is dropped, not converted, so a local date never shifts a day.
// Empty input and the zero datetime yield "".
func DateOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == zeroDateTime || strings.HasPrefix(s, "0000-00-00") {
		return ""
	}
	if i := strings.IndexAny(s, " T"); i >= 0 {
		s = s[:i]
	}
	return s
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// FormatDate formats t as a UTC calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Overlaps reports whether the stay [checkIn, checkOut] intersects the
// inclusive window [start, end]. All four values must be YYYY-MM-DD strings;
// lexicographic order equals chronological order for that layout.
func Overlaps(checkIn, checkOut, start, end string) bool {
	return checkIn <= end && checkOut >= start
}

// Window returns the inclusive sync window [now-days, now+days] as UTC dates.
func Window(now time.Time, days int) (start, end string) {
	now = now.UTC()
	return FormatDate(now.AddDate(0, 0, -days)), FormatDate(now.AddDate(0, 0, days))
}
