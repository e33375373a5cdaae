// Package dates holds the calendar helpers shared by billing code. Date-only
// values are carried as time.Time pinned to midnight UTC.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the YYYY-MM-DD wire and storage format.
const Layout = "2006-01-02"

// Clock abstracts the wall clock so schedulers and reconcilers stay testable.
type Clock func() time.Time

// SystemClock returns the current time in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC date according to clock.
func Today(clock Clock) time.Time {
	if clock == nil {
		clock = SystemClock
	}
	return DateOf(clock())
}

// Format renders t as YYYY-MM-DD in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads a YYYY-MM-DD string into a UTC date.
func Parse(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	parsed, err := time.ParseInLocation(Layout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return parsed, nil
}

// AddDays shifts t by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// AddWeeks shifts t by n weeks.
func AddWeeks(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, 7*n)
}

// AddMonths shifts t by n months. Day overflow rolls into the following
// month, so Jan 31 + 1 month lands on Mar 2 (or Mar 3 outside leap years).
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

// Ptr returns a pointer to a copy of t.
func Ptr(t time.Time) *time.Time {
	return &t
}
