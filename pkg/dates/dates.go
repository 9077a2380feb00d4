// Package dates works with calendar days. Every value it returns is
// midnight UTC of the calendar date it represents, so a DATE column scanned
// from the database compares equal to the same day computed from the clock.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

const (
	// DisplayLayout is the dd/MM/yyyy form shown to users.
	DisplayLayout = "02/01/2006"
	// ISOLayout is the wire and query-string form.
	ISOLayout = "2006-01-02"
)

// Day returns the calendar day of t, read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day in the local time zone.
func Today() time.Time {
	return Day(time.Now())
}

// AddDays moves a calendar day forward (or back, for negative n).
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

// Before reports whether a falls on an earlier calendar day than b.
func Before(a, b time.Time) bool {
	return Day(a).Before(Day(b))
}

// After reports whether a falls on a later calendar day than b.
func After(a, b time.Time) bool {
	return Day(a).After(Day(b))
}

// Format renders t as dd/MM/yyyy, or fallback when t is nil.
func Format(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.Format(DisplayLayout)
}

// Parse reads a calendar day. ISO dates are the documented form; anything
// jinzhu/now understands (e.g. "2024-05-01 10:00") is accepted and truncated.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(ISOLayout, s); err == nil {
		return t, nil
	}
	t, err := now.ParseInLocation(time.UTC, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Day(t), nil
}

// ParseOptional is Parse for optional fields: blank input yields nil.
func ParseOptional(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
