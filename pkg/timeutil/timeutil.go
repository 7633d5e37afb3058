// Package timeutil provides calendar helpers for Skill Ascent.
// Practice days are counted in the user's display calendar, not in UTC,
// so every helper here takes the display location explicitly.
// Stored instants use the canonical form returned by Canonical.
package timeutil

import (
	"fmt"
	"time"
)

// Common date/time formats.
const (
	// FormatDate is the calendar date key format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the CLI datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatHumanDate is a human-readable format.
	FormatHumanDate = "Jan 2, 2006"
)

// CanonicalPrecision is the finest precision every badge store preserves
// (PostgreSQL timestamptz keeps microseconds).
const CanonicalPrecision = time.Microsecond

// LoadLocation resolves a display location by IANA name.
// An empty name means the process local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// Canonical converts t into the in-memory form used for comparisons and
// writes: UTC, truncated to CanonicalPrecision. The zero time stays zero.
func Canonical(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(CanonicalPrecision)
}

// CanonicalPtr is Canonical for nullable instants.
func CanonicalPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := Canonical(*t)
	return &c
}

// DateKey returns the calendar date of t in loc as YYYY-MM-DD.
// Two instants share a key when they fall on the same local day.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(orLocal(loc)).Format(FormatDate)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	loc = orLocal(loc)
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// IsSameDay checks if two instants are on the same day in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	return DateKey(t1, loc) == DateKey(t2, loc)
}

// DaysBetween counts calendar days between two instants in loc.
func DaysBetween(t1, t2 time.Time, loc *time.Location) int {
	a := StartOfDay(t1, loc)
	b := StartOfDay(t2, loc)
	// Calendar arithmetic, so DST days still count as one.
	days := int(b.Sub(a).Round(24*time.Hour).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// ParseDate parses a YYYY-MM-DD date as local midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(FormatDate, value, orLocal(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// ParseDateTime accepts RFC3339, "YYYY-MM-DD HH:MM" or a bare date, the
// last two interpreted in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(FormatDateTime, value, orLocal(loc)); err == nil {
		return t, nil
	}
	return ParseDate(value, loc)
}

// FormatRelative returns a short human string for the distance from t to now.
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "in the future"
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
