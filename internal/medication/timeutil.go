package medication

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the layout of taken-history date keys
	DateLayout = "2006-01-02"
	// ClockLayout is the layout of scheduled dose times
	ClockLayout = "15:04"

	minutesPerDay = 24 * 60

	// LateAfter is how long after the scheduled time a taken dose counts as late
	LateAfter = 5 * time.Minute
)

// ParseClock parses "HH:MM" (24h) into hour and minute
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NormalizeClock parses s and returns it zero-padded, so "8:00" becomes
// "08:00"
func NormalizeClock(s string) (string, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FormatClock(h*60 + m), nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM"
func FormatClock(minuteOfDay int) string {
	m := ((minuteOfDay % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatDisplay converts "HH:MM" to "H:MM AM/PM". Hours 0 and 12 render as 12.
// Unparsable input is returned unchanged.
func FormatDisplay(clock string) string {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return clock
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, minute, suffix)
}

// IsSameCalendarDay compares year, month and day only
func IsSameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsDue reports whether now's clock time has reached scheduled on now's
// calendar day. A dose scheduled later today is not yet actionable.
func IsDue(scheduled string, now time.Time) bool {
	at, err := At(now, scheduled)
	if err != nil {
		return false
	}
	return !now.Before(at)
}

// StartOfDay truncates t to local midnight in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateKey formats the calendar date of t as used in taken-history keys
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a "YYYY-MM-DD" date in loc
func ParseDateKey(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// At returns the instant of clock on date's calendar day, in date's location
func At(date time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, date.Location()), nil
}

// EndDate returns the last active calendar date of a window that starts on
// start's calendar day. Months use time.AddDate normalisation, so Jan 31
// plus one month lands on Mar 3 (Mar 2 in a leap year).
func EndDate(start time.Time, d Duration) time.Time {
	s := StartOfDay(start)
	switch d.Unit {
	case UnitWeeks:
		return s.AddDate(0, 0, d.Value*7)
	case UnitMonths:
		return s.AddDate(0, d.Value, 0)
	default:
		return s.AddDate(0, 0, d.Value)
	}
}

func formatMinutes(m int) string {
	if m >= 60 && m%60 == 0 {
		if m == 60 {
			return "1 hr"
		}
		return fmt.Sprintf("%d hrs", m/60)
	}
	return fmt.Sprintf("%d min", m)
}
