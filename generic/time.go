package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CALENDAR MATH - Month arithmetic on a proleptic Gregorian calendar
// =============================================================================
//
// All dates are midnight UTC values. Timestamps (collection times, evaluation
// instants) are wall-clock readings in the billing time zone, stamped UTC, so
// they compare directly with due dates and the grace threshold.

const DateLayout = "2006-01-02"

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the time-of-day component.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LastDayOfMonth returns the date set to the final day of t's month.
func LastDayOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), DaysIn(t.Year(), t.Month()))
}

func StartOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

// AddMonthsClampDay moves base by months (negative allowed) and sets the day
// to min(day, last day of the target month). Unlike time.AddDate it never
// overflows into the following month.
func AddMonthsClampDay(base time.Time, months int, day int) time.Time {
	total := int(base.Month()) - 1 + months
	year := base.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return Date(year, month, day)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// SameMonth reports whether a and b fall in the same calendar month and year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// DaysBetween counts whole calendar days from a to b (b - a).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// =============================================================================
// WALL CLOCK - Instants as read in the billing time zone
// =============================================================================

// InstantLayouts are the accepted timestamp formats, most specific first.
var InstantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// WallClock returns the reading of t on loc's wall clock, stamped UTC.
func WallClock(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseInstant reads s with the first matching layout. A reading with an
// offset is moved to loc's wall clock; one without is already a wall-clock
// reading and is kept as written.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range InstantLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "Z07") {
			return WallClock(t, loc), nil
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}
