package generic

import "time"

// =============================================================================
// PERIOD - An inclusive span of calendar days
// =============================================================================

// Period is the span an installment charges for. Both ends are inclusive:
// Sep 15 - Sep 30 is 16 days.
type Period struct {
	Start time.Time
	End   time.Time
}

func NewPeriod(start, end time.Time) Period {
	return Period{Start: DateOf(start), End: DateOf(end)}
}

// Days returns the inclusive day count.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) WithinOneMonth() bool {
	return SameMonth(p.Start, p.End)
}

// Validate rejects inverted periods and periods that cross a month boundary.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return &PeriodError{Period: p, Err: ErrInvalidPeriod}
	}
	if !p.WithinOneMonth() {
		return &PeriodError{Period: p, Err: ErrProrationSpansMonths}
	}
	return nil
}

func (p Period) String() string {
	return "[" + FormatDate(p.Start) + ", " + FormatDate(p.End) + "]"
}
