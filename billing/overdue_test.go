package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/generic"
)

// =============================================================================
// PRORATION
// =============================================================================

func TestProratedAmount_SixteenDays(t *testing.T) {
	amount, err := billing.ProratedAmount(krw(500000), date(2023, 9, 15), date(2023, 9, 30))
	require.NoError(t, err)
	assert.Equal(t, "263014", amount.Value.String())
}

func TestProratedAmount_SingleDay(t *testing.T) {
	amount, err := billing.ProratedAmount(krw(365000), date(2023, 3, 3), date(2023, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, "12000", amount.Value.String())
}

func TestProratedAmount_RoundsHalfToEven(t *testing.T) {
	// 45.625 x 12 / 365 = 1.5 per day; three days = 4.5 -> 4
	fee := generic.Amount{Value: generic.MustParseDecimal("45.625"), Currency: generic.KRW}
	amount, err := billing.ProratedAmount(fee, date(2023, 3, 3), date(2023, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, "4", amount.Value.String())
}

func TestProratedAmount_AcrossMonthBoundary_IsConfigurationError(t *testing.T) {
	_, err := billing.ProratedAmount(krw(500000), date(2023, 9, 15), date(2023, 10, 14))
	assert.ErrorIs(t, err, generic.ErrProrationSpansMonths)
	assert.True(t, generic.IsConfigurationError(err))

	var perr *generic.PeriodError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, date(2023, 9, 15), perr.Period.Start)
}

func TestProratedAmount_SameMonthDifferentYear_Rejected(t *testing.T) {
	_, err := billing.ProratedAmount(krw(500000), date(2023, 9, 1), date(2024, 9, 1))
	assert.ErrorIs(t, err, generic.ErrProrationSpansMonths)
}

// =============================================================================
// OVERDUE
// =============================================================================

func TestOverdueAmount_PartialDayRoundsUp(t *testing.T) {
	// GIVEN: Due Oct 25, threshold Oct 29 12:59
	// WHEN: Evaluated Oct 30 13:00 (1 day 1 minute later)
	// THEN: 2 overdue days -> floor(500000 x 0.0005479452 x 2) = 547

	due := date(2023, 10, 25)
	assert.Equal(t, at(2023, 10, 29, 12, 59), billing.OverdueThreshold(due))
	assert.Equal(t, 2, billing.OverdueDays(due, at(2023, 10, 30, 13, 0)))

	amount := billing.OverdueAmount(due, krw(500000), at(2023, 10, 30, 13, 0))
	assert.Equal(t, "547", amount.Value.String())
}

func TestOverdueAmount_ZeroInsideGraceWindow(t *testing.T) {
	due := date(2023, 10, 25)
	threshold := billing.OverdueThreshold(due)

	for _, when := range []time.Time{
		due.Add(-48 * time.Hour),
		due,
		at(2023, 10, 29, 12, 58),
		threshold.Add(-time.Nanosecond),
		threshold,
	} {
		assert.True(t, billing.OverdueAmount(due, krw(500000), when).IsZero(), "at %s", when)
	}
}

func TestOverdueAmount_OneMinutePastThreshold(t *testing.T) {
	due := date(2023, 10, 25)
	amount := billing.OverdueAmount(due, krw(500000), at(2023, 10, 29, 13, 0))
	// 273.9726 floored
	assert.Equal(t, "273", amount.Value.String())
}

func TestOverdueAmount_NonDecreasing(t *testing.T) {
	due := date(2024, 2, 29)
	fee := krw(733000)

	prev := fee.Zero()
	for h := 0; h < 24*90; h += 7 {
		current := billing.OverdueAmount(due, fee, due.Add(time.Duration(h)*time.Hour))
		assert.False(t, current.LessThan(prev), "hour %d", h)
		assert.False(t, current.IsNegative())
		prev = current
	}
	assert.True(t, prev.IsPositive())
}

func TestOverdueAmount_Stateless(t *testing.T) {
	due := date(2023, 10, 25)
	later := billing.OverdueAmount(due, krw(500000), at(2023, 12, 1, 0, 0))
	earlier := billing.OverdueAmount(due, krw(500000), at(2023, 11, 1, 0, 0))
	again := billing.OverdueAmount(due, krw(500000), at(2023, 12, 1, 0, 0))

	assert.True(t, later.Equal(again))
	assert.True(t, earlier.LessThan(later))
}
