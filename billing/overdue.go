package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lease-settlement/generic"
)

// =============================================================================
// OVERDUE PENALTY
// =============================================================================

// OverdueGrace is how long after midnight of the due date the charge may
// still be paid without penalty: 4 days, 12 hours, 59 minutes.
const OverdueGrace = 4*oneDay + 12*time.Hour + 59*time.Minute

const oneDay = 24 * time.Hour

// DailyPenaltyRate is applied to the base monthly fee per overdue day.
var DailyPenaltyRate = decimal.RequireFromString("0.0005479452")

// OverdueThreshold is the instant penalty accrual begins.
func OverdueThreshold(dueDate time.Time) time.Time {
	return generic.DateOf(dueDate).Add(OverdueGrace)
}

// OverdueDays counts started days past the threshold. Any fraction of a day
// counts as a full day.
func OverdueDays(dueDate, at time.Time) int {
	threshold := OverdueThreshold(dueDate)
	if at.Before(threshold) {
		return 0
	}
	elapsed := at.Sub(threshold)
	days := int(elapsed / oneDay)
	if elapsed%oneDay != 0 {
		days++
	}
	if days < 0 {
		return 0
	}
	return days
}

// OverdueAmount is the penalty accrued on an installment as of at:
// floor(monthlyFee x DailyPenaltyRate x overdue days). It has no state and
// can be evaluated for any instant.
func OverdueAmount(dueDate time.Time, monthlyFee generic.Amount, at time.Time) generic.Amount {
	days := OverdueDays(dueDate, at)
	if days == 0 {
		return monthlyFee.Zero()
	}
	return monthlyFee.
		Mul(DailyPenaltyRate).
		Mul(decimal.NewFromInt(int64(days))).
		Floor()
}
