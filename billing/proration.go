package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lease-settlement/generic"
)

var (
	monthsPerYear = decimal.NewFromInt(12)
	daysPerYear   = decimal.NewFromInt(365)
)

// DailyRate is monthlyFee x 12 / 365, kept at full decimal precision.
func DailyRate(monthlyFee generic.Amount) generic.Amount {
	return generic.Amount{
		Value:    monthlyFee.Value.Mul(monthsPerYear).Div(daysPerYear),
		Currency: monthlyFee.Currency,
	}
}

// ProratedAmount charges DailyRate for every day in [start, end], both
// inclusive, rounded half-to-even to whole currency units. The span must lie
// inside one calendar month.
func ProratedAmount(monthlyFee generic.Amount, start, end time.Time) (generic.Amount, error) {
	p := generic.NewPeriod(start, end)
	if err := p.Validate(); err != nil {
		return generic.Amount{}, err
	}
	return ProratePeriod(monthlyFee, p), nil
}

// ProratePeriod is ProratedAmount for an already validated period.
func ProratePeriod(monthlyFee generic.Amount, p generic.Period) generic.Amount {
	days := decimal.NewFromInt(int64(p.Days()))
	return DailyRate(monthlyFee).Mul(days).RoundBank()
}
