/*
schedule.go - Installment schedule generation

PURPOSE:
  Turns contract terms into the ordered list of (due date, amount) pairs
  the customer is billed. Two conventions exist:

PREPAY (선납):
  A month is charged before it is used. The first installment is always
  due the day before delivery.

    delivery day <= billing day (e.g. delivered Sep 15, billed on the 25th)
      #1        Sep 14      full fee
      #2..#N    Oct 25 ...  full fee, TermMonths-1 of them
      The final contract month has no charge of its own; #1 funded it.

    delivery day > billing day (e.g. delivered Aug 21, billed on the 15th)
      #1        Aug 20      full fee (covers September)
      #2        Sep 15      prorated Aug 21 - Aug 31
      #3..      Oct 15 ...  full fee, TermMonths-2 of them
      last      billing day of delivery+TermMonths, prorated from the 1st
                to the delivery day of month delivery+TermMonths-1

POSTPAY (후납):
  A month is charged after it is used.
      #1        billing day of delivery+1, prorated delivery - month end
      #2..      billing day from delivery+2, full fee, TermMonths-2 of them
      N-1       billing day of the month before the end date, full fee
      N         end date, prorated 1st of end month - end date
  A one-month term produces #1 only.

  Delivery before and after the billing day follow the same postpay rules.

SEE ALSO:
  - proration.go: Partial month charges
  - generic/time.go: AddMonthsClampDay
*/
package billing

import (
	"fmt"

	"github.com/warp/lease-settlement/generic"
)

// Generate builds the installment ledger for the contract's convention.
func Generate(terms ContractTerms) ([]Installment, error) {
	var (
		entries []ScheduleEntry
		err     error
	)
	switch terms.Convention {
	case Prepay:
		entries, err = GeneratePrepaySchedule(terms)
	case Postpay:
		entries, err = GeneratePostpaySchedule(terms)
	default:
		return nil, fmt.Errorf("%w: %q", generic.ErrInvalidConvention, terms.Convention)
	}
	if err != nil {
		return nil, err
	}
	return NewInstallments(entries), nil
}

// GeneratePrepaySchedule produces the prepay schedule. The Convention field
// of terms is ignored.
func GeneratePrepaySchedule(terms ContractTerms) ([]ScheduleEntry, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	fee := terms.MonthlyFee
	delivery := generic.DateOf(terms.DeliveryDate)
	day := terms.BillingDay

	schedule := []ScheduleEntry{
		{DueDate: delivery.AddDate(0, 0, -1), Amount: fee},
	}

	if delivery.Day() <= day {
		for i := 0; i < terms.TermMonths-1; i++ {
			schedule = append(schedule, ScheduleEntry{
				DueDate: generic.AddMonthsClampDay(delivery, 1+i, day),
				Amount:  fee,
			})
		}
		return schedule, nil
	}

	// Billing day already passed in the delivery month: the rest of that
	// month is billed next month as a partial charge.
	first, err := ProratedAmount(fee, delivery, generic.LastDayOfMonth(delivery))
	if err != nil {
		return nil, err
	}
	schedule = append(schedule, ScheduleEntry{
		DueDate: generic.AddMonthsClampDay(delivery, 1, day),
		Amount:  first,
	})

	for i := 0; i < terms.TermMonths-2; i++ {
		schedule = append(schedule, ScheduleEntry{
			DueDate: generic.AddMonthsClampDay(delivery, 2+i, day),
			Amount:  fee,
		})
	}

	lastStart := generic.AddMonthsClampDay(delivery, terms.TermMonths-1, 1)
	lastEnd := generic.AddMonthsClampDay(delivery, terms.TermMonths-1, delivery.Day())
	last, err := ProratedAmount(fee, lastStart, lastEnd)
	if err != nil {
		return nil, err
	}
	schedule = append(schedule, ScheduleEntry{
		DueDate: generic.AddMonthsClampDay(delivery, terms.TermMonths, day),
		Amount:  last,
	})

	return schedule, nil
}

// GeneratePostpaySchedule produces the postpay schedule. The Convention
// field of terms is ignored.
func GeneratePostpaySchedule(terms ContractTerms) ([]ScheduleEntry, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	fee := terms.MonthlyFee
	delivery := generic.DateOf(terms.DeliveryDate)
	day := terms.BillingDay

	first, err := ProratedAmount(fee, delivery, generic.LastDayOfMonth(delivery))
	if err != nil {
		return nil, err
	}
	schedule := []ScheduleEntry{
		{DueDate: generic.AddMonthsClampDay(delivery, 1, day), Amount: first},
	}

	if terms.TermMonths < 2 {
		return schedule, nil
	}

	end := terms.EndDate()

	// Anchored on the clamped date, as the regular run always has been.
	regularStart := generic.AddMonthsClampDay(delivery, 2, day)
	for i := 0; i < terms.TermMonths-2; i++ {
		schedule = append(schedule, ScheduleEntry{
			DueDate: generic.AddMonthsClampDay(regularStart, i, day),
			Amount:  fee,
		})
	}

	schedule = append(schedule, ScheduleEntry{
		DueDate: generic.AddMonthsClampDay(end, -1, day),
		Amount:  fee,
	})

	last, err := ProratedAmount(fee, generic.StartOfMonth(end), end)
	if err != nil {
		return nil, err
	}
	schedule = append(schedule, ScheduleEntry{DueDate: end, Amount: last})

	return schedule, nil
}

// ScheduleTotal sums the billed amounts of a schedule.
func ScheduleTotal(entries []ScheduleEntry) generic.Amount {
	amounts := make([]generic.Amount, len(entries))
	for i, e := range entries {
		amounts[i] = e.Amount
	}
	return generic.Sum(amounts...)
}
