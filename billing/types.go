// Package billing implements lease installment schedules and their settlement.
// It uses the generic engine for money, calendar math and the collection ledger.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lease-settlement/generic"
)

// =============================================================================
// BILLING CONVENTION
// =============================================================================

// Convention decides whether a month is charged before or after it is used.
type Convention string

const (
	Prepay  Convention = "prepay"
	Postpay Convention = "postpay"
)

// ParseConvention accepts the English names and the Korean contract labels.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prepay", "prepaid", "선납":
		return Prepay, nil
	case "postpay", "postpaid", "후납":
		return Postpay, nil
	}
	return "", fmt.Errorf("%w: %q", generic.ErrInvalidConvention, s)
}

// Label returns the contract wording for the convention.
func (c Convention) Label() string {
	switch c {
	case Prepay:
		return "선납"
	case Postpay:
		return "후납"
	}
	return string(c)
}

// =============================================================================
// CONTRACT TERMS
// =============================================================================

// ContractTerms is fixed when the schedule is generated and never changes.
type ContractTerms struct {
	MonthlyFee     generic.Amount
	TermMonths     int
	BillingDay     int // 1-31, clamped to short months
	DeliveryDate   time.Time
	Convention     Convention
	AdvancePayment generic.Amount // deposit paid at signing, outside the schedule
}

// Validate checks the invariants schedule generation relies on.
func (t ContractTerms) Validate() error {
	if t.BillingDay < 1 || t.BillingDay > 31 {
		return &generic.TermsError{Field: "billing_day", Value: t.BillingDay, Err: generic.ErrInvalidBillingDay}
	}
	if t.TermMonths < 1 {
		return &generic.TermsError{Field: "term_months", Value: t.TermMonths, Err: generic.ErrInvalidTerm}
	}
	if !t.MonthlyFee.IsPositive() {
		return &generic.TermsError{Field: "monthly_fee", Value: t.MonthlyFee.Value, Err: generic.ErrInvalidAmount}
	}
	if t.AdvancePayment.IsNegative() {
		return &generic.TermsError{Field: "advance_payment", Value: t.AdvancePayment.Value, Err: generic.ErrInvalidAmount}
	}
	if t.DeliveryDate.IsZero() {
		return &generic.TermsError{Field: "delivery_date", Value: "", Err: generic.ErrInvalidPeriod}
	}
	return nil
}

// Currency returns the fee currency.
func (t ContractTerms) Currency() generic.Currency {
	if t.MonthlyFee.Currency == "" {
		return generic.DefaultCurrency
	}
	return t.MonthlyFee.Currency
}

// TotalPayment is the nominal contract value: fee x term + advance payment.
func (t ContractTerms) TotalPayment() generic.Amount {
	total := t.MonthlyFee.Mul(decimal.NewFromInt(int64(t.TermMonths)))
	if !t.AdvancePayment.Value.IsZero() {
		total = total.Add(t.AdvancePayment)
	}
	return total
}

// EndDate is the vehicle return date: delivery day, TermMonths later.
func (t ContractTerms) EndDate() time.Time {
	return generic.AddMonthsClampDay(t.DeliveryDate, t.TermMonths, t.DeliveryDate.Day())
}

// =============================================================================
// SCHEDULE ENTRY / INSTALLMENT
// =============================================================================

// ScheduleEntry is one (due date, amount) pair produced by a generator.
type ScheduleEntry struct {
	DueDate time.Time
	Amount  generic.Amount
}

// Installment is one scheduled payment and its settlement state.
//
// Billed never changes after generation. PaidPrincipal and PaidOverdue only
// grow. AccruedOverdue is a snapshot for the last evaluation instant, not a
// running total.
type Installment struct {
	Seq            int
	DueDate        time.Time
	Billed         generic.Amount
	PaidPrincipal  generic.Amount
	AccruedOverdue generic.Amount
	PaidOverdue    generic.Amount
	LastPaidAt     *time.Time
}

func (i *Installment) OutstandingPrincipal() generic.Amount {
	return i.Billed.Sub(i.PaidPrincipal).NonNegative()
}

func (i *Installment) OutstandingOverdue() generic.Amount {
	return i.AccruedOverdue.Sub(i.PaidOverdue).NonNegative()
}

// IsSettled is true when neither principal nor penalty remains.
func (i *Installment) IsSettled() bool {
	return i.OutstandingPrincipal().IsZero() && i.OutstandingOverdue().IsZero()
}

// NewInstallments wraps schedule entries into zeroed installments, Seq from 1.
func NewInstallments(entries []ScheduleEntry) []Installment {
	out := make([]Installment, len(entries))
	for i, e := range entries {
		zero := e.Amount.Zero()
		out[i] = Installment{
			Seq:            i + 1,
			DueDate:        e.DueDate,
			Billed:         e.Amount,
			PaidPrincipal:  zero,
			AccruedOverdue: zero,
			PaidOverdue:    zero,
		}
	}
	return out
}

// CloneInstallments deep-copies a ledger so a settlement run can be discarded.
func CloneInstallments(in []Installment) []Installment {
	out := make([]Installment, len(in))
	for i, inst := range in {
		out[i] = inst
		if inst.LastPaidAt != nil {
			t := *inst.LastPaidAt
			out[i].LastPaidAt = &t
		}
	}
	return out
}

// ValidateBilledCount checks the caller-side guard for allocation.
func ValidateBilledCount(billedCount, ledgerLen int) error {
	if billedCount < 1 || billedCount > ledgerLen {
		return &generic.BilledCountError{Requested: billedCount, Max: ledgerLen}
	}
	return nil
}

// BilledCountAsOf counts installments whose due date is on or before at.
func BilledCountAsOf(installments []Installment, at time.Time) int {
	day := generic.DateOf(at)
	n := 0
	for _, inst := range installments {
		if inst.DueDate.After(day) {
			break
		}
		n++
	}
	return n
}
