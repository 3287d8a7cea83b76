package billing

import "github.com/warp/lease-settlement/generic"

// Summary totals a ledger, usually after a settlement run.
type Summary struct {
	Installments         int
	BilledCount          int
	SettledCount         int
	OverdueCount         int
	Billed               generic.Amount
	PaidPrincipal        generic.Amount
	OutstandingPrincipal generic.Amount
	AccruedOverdue       generic.Amount
	PaidOverdue          generic.Amount
	OutstandingOverdue   generic.Amount
}

// TotalOutstanding is everything still owed on billed installments.
func (s Summary) TotalOutstanding() generic.Amount {
	return s.OutstandingPrincipal.Add(s.OutstandingOverdue)
}

// Summarize totals the whole schedule for Billed and the first billedCount
// installments for everything owed. A billedCount of 0 counts nothing as owed.
func Summarize(installments []Installment, billedCount int, cur generic.Currency) Summary {
	zero := generic.Amount{Currency: cur}
	s := Summary{
		Installments:         len(installments),
		BilledCount:          billedCount,
		Billed:               zero,
		PaidPrincipal:        zero,
		OutstandingPrincipal: zero,
		AccruedOverdue:       zero,
		PaidOverdue:          zero,
		OutstandingOverdue:   zero,
	}

	for i := range installments {
		inst := &installments[i]
		s.Billed = s.Billed.Add(inst.Billed)
		s.PaidPrincipal = s.PaidPrincipal.Add(inst.PaidPrincipal)
		s.PaidOverdue = s.PaidOverdue.Add(inst.PaidOverdue)
		if i >= billedCount {
			continue
		}
		s.OutstandingPrincipal = s.OutstandingPrincipal.Add(inst.OutstandingPrincipal())
		s.AccruedOverdue = s.AccruedOverdue.Add(inst.AccruedOverdue)
		s.OutstandingOverdue = s.OutstandingOverdue.Add(inst.OutstandingOverdue())
		if inst.IsSettled() {
			s.SettledCount++
		}
		if inst.OutstandingOverdue().IsPositive() {
			s.OverdueCount++
		}
	}
	return s
}
