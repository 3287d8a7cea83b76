package billing

import (
	"time"

	"github.com/warp/lease-settlement/generic"
)

// Contract is a stored lease: its identity plus the terms its schedule was
// generated from.
type Contract struct {
	ID        generic.ContractID
	Name      string
	Terms     ContractTerms
	CreatedAt time.Time
}

// Schedule generates the contract's installments.
func (c *Contract) Schedule() ([]Installment, error) {
	return Generate(c.Terms)
}

// Allocator returns an allocator priced on the contract's monthly fee.
func (c *Contract) Allocator() *Allocator {
	return NewAllocator(c.Terms.MonthlyFee)
}

// Settle allocates events against installments as of asOf. The caller's
// installments are left untouched; the result holds a reconciled copy.
func (c *Contract) Settle(installments []Installment, billedCount int, events []generic.CollectionEvent, asOf time.Time) (*AllocationResult, error) {
	ledger := CloneInstallments(installments)
	for i := range ledger {
		// Allocation always starts from the generated schedule.
		ledger[i].PaidPrincipal = ledger[i].Billed.Zero()
		ledger[i].PaidOverdue = ledger[i].Billed.Zero()
		ledger[i].AccruedOverdue = ledger[i].Billed.Zero()
		ledger[i].LastPaidAt = nil
	}
	return c.Allocator().Allocate(ledger, billedCount, events, asOf)
}
