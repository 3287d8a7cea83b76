/*
allocator.go - Waterfall allocation of collections against installments

PURPOSE:
  Applies a time-ordered sequence of collections to the installment ledger
  and works out what is still owed, including late-payment penalties.

PASS 1 - EVENT APPLICATION:
  Installments are settled strictly in order. For the installment at hand,
  each collection is applied as follows:
    1. Penalty accrued on the installment as of the collection's timestamp
       becomes its AccruedOverdue snapshot.
    2. Outstanding penalty is paid first.
    3. Outstanding principal is paid with what is left.
    4. Any contribution stamps LastPaidAt with the collection time.
    5. An exhausted collection is never revisited. A collection with money
       left over stays current and moves on to the next installment.
  Only the first billedCount installments take part: money left over after
  them stays unapplied.

PASS 2 - RECONCILIATION:
  Every billed installment that still owes something gets its penalty
  recomputed as of the evaluation instant. Settled installments show no
  penalty at all, even if they were paid late.

EXAMPLE (fee 500,000, due Oct 25, one payment of 300,000 on Oct 30 13:00):
  penalty snapshot = 547  -> paid overdue 547
  principal paid   = 299,453, outstanding 200,547

SEE ALSO:
  - overdue.go: OverdueAmount
  - cursor.go: Collection cursor
*/
package billing

import (
	"sort"
	"time"

	"github.com/warp/lease-settlement/generic"
)

// Allocator settles a ledger for one contract.
type Allocator struct {
	// MonthlyFee is the base fee penalties are computed from.
	MonthlyFee generic.Amount
}

func NewAllocator(monthlyFee generic.Amount) *Allocator {
	return &Allocator{MonthlyFee: monthlyFee}
}

// Application records one contribution of a collection to an installment.
type Application struct {
	Seq       int
	At        time.Time
	Overdue   generic.Amount
	Principal generic.Amount
}

// AllocationResult summarises a settlement run.
type AllocationResult struct {
	Installments     []Installment
	BilledCount      int
	AsOf             time.Time
	Applications     []Application
	AppliedOverdue   generic.Amount
	AppliedPrincipal generic.Amount
	Unapplied        generic.Amount
	Remaining        []generic.CollectionEvent
}

// Allocate runs both passes over ledger in place and returns a summary.
// events are copied and stably sorted by timestamp; the caller's slice is
// left untouched.
func (a *Allocator) Allocate(ledger []Installment, billedCount int, events []generic.CollectionEvent, asOf time.Time) (*AllocationResult, error) {
	if err := ValidateBilledCount(billedCount, len(ledger)); err != nil {
		return nil, err
	}

	local := make([]generic.CollectionEvent, len(events))
	copy(local, events)
	sort.SliceStable(local, func(i, j int) bool {
		return local[i].At.Before(local[j].At)
	})

	cursor := NewCursor(local)
	result := &AllocationResult{
		Installments:     ledger,
		BilledCount:      billedCount,
		AsOf:             asOf,
		AppliedOverdue:   a.MonthlyFee.Zero(),
		AppliedPrincipal: a.MonthlyFee.Zero(),
		Unapplied:        a.MonthlyFee.Zero(),
	}

	for i := 0; i < billedCount && !cursor.Done(); i++ {
		apps := a.ApplyToInstallment(&ledger[i], cursor)
		for _, app := range apps {
			result.AppliedOverdue = result.AppliedOverdue.Add(app.Overdue)
			result.AppliedPrincipal = result.AppliedPrincipal.Add(app.Principal)
		}
		result.Applications = append(result.Applications, apps...)
	}

	a.Reconcile(ledger, billedCount, asOf)

	result.Remaining = cursor.Remaining()
	for _, ev := range result.Remaining {
		result.Unapplied = result.Unapplied.Add(ev.Amount)
	}
	return result, nil
}

// ApplyToInstallment consumes events from cursor until inst is settled or
// the events run out. It is Pass 1 for a single installment.
func (a *Allocator) ApplyToInstallment(inst *Installment, cursor *Cursor) []Application {
	var apps []Application

	for !inst.IsSettled() {
		ev, ok := cursor.Current()
		if !ok {
			break
		}

		inst.AccruedOverdue = OverdueAmount(inst.DueDate, a.MonthlyFee, ev.At)

		toOverdue := ev.Amount.Min(inst.OutstandingOverdue())
		inst.PaidOverdue = inst.PaidOverdue.Add(toOverdue)
		ev.Amount = ev.Amount.Sub(toOverdue)

		toPrincipal := ev.Amount.Min(inst.OutstandingPrincipal())
		inst.PaidPrincipal = inst.PaidPrincipal.Add(toPrincipal)
		ev.Amount = ev.Amount.Sub(toPrincipal)

		if toOverdue.IsPositive() || toPrincipal.IsPositive() {
			at := ev.At
			inst.LastPaidAt = &at
			apps = append(apps, Application{
				Seq:       inst.Seq,
				At:        ev.At,
				Overdue:   toOverdue,
				Principal: toPrincipal,
			})
		}

		if !ev.Amount.IsPositive() {
			cursor.Advance()
			continue
		}
		// Money left on this collection: the installment is settled and the
		// remainder carries forward.
		break
	}
	return apps
}

// Reconcile is Pass 2: restate penalties of the first billedCount
// installments as of asOf. Running it twice with the same asOf changes nothing.
func (a *Allocator) Reconcile(ledger []Installment, billedCount int, asOf time.Time) {
	if billedCount > len(ledger) {
		billedCount = len(ledger)
	}
	for i := 0; i < billedCount; i++ {
		inst := &ledger[i]
		if inst.IsSettled() {
			inst.AccruedOverdue = inst.AccruedOverdue.Zero()
			continue
		}
		inst.AccruedOverdue = OverdueAmount(inst.DueDate, a.MonthlyFee, asOf)
	}
}
