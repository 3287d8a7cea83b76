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
// TEST SETUP
// =============================================================================

// twoMonthLedger: 500,000 due Oct 25 and Nov 25 2023.
func twoMonthLedger() []billing.Installment {
	return billing.NewInstallments([]billing.ScheduleEntry{
		{DueDate: date(2023, 10, 25), Amount: krw(500000)},
		{DueDate: date(2023, 11, 25), Amount: krw(500000)},
	})
}

func event(when time.Time, amount int64) generic.CollectionEvent {
	return generic.CollectionEvent{At: when, Amount: krw(amount)}
}

func assertAmount(t *testing.T, want int64, got generic.Amount, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Value.Equal(krw(want).Value), append([]any{"want %d got %s", want, got.Value}, msgAndArgs...)...)
}

// =============================================================================
// WATERFALL ORDER
// =============================================================================

func TestAllocate_PenaltyBeforePrincipal(t *testing.T) {
	// GIVEN: Installment due Oct 25, nothing paid
	// WHEN: 300,000 arrives Oct 30 13:00 (2 overdue days, penalty 547)
	// THEN: Penalty is paid first, the rest goes to principal

	ledger := twoMonthLedger()
	paidAt := at(2023, 10, 30, 13, 0)
	alloc := billing.NewAllocator(krw(500000))

	result, err := alloc.Allocate(ledger, 1, []generic.CollectionEvent{event(paidAt, 300000)}, paidAt)
	require.NoError(t, err)

	first := ledger[0]
	assertAmount(t, 547, first.PaidOverdue)
	assertAmount(t, 299453, first.PaidPrincipal)
	assertAmount(t, 200547, first.OutstandingPrincipal())
	assertAmount(t, 0, first.OutstandingOverdue())
	require.NotNil(t, first.LastPaidAt)
	assert.Equal(t, paidAt, *first.LastPaidAt)

	assertAmount(t, 547, result.AppliedOverdue)
	assertAmount(t, 299453, result.AppliedPrincipal)
	assertAmount(t, 0, result.Unapplied)
	require.Len(t, result.Applications, 1)
	assert.Equal(t, 1, result.Applications[0].Seq)
}

func TestAllocate_CarriesRemainderToNextInstallment(t *testing.T) {
	// GIVEN: Two billed installments
	// WHEN: 700,000 arrives before the first due date, 300,000 on the second due date
	// THEN: #1 settles, 200,000 carries into #2, the second payment settles #2

	ledger := twoMonthLedger()
	early := at(2023, 10, 20, 9, 0)
	onTime := at(2023, 11, 25, 10, 0)

	result, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 2,
		[]generic.CollectionEvent{event(early, 700000), event(onTime, 300000)},
		at(2023, 12, 31, 0, 0))
	require.NoError(t, err)

	assert.True(t, ledger[0].IsSettled())
	assert.True(t, ledger[1].IsSettled())
	assert.Equal(t, early, *ledger[0].LastPaidAt)
	assert.Equal(t, onTime, *ledger[1].LastPaidAt)
	assertAmount(t, 0, ledger[1].AccruedOverdue)
	assertAmount(t, 0, result.Unapplied)
	assert.Len(t, result.Applications, 3)
}

func TestAllocate_OnlyBilledInstallmentsReceiveFunds(t *testing.T) {
	// GIVEN: Only #1 billed
	// WHEN: 700,000 arrives
	// THEN: #2 stays untouched and 200,000 is left unapplied

	ledger := twoMonthLedger()
	result, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 1,
		[]generic.CollectionEvent{event(at(2023, 10, 20, 9, 0), 700000)},
		at(2023, 10, 31, 0, 0))
	require.NoError(t, err)

	assert.True(t, ledger[0].IsSettled())
	assertAmount(t, 0, ledger[1].PaidPrincipal)
	assert.Nil(t, ledger[1].LastPaidAt)
	assertAmount(t, 200000, result.Unapplied)
	require.Len(t, result.Remaining, 1)
	assertAmount(t, 200000, result.Remaining[0].Amount)
}

func TestAllocate_LaterInstallmentWaitsForEarlierOne(t *testing.T) {
	ledger := twoMonthLedger()
	_, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 2,
		[]generic.CollectionEvent{event(at(2023, 10, 24, 9, 0), 400000)},
		at(2023, 10, 24, 9, 0))
	require.NoError(t, err)

	assertAmount(t, 400000, ledger[0].PaidPrincipal)
	assertAmount(t, 0, ledger[1].PaidPrincipal)
}

// =============================================================================
// PENALTY RECOMPUTATION
// =============================================================================

func TestAllocate_PartialPaymentThenPenaltyAsOfEvaluation(t *testing.T) {
	// GIVEN: 100,000 paid Nov 5 00:00 on an installment due Oct 25
	//   7 overdue days at payment time -> penalty 1917
	// WHEN: Settled as of Nov 30 00:00 (32 overdue days -> 8767)
	// THEN: Outstanding penalty is 8767 - 1917

	ledger := twoMonthLedger()
	_, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 1,
		[]generic.CollectionEvent{event(at(2023, 11, 5, 0, 0), 100000)},
		at(2023, 11, 30, 0, 0))
	require.NoError(t, err)

	inst := ledger[0]
	assertAmount(t, 1917, inst.PaidOverdue)
	assertAmount(t, 98083, inst.PaidPrincipal)
	assertAmount(t, 401917, inst.OutstandingPrincipal())
	assertAmount(t, 8767, inst.AccruedOverdue)
	assertAmount(t, 6850, inst.OutstandingOverdue())
}

func TestAllocate_UnpaidInstallmentAccruesPenalty(t *testing.T) {
	ledger := twoMonthLedger()
	_, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 2, nil, at(2023, 11, 30, 0, 0))
	require.NoError(t, err)

	assertAmount(t, 8767, ledger[0].OutstandingOverdue())
	// #2 passed its threshold 11h01m earlier: one day
	assertAmount(t, 273, ledger[1].OutstandingOverdue())
	assert.Nil(t, ledger[0].LastPaidAt)
}

func TestAllocate_SettledLateInstallmentShowsNoPenalty(t *testing.T) {
	// GIVEN: Paid late in two parts that together cover principal and penalty
	// THEN: Once settled, accrued and outstanding penalty are zero even though
	//       the evaluation instant is long after the grace window

	ledger := twoMonthLedger()
	_, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 1,
		[]generic.CollectionEvent{
			event(at(2023, 11, 5, 0, 0), 500000),
			event(at(2023, 11, 5, 1, 0), 1917),
		},
		at(2024, 3, 1, 0, 0))
	require.NoError(t, err)

	inst := ledger[0]
	assert.True(t, inst.IsSettled())
	assertAmount(t, 1917, inst.PaidOverdue)
	assertAmount(t, 500000, inst.PaidPrincipal)
	assertAmount(t, 0, inst.AccruedOverdue)
	assertAmount(t, 0, inst.OutstandingOverdue())
}

func TestReconcile_Idempotent(t *testing.T) {
	ledger := twoMonthLedger()
	alloc := billing.NewAllocator(krw(500000))
	asOf := at(2023, 12, 10, 15, 30)

	_, err := alloc.Allocate(ledger, 2, []generic.CollectionEvent{event(at(2023, 11, 2, 8, 0), 650000)}, asOf)
	require.NoError(t, err)

	before := billing.CloneInstallments(ledger)
	alloc.Reconcile(ledger, 2, asOf)

	for i := range ledger {
		assert.True(t, before[i].OutstandingOverdue().Equal(ledger[i].OutstandingOverdue()), "installment %d", i+1)
		assert.True(t, before[i].AccruedOverdue.Equal(ledger[i].AccruedOverdue), "installment %d", i+1)
	}
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestAllocate_SkipsNonPositiveEvents(t *testing.T) {
	ledger := twoMonthLedger()
	paidAt := at(2023, 10, 21, 9, 0)

	_, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 1,
		[]generic.CollectionEvent{
			event(at(2023, 10, 20, 9, 0), 0),
			event(at(2023, 10, 20, 10, 0), -5000),
			event(paidAt, 500000),
		},
		paidAt)
	require.NoError(t, err)

	assert.True(t, ledger[0].IsSettled())
	assert.Equal(t, paidAt, *ledger[0].LastPaidAt)
}

func TestAllocate_SortsEventsAndLeavesCallerSliceAlone(t *testing.T) {
	ledger := twoMonthLedger()
	events := []generic.CollectionEvent{
		event(at(2023, 11, 20, 9, 0), 500000),
		event(at(2023, 10, 20, 9, 0), 500000),
	}

	_, err := billing.NewAllocator(krw(500000)).Allocate(ledger, 2, events, at(2023, 11, 20, 9, 0))
	require.NoError(t, err)

	assert.Equal(t, at(2023, 10, 20, 9, 0), *ledger[0].LastPaidAt)
	assert.Equal(t, at(2023, 11, 20, 9, 0), *ledger[1].LastPaidAt)
	assertAmount(t, 500000, events[0].Amount)
	assertAmount(t, 500000, events[1].Amount)
}

func TestAllocate_RejectsBilledCountOutOfRange(t *testing.T) {
	alloc := billing.NewAllocator(krw(500000))

	for _, n := range []int{0, -1, 3} {
		_, err := alloc.Allocate(twoMonthLedger(), n, nil, at(2023, 12, 1, 0, 0))
		assert.ErrorIs(t, err, generic.ErrInvalidBilledCount, "billed=%d", n)

		var bce *generic.BilledCountError
		require.ErrorAs(t, err, &bce)
		assert.Equal(t, 2, bce.Max)
	}
}

func TestAllocate_NeverOverpaysOrGoesNegative(t *testing.T) {
	installments, err := billing.Generate(terms(500000, 12, 25, date(2023, 9, 15), billing.Postpay))
	require.NoError(t, err)

	var events []generic.CollectionEvent
	when := at(2023, 10, 1, 9, 0)
	for i := 0; i < 40; i++ {
		events = append(events, event(when, int64(37000+i*9100)))
		when = when.Add(time.Duration(60+i*7) * time.Hour)
	}

	_, err = billing.NewAllocator(krw(500000)).Allocate(installments, len(installments), events, when)
	require.NoError(t, err)

	for _, inst := range installments {
		assert.False(t, inst.PaidPrincipal.GreaterThan(inst.Billed), "installment %d", inst.Seq)
		assert.False(t, inst.OutstandingPrincipal().IsNegative())
		assert.False(t, inst.OutstandingOverdue().IsNegative())
		assert.False(t, inst.PaidOverdue.IsNegative())
	}
}

// =============================================================================
// SINGLE-INSTALLMENT APPLICATION
// =============================================================================

func TestApplyToInstallment_StopsWhenSettledAndKeepsCursor(t *testing.T) {
	ledger := twoMonthLedger()
	cursor := billing.NewCursor([]generic.CollectionEvent{
		event(at(2023, 10, 20, 9, 0), 300000),
		event(at(2023, 10, 21, 9, 0), 300000),
	})

	apps := billing.NewAllocator(krw(500000)).ApplyToInstallment(&ledger[0], cursor)

	require.Len(t, apps, 2)
	assert.True(t, ledger[0].IsSettled())
	assert.Len(t, cursor.Remaining(), 1, "second event still has money")
	ev, ok := cursor.Current()
	require.True(t, ok)
	assertAmount(t, 100000, ev.Amount)
}

func TestBilledCountAsOf(t *testing.T) {
	ledger := twoMonthLedger()
	assert.Equal(t, 0, billing.BilledCountAsOf(ledger, at(2023, 10, 24, 23, 0)))
	assert.Equal(t, 1, billing.BilledCountAsOf(ledger, at(2023, 10, 25, 0, 0)))
	assert.Equal(t, 2, billing.BilledCountAsOf(ledger, at(2024, 1, 1, 0, 0)))
}
