package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newLedger() *generic.DefaultLedger {
	return generic.NewLedger(store.NewMemory())
}

func collection(contract string, paidAt time.Time, amount int64, key string) generic.Collection {
	return generic.Collection{
		ContractID:     generic.ContractID(contract),
		PaidAt:         paidAt,
		Amount:         generic.NewAmount(amount, generic.KRW),
		IdempotencyKey: key,
	}
}

func ts(m time.Month, d, h int) time.Time {
	return time.Date(2023, m, d, h, 0, 0, 0, time.UTC)
}

// =============================================================================
// LEDGER INVARIANTS
// =============================================================================

func TestLedger_AppendOnly(t *testing.T) {
	// The Ledger interface has no mutation methods beyond appending.
	var _ generic.Ledger = newLedger()
}

func TestLedger_DuplicateKeyRejected(t *testing.T) {
	// GIVEN: A collection imported with key "stmt-0001"
	// WHEN: The same statement row is imported again
	// THEN: The second append fails with ErrDuplicateIdempotencyKey

	ctx := context.Background()
	ledger := newLedger()

	c := collection("ct-1", ts(time.October, 30, 13), 300000, "stmt-0001")
	if err := ledger.Append(ctx, c); err != nil {
		t.Fatalf("first append should succeed: %v", err)
	}
	if err := ledger.Append(ctx, c); !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		t.Errorf("expected ErrDuplicateIdempotencyKey, got: %v", err)
	}
}

func TestLedger_AtomicBatch(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()

	if err := ledger.Append(ctx, collection("ct-1", ts(time.October, 1, 9), 100000, "existing")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	batch := []generic.Collection{
		collection("ct-1", ts(time.October, 2, 9), 1, "a"),
		collection("ct-1", ts(time.October, 3, 9), 1, "b"),
		collection("ct-1", ts(time.October, 4, 9), 1, "existing"),
	}
	if err := ledger.AppendBatch(ctx, batch); err == nil {
		t.Error("batch with duplicate key should fail")
	}

	cs, _ := ledger.Collections(ctx, "ct-1")
	if len(cs) != 1 {
		t.Errorf("batch should be all-or-nothing, got %d collections", len(cs))
	}
}

func TestLedger_DuplicateInsideBatch(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()

	err := ledger.AppendBatch(ctx, []generic.Collection{
		collection("ct-1", ts(time.October, 2, 9), 1, "same"),
		collection("ct-1", ts(time.October, 3, 9), 1, "same"),
	})
	if !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		t.Errorf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}
}

func TestLedger_RejectsInvalidCollections(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()

	bad := []generic.Collection{
		collection("", ts(time.October, 2, 9), 1, ""),
		collection("ct-1", time.Time{}, 1, ""),
		collection("ct-1", ts(time.October, 2, 9), -1, ""),
	}
	for i, c := range bad {
		if err := ledger.Append(ctx, c); !errors.Is(err, generic.ErrInvalidCollection) {
			t.Errorf("case %d: expected ErrInvalidCollection, got %v", i, err)
		}
	}

	// Zero is allowed; the allocator skips it.
	if err := ledger.Append(ctx, collection("ct-1", ts(time.October, 2, 9), 0, "")); err != nil {
		t.Errorf("zero amount should be accepted: %v", err)
	}
}

func TestLedger_CollectionsChronological(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()

	ledger.Append(ctx, collection("ct-1", ts(time.December, 1, 9), 3, ""))
	ledger.Append(ctx, collection("ct-1", ts(time.October, 1, 9), 1, ""))
	ledger.Append(ctx, collection("ct-1", ts(time.November, 1, 9), 2, ""))
	ledger.Append(ctx, collection("ct-2", ts(time.September, 1, 9), 9, ""))

	events, err := ledger.Events(ctx, "ct-1")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, month := range []time.Month{time.October, time.November, time.December} {
		if events[i].At.Month() != month {
			t.Errorf("event %d: expected %s, got %s", i, month, events[i].At.Month())
		}
	}
}

func TestLedger_EventsAreCopies(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()
	ledger.Append(ctx, collection("ct-1", ts(time.October, 1, 9), 500000, ""))

	events, _ := ledger.Events(ctx, "ct-1")
	events[0].Amount = events[0].Amount.Zero()

	again, _ := ledger.Events(ctx, "ct-1")
	if !again[0].Amount.Equal(generic.NewAmount(500000, generic.KRW)) {
		t.Errorf("stored collection changed through an event: %s", again[0].Amount)
	}
}

func TestLedger_CollectedThrough(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()
	ledger.Append(ctx, collection("ct-1", ts(time.October, 1, 9), 100, ""))
	ledger.Append(ctx, collection("ct-1", ts(time.October, 2, 9), 200, ""))
	ledger.Append(ctx, collection("ct-1", ts(time.October, 3, 9), 400, ""))

	total, err := ledger.CollectedThrough(ctx, "ct-1", ts(time.October, 2, 9), generic.KRW)
	if err != nil {
		t.Fatalf("collected through: %v", err)
	}
	if !total.Equal(generic.NewAmount(300, generic.KRW)) {
		t.Errorf("expected 300, got %s", total)
	}
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.Append(ctx, collection("ct-1", ts(time.October, 1, 9), 1, "k1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	cs, _ := s.Load(ctx, "ct-1")
	if len(cs) != 0 {
		t.Errorf("rolled back transaction left %d collections", len(cs))
	}
	if exists, _ := s.Exists(ctx, "k1"); exists {
		t.Error("rolled back idempotency key still present")
	}
}

func TestMemory_LoadRange(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	for d := 1; d <= 5; d++ {
		s.Append(ctx, collection("ct-1", ts(time.October, d, 9), int64(d), ""))
	}

	cs, _ := s.LoadRange(ctx, "ct-1", ts(time.October, 2, 9), ts(time.October, 4, 9))
	if len(cs) != 3 {
		t.Errorf("expected 3 collections in range, got %d", len(cs))
	}
}
