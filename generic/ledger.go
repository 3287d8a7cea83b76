/*
ledger.go - Append-only collection log

PURPOSE:
  The Ledger is the source of truth for money received against a contract.
  Installment balances are never stored as the authority; they are always
  recomputed by allocating the ledger's collections against the schedule.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. VALID: Every collection has a timestamp and a non-negative amount.
  3. IDEMPOTENT: Same idempotency key = same collection (no duplicates)

SEE ALSO:
  - store.go: Low-level persistence interface
  - billing/allocator.go: Consumes Events()
*/
package generic

import (
	"context"
	"fmt"
	"time"
)

// Ledger records and replays collections.
type Ledger interface {
	// Append adds a collection. Fails if idempotency key exists.
	Append(ctx context.Context, c Collection) error

	// AppendBatch adds multiple collections atomically.
	AppendBatch(ctx context.Context, cs []Collection) error

	// Collections returns all collections for a contract, chronologically.
	Collections(ctx context.Context, contractID ContractID) ([]Collection, error)

	// Events returns fresh allocation events for a contract.
	Events(ctx context.Context, contractID ContractID) ([]CollectionEvent, error)

	// CollectedThrough sums collections paid at or before at.
	CollectedThrough(ctx context.Context, contractID ContractID, at time.Time, cur Currency) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

// ValidateCollection rejects records the allocator must never see.
func ValidateCollection(c Collection) error {
	if c.ContractID == "" {
		return fmt.Errorf("%w: missing contract id", ErrInvalidCollection)
	}
	if c.PaidAt.IsZero() {
		return fmt.Errorf("%w: missing payment time", ErrInvalidCollection)
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidCollection, c.Amount.Value)
	}
	return nil
}

func (l *DefaultLedger) Append(ctx context.Context, c Collection) error {
	if err := ValidateCollection(c); err != nil {
		return err
	}
	if c.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, c.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, c)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, cs []Collection) error {
	seen := make(map[string]bool, len(cs))
	for _, c := range cs {
		if err := ValidateCollection(c); err != nil {
			return err
		}
		if c.IdempotencyKey == "" {
			continue
		}
		if seen[c.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[c.IdempotencyKey] = true
		exists, err := l.Store.Exists(ctx, c.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, cs)
}

func (l *DefaultLedger) Collections(ctx context.Context, contractID ContractID) ([]Collection, error) {
	return l.Store.Load(ctx, contractID)
}

func (l *DefaultLedger) Events(ctx context.Context, contractID ContractID) ([]CollectionEvent, error) {
	cs, err := l.Store.Load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return ToEvents(cs), nil
}

func (l *DefaultLedger) CollectedThrough(ctx context.Context, contractID ContractID, at time.Time, cur Currency) (Amount, error) {
	cs, err := l.Store.Load(ctx, contractID)
	if err != nil {
		return Amount{}, err
	}

	total := Amount{Currency: cur}
	for _, c := range cs {
		if c.PaidAt.After(at) {
			break
		}
		total = total.Add(c.Amount)
	}
	return total, nil
}
