/*
Package generic provides the domain-agnostic primitives of the settlement engine.

PURPOSE:
  This package contains the money, calendar and ledger building blocks that
  the billing package composes into schedules and settlements. Nothing in
  here knows what a lease is; it only knows about amounts, dates and an
  append-only log of collected payments.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A currency quantity backed by decimal.Decimal
  - Collection: An immutable record of money received for a contract
  - CollectionEvent: The allocation-time view of a collection (mutable amount)
  - Contract/Collection IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for money
  2. Immutability: Collections are appended, never edited
  3. Type Safety: Strong typing for IDs prevents mixing contract/collection IDs

USAGE:
  fee := generic.NewAmount(500000, generic.KRW)
  c := generic.Collection{
      ContractID: "ct-001",
      PaidAt:     time.Date(2023, 10, 30, 13, 0, 0, 0, time.UTC),
      Amount:     fee,
  }

SEE ALSO:
  - time.go: Calendar math (month arithmetic with end-of-month clamping)
  - ledger.go: Collection ledger over a Store
  - billing/: Schedules, overdue penalties and payment allocation
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Currency quantity
// =============================================================================

type Currency string

const KRW Currency = "KRW"

// DefaultCurrency is used when a contract does not name one.
const DefaultCurrency = KRW

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewAmount(value int64, cur Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: cur}
}

func NewAmountFromDecimal(value decimal.Decimal, cur Currency) Amount {
	return Amount{Value: value, Currency: cur}
}

// ParseAmount parses a decimal string such as "500000" or "263013.70".
func ParseAmount(s string, cur Currency) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d, Currency: cur}, nil
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount { return Amount{Value: decimal.Zero, Currency: a.Currency} }

func (a Amount) Add(b Amount) Amount {
	return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency}
}

func (a Amount) Mul(s decimal.Decimal) Amount {
	return Amount{Value: a.Value.Mul(s), Currency: a.Currency}
}

func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative clamps negative amounts to zero.
func (a Amount) NonNegative() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// Floor truncates toward negative infinity to whole currency units.
func (a Amount) Floor() Amount { return Amount{Value: a.Value.Floor(), Currency: a.Currency} }

// RoundBank rounds half-to-even to whole currency units.
func (a Amount) RoundBank() Amount { return Amount{Value: a.Value.RoundBank(0), Currency: a.Currency} }

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Currency)
}

// Sum adds amounts, keeping the currency of the first one.
func Sum(amounts ...Amount) Amount {
	if len(amounts) == 0 {
		return Amount{Value: decimal.Zero, Currency: DefaultCurrency}
	}
	total := amounts[0]
	for _, a := range amounts[1:] {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ContractID string
type CollectionID string

// =============================================================================
// COLLECTION - Money received against a contract (append-only)
// =============================================================================

type Collection struct {
	ID             CollectionID
	ContractID     ContractID
	PaidAt         time.Time
	Amount         Amount
	Reference      string // bank reference, receipt number, source row
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// COLLECTION EVENT - Allocation-time view of a collection
// =============================================================================

// CollectionEvent is what the allocator consumes. Its Amount is decremented
// as portions are applied to installments, so callers hand over copies.
type CollectionEvent struct {
	At     time.Time
	Amount Amount
}

// ToEvents converts stored collections into allocation events.
func ToEvents(collections []Collection) []CollectionEvent {
	events := make([]CollectionEvent, len(collections))
	for i, c := range collections {
		events[i] = CollectionEvent{At: c.PaidAt, Amount: c.Amount}
	}
	return events
}
