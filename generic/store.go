/*
store.go - Persistence interface for collected payments

PURPOSE:
  Defines the interface between the settlement logic and the database for
  the collection ledger. Different implementations can use SQLite or
  in-memory storage.

APPEND-ONLY CONTRACT:
  - Append(): Single collection write
  - AppendBatch(): Atomic multi-collection write
  - NO Update() or Delete() methods exist

  A collection that was recorded by mistake is not edited; the allocator
  processes exactly what the ledger holds.

IDEMPOTENCY:
  Writes may carry an idempotency key (bank transaction id, spreadsheet
  row hash). If the key already exists the write is rejected, so a
  re-imported statement does not double count.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import (
	"context"
	"time"
)

// Store handles persistence of collections.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// Append persists a collection. Returns error if idempotency key exists.
	Append(ctx context.Context, c Collection) error

	// AppendBatch persists multiple collections atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, cs []Collection) error

	// Load returns all collections for a contract, ordered by PaidAt.
	Load(ctx context.Context, contractID ContractID) ([]Collection, error)

	// LoadRange returns collections paid in [from, to].
	LoadRange(ctx context.Context, contractID ContractID, from, to time.Time) ([]Collection, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
