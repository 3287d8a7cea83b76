/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists contracts, their generated installments, the append-only
  collection ledger and an audit trail of settlement runs. In production
  the same patterns apply to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  generic.Store:   Collection persistence
  generic.TxStore: Transactional collection writes

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the collections table
  - No DELETE statements on the collections table (Reset aside)
  Installments are different: they hold the last settlement result and
  are overwritten by every run. They can always be rebuilt from the
  contract and its collections.

KEY TABLES:
  contracts:       Contract terms
  installments:    Last reconciled state per (contract, seq)
  collections:     Immutable ledger of money received
  settlement_runs: One row per settlement, manual or scheduled

TIMESTAMPS:
  Stored as fixed-width UTC text so lexical order is chronological order.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases on one connection.

USAGE:
  store, err := sqlite.New("./data/lease.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/generic"
)

const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		monthly_fee TEXT NOT NULL,
		currency TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		billing_day INTEGER NOT NULL,
		delivery_date TEXT NOT NULL,
		convention TEXT NOT NULL,
		advance_payment TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Last reconciled state; rebuilt by every settlement run
	CREATE TABLE IF NOT EXISTS installments (
		contract_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		billed TEXT NOT NULL,
		paid_principal TEXT NOT NULL DEFAULT '0',
		accrued_overdue TEXT NOT NULL DEFAULT '0',
		paid_overdue TEXT NOT NULL DEFAULT '0',
		last_paid_at TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (contract_id, seq)
	);

	-- Collections (append-only ledger)
	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		paid_at TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		reference TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Allocation reads collections per contract in payment order (hot path)
	CREATE INDEX IF NOT EXISTS idx_collections_contract_paid
		ON collections(contract_id, paid_at, created_at);
	CREATE INDEX IF NOT EXISTS idx_collections_idempotency
		ON collections(idempotency_key) WHERE idempotency_key IS NOT NULL;

	CREATE TABLE IF NOT EXISTS settlement_runs (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		run_trigger TEXT NOT NULL DEFAULT 'manual',
		as_of TEXT NOT NULL,
		billed_count INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		applied_principal TEXT NOT NULL DEFAULT '0',
		applied_overdue TEXT NOT NULL DEFAULT '0',
		unapplied TEXT NOT NULL DEFAULT '0',
		outstanding_principal TEXT NOT NULL DEFAULT '0',
		outstanding_overdue TEXT NOT NULL DEFAULT '0',
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlement_runs_contract
		ON settlement_runs(contract_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_settlement_runs_status
		ON settlement_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CONTRACT STORE
// =============================================================================

// SaveContract inserts a contract or updates its name. Terms of an existing
// contract are never changed: its schedule was generated from them.
func (s *Store) SaveContract(ctx context.Context, c billing.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO contracts (id, name, monthly_fee, currency, term_months, billing_day,
			delivery_date, convention, advance_payment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name,
		c.Terms.MonthlyFee.Value.String(), string(c.Terms.Currency()),
		c.Terms.TermMonths, c.Terms.BillingDay,
		generic.FormatDate(c.Terms.DeliveryDate), string(c.Terms.Convention),
		c.Terms.AdvancePayment.Value.String(),
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

// GetContract returns generic.ErrContractNotFound for unknown ids.
func (s *Store) GetContract(ctx context.Context, id generic.ContractID) (*billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, monthly_fee, currency, term_months, billing_day,
			delivery_date, convention, advance_payment, created_at
		FROM contracts WHERE id = ?
	`, id)

	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	return c, err
}

// ListContracts returns every contract, oldest first.
func (s *Store) ListContracts(ctx context.Context) ([]billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, monthly_fee, currency, term_months, billing_day,
			delivery_date, convention, advance_payment, created_at
		FROM contracts ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []billing.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (*billing.Contract, error) {
	var (
		c                           billing.Contract
		fee, currency, advance      string
		delivery, convention, added string
	)
	err := row.Scan(&c.ID, &c.Name, &fee, &currency, &c.Terms.TermMonths, &c.Terms.BillingDay,
		&delivery, &convention, &advance, &added)
	if err != nil {
		return nil, err
	}

	cur := generic.Currency(currency)
	c.Terms.MonthlyFee = parseAmount(fee, cur)
	c.Terms.AdvancePayment = parseAmount(advance, cur)
	c.Terms.DeliveryDate, _ = generic.ParseDate(delivery)
	c.Terms.Convention = billing.Convention(convention)
	c.CreatedAt = parseTime(added)
	return &c, nil
}

// =============================================================================
// INSTALLMENT STORE
// =============================================================================

// SaveInstallments replaces the stored state of a contract's installments.
func (s *Store) SaveInstallments(ctx context.Context, contractID generic.ContractID, installments []billing.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveInstallments(ctx, sqlTx, contractID, installments); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func saveInstallments(ctx context.Context, db querier, contractID generic.ContractID, installments []billing.Installment) error {
	// A shorter schedule must not leave stale rows behind.
	if _, err := db.ExecContext(ctx, "DELETE FROM installments WHERE contract_id = ? AND seq > ?",
		contractID, len(installments)); err != nil {
		return fmt.Errorf("failed to trim installments: %w", err)
	}

	query := `
		INSERT INTO installments (contract_id, seq, due_date, billed, paid_principal,
			accrued_overdue, paid_overdue, last_paid_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contract_id, seq) DO UPDATE SET
			due_date = excluded.due_date,
			billed = excluded.billed,
			paid_principal = excluded.paid_principal,
			accrued_overdue = excluded.accrued_overdue,
			paid_overdue = excluded.paid_overdue,
			last_paid_at = excluded.last_paid_at,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	for _, inst := range installments {
		var lastPaid sql.NullString
		if inst.LastPaidAt != nil {
			lastPaid = nullString(formatTime(*inst.LastPaidAt))
		}
		_, err := db.ExecContext(ctx, query,
			contractID, inst.Seq, generic.FormatDate(inst.DueDate),
			inst.Billed.Value.String(), inst.PaidPrincipal.Value.String(),
			inst.AccruedOverdue.Value.String(), inst.PaidOverdue.Value.String(),
			lastPaid, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save installment %d: %w", inst.Seq, err)
		}
	}
	return nil
}

// LoadInstallments returns generic.ErrScheduleNotFound when nothing is stored.
func (s *Store) LoadInstallments(ctx context.Context, contractID generic.ContractID, cur generic.Currency) ([]billing.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, due_date, billed, paid_principal, accrued_overdue, paid_overdue, last_paid_at
		FROM installments WHERE contract_id = ? ORDER BY seq ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var out []billing.Installment
	for rows.Next() {
		var (
			inst                               billing.Installment
			due, billed, paidP, accrued, paidO string
			lastPaid                           sql.NullString
		)
		if err := rows.Scan(&inst.Seq, &due, &billed, &paidP, &accrued, &paidO, &lastPaid); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		inst.DueDate, _ = generic.ParseDate(due)
		inst.Billed = parseAmount(billed, cur)
		inst.PaidPrincipal = parseAmount(paidP, cur)
		inst.AccruedOverdue = parseAmount(accrued, cur)
		inst.PaidOverdue = parseAmount(paidO, cur)
		if lastPaid.Valid {
			t := parseTime(lastPaid.String)
			inst.LastPaidAt = &t
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrScheduleNotFound, contractID)
	}
	return out, nil
}

// =============================================================================
// COLLECTION STORE (generic.Store interface)
// =============================================================================

// Append adds a collection to the ledger.
func (s *Store) Append(ctx context.Context, c generic.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendCollection(ctx, s.db, c)
}

func appendCollection(ctx context.Context, db querier, c generic.Collection) error {
	if c.ID == "" {
		c.ID = generic.CollectionID(uuid.NewString())
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO collections
		(id, contract_id, paid_at, amount, currency, reference, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID,
		c.ContractID,
		formatTime(c.PaidAt),
		c.Amount.Value.String(),
		string(c.Amount.Currency),
		nullString(c.Reference),
		nullString(c.IdempotencyKey),
		formatTime(c.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", generic.ErrContractNotFound, c.ContractID)
		}
		return fmt.Errorf("failed to append collection: %w", err)
	}
	return nil
}

// AppendBatch adds multiple collections atomically.
func (s *Store) AppendBatch(ctx context.Context, cs []generic.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, c := range cs {
		if c.IdempotencyKey != "" {
			if keys[c.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[c.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, c := range cs {
		if err := appendCollection(ctx, sqlTx, c); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

const collectionColumns = `id, contract_id, paid_at, amount, currency, reference, idempotency_key, created_at`

// Load returns all collections for a contract in payment order.
func (s *Store) Load(ctx context.Context, contractID generic.ContractID) ([]generic.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadCollections(ctx, s.db, contractID)
}

func loadCollections(ctx context.Context, db querier, contractID generic.ContractID) ([]generic.Collection, error) {
	query := `SELECT ` + collectionColumns + `
		FROM collections
		WHERE contract_id = ?
		ORDER BY paid_at ASC, created_at ASC
	`
	return queryCollections(ctx, db, query, contractID)
}

// LoadRange returns collections paid in [from, to].
func (s *Store) LoadRange(ctx context.Context, contractID generic.ContractID, from, to time.Time) ([]generic.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadCollectionRange(ctx, s.db, contractID, from, to)
}

func loadCollectionRange(ctx context.Context, db querier, contractID generic.ContractID, from, to time.Time) ([]generic.Collection, error) {
	query := `SELECT ` + collectionColumns + `
		FROM collections
		WHERE contract_id = ? AND paid_at >= ? AND paid_at <= ?
		ORDER BY paid_at ASC, created_at ASC
	`
	return queryCollections(ctx, db, query, contractID, formatTime(from), formatTime(to))
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return keyExists(ctx, s.db, idempotencyKey)
}

func keyExists(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM collections WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// RecentCollections returns the newest collections across all contracts.
func (s *Store) RecentCollections(ctx context.Context, limit int) ([]generic.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + collectionColumns + `
		FROM collections
		ORDER BY created_at DESC
		LIMIT ?
	`
	return queryCollections(ctx, s.db, query, limit)
}

func queryCollections(ctx context.Context, db querier, query string, args ...any) ([]generic.Collection, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var collections []generic.Collection
	for rows.Next() {
		var (
			c                        generic.Collection
			paidAt, amount, currency string
			reference, key           sql.NullString
			createdAt                string
		)
		if err := rows.Scan(&c.ID, &c.ContractID, &paidAt, &amount, &currency, &reference, &key, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		c.PaidAt = parseTime(paidAt)
		c.Amount = parseAmount(amount, generic.Currency(currency))
		c.Reference = reference.String
		c.IdempotencyKey = key.String
		c.CreatedAt = parseTime(createdAt)
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore reads and writes through the open transaction; the parent's lock
// is already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, c generic.Collection) error {
	return appendCollection(ctx, ts.tx, c)
}

func (ts *txStore) AppendBatch(ctx context.Context, cs []generic.Collection) error {
	for _, c := range cs {
		if err := appendCollection(ctx, ts.tx, c); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Load(ctx context.Context, contractID generic.ContractID) ([]generic.Collection, error) {
	return loadCollections(ctx, ts.tx, contractID)
}

func (ts *txStore) LoadRange(ctx context.Context, contractID generic.ContractID, from, to time.Time) ([]generic.Collection, error) {
	return loadCollectionRange(ctx, ts.tx, contractID, from, to)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return keyExists(ctx, ts.tx, idempotencyKey)
}

// =============================================================================
// SETTLEMENT RUNS STORE
// =============================================================================

// Settlement run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// SettlementRun represents one manual or scheduled settlement.
type SettlementRun struct {
	ID                   string
	ContractID           generic.ContractID
	Trigger              string // manual, scheduled, cli
	AsOf                 time.Time
	BilledCount          int
	Status               string
	AppliedPrincipal     generic.Amount
	AppliedOverdue       generic.Amount
	Unapplied            generic.Amount
	OutstandingPrincipal generic.Amount
	OutstandingOverdue   generic.Amount
	Error                string
	StartedAt            *time.Time
	CompletedAt          *time.Time
	CreatedAt            time.Time
}

// SaveSettlementRun inserts or updates a run by id.
func (s *Store) SaveSettlementRun(ctx context.Context, r SettlementRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveSettlementRun(ctx, s.db, r)
}

func saveSettlementRun(ctx context.Context, db querier, r SettlementRun) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO settlement_runs (id, contract_id, run_trigger, as_of, billed_count, status,
			applied_principal, applied_overdue, unapplied, outstanding_principal, outstanding_overdue,
			error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			applied_principal = excluded.applied_principal,
			applied_overdue = excluded.applied_overdue,
			unapplied = excluded.unapplied,
			outstanding_principal = excluded.outstanding_principal,
			outstanding_overdue = excluded.outstanding_overdue,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	var startedAt, completedAt sql.NullString
	if r.StartedAt != nil {
		startedAt = nullString(formatTime(*r.StartedAt))
	}
	if r.CompletedAt != nil {
		completedAt = nullString(formatTime(*r.CompletedAt))
	}

	_, err := db.ExecContext(ctx, query,
		r.ID, r.ContractID, r.Trigger, formatTime(r.AsOf), r.BilledCount, r.Status,
		decimalText(r.AppliedPrincipal), decimalText(r.AppliedOverdue), decimalText(r.Unapplied),
		decimalText(r.OutstandingPrincipal), decimalText(r.OutstandingOverdue),
		nullString(r.Error), startedAt, completedAt, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save settlement run: %w", err)
	}
	return nil
}

// CommitSettlement stores the reconciled installments and the completed run
// in one transaction.
func (s *Store) CommitSettlement(ctx context.Context, installments []billing.Installment, r SettlementRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveInstallments(ctx, sqlTx, r.ContractID, installments); err != nil {
		return err
	}
	if err := saveSettlementRun(ctx, sqlTx, r); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// GetSettlementRuns returns runs newest first, optionally for one contract.
func (s *Store) GetSettlementRuns(ctx context.Context, contractID generic.ContractID, limit int) ([]SettlementRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT r.id, r.contract_id, r.run_trigger, r.as_of, r.billed_count, r.status,
			r.applied_principal, r.applied_overdue, r.unapplied,
			r.outstanding_principal, r.outstanding_overdue,
			r.error, r.started_at, r.completed_at, r.created_at,
			COALESCE(c.currency, '')
		FROM settlement_runs r
		LEFT JOIN contracts c ON c.id = r.contract_id
	`
	var args []any
	if contractID != "" {
		query += " WHERE r.contract_id = ?"
		args = append(args, contractID)
	}
	query += " ORDER BY r.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SettlementRun
	for rows.Next() {
		var (
			r                              SettlementRun
			asOf, createdAt, currency      string
			appliedP, appliedO, unapplied  string
			outP, outO                     string
			runErr, startedAt, completedAt sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.ContractID, &r.Trigger, &asOf, &r.BilledCount, &r.Status,
			&appliedP, &appliedO, &unapplied, &outP, &outO,
			&runErr, &startedAt, &completedAt, &createdAt, &currency,
		); err != nil {
			return nil, err
		}

		cur := generic.Currency(currency)
		if cur == "" {
			cur = generic.DefaultCurrency
		}
		r.AsOf = parseTime(asOf)
		r.CreatedAt = parseTime(createdAt)
		r.AppliedPrincipal = parseAmount(appliedP, cur)
		r.AppliedOverdue = parseAmount(appliedO, cur)
		r.Unapplied = parseAmount(unapplied, cur)
		r.OutstandingPrincipal = parseAmount(outP, cur)
		r.OutstandingOverdue = parseAmount(outO, cur)
		r.Error = runErr.String
		if startedAt.Valid {
			t := parseTime(startedAt.String)
			r.StartedAt = &t
		}
		if completedAt.Valid {
			t := parseTime(completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"settlement_runs", "collections", "installments", "contracts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value string, cur generic.Currency) generic.Amount {
	return generic.Amount{
		Value:    generic.MustParseDecimal(value),
		Currency: cur,
	}
}

func decimalText(a generic.Amount) string {
	return a.Value.String()
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
