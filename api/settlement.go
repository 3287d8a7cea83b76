/*
settlement.go - Settles one contract and records the run

PURPOSE:

	Shared by the settle endpoint, the cron scheduler and scenario loading.
	A settlement always starts from the generated schedule and replays the
	whole collection ledger, so running it twice as of the same instant
	gives the same ledger.

FLOW:
 1. Load the contract and regenerate its schedule from the stored terms
 2. Resolve the billed count (0 means everything due on or before asOf)
 3. Replay collections through the allocator as of asOf
 4. Persist the reconciled installments and a completed run in one tx

Instants are wall-clock readings in the billing time zone (Location),
stamped UTC, like due dates and imported payment times.

Failures after the contract is found are recorded as failed runs.
Client errors (bad billed count) are returned without a run. Settlements
of the same contract never overlap.

SEE ALSO:
  - billing/allocator.go: The two allocation passes
  - scheduler.go: Periodic settlement of every contract
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/store/sqlite"
)

// Settlement triggers recorded on runs.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerScenario  = "scenario"
)

// SettlementService settles contracts against the collection ledger.
type SettlementService struct {
	Store  *sqlite.Store
	Ledger generic.Ledger
	Logger *zap.Logger

	// Location is the billing time zone; Clock reports the real instant.
	Location *time.Location
	Clock    func() time.Time

	// locks holds one *sync.Mutex per contract id.
	locks sync.Map
}

func NewSettlementService(store *sqlite.Store, logger *zap.Logger, loc *time.Location) *SettlementService {
	if loc == nil {
		loc = time.UTC
	}
	return &SettlementService{
		Store:    store,
		Ledger:   generic.NewLedger(store),
		Logger:   logger,
		Location: loc,
		Clock:    time.Now,
	}
}

// Now is the current wall-clock reading in the billing time zone.
func (s *SettlementService) Now() time.Time {
	return generic.WallClock(s.Clock(), s.Location)
}

// ParseInstant reads a client timestamp on the billing wall clock.
func (s *SettlementService) ParseInstant(v string) (time.Time, error) {
	return generic.ParseInstant(v, s.Location)
}

// SettlementOutcome is a committed settlement.
type SettlementOutcome struct {
	Contract *billing.Contract
	Result   *billing.AllocationResult
	Summary  billing.Summary
	Run      sqlite.SettlementRun
}

// Settle allocates every collection of the contract against its first
// billedCount installments as of asOf.
func (s *SettlementService) Settle(ctx context.Context, id generic.ContractID, billedCount int, asOf time.Time, trigger string) (*SettlementOutcome, error) {
	defer s.lock(id)()

	contract, err := s.Store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}

	installments, err := contract.Schedule()
	if err != nil {
		return nil, err
	}

	if billedCount == 0 {
		billedCount = billing.BilledCountAsOf(installments, asOf)
	}
	if err := billing.ValidateBilledCount(billedCount, len(installments)); err != nil {
		return nil, err
	}

	cur := contract.Terms.Currency()
	zero := generic.Amount{Currency: cur}
	started := s.Now()
	run := sqlite.SettlementRun{
		ID:                   uuid.NewString(),
		ContractID:           id,
		Trigger:              trigger,
		AsOf:                 asOf,
		BilledCount:          billedCount,
		Status:               sqlite.RunRunning,
		AppliedPrincipal:     zero,
		AppliedOverdue:       zero,
		Unapplied:            zero,
		OutstandingPrincipal: zero,
		OutstandingOverdue:   zero,
		StartedAt:            &started,
		CreatedAt:            started,
	}

	events, err := s.Ledger.Events(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	result, err := contract.Settle(installments, billedCount, events, asOf)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	summary := billing.Summarize(result.Installments, billedCount, cur)
	completed := s.Now()
	run.Status = sqlite.RunCompleted
	run.AppliedPrincipal = result.AppliedPrincipal
	run.AppliedOverdue = result.AppliedOverdue
	run.Unapplied = result.Unapplied
	run.OutstandingPrincipal = summary.OutstandingPrincipal
	run.OutstandingOverdue = summary.OutstandingOverdue
	run.CompletedAt = &completed

	if err := s.Store.CommitSettlement(ctx, result.Installments, run); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	s.Logger.Info("contract settled",
		zap.String("contract_id", string(id)),
		zap.String("trigger", trigger),
		zap.Time("as_of", asOf),
		zap.Int("billed_count", billedCount),
		zap.Int("events", len(events)),
		zap.String("applied_principal", result.AppliedPrincipal.Value.String()),
		zap.String("applied_overdue", result.AppliedOverdue.Value.String()),
		zap.String("unapplied", result.Unapplied.Value.String()),
		zap.String("outstanding", summary.TotalOutstanding().Value.String()),
	)

	return &SettlementOutcome{
		Contract: contract,
		Result:   result,
		Summary:  summary,
		Run:      run,
	}, nil
}

// lock serialises settlements of one contract and returns the unlock.
func (s *SettlementService) lock(id generic.ContractID) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *SettlementService) fail(ctx context.Context, run sqlite.SettlementRun, cause error) error {
	completed := s.Now()
	run.Status = sqlite.RunFailed
	run.Error = cause.Error()
	run.CompletedAt = &completed

	if err := s.Store.SaveSettlementRun(ctx, run); err != nil {
		s.Logger.Error("failed to record failed settlement run",
			zap.String("contract_id", string(run.ContractID)),
			zap.Error(err))
	}
	s.Logger.Error("settlement failed",
		zap.String("contract_id", string(run.ContractID)),
		zap.String("trigger", run.Trigger),
		zap.Error(cause))
	return cause
}
