/*
scheduler.go - Automated settlement scheduler

PURPOSE:
  Periodically re-settles every contract as of the current instant, so
  overdue penalties and the persisted ledger stay current without anyone
  calling the settle endpoint.

DESIGN:
  - Driven by a cron expression (robfig/cron, UTC)
  - Each contract is billed for every installment due on or before now
  - Contracts with nothing due yet are skipped
  - Overlapping runs are skipped, never queued
  - Every settlement records a run for audit (see settlement.go)

CONFIGURATION:
  - Spec:    Five-field cron expression (default: "0 6 * * *")
  - Enabled: Whether scheduler is active

USAGE:
  scheduler, err := NewSettlementScheduler(handler.Settlement, "0 6 * * *", logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SettleContract endpoint (manual settlement)
  - billing/types.go: BilledCountAsOf
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/lease-settlement/billing"
)

// SettlementScheduler handles periodic settlement of all contracts.
type SettlementScheduler struct {
	Settlement *SettlementService
	Spec       string
	Enabled    bool

	logger  *zap.Logger
	cron    *cron.Cron
	entryID cron.EntryID
	mu      sync.Mutex
	running bool
}

// RunReport counts what one pass did.
type RunReport struct {
	Settled int
	Skipped int
	Failed  int
}

// NewSettlementScheduler validates spec and creates a scheduler.
func NewSettlementScheduler(settlement *SettlementService, spec string, logger *zap.Logger) (*SettlementScheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
	)

	rs := &SettlementScheduler{
		Settlement: settlement,
		Spec:       spec,
		Enabled:    true,
		logger:     logger.Named("scheduler"),
		cron:       c,
	}

	id, err := c.AddFunc(spec, func() { rs.RunNow(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", spec, err)
	}
	rs.entryID = id
	return rs, nil
}

// Start begins the scheduler.
func (rs *SettlementScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.logger.Info("disabled, not starting")
		return
	}
	if rs.running {
		return
	}

	rs.cron.Start()
	rs.running = true
	rs.logger.Info("started", zap.String("spec", rs.Spec), zap.Time("next_run", rs.NextRunTime()))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (rs *SettlementScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.running {
		return
	}
	<-rs.cron.Stop().Done()
	rs.running = false
	rs.logger.Info("stopped")
}

// NextRunTime returns when the next scheduled pass will occur, or the
// zero time when the scheduler is not running.
func (rs *SettlementScheduler) NextRunTime() time.Time {
	return rs.cron.Entry(rs.entryID).Next
}

// RunNow settles every contract as of now (for testing/admin).
func (rs *SettlementScheduler) RunNow(ctx context.Context) RunReport {
	now := rs.Settlement.Now()
	var report RunReport

	contracts, err := rs.Settlement.Store.ListContracts(ctx)
	if err != nil {
		rs.logger.Error("failed to list contracts", zap.Error(err))
		return report
	}

	for i := range contracts {
		contract := &contracts[i]

		installments, err := contract.Schedule()
		if err != nil {
			rs.logger.Error("failed to generate schedule",
				zap.String("contract_id", string(contract.ID)), zap.Error(err))
			report.Failed++
			continue
		}

		billed := billing.BilledCountAsOf(installments, now)
		if billed == 0 {
			report.Skipped++
			continue
		}

		if _, err := rs.Settlement.Settle(ctx, contract.ID, billed, now, TriggerScheduled); err != nil {
			report.Failed++
			continue
		}
		report.Settled++
	}

	rs.logger.Info("pass completed",
		zap.Time("as_of", now),
		zap.Int("settled", report.Settled),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
