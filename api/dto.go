/*
dto.go - Data Transfer Objects for API requests/responses

PURPOSE:

	Defines JSON structures for API communication. Separates internal
	domain types from external API representation.

CONVENTIONS:
  - Money travels as decimal strings ("500000", "263014.5") so no float
    rounding ever touches an amount
  - Dates are YYYY-MM-DD, instants are RFC3339 in UTC
  - Nullable fields use pointers (LastPaidAt, CompletedAt)

SEE ALSO:
  - handlers.go: Uses these DTOs
  - factory/contract.go: ContractJSON, the create-contract payload
*/
package api

import (
	"time"

	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/factory"
	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/store/sqlite"
)

// =============================================================================
// CONTRACT DTOs
// =============================================================================

type ContractDTO struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Terms        factory.ContractJSON `json:"terms"`
	TotalPayment string               `json:"total_payment"`
	EndDate      string               `json:"end_date"`
	CreatedAt    string               `json:"created_at,omitempty"`
}

type ContractDetailDTO struct {
	ContractDTO
	// Collected is the total received up to now, allocated or not.
	Collected string      `json:"collected"`
	Summary   *SummaryDTO `json:"summary,omitempty"`
}

type InstallmentDTO struct {
	Seq                  int     `json:"seq"`
	DueDate              string  `json:"due_date"`
	Billed               string  `json:"billed"`
	PaidPrincipal        string  `json:"paid_principal"`
	OutstandingPrincipal string  `json:"outstanding_principal"`
	AccruedOverdue       string  `json:"accrued_overdue"`
	PaidOverdue          string  `json:"paid_overdue"`
	OutstandingOverdue   string  `json:"outstanding_overdue"`
	LastPaidAt           *string `json:"last_paid_at,omitempty"`
	Settled              bool    `json:"settled"`
}

type SummaryDTO struct {
	Installments         int    `json:"installments"`
	BilledCount          int    `json:"billed_count"`
	SettledCount         int    `json:"settled_count"`
	OverdueCount         int    `json:"overdue_count"`
	Billed               string `json:"billed"`
	PaidPrincipal        string `json:"paid_principal"`
	OutstandingPrincipal string `json:"outstanding_principal"`
	AccruedOverdue       string `json:"accrued_overdue"`
	PaidOverdue          string `json:"paid_overdue"`
	OutstandingOverdue   string `json:"outstanding_overdue"`
	TotalOutstanding     string `json:"total_outstanding"`
}

// =============================================================================
// COLLECTION DTOs
// =============================================================================

type CollectionDTO struct {
	ID             string `json:"id"`
	ContractID     string `json:"contract_id"`
	PaidAt         string `json:"paid_at"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type CollectionInput struct {
	PaidAt         string                `json:"paid_at"` // RFC3339 or "2006-01-02 15:04:05"
	Amount         factory.DecimalString `json:"amount"`
	Reference      string                `json:"reference,omitempty"`
	IdempotencyKey string                `json:"idempotency_key,omitempty"`
}

type CreateCollectionsRequest struct {
	Collections []CollectionInput `json:"collections"`
}

type ImportResultDTO struct {
	Sheet      string          `json:"sheet"`
	Imported   []CollectionDTO `json:"imported"`
	Skipped    []SkippedRowDTO `json:"skipped"`
	Duplicates int             `json:"duplicates"`
}

type SkippedRowDTO struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// =============================================================================
// SETTLEMENT DTOs
// =============================================================================

type SettleRequest struct {
	// BilledCount of 0 means every installment due on or before as_of.
	BilledCount int    `json:"billed_count"`
	AsOf        string `json:"as_of,omitempty"`
}

type SettlementDTO struct {
	RunID            string           `json:"run_id"`
	ContractID       string           `json:"contract_id"`
	AsOf             string           `json:"as_of"`
	BilledCount      int              `json:"billed_count"`
	AppliedPrincipal string           `json:"applied_principal"`
	AppliedOverdue   string           `json:"applied_overdue"`
	Unapplied        string           `json:"unapplied"`
	Summary          SummaryDTO       `json:"summary"`
	Installments     []InstallmentDTO `json:"installments"`
}

type SettlementRunDTO struct {
	ID                   string  `json:"id"`
	ContractID           string  `json:"contract_id"`
	Trigger              string  `json:"trigger"`
	AsOf                 string  `json:"as_of"`
	BilledCount          int     `json:"billed_count"`
	Status               string  `json:"status"`
	AppliedPrincipal     string  `json:"applied_principal"`
	AppliedOverdue       string  `json:"applied_overdue"`
	Unapplied            string  `json:"unapplied"`
	OutstandingPrincipal string  `json:"outstanding_principal"`
	OutstandingOverdue   string  `json:"outstanding_overdue"`
	Error                string  `json:"error,omitempty"`
	StartedAt            *string `json:"started_at,omitempty"`
	CompletedAt          *string `json:"completed_at,omitempty"`
	CreatedAt            string  `json:"created_at"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Convention  string `json:"convention"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toContractDTO(f *factory.ContractFactory, c *billing.Contract) ContractDTO {
	dto := ContractDTO{
		ID:           string(c.ID),
		Name:         c.Name,
		Terms:        f.ToJSON(c),
		TotalPayment: c.Terms.TotalPayment().Value.String(),
		EndDate:      generic.FormatDate(c.Terms.EndDate()),
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = formatInstant(c.CreatedAt)
	}
	return dto
}

func toInstallmentDTOs(installments []billing.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(installments))
	for i := range installments {
		inst := &installments[i]
		dtos[i] = InstallmentDTO{
			Seq:                  inst.Seq,
			DueDate:              generic.FormatDate(inst.DueDate),
			Billed:               inst.Billed.Value.String(),
			PaidPrincipal:        inst.PaidPrincipal.Value.String(),
			OutstandingPrincipal: inst.OutstandingPrincipal().Value.String(),
			AccruedOverdue:       inst.AccruedOverdue.Value.String(),
			PaidOverdue:          inst.PaidOverdue.Value.String(),
			OutstandingOverdue:   inst.OutstandingOverdue().Value.String(),
			Settled:              inst.IsSettled(),
		}
		if inst.LastPaidAt != nil {
			s := formatInstant(*inst.LastPaidAt)
			dtos[i].LastPaidAt = &s
		}
	}
	return dtos
}

func toSummaryDTO(s billing.Summary) SummaryDTO {
	return SummaryDTO{
		Installments:         s.Installments,
		BilledCount:          s.BilledCount,
		SettledCount:         s.SettledCount,
		OverdueCount:         s.OverdueCount,
		Billed:               s.Billed.Value.String(),
		PaidPrincipal:        s.PaidPrincipal.Value.String(),
		OutstandingPrincipal: s.OutstandingPrincipal.Value.String(),
		AccruedOverdue:       s.AccruedOverdue.Value.String(),
		PaidOverdue:          s.PaidOverdue.Value.String(),
		OutstandingOverdue:   s.OutstandingOverdue.Value.String(),
		TotalOutstanding:     s.TotalOutstanding().Value.String(),
	}
}

func toCollectionDTO(c generic.Collection) CollectionDTO {
	dto := CollectionDTO{
		ID:             string(c.ID),
		ContractID:     string(c.ContractID),
		PaidAt:         formatInstant(c.PaidAt),
		Amount:         c.Amount.Value.String(),
		Currency:       string(c.Amount.Currency),
		Reference:      c.Reference,
		IdempotencyKey: c.IdempotencyKey,
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = formatInstant(c.CreatedAt)
	}
	return dto
}

func toCollectionDTOs(cs []generic.Collection) []CollectionDTO {
	dtos := make([]CollectionDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toCollectionDTO(c)
	}
	return dtos
}

func toSettlementDTO(o *SettlementOutcome) SettlementDTO {
	return SettlementDTO{
		RunID:            o.Run.ID,
		ContractID:       string(o.Run.ContractID),
		AsOf:             formatInstant(o.Result.AsOf),
		BilledCount:      o.Result.BilledCount,
		AppliedPrincipal: o.Result.AppliedPrincipal.Value.String(),
		AppliedOverdue:   o.Result.AppliedOverdue.Value.String(),
		Unapplied:        o.Result.Unapplied.Value.String(),
		Summary:          toSummaryDTO(o.Summary),
		Installments:     toInstallmentDTOs(o.Result.Installments),
	}
}

func toSettlementRunDTO(r sqlite.SettlementRun) SettlementRunDTO {
	dto := SettlementRunDTO{
		ID:                   r.ID,
		ContractID:           string(r.ContractID),
		Trigger:              r.Trigger,
		AsOf:                 formatInstant(r.AsOf),
		BilledCount:          r.BilledCount,
		Status:               r.Status,
		AppliedPrincipal:     r.AppliedPrincipal.Value.String(),
		AppliedOverdue:       r.AppliedOverdue.Value.String(),
		Unapplied:            r.Unapplied.Value.String(),
		OutstandingPrincipal: r.OutstandingPrincipal.Value.String(),
		OutstandingOverdue:   r.OutstandingOverdue.Value.String(),
		Error:                r.Error,
		CreatedAt:            formatInstant(r.CreatedAt),
	}
	if r.StartedAt != nil {
		s := formatInstant(*r.StartedAt)
		dto.StartedAt = &s
	}
	if r.CompletedAt != nil {
		s := formatInstant(*r.CompletedAt)
		dto.CompletedAt = &s
	}
	return dto
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
