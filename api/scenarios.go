/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	contracts and payment histories. Each scenario creates one contract,
	records its collections and settles it as of a fixed instant, so the
	resulting ledger is the same every time it is loaded.

AVAILABLE SCENARIOS:

	prepay-on-time:   Prepay contract paid on every due date
	postpay-late:     Postpay contract, first payment a day past the grace window
	prepay-prorated:  Delivery after the billing day, prorated second month
	partial-payment:  Partial payment leaves principal and penalties open

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the contract via factory and persist its schedule
 3. Append collections with fixed idempotency keys
 4. Settle as of the scenario instant (trigger "scenario")

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "postpay-late"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/lease-settlement/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	Contract    string
	Collections []CollectionInput
	AsOf        time.Time
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "prepay-on-time",
			Name:        "Prepay, On Time",
			Description: "500,000/month for 36 months, every installment paid on its due date",
			Convention:  "prepay",
		},
		Contract: `{
			"id": "demo-prepay-on-time",
			"name": "Forklift lease (prepay)",
			"monthly_fee": "500000",
			"term_months": 36,
			"billing_day": 25,
			"delivery_date": "2023-09-15",
			"convention": "prepay",
			"advance_payment": "1000000"
		}`,
		Collections: []CollectionInput{
			{PaidAt: "2023-09-14T10:00:00Z", Amount: "500000", Reference: "transfer 0914"},
			{PaidAt: "2023-10-25T09:00:00Z", Amount: "500000", Reference: "transfer 1025"},
			{PaidAt: "2023-11-24T15:30:00Z", Amount: "500000", Reference: "transfer 1124"},
		},
		AsOf: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "postpay-late",
			Name:        "Postpay, Late First Payment",
			Description: "Prorated first installment paid after the grace window; penalty settled first",
			Convention:  "postpay",
		},
		Contract: `{
			"id": "demo-postpay-late",
			"name": "Excavator lease (postpay)",
			"monthly_fee": "500000",
			"term_months": 36,
			"billing_day": 25,
			"delivery_date": "2023-09-15",
			"convention": "postpay"
		}`,
		Collections: []CollectionInput{
			{PaidAt: "2023-10-30T13:00:00Z", Amount: "300000", Reference: "late transfer"},
		},
		AsOf: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "prepay-prorated",
			Name:        "Prepay, Prorated Start",
			Description: "Delivered after the billing day: full first month, prorated second installment",
			Convention:  "prepay",
		},
		Contract: `{
			"id": "demo-prepay-prorated",
			"name": "Crane lease (prepay, mid-month delivery)",
			"monthly_fee": "500000",
			"term_months": 12,
			"billing_day": 15,
			"delivery_date": "2023-08-21",
			"convention": "prepay"
		}`,
		Collections: []CollectionInput{
			{PaidAt: "2023-08-20T11:00:00Z", Amount: "500000", Reference: "first month"},
			{PaidAt: "2023-09-15T11:00:00Z", Amount: "180822", Reference: "prorated August"},
			{PaidAt: "2023-10-20T00:00:00Z", Amount: "200000", Reference: "partial October"},
		},
		AsOf: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "partial-payment",
			Name:        "Partial Payment",
			Description: "One partial payment after the due date; principal and penalties stay open",
			Convention:  "postpay",
		},
		Contract: `{
			"id": "demo-partial-payment",
			"name": "Loader lease (postpay)",
			"monthly_fee": "500000",
			"term_months": 24,
			"billing_day": 25,
			"delivery_date": "2023-09-01",
			"convention": "postpay"
		}`,
		Collections: []CollectionInput{
			{PaidAt: "2023-11-05T00:00:00Z", Amount: "100000", Reference: "partial"},
		},
		AsOf: time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC),
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	outcome, err := h.loadScenario(r.Context(), found)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = found.ID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario":   found.ScenarioDTO,
		"settlement": toSettlementDTO(outcome),
	})
}

func (h *Handler) loadScenario(ctx context.Context, s *scenario) (*SettlementOutcome, error) {
	if err := h.Store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}

	contract, err := h.ContractFactory.ParseContract(s.Contract)
	if err != nil {
		return nil, err
	}
	contract.CreatedAt = s.AsOf
	if _, err := h.createContract(ctx, contract); err != nil {
		return nil, err
	}

	collections := make([]generic.Collection, 0, len(s.Collections))
	for i, in := range s.Collections {
		in.IdempotencyKey = fmt.Sprintf("scenario-%s-%d", s.ID, i+1)
		c, err := h.toCollection(contract.ID, in, contract.Terms.Currency(), s.AsOf)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	if err := h.Ledger.AppendBatch(ctx, collections); err != nil {
		return nil, err
	}

	return h.Settlement.Settle(ctx, contract.ID, 0, s.AsOf, TriggerScenario)
}
