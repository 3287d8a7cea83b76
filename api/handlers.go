/*
handlers.go - HTTP request handlers for the lease settlement API

PURPOSE:

	Implements all HTTP endpoints for the settlement service. Translates
	between HTTP requests/responses and the billing engine.

ENDPOINT GROUPS:

	/api/contracts/*      Contract terms, schedules, collections, settlement
	/api/settlements/*    Settlement run audit
	/api/scenarios/*      Demo scenario loading

ERROR HANDLING:

	Domain errors are classified with the generic helpers:
	- generic.IsNotFound          -> 404
	- duplicate idempotency key   -> 409
	- generic.IsClientError       -> 400
	- anything else               -> 500
	Body is always {"error": ..., "details": ...}.

IDEMPOTENCY:

	Collections carry an idempotency key. Re-posting a batch with a key
	already in the ledger fails the whole batch with 409 and appends
	nothing. Spreadsheet imports derive keys from row content, so
	importing the same file twice appends each payment once.

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response structures
  - settlement.go: Settle flow shared with the scheduler
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/lease-settlement/billing"
	"github.com/warp/lease-settlement/factory"
	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/sheet"
	"github.com/warp/lease-settlement/store/sqlite"
)

// maxUploadSize bounds spreadsheet uploads.
const maxUploadSize = 10 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store           *sqlite.Store
	Ledger          generic.Ledger
	ContractFactory *factory.ContractFactory
	Settlement      *SettlementService
	Logger          *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. Contracts and imports that name no
// currency use cur; timestamps are read on loc's wall clock.
func NewHandler(store *sqlite.Store, logger *zap.Logger, cur generic.Currency, loc *time.Location) *Handler {
	cf := factory.NewContractFactory()
	if cur != "" {
		cf.DefaultCurrency = cur
	}
	settlement := NewSettlementService(store, logger, loc)
	return &Handler{
		Store:           store,
		Ledger:          settlement.Ledger,
		ContractFactory: cf,
		Settlement:      settlement,
		Logger:          logger,
	}
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// GET /api/contracts
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Store.ListContracts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i := range contracts {
		dtos[i] = toContractDTO(h.ContractFactory, &contracts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/contracts
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req factory.ContractJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	contract, err := h.ContractFactory.FromJSON(req)
	if err != nil {
		writeDomainError(w, "Invalid contract", err)
		return
	}

	installments, err := h.createContract(r.Context(), contract)
	if err != nil {
		writeDomainError(w, "Failed to create contract", err)
		return
	}

	h.Logger.Info("contract created",
		zap.String("contract_id", string(contract.ID)),
		zap.String("convention", string(contract.Terms.Convention)),
		zap.Int("installments", len(installments)))

	summary := toSummaryDTO(billing.Summarize(installments, 0, contract.Terms.Currency()))
	writeJSON(w, http.StatusCreated, ContractDetailDTO{
		ContractDTO: toContractDTO(h.ContractFactory, contract),
		Collected:   "0",
		Summary:     &summary,
	})
}

var errContractExists = errors.New("contract already exists")

func (h *Handler) createContract(ctx context.Context, contract *billing.Contract) ([]billing.Installment, error) {
	if _, err := h.Store.GetContract(ctx, contract.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", errContractExists, contract.ID)
	} else if !generic.IsNotFound(err) {
		return nil, err
	}

	installments, err := contract.Schedule()
	if err != nil {
		return nil, err
	}
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = h.Settlement.Now()
	}
	if err := h.Store.SaveContract(ctx, *contract); err != nil {
		return nil, err
	}
	if err := h.Store.SaveInstallments(ctx, contract.ID, installments); err != nil {
		return nil, err
	}
	return installments, nil
}

// GET /api/contracts/{id}
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	contract, installments, err := h.loadLedger(r)
	if err != nil {
		writeDomainError(w, "Contract not available", err)
		return
	}

	now := h.Settlement.Now()
	cur := contract.Terms.Currency()
	collected, err := h.Ledger.CollectedThrough(r.Context(), contract.ID, now, cur)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load collections", err)
		return
	}

	billed := billing.BilledCountAsOf(installments, now)
	summary := toSummaryDTO(billing.Summarize(installments, billed, cur))
	writeJSON(w, http.StatusOK, ContractDetailDTO{
		ContractDTO: toContractDTO(h.ContractFactory, contract),
		Collected:   collected.Value.String(),
		Summary:     &summary,
	})
}

// GET /api/contracts/{id}/schedule
//
// Returns the installments as of the last settlement, or the freshly
// generated schedule when the contract was never settled.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	_, installments, err := h.loadLedger(r)
	if err != nil {
		writeDomainError(w, "Schedule not available", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTOs(installments))
}

// GET /api/contracts/{id}/ledger.xlsx
func (h *Handler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	contract, installments, err := h.loadLedger(r)
	if err != nil {
		writeDomainError(w, "Ledger not available", err)
		return
	}
	collections, err := h.Ledger.Collections(r.Context(), contract.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load collections", err)
		return
	}

	var buf bytes.Buffer
	if err := sheet.WriteLedger(&buf, installments, sheet.ExportOptions{Collections: collections}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(sheet.UpdatedScheduleFile))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) loadLedger(r *http.Request) (*billing.Contract, []billing.Installment, error) {
	ctx := r.Context()
	contract, err := h.Store.GetContract(ctx, generic.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		return nil, nil, err
	}

	installments, err := h.Store.LoadInstallments(ctx, contract.ID, contract.Terms.Currency())
	if errors.Is(err, generic.ErrScheduleNotFound) {
		installments, err = contract.Schedule()
	}
	if err != nil {
		return nil, nil, err
	}
	return contract, installments, nil
}

// =============================================================================
// COLLECTION HANDLERS
// =============================================================================

// GET /api/contracts/{id}/collections
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contract, err := h.Store.GetContract(ctx, generic.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Contract not available", err)
		return
	}

	collections, err := h.Ledger.Collections(ctx, contract.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load collections", err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionDTOs(collections))
}

// POST /api/contracts/{id}/collections
func (h *Handler) CreateCollections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contract, err := h.Store.GetContract(ctx, generic.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Contract not available", err)
		return
	}

	var req CreateCollectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Collections) == 0 {
		writeError(w, http.StatusBadRequest, "No collections in request", nil)
		return
	}

	now := h.Settlement.Now()
	cur := contract.Terms.Currency()
	collections := make([]generic.Collection, 0, len(req.Collections))
	for i, in := range req.Collections {
		c, err := h.toCollection(contract.ID, in, cur, now)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid collection #%d", i+1), err)
			return
		}
		collections = append(collections, c)
	}

	if err := h.Ledger.AppendBatch(ctx, collections); err != nil {
		writeDomainError(w, "Failed to record collections", err)
		return
	}

	h.Logger.Info("collections recorded",
		zap.String("contract_id", string(contract.ID)),
		zap.Int("count", len(collections)))

	writeJSON(w, http.StatusCreated, toCollectionDTOs(collections))
}

// POST /api/contracts/{id}/collections/import
//
// Multipart upload with a "file" field holding an xlsx workbook and an
// optional "sheet" field. Rows already in the ledger are counted as
// duplicates and skipped.
func (h *Handler) ImportCollections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contract, err := h.Store.GetContract(ctx, generic.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Contract not available", err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	result, err := sheet.ReadCollections(file, contract.ID, sheet.ImportOptions{
		Sheet:    r.FormValue("sheet"),
		Currency: contract.Terms.Currency(),
		Location: h.Settlement.Location,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read workbook", err)
		return
	}

	resp := ImportResultDTO{
		Sheet:    result.Sheet,
		Imported: []CollectionDTO{},
		Skipped:  make([]SkippedRowDTO, len(result.Skipped)),
	}
	for i, s := range result.Skipped {
		resp.Skipped[i] = SkippedRowDTO{Row: s.Row, Reason: s.Reason}
	}

	now := h.Settlement.Now()
	for _, c := range result.Collections {
		c.ID = generic.CollectionID(uuid.NewString())
		c.CreatedAt = now
		err := h.Ledger.Append(ctx, c)
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			resp.Duplicates++
			continue
		}
		if err != nil {
			writeDomainError(w, "Failed to record collection", err)
			return
		}
		resp.Imported = append(resp.Imported, toCollectionDTO(c))
	}

	h.Logger.Info("collections imported",
		zap.String("contract_id", string(contract.ID)),
		zap.String("sheet", result.Sheet),
		zap.Int("imported", len(resp.Imported)),
		zap.Int("duplicates", resp.Duplicates),
		zap.Int("skipped", len(resp.Skipped)))

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) toCollection(id generic.ContractID, in CollectionInput, cur generic.Currency, now time.Time) (generic.Collection, error) {
	paidAt, err := h.Settlement.ParseInstant(in.PaidAt)
	if err != nil {
		return generic.Collection{}, fmt.Errorf("%w: paid_at: %w", generic.ErrInvalidCollection, err)
	}
	amount, err := generic.ParseAmount(string(in.Amount), cur)
	if err != nil {
		return generic.Collection{}, fmt.Errorf("%w: %q", generic.ErrInvalidAmount, in.Amount)
	}

	key := in.IdempotencyKey
	if key == "" {
		key = "api-" + uuid.NewString()
	}
	return generic.Collection{
		ID:             generic.CollectionID(uuid.NewString()),
		ContractID:     id,
		PaidAt:         paidAt,
		Amount:         amount,
		Reference:      in.Reference,
		IdempotencyKey: key,
		CreatedAt:      now,
	}, nil
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// POST /api/contracts/{id}/settle
func (h *Handler) SettleContract(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BilledCount < 0 {
		writeError(w, http.StatusBadRequest, "billed_count must not be negative", nil)
		return
	}

	asOf := h.Settlement.Now()
	if req.AsOf != "" {
		t, err := h.Settlement.ParseInstant(req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of", err)
			return
		}
		asOf = t
	}

	outcome, err := h.Settlement.Settle(r.Context(), generic.ContractID(chi.URLParam(r, "id")), req.BilledCount, asOf, TriggerManual)
	if err != nil {
		writeDomainError(w, "Settlement failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(outcome))
}

// GET /api/settlements/runs?contract_id=...&limit=...
func (h *Handler) ListSettlementRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.GetSettlementRuns(r.Context(), generic.ContractID(r.URL.Query().Get("contract_id")), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get settlement runs", err)
		return
	}

	dtos := make([]SettlementRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSettlementRunDTO(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's classification.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey), errors.Is(err, errContractExists):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
