/*
handlers.go - HTTP API handlers for the contract engine

PURPOSE:
  Exposes the scheduler, ledger and oracle via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the actus package.

ENDPOINTS:
  Contracts:
    GET    /api/contracts                      List deployed contracts
    POST   /api/contracts                      Deploy terms
    POST   /api/contracts/project              Dry-run terms, nothing persisted
    GET    /api/contracts/{id}                 Terms, state and pending events
    DELETE /api/contracts/{id}                 Terminate
    GET    /api/contracts/{id}/events          Applied event history
    GET    /api/contracts/{id}/transfers       Ledger transfers of one contract
    POST   /api/contracts/{id}/progress        Apply events due at or before a time
    POST   /api/contracts/{id}/credit-events   Inject a credit event

  Ledger:
    GET    /api/ledger/transfers               Every transfer
    GET    /api/ledger/balances?party=&asset=  Net position of a party

  Oracle:
    POST   /api/oracle/observations            Record an observation
    GET    /api/oracle/observations/{code}     Observation series

  Scheduler:
    GET    /api/scheduler                      Heap and driver status
    POST   /api/scheduler/tick                 Tick now (or at a given time)

  Scenarios:
    GET    /api/scenarios                      List demo scenarios
    POST   /api/scenarios/load                 Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Scheduler: the only writer of contracts and transfers
  - Store: read access to contracts, history, ledger and observations
  - Factory: JSON to ContractTerms conversion
  - Driver: the cron tick driver

REQUEST FLOW:
  1. Decode the body (unknown fields rejected)
  2. Validate tags (validator/v10)
  3. Call the scheduler or store
  4. Serialize response
  5. Map errors with writeDomainError

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, malformed terms, event not due, unsupported operation
  - 404: Contract or observation not found
  - 409: Duplicate deployment, concurrent modification
  - 422: Term validation errors (every code listed in "codes")
  - 503: Oracle lookup failed (retryable)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/factory"
	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API reads. store/sqlite.Store and
// actus/store.Memory both satisfy it.
type Store interface {
	actus.ContractStore
	actus.TransferStore
	actus.ObservationStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Scheduler *actus.Scheduler
	Store     Store
	Factory   *factory.TermsFactory
	Driver    *TickDriver
	Logger    *zap.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over a scheduler whose stores are backed by
// store.
func NewHandler(scheduler *actus.Scheduler, store Store, driver *TickDriver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Scheduler: scheduler,
		Store:     store,
		Factory:   factory.NewTermsFactory(),
		Driver:    driver,
		Logger:    logger,
		validate:  newValidator(),
	}
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns every deployed contract.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i, cs := range contracts {
		dtos[i] = toContractDTO(cs)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeployContract validates and deploys contract terms.
func (h *Handler) DeployContract(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	terms, err := h.Factory.FromJSON(req.Terms)
	if err != nil {
		writeDomainError(w, "Invalid contract terms", err)
		return
	}

	cs, err := h.Scheduler.Deploy(r.Context(), parseTime(req.DeployedAt), terms)
	if err != nil {
		writeDomainError(w, "Failed to deploy contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDetailDTO(cs))
}

// ProjectContract runs terms to maturity against the current observations
// without persisting anything.
func (h *Handler) ProjectContract(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	terms, err := h.Factory.FromJSON(req.Terms)
	if err != nil {
		writeDomainError(w, "Invalid contract terms", err)
		return
	}

	records, err := actus.Project(r.Context(), h.Scheduler.Engine, parseTime(req.DeployedAt), terms, h.Store)
	if err != nil {
		writeDomainError(w, "Projection failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventRecordDTOs(records))
}

// GetContract returns a contract with its terms, state and pending events.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Store.Get(r.Context(), contractID(r))
	if err != nil {
		writeDomainError(w, "Contract not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDetailDTO(cs))
}

// TerminateContract removes a contract from the scheduler and the store.
// Its transfers stay on the ledger.
func (h *Handler) TerminateContract(w http.ResponseWriter, r *http.Request) {
	if err := h.Scheduler.Terminate(r.Context(), contractID(r)); err != nil {
		writeDomainError(w, "Failed to terminate contract", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}

// GetContractEvents returns the applied event history.
func (h *Handler) GetContractEvents(w http.ResponseWriter, r *http.Request) {
	history, err := h.Store.History(r.Context(), contractID(r))
	if err != nil {
		writeDomainError(w, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventRecordDTOs(history))
}

// GetContractTransfers returns the ledger transfers of one contract. They
// outlive the contract, so a terminated ID still lists its transfers.
func (h *Handler) GetContractTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.Store.Transfers(r.Context(), contractID(r))
	if err != nil {
		writeDomainError(w, "Failed to load transfers", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTOs(transfers))
}

// ProgressContract applies a contract's events due at or before event_time.
func (h *Handler) ProgressContract(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records, err := h.Scheduler.Progress(r.Context(), contractID(r), parseTime(req.EventTime))
	if err != nil {
		if len(records) > 0 {
			h.Logger.Warn("progress stopped early",
				zap.String("contract_id", chi.URLParam(r, "id")),
				zap.Int("applied", len(records)),
				zap.Error(err))
		}
		writeDomainError(w, "Failed to progress contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventRecordDTOs(records))
}

// InjectCreditEvent adds a credit event to a live contract's schedule.
func (h *Handler) InjectCreditEvent(w http.ResponseWriter, r *http.Request) {
	var req CreditEventRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cs, err := h.Scheduler.InjectCreditEvent(r.Context(), contractID(r), parseTime(req.At))
	if err != nil {
		writeDomainError(w, "Failed to inject credit event", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDetailDTO(cs))
}

// ListContractTypes returns the registered contract types.
func (h *Handler) ListContractTypes(w http.ResponseWriter, r *http.Request) {
	types := h.Scheduler.Engine.ContractTypes()
	out := make([]string, len(types))
	for i, ct := range types {
		out[i] = string(ct)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListTransfers returns every ledger transfer.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.Store.Transfers(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transfers", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTOs(transfers))
}

// GetBalance returns a party's net position in one asset.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	party := r.URL.Query().Get("party")
	asset := r.URL.Query().Get("asset")
	if party == "" || asset == "" {
		writeError(w, http.StatusBadRequest, "party and asset are required", nil)
		return
	}

	transfers, err := h.Store.Transfers(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transfers", err)
		return
	}

	count := 0
	for _, tr := range transfers {
		if tr.AssetID == asset && (tr.From == party || tr.To == party) {
			count++
		}
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		Party:     party,
		AssetID:   asset,
		Balance:   actus.Balance(transfers, party, asset).String(),
		Transfers: count,
	})
}

// =============================================================================
// ORACLE HANDLERS
// =============================================================================

// RecordObservation stores a market observation for rate resets.
func (h *Handler) RecordObservation(w http.ResponseWriter, r *http.Request) {
	var req ObservationRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	obs := actus.Observation{
		MarketObjectCode: req.MarketObjectCode,
		Time:             parseTime(req.Time),
		Value:            generic.MustParseNumber(req.Value),
	}
	if err := h.Store.RecordObservation(r.Context(), obs); err != nil {
		writeDomainError(w, "Failed to record observation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toObservationDTOs([]actus.Observation{obs})[0])
}

// ListObservations returns the series of one market object code.
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	obs, err := h.Store.Observations(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, "Failed to load observations", err)
		return
	}
	writeJSON(w, http.StatusOK, toObservationDTOs(obs))
}

// =============================================================================
// SCHEDULER HANDLERS
// =============================================================================

// GetSchedulerStatus returns the heap snapshot and the driver state.
func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	st := h.Scheduler.Status()
	dto := SchedulerStatusDTO{Live: st.Live, LastTick: st.LastTick.String()}
	if st.Next != nil {
		ev := toEventDTO(st.Next.Event)
		dto.NextEvent = &ev
		dto.NextID = string(st.Next.ContractID)
	}
	if h.Driver != nil {
		ds := h.Driver.Status()
		dto.Driver = &ds
	}
	writeJSON(w, http.StatusOK, dto)
}

// TriggerTick runs one tick at the requested time, or at the driver's clock
// when none is given.
func (h *Handler) TriggerTick(w http.ResponseWriter, r *http.Request) {
	var req TickRequest
	if r.ContentLength != 0 {
		if err := h.decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	var (
		report actus.TickReport
		err    error
	)
	switch {
	case h.Driver != nil && req.Now == "":
		report, err = h.Driver.RunNow(r.Context())
	case h.Driver != nil:
		report, err = h.Driver.RunAt(r.Context(), parseTime(req.Now))
	case req.Now == "":
		report, err = h.Scheduler.Tick(r.Context(), generic.Now())
	default:
		report, err = h.Scheduler.Tick(r.Context(), parseTime(req.Now))
	}
	if err != nil {
		writeDomainError(w, "Tick failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTickReportDTO(report))
}

// ResetDatabase clears all data and empties the scheduler.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	return h.Scheduler.Restore(ctx)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "live_contracts": h.Scheduler.Live()})
}

// =============================================================================
// HELPERS
// =============================================================================

func contractID(r *http.Request) generic.ContractID {
	return generic.ContractID(chi.URLParam(r, "id"))
}

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

// writeDomainError picks the status from the error chain.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	if errs, ok := actus.AsValidationErrors(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   message,
			Details: err.Error(),
			Codes:   errs.Codes(),
			Fields:  errs,
		})
		return
	}
	var single *actus.ValidationError
	if errors.As(err, &single) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   message,
			Details: err.Error(),
			Codes:   []string{single.Code},
			Fields:  []*actus.ValidationError{single},
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, factory.ErrMalformedTerms), errors.Is(err, errInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, generic.ErrLookup):
		status = http.StatusServiceUnavailable
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case generic.IsConflict(err), errors.Is(err, generic.ErrConcurrentModification):
		status = http.StatusConflict
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
