/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	contracts for testing and demos. Each scenario deploys contracts from
	their JSON presets and records the market observations they need.

AVAILABLE SCENARIOS:

	bullet-loan:        One fixed-rate PAM with annual coupons
	floating-rate-note: PAM resetting quarterly against SOFR
	amortizing-annuity: Monthly ANN with level payments
	loan-book:          Mixed PAM/ANN book with one defaulted borrower

HOW SCENARIOS WORK:
 1. Reset database (clear all data) and empty the scheduler
 2. Record market observations
 3. Parse contract terms via factory
 4. Deploy each contract the day before its initial exchange
 5. Optionally inject credit events

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "loan-book"}

	POST /api/scheduler/tick
	{"now": "2025-01-01"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to loadScenario

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - pam/presets.go, ann/presets.go: contract JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/ann"
	"github.com/warp/actus-engine/generic"
	"github.com/warp/actus-engine/pam"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "bullet-loan",
		Name:        "Bullet Loan",
		Description: "Fixed-rate PAM, annual interest, principal repaid at maturity",
		Category:    "pam",
	},
	{
		ID:          "floating-rate-note",
		Name:        "Floating Rate Note",
		Description: "PAM with quarterly rate resets against SOFR, floored and capped",
		Category:    "pam",
	},
	{
		ID:          "amortizing-annuity",
		Name:        "Amortizing Annuity",
		Description: "ANN with level monthly payments over one year",
		Category:    "ann",
	},
	{
		ID:          "loan-book",
		Name:        "Loan Book",
		Description: "Several PAM and ANN contracts; one borrower defaults mid-life",
		Category:    "portfolio",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, ok := findScenario(req.ScenarioID); !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	if err := h.loadScenario(ctx, req.ScenarioID); err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	contracts, err := h.Store.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.Int("contracts", len(contracts)))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"scenario":  req.ScenarioID,
		"contracts": len(contracts),
	})
}

func findScenario(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	switch id {
	case "bullet-loan":
		return h.loadBulletLoanScenario(ctx)
	case "floating-rate-note":
		return h.loadFloatingRateNoteScenario(ctx)
	case "amortizing-annuity":
		return h.loadAmortizingAnnuityScenario(ctx)
	case "loan-book":
		return h.loadLoanBookScenario(ctx)
	default:
		return fmt.Errorf("no loader for scenario %q", id)
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadBulletLoanScenario(ctx context.Context) error {
	_, err := h.deployFromJSON(ctx, "2024-01-01",
		pam.BulletLoanJSON("bank", "alice", "USD", 10000, 0.05, "2024-01-02", "2027-01-02", "P1YL0"))
	return err
}

func (h *Handler) loadFloatingRateNoteScenario(ctx context.Context) error {
	if err := h.recordObservations(ctx, "SOFR", map[string]string{
		"2023-12-29": "0.0531",
	}); err != nil {
		return err
	}
	_, err := h.deployFromJSON(ctx, "2024-01-01",
		pam.FloatingRateNoteJSON("bank", "acme-corp", "USD", 250000, 0.055, "2024-01-02", "2026-01-02",
			"P3ML0", "SOFR", 0.0125, 0.02, 0.08))
	return err
}

func (h *Handler) loadAmortizingAnnuityScenario(ctx context.Context) error {
	_, err := h.deployFromJSON(ctx, "2024-01-01",
		ann.AnnuityJSON("bank", "bob", "EUR", 12000, 0.06, "2024-01-02", "2025-01-02", "P1ML0"))
	return err
}

func (h *Handler) loadLoanBookScenario(ctx context.Context) error {
	if err := h.recordObservations(ctx, "SOFR", map[string]string{
		"2023-12-29": "0.0531",
	}); err != nil {
		return err
	}

	book := []string{
		pam.BulletLoanJSON("bank", "alice", "USD", 10000, 0.05, "2024-01-02", "2027-01-02", "P1YL0"),
		pam.BulletLoanJSON("bank", "carol", "USD", 50000, 0.045, "2024-01-02", "2029-01-02", "P6ML0"),
		pam.FloatingRateNoteJSON("bank", "acme-corp", "USD", 250000, 0.055, "2024-01-02", "2026-01-02",
			"P3ML0", "SOFR", 0.0125, 0.02, 0.08),
		ann.AnnuityJSON("bank", "bob", "EUR", 12000, 0.06, "2024-01-02", "2025-01-02", "P1ML0"),
		ann.AnnuityJSON("bank", "dave", "EUR", 30000, 0.07, "2024-01-02", "2027-01-02", "P3ML0"),
	}

	var defaulted *actus.ContractState
	for _, terms := range book {
		cs, err := h.deployFromJSON(ctx, "2024-01-01", terms)
		if err != nil {
			return err
		}
		if cs.Terms.CounterpartyID == "dave" {
			defaulted = cs
		}
	}

	// Dave stops paying in mid 2025.
	_, err := h.Scheduler.InjectCreditEvent(ctx, defaulted.ID, generic.NewTimePoint(2025, 6, 15))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) deployFromJSON(ctx context.Context, deployedAt, termsJSON string) (*actus.ContractState, error) {
	terms, err := h.Factory.ParseTerms(termsJSON)
	if err != nil {
		return nil, err
	}
	return h.Scheduler.Deploy(ctx, generic.MustParseTimePoint(deployedAt), terms)
}

func (h *Handler) recordObservations(ctx context.Context, code string, values map[string]string) error {
	for at, value := range values {
		obs := actus.Observation{
			MarketObjectCode: code,
			Time:             generic.MustParseTimePoint(at),
			Value:            generic.MustParseNumber(value),
		}
		if err := h.Store.RecordObservation(ctx, obs); err != nil {
			return err
		}
	}
	return nil
}
