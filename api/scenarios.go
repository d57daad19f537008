/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate a fresh ledger with
	realistic data for testing and demos. Each scenario registers
	obligations, runs recognition, and applies receipts that demonstrate
	specific behaviors.

AVAILABLE SCENARIOS:

	steady-portfolio: Two tenants, three months recognized, all paid
	arrears-tenant:   A tenant two months behind and one overpaying
	mid-month-movein: Prorated first month plus a one-time fee

HOW SCENARIOS WORK:
 1. Register obligations in the catalog
 2. Run recognition for the relevant periods (idempotent)
 3. Record receipts that allocate against the recognized periods

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "arrears-tenant"}

NOTE:

	The ledger is append-only; scenarios layer entries onto whatever is
	already posted. Load them against a fresh development database.

SEE ALSO:
  - handlers.go: Handler dependencies
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/allocation"
	"github.com/hearthstay/rentledger/ledger"
)

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-portfolio",
		Name:        "Steady Portfolio",
		Description: "Two tenants, three months recognized, everything paid on time",
	},
	{
		ID:          "arrears-tenant",
		Name:        "Arrears Tenant",
		Description: "One tenant two months behind, another paid ahead into advance",
	},
	{
		ID:          "mid-month-movein",
		Name:        "Mid-Month Move-In",
		Description: "Prorated first month plus a one-time placement fee",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "steady-portfolio":
		err = h.loadSteadyPortfolio(ctx)
	case "arrears-tenant":
		err = h.loadArrearsTenant(ctx)
	case "mid-month-movein":
		err = h.loadMidMonthMoveIn(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSteadyPortfolio(ctx context.Context) error {
	tenants := []accrual.Obligation{
		{
			ID:      "ob-anna",
			Subject: "tenant-anna",
			Scope:   "prop-maple",
			Rate:    decimal.NewFromInt(650),
			From:    mustDate("2026-05-01"),
		},
		{
			ID:      "ob-ben",
			Subject: "tenant-ben",
			Scope:   "prop-maple",
			Rate:    decimal.NewFromInt(720),
			From:    mustDate("2026-05-01"),
		},
	}
	for _, o := range tenants {
		if err := h.Obligations.PutObligation(ctx, o); err != nil {
			return err
		}
	}

	periods := []ledger.PeriodKey{"2026-05", "2026-06", "2026-07"}
	for _, p := range periods {
		if _, err := h.Accruals.GenerateForPeriod(ctx, p); err != nil {
			return err
		}
	}

	for _, p := range periods {
		for _, o := range tenants {
			_, err := h.Allocator.Allocate(ctx, allocation.Receipt{
				ID:         fmt.Sprintf("rcpt-%s-%s", o.Subject, p),
				Subject:    o.Subject,
				Scope:      o.Scope,
				Amount:     o.Rate,
				ReceivedAt: p.End(),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) loadArrearsTenant(ctx context.Context) error {
	behind := accrual.Obligation{
		ID:      "ob-carol",
		Subject: "tenant-carol",
		Scope:   "prop-birch",
		Rate:    decimal.NewFromInt(600),
		From:    mustDate("2026-05-01"),
	}
	ahead := accrual.Obligation{
		ID:      "ob-dmitri",
		Subject: "tenant-dmitri",
		Scope:   "prop-birch",
		Rate:    decimal.NewFromInt(580),
		From:    mustDate("2026-05-01"),
	}
	for _, o := range []accrual.Obligation{behind, ahead} {
		if err := h.Obligations.PutObligation(ctx, o); err != nil {
			return err
		}
	}

	for _, p := range []ledger.PeriodKey{"2026-05", "2026-06", "2026-07"} {
		if _, err := h.Accruals.GenerateForPeriod(ctx, p); err != nil {
			return err
		}
	}

	// Carol paid only May; June and July stay outstanding.
	if _, err := h.Allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-carol-may",
		Subject:    behind.Subject,
		Scope:      behind.Scope,
		Amount:     behind.Rate,
		ReceivedAt: mustDate("2026-05-28"),
	}); err != nil {
		return err
	}

	// Dmitri paid all three months plus 200 held as advance.
	if _, err := h.Allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-dmitri-all",
		Subject:    ahead.Subject,
		Scope:      ahead.Scope,
		Amount:     ahead.Rate.Mul(decimal.NewFromInt(3)).Add(decimal.NewFromInt(200)),
		ReceivedAt: mustDate("2026-07-05"),
	}); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadMidMonthMoveIn(ctx context.Context) error {
	// Moves in on the 16th of a 30-day month: half rent plus the fee.
	o := accrual.Obligation{
		ID:         "ob-erik",
		Subject:    "tenant-erik",
		Scope:      "prop-cedar",
		Rate:       decimal.NewFromInt(400),
		OneTimeFee: decimal.NewFromInt(20),
		From:       mustDate("2026-06-16"),
	}
	if err := h.Obligations.PutObligation(ctx, o); err != nil {
		return err
	}

	if _, err := h.Accruals.GenerateForPeriod(ctx, "2026-06"); err != nil {
		return err
	}

	_, err := h.Allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-erik-june",
		Subject:    o.Subject,
		Scope:      o.Scope,
		Amount:     decimal.NewFromInt(220),
		ReceivedAt: mustDate("2026-06-20"),
	})
	return err
}

func mustDate(s string) ledger.Date {
	d, err := ledger.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
