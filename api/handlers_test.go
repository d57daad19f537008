package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/api"
	"github.com/hearthstay/rentledger/ledger"
	"github.com/hearthstay/rentledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return api.NewRouter(api.NewHandler(store.NewMemory(), accrual.NewRegistry()))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

// =============================================================================
// OBLIGATION ENDPOINT TESTS
// =============================================================================

func TestObligationEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/obligations", api.ObligationDTO{
		TenantID:    "tenant-anna",
		PropertyID:  "prop-maple",
		MonthlyRent: 650,
		ActiveFrom:  "2026-05-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.ObligationDTO](t, rec)
	assert.NotEmpty(t, created.ID, "server assigns an ID")
	assert.Equal(t, 650.0, created.MonthlyRent)

	rec = doJSON(t, router, "GET", "/api/obligations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]api.ObligationDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "tenant-anna", list[0].TenantID)
}

func TestUpsertObligation_Validation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/obligations", api.ObligationDTO{
		MonthlyRent: 650,
		ActiveFrom:  "2026-05-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing tenant_id")

	rec = doJSON(t, router, "POST", "/api/obligations", api.ObligationDTO{
		TenantID:    "tenant-anna",
		MonthlyRent: 650,
		ActiveFrom:  "May 2026",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bad date format")
}

// =============================================================================
// ACCRUAL + RECEIPT FLOW TESTS
// =============================================================================

func TestAccrualAndReceiptFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/obligations", api.ObligationDTO{
		ID:          "ob-1",
		TenantID:    "tenant-anna",
		PropertyID:  "prop-maple",
		MonthlyRent: 600,
		ActiveFrom:  "2026-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Recognize March and April.
	for _, period := range []string{"2026-03", "2026-04"} {
		rec = doJSON(t, router, "POST", "/api/accruals/generate", api.GenerateAccrualsRequest{Period: period})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		run := decode[api.AccrualRunDTO](t, rec)
		assert.Equal(t, 1, run.CreatedCount, period)
	}

	// Re-running a period creates nothing.
	rec = doJSON(t, router, "POST", "/api/accruals/generate", api.GenerateAccrualsRequest{Period: "2026-03"})
	require.Equal(t, http.StatusOK, rec.Code)
	rerun := decode[api.AccrualRunDTO](t, rec)
	assert.Equal(t, 0, rerun.CreatedCount)
	assert.Equal(t, 1, rerun.SkippedCount)

	// A 900 payment settles March fully and half of April.
	rec = doJSON(t, router, "POST", "/api/receipts", api.ReceiptRequest{
		TenantID:   "tenant-anna",
		PropertyID: "prop-maple",
		Amount:     900,
		ReceivedAt: "2026-05-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alloc := decode[api.AllocationDTO](t, rec)
	require.Len(t, alloc.Settled, 2)
	assert.Equal(t, "2026-03", alloc.Settled[0].Period)
	assert.Equal(t, 600.0, alloc.Settled[0].Applied)
	assert.Equal(t, "2026-04", alloc.Settled[1].Period)
	assert.Equal(t, 300.0, alloc.Settled[1].Applied)
	assert.Equal(t, 0.0, alloc.Unallocated)

	// Arrears view shows the remaining 300.
	rec = doJSON(t, router, "GET", "/api/arrears/tenants/tenant-anna?as_of=2026-05-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	arrears := decode[api.ArrearsDTO](t, rec)
	assert.Equal(t, 300.0, arrears.Outstanding)
	assert.True(t, arrears.InArrears)
}

func TestRecordReceipt_OverpaymentHeld(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/receipts", api.ReceiptRequest{
		TenantID: "tenant-anna",
		Amount:   500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alloc := decode[api.AllocationDTO](t, rec)
	assert.Equal(t, 500.0, alloc.Unallocated)
	assert.Empty(t, alloc.Settled)
}

func TestGenerateAccruals_InvalidPeriod(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/accruals/generate", api.GenerateAccrualsRequest{Period: "March 2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ENTRY ENDPOINT TESTS
// =============================================================================

func TestEntryEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/admin/adjustments", api.AdjustmentRequest{
		Date:        "2026-03-15",
		Description: "opening cash",
		Lines: []api.AdjustmentLine{
			{AccountCode: ledger.AcctCash, Debit: 1000},
			{AccountCode: ledger.AcctRetained, Credit: 1000},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[api.EntryDTO](t, rec)
	require.NotEmpty(t, entry.ID)
	assert.Equal(t, "posted", entry.Status)

	rec = doJSON(t, router, "GET", "/api/entries/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[api.EntryDTO](t, rec)
	assert.Equal(t, entry.ID, got.ID)
	assert.Len(t, got.Lines, 2)

	rec = doJSON(t, router, "GET", "/api/entries/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Reverse once, then conflict on the second attempt.
	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/entries/%s/reverse", entry.ID), api.ReverseRequest{Reason: "fat finger"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reversal := decode[api.EntryDTO](t, rec)
	assert.NotEqual(t, entry.ID, reversal.ID)

	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/entries/%s/reverse", entry.ID), api.ReverseRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, "GET", "/api/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]api.EntryDTO](t, rec)
	assert.Len(t, all, 2)
}

func TestCreateAdjustment_UnbalancedRejected(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/admin/adjustments", api.AdjustmentRequest{
		Date: "2026-03-15",
		Lines: []api.AdjustmentLine{
			{AccountCode: ledger.AcctCash, Debit: 1000},
			{AccountCode: ledger.AcctRetained, Credit: 900},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STATEMENT + ACCOUNT ENDPOINT TESTS
// =============================================================================

func TestStatementEndpoints(t *testing.T) {
	router := newTestRouter(t)

	// Seed: one month recognized and paid, one expense.
	doJSON(t, router, "POST", "/api/obligations", api.ObligationDTO{
		ID: "ob-1", TenantID: "tenant-anna", PropertyID: "prop-maple",
		MonthlyRent: 600, ActiveFrom: "2026-06-01",
	})
	doJSON(t, router, "POST", "/api/accruals/generate", api.GenerateAccrualsRequest{Period: "2026-06"})
	doJSON(t, router, "POST", "/api/receipts", api.ReceiptRequest{
		TenantID: "tenant-anna", PropertyID: "prop-maple", Amount: 600, ReceivedAt: "2026-07-02",
	})
	rec := doJSON(t, router, "POST", "/api/expenses", api.ExpensePaymentRequest{
		PropertyID:  "prop-maple",
		AccountCode: ledger.AcctMaintenance,
		Amount:      540,
		Date:        "2026-07-20",
		PaymentKind: "repairs",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("income statement accrual", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/statements/income?period=2026-06&basis=accrual", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		stmt := decode[api.IncomeStatementDTO](t, rec)
		assert.Equal(t, 600.0, stmt.TotalRevenue)
	})

	t.Run("cash flow", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/statements/cash-flow?period=2026-07", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		stmt := decode[api.CashFlowDTO](t, rec)
		assert.Equal(t, 600.0, stmt.Operating.Inflow)
		assert.Equal(t, 540.0, stmt.Operating.Outflow)
		assert.Equal(t, 60.0, stmt.NetChange)
	})

	t.Run("balance sheet", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/statements/balance-sheet?as_of=2026-07-31", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		sheet := decode[api.BalanceSheetDTO](t, rec)
		assert.Equal(t, 60.0, sheet.TotalAssets)
		assert.True(t, sheet.Check.Balanced)
	})

	t.Run("account balance", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/accounts/"+ledger.AcctCash+"/balance?as_of=2026-07-31", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		acct := decode[api.AccountDTO](t, rec)
		require.NotNil(t, acct.Balance)
		assert.Equal(t, 60.0, *acct.Balance)
	})

	t.Run("unknown account is 404", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/accounts/9999/balance", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid basis is 400", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/statements/income?period=2026-06&basis=modified", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestArrearsEndpoints_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/arrears/tenants/tenant-nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, "GET", "/api/arrears/properties/prop-nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SCENARIO ENDPOINT TESTS
// =============================================================================

func TestScenarioEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]api.ScenarioDTO](t, rec)
	assert.Len(t, list, 3)

	rec = doJSON(t, router, "POST", "/api/scenarios/load", map[string]string{"scenario_id": "arrears-tenant"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, "GET", "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[api.ScenarioDTO](t, rec)
	assert.Equal(t, "arrears-tenant", current.ID)

	// Carol is two months behind; Dmitri holds a 200 advance.
	rec = doJSON(t, router, "GET", "/api/arrears/tenants/tenant-carol?as_of=2026-08-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	carol := decode[api.ArrearsDTO](t, rec)
	assert.Equal(t, 1200.0, carol.Outstanding)
	assert.True(t, carol.InArrears)

	rec = doJSON(t, router, "GET", "/api/arrears/tenants/tenant-dmitri?as_of=2026-08-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dmitri := decode[api.ArrearsDTO](t, rec)
	assert.Equal(t, 0.0, dmitri.Outstanding)
	assert.False(t, dmitri.InArrears)

	rec = doJSON(t, router, "GET", "/api/accounts/"+ledger.AcctTenantAdvances+"/balance?as_of=2026-08-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	advances := decode[api.AccountDTO](t, rec)
	require.NotNil(t, advances.Balance)
	assert.Equal(t, 200.0, *advances.Balance)

	rec = doJSON(t, router, "POST", "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
