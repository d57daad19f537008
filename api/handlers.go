/*
handlers.go - HTTP API handlers for the rent ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Obligations:
    GET    /api/obligations            List rent obligations
    POST   /api/obligations            Register/replace an obligation

  Accruals:
    POST   /api/accruals/generate      Run recognition for a period

  Payments:
    POST   /api/receipts               Record and allocate a tenant payment
    POST   /api/expenses               Record an expense payment

  Entries:
    GET    /api/entries                Query posted entries
    GET    /api/entries/{id}           Get one entry
    POST   /api/entries/{id}/reverse   Append a reversing entry

  Statements:
    GET    /api/statements/income        Income statement (accrual|cash)
    GET    /api/statements/balance-sheet Balance sheet as of a date
    GET    /api/statements/cash-flow     Cash-flow statement

  Arrears:
    GET    /api/arrears/tenants/{id}     One tenant's position
    GET    /api/arrears/properties/{id}  One property's aggregate
    GET    /api/arrears/portfolio        Whole portfolio sweep

  Accounts:
    GET    /api/accounts                 Chart of accounts
    GET    /api/accounts/{code}/balance  One account's balance

  Admin:
    POST   /api/admin/adjustments        Manual balanced entry

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate idempotency key, already reversed)
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

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/allocation"
	"github.com/hearthstay/rentledger/ledger"
	"github.com/hearthstay/rentledger/statements"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ObligationCatalog is the persistence surface for obligations. Both
// SQL stores and the in-memory accrual.Registry implement it.
type ObligationCatalog interface {
	accrual.ObligationSource
	PutObligation(ctx context.Context, o accrual.Obligation) error
	ListObligations(ctx context.Context) ([]accrual.Obligation, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger      *ledger.Ledger
	Chart       ledger.Registry
	Aggregator  *ledger.Aggregator
	Accruals    *accrual.Generator
	Allocator   *allocation.Allocator
	Statements  *statements.Generator
	Obligations ObligationCatalog

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the full engine over one store with the default
// chart and fee schedule.
func NewHandler(store ledger.Store, obligations ObligationCatalog) *Handler {
	return NewHandlerWith(store, obligations, ledger.DefaultChart(), accrual.DefaultFeeSchedule())
}

// NewHandlerWith wires the engine with a custom chart and fee schedule.
func NewHandlerWith(store ledger.Store, obligations ObligationCatalog, chart ledger.Registry, schedule accrual.FeeSchedule) *Handler {
	lgr := ledger.New(store, chart)
	agg := &ledger.Aggregator{Store: store, Chart: chart}
	return &Handler{
		Ledger:      lgr,
		Chart:       chart,
		Aggregator:  agg,
		Accruals:    accrual.NewGenerator(lgr, chart, obligations, schedule),
		Allocator:   allocation.NewAllocator(lgr, agg, chart),
		Statements:  statements.NewGenerator(store, agg, chart),
		Obligations: obligations,
	}
}

// =============================================================================
// OBLIGATION HANDLERS
// =============================================================================

// ListObligations returns all registered obligations.
func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	obligations, err := h.Obligations.ListObligations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list obligations", err)
		return
	}

	dtos := make([]ObligationDTO, len(obligations))
	for i, o := range obligations {
		dtos[i] = toObligationDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertObligation registers or replaces an obligation.
func (h *Handler) UpsertObligation(w http.ResponseWriter, r *http.Request) {
	var req ObligationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required", nil)
		return
	}

	from, err := ledger.ParseDate(req.ActiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid active_from format (use YYYY-MM-DD)", err)
		return
	}
	var to ledger.Date
	if req.ActiveTo != "" {
		to, err = ledger.ParseDate(req.ActiveTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid active_to format (use YYYY-MM-DD)", err)
			return
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	o := accrual.Obligation{
		ID:         req.ID,
		Subject:    ledger.TenantID(req.TenantID),
		Scope:      ledger.PropertyID(req.PropertyID),
		Kind:       req.Kind,
		Rate:       decimal.NewFromFloat(req.MonthlyRent).Round(2),
		OneTimeFee: decimal.NewFromFloat(req.OneTimeFee).Round(2),
		From:       from,
		To:         to,
	}
	if err := h.Obligations.PutObligation(r.Context(), o); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save obligation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toObligationDTO(o))
}

// =============================================================================
// ACCRUAL HANDLERS
// =============================================================================

// GenerateAccruals runs recognition for one period. Safe to re-run: the
// second call creates nothing and reports skips.
func (h *Handler) GenerateAccruals(w http.ResponseWriter, r *http.Request) {
	var req GenerateAccrualsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := ledger.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period format (use YYYY-MM)", err)
		return
	}

	result, err := h.Accruals.GenerateForPeriod(r.Context(), period)
	if err != nil {
		writeDomainError(w, "Failed to generate accruals", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccrualRunDTO(result))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordReceipt records a tenant payment and allocates it oldest period
// first. Overpayment is held as an advance, never rejected.
func (h *Handler) RecordReceipt(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receivedAt := ledger.Today()
	if req.ReceivedAt != "" {
		var err error
		receivedAt, err = ledger.ParseDate(req.ReceivedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid received_at format (use YYYY-MM-DD)", err)
			return
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := h.Allocator.Allocate(r.Context(), allocation.Receipt{
		ID:          req.ID,
		Subject:     ledger.TenantID(req.TenantID),
		Scope:       ledger.PropertyID(req.PropertyID),
		Amount:      decimal.NewFromFloat(req.Amount).Round(2),
		ReceivedAt:  receivedAt,
		PaymentKind: req.PaymentKind,
	})
	if err != nil {
		writeDomainError(w, "Failed to allocate receipt", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTO(result))
}

// RecordExpense posts an expense payment: debit the expense account,
// credit cash, both lines stamped with the payment's calendar period.
func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpensePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := ledger.Today()
	if req.Date != "" {
		var err error
		date, err = ledger.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	expenseAcct, ok := h.Chart.Lookup(req.AccountCode)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown expense account", nil)
		return
	}
	cashAcct, _ := h.Chart.Lookup(ledger.AcctCash)
	amount := decimal.NewFromFloat(req.Amount).Round(2)
	if !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	period := ledger.PeriodOf(date)
	entry := ledger.LedgerEntry{
		Date:        date,
		Description: req.Description,
		Source:      ledger.SourceExpensePayment,
		Scope:       ledger.PropertyID(req.PropertyID),
		Lines: []ledger.LedgerLine{
			ledger.DebitLine(expenseAcct, amount, period, req.Description),
			ledger.CreditLine(cashAcct, amount, period, "cash paid"),
		},
	}
	if req.PaymentKind != "" {
		entry.SetTag(ledger.TagPaymentKind, req.PaymentKind)
	}

	posted, err := h.Ledger.Post(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to post expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(posted))
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// QueryEntries returns posted entries matching the query parameters.
func (h *Handler) QueryEntries(w http.ResponseWriter, r *http.Request) {
	f := ledger.Filter{
		Scope:       ledger.PropertyID(r.URL.Query().Get("property_id")),
		AccountCode: r.URL.Query().Get("account"),
		LinePeriod:  ledger.PeriodKey(r.URL.Query().Get("period")),
	}
	if src := r.URL.Query().Get("source"); src != "" {
		f.Sources = []ledger.SourceKind{ledger.SourceKind(src)}
	}
	if tenant := r.URL.Query().Get("tenant_id"); tenant != "" {
		f.TagKey = ledger.TagCounterparty
		f.TagValue = tenant
	}
	if from := r.URL.Query().Get("from"); from != "" {
		d, err := ledger.ParseDate(from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		f.From = &d
	}
	if to := r.URL.Query().Get("to"); to != "" {
		d, err := ledger.ParseDate(to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		f.To = &d
	}

	entries, err := h.Ledger.Entries(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetEntry returns one entry by ID.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Ledger.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// ReverseEntry appends a reversing entry for a posted entry.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	var req ReverseRequest
	if r.Body != nil {
		// Body is optional; ignore decode errors on empty bodies.
		json.NewDecoder(r.Body).Decode(&req)
	}

	reversal, err := h.Ledger.Reverse(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reverse entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(reversal))
}

// CreateAdjustment posts a manual balanced entry.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := ledger.Today()
	if req.Date != "" {
		var err error
		date, err = ledger.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	entry := ledger.LedgerEntry{
		Date:        date,
		Description: req.Description,
		Source:      ledger.SourceAdjustment,
		Scope:       ledger.PropertyID(req.PropertyID),
	}
	for _, l := range req.Lines {
		acct, ok := h.Chart.Lookup(l.AccountCode)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown account "+l.AccountCode, nil)
			return
		}
		period := ledger.PeriodKey(l.Period)
		if period == "" {
			period = ledger.PeriodOf(date)
		}
		entry.Lines = append(entry.Lines, ledger.LedgerLine{
			AccountCode:  acct.Code,
			AccountName:  acct.Name,
			AccountClass: acct.Class,
			Debit:        decimal.NewFromFloat(l.Debit).Round(2),
			Credit:       decimal.NewFromFloat(l.Credit).Round(2),
			Period:       period,
			Description:  l.Description,
		})
	}

	posted, err := h.Ledger.Post(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to post adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(posted))
}

// =============================================================================
// STATEMENT HANDLERS
// =============================================================================

// GetIncomeStatement returns the income statement for one period.
// Query: period=YYYY-MM, basis=accrual|cash, property_id.
func (h *Handler) GetIncomeStatement(w http.ResponseWriter, r *http.Request) {
	period, err := ledger.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period format (use YYYY-MM)", err)
		return
	}
	basis := statements.Basis(r.URL.Query().Get("basis"))
	scope := ledger.PropertyID(r.URL.Query().Get("property_id"))

	stmt, err := h.Statements.IncomeStatement(r.Context(), period, basis, scope)
	if err != nil {
		writeDomainError(w, "Failed to build income statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeStatementDTO(stmt))
}

// GetBalanceSheet returns the position as of a date (today when absent).
func (h *Handler) GetBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}
	scope := ledger.PropertyID(r.URL.Query().Get("property_id"))

	sheet, err := h.Statements.BalanceSheet(r.Context(), asOf, scope)
	if err != nil {
		writeDomainError(w, "Failed to build balance sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceSheetDTO(sheet))
}

// GetCashFlow returns the cash movement report for one period.
func (h *Handler) GetCashFlow(w http.ResponseWriter, r *http.Request) {
	period, err := ledger.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period format (use YYYY-MM)", err)
		return
	}
	scope := ledger.PropertyID(r.URL.Query().Get("property_id"))

	stmt, err := h.Statements.CashFlow(r.Context(), period, scope)
	if err != nil {
		writeDomainError(w, "Failed to build cash flow statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toCashFlowDTO(stmt))
}

// =============================================================================
// ARREARS HANDLERS
// =============================================================================

// GetTenantArrears returns one tenant's arrears position.
func (h *Handler) GetTenantArrears(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	snap, err := h.Statements.ArrearsFor(r.Context(), ledger.TenantID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		writeDomainError(w, "Failed to compute arrears", err)
		return
	}
	writeJSON(w, http.StatusOK, toArrearsDTO(snap))
}

// GetPropertyArrears returns one property's aggregate arrears.
func (h *Handler) GetPropertyArrears(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	snap, err := h.Statements.ArrearsForScope(r.Context(), ledger.PropertyID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		writeDomainError(w, "Failed to compute arrears", err)
		return
	}
	writeJSON(w, http.StatusOK, toArrearsDTO(snap))
}

// GetPortfolioArrears sweeps every property.
func (h *Handler) GetPortfolioArrears(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	report, err := h.Statements.PortfolioArrears(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, "Failed to compute portfolio arrears", err)
		return
	}
	writeJSON(w, http.StatusOK, toPortfolioArrearsDTO(report))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns the chart of accounts, with balances when
// with_balances=true.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	withBalances := r.URL.Query().Get("with_balances") == "true"
	scope := ledger.PropertyID(r.URL.Query().Get("property_id"))
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	accounts := h.Chart.Accounts()
	dtos := make([]AccountDTO, 0, len(accounts))
	for _, acct := range accounts {
		dto := AccountDTO{Code: acct.Code, Name: acct.Name, Class: string(acct.Class)}
		if withBalances {
			bal, err := h.Aggregator.BalanceOf(r.Context(), acct.Code, asOf, scope)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
				return
			}
			f := money(bal)
			dto.Balance = &f
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccountBalance returns one account's signed balance.
func (h *Handler) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	acct, ok := h.Chart.Lookup(code)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown account", nil)
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}
	scope := ledger.PropertyID(r.URL.Query().Get("property_id"))

	bal, err := h.Aggregator.BalanceOf(r.Context(), code, asOf, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	f := money(bal)
	writeJSON(w, http.StatusOK, AccountDTO{Code: acct.Code, Name: acct.Name, Class: string(acct.Class), Balance: &f})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseAsOf(r *http.Request) (ledger.Date, error) {
	asOf := r.URL.Query().Get("as_of")
	if asOf == "" {
		return ledger.Today(), nil
	}
	return ledger.ParseDate(asOf)
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

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey),
		errors.Is(err, ledger.ErrAlreadyReversed),
		errors.Is(err, ledger.ErrNotPosted):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
