/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts cross the wire as JSON numbers rounded to 2 decimal places.
  Internally everything is decimal.Decimal; the conversion happens only
  at this boundary.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router wiring
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/allocation"
	"github.com/hearthstay/rentledger/ledger"
	"github.com/hearthstay/rentledger/statements"
)

// =============================================================================
// LEDGER ENTRY TYPES
// =============================================================================

// LineDTO represents one debit/credit line.
type LineDTO struct {
	AccountCode string  `json:"account_code"`
	AccountName string  `json:"account_name,omitempty"`
	Class       string  `json:"class"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Period      string  `json:"period,omitempty"`
	Description string  `json:"description,omitempty"`
}

// EntryDTO represents a posted ledger entry.
type EntryDTO struct {
	ID          string            `json:"id"`
	Date        string            `json:"date"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source"`
	Status      string            `json:"status"`
	PropertyID  string            `json:"property_id,omitempty"`
	TotalDebit  float64           `json:"total_debit"`
	TotalCredit float64           `json:"total_credit"`
	Tags        map[string]string `json:"tags,omitempty"`
	Lines       []LineDTO         `json:"lines"`
}

// AdjustmentLine is one side of a manual adjustment.
type AdjustmentLine struct {
	AccountCode string  `json:"account_code"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Period      string  `json:"period,omitempty"`
	Description string  `json:"description,omitempty"`
}

// AdjustmentRequest posts a manual balanced entry.
type AdjustmentRequest struct {
	Date        string           `json:"date"`
	PropertyID  string           `json:"property_id,omitempty"`
	Description string           `json:"description"`
	Lines       []AdjustmentLine `json:"lines"`
}

// ReverseRequest asks for a correction of a posted entry.
type ReverseRequest struct {
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// OBLIGATION TYPES
// =============================================================================

// ObligationDTO represents a recurring rent commitment.
type ObligationDTO struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id"`
	PropertyID  string  `json:"property_id,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	MonthlyRent float64 `json:"monthly_rent"`
	OneTimeFee  float64 `json:"one_time_fee"`
	ActiveFrom  string  `json:"active_from"`
	ActiveTo    string  `json:"active_to,omitempty"`
}

// =============================================================================
// ACCRUAL TYPES
// =============================================================================

// GenerateAccrualsRequest triggers recognition for one period.
type GenerateAccrualsRequest struct {
	Period string `json:"period"` // "YYYY-MM"
}

// SkipDTO records why one obligation produced no posting.
type SkipDTO struct {
	ObligationID string `json:"obligation_id"`
	TenantID     string `json:"tenant_id,omitempty"`
	Reason       string `json:"reason"`
}

// AccrualRunDTO is the result of a generation run.
type AccrualRunDTO struct {
	Period       string     `json:"period"`
	CreatedCount int        `json:"created_count"`
	SkippedCount int        `json:"skipped_count"`
	Created      []EntryDTO `json:"created"`
	Skipped      []SkipDTO  `json:"skipped"`
}

// =============================================================================
// RECEIPT / PAYMENT TYPES
// =============================================================================

// ReceiptRequest records a tenant cash payment.
type ReceiptRequest struct {
	ID          string  `json:"id,omitempty"`
	TenantID    string  `json:"tenant_id"`
	PropertyID  string  `json:"property_id,omitempty"`
	Amount      float64 `json:"amount"`
	ReceivedAt  string  `json:"received_at"` // "YYYY-MM-DD", today when empty
	PaymentKind string  `json:"payment_kind,omitempty"`
}

// SettledPeriodDTO is one period the receipt was applied to.
type SettledPeriodDTO struct {
	Period    string  `json:"period"`
	Applied   float64 `json:"applied"`
	Remaining float64 `json:"remaining"`
}

// AllocationDTO is the allocation result for a receipt.
type AllocationDTO struct {
	Entry       EntryDTO           `json:"entry"`
	Settled     []SettledPeriodDTO `json:"settled"`
	Unallocated float64            `json:"unallocated"`
}

// ExpensePaymentRequest records an operating expense paid from cash.
type ExpensePaymentRequest struct {
	PropertyID  string  `json:"property_id,omitempty"`
	AccountCode string  `json:"account_code"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"` // "YYYY-MM-DD", today when empty
	PaymentKind string  `json:"payment_kind,omitempty"`
	Description string  `json:"description,omitempty"`
}

// =============================================================================
// STATEMENT TYPES
// =============================================================================

// BreakdownDTO is one account's (or payment kind's) contribution.
type BreakdownDTO struct {
	Key    string  `json:"key"`
	Label  string  `json:"label,omitempty"`
	Amount float64 `json:"amount"`
}

// IncomeStatementDTO is the revenue/expense report for one period.
type IncomeStatementDTO struct {
	Period        string         `json:"period"`
	Basis         string         `json:"basis"`
	PropertyID    string         `json:"property_id,omitempty"`
	Revenue       []BreakdownDTO `json:"revenue"`
	Expenses      []BreakdownDTO `json:"expenses"`
	TotalRevenue  float64        `json:"total_revenue"`
	TotalExpenses float64        `json:"total_expenses"`
	NetIncome     float64        `json:"net_income"`
}

// BalanceCheckDTO reports the accounting-equation verification.
type BalanceCheckDTO struct {
	AssetsTotal           float64 `json:"assets_total"`
	LiabilitiesPlusEquity float64 `json:"liabilities_plus_equity"`
	Difference            float64 `json:"difference"`
	Balanced              bool    `json:"balanced"`
}

// BalanceSheetDTO is the point-in-time position.
type BalanceSheetDTO struct {
	AsOf             string          `json:"as_of"`
	PropertyID       string          `json:"property_id,omitempty"`
	CashAndBank      []BreakdownDTO  `json:"cash_and_bank"`
	ReceivablesTotal float64         `json:"receivables_total"`
	Liabilities      []BreakdownDTO  `json:"liabilities"`
	TotalAssets      float64         `json:"total_assets"`
	TotalLiabilities float64         `json:"total_liabilities"`
	Equity           float64         `json:"equity"`
	Check            BalanceCheckDTO `json:"check"`
}

// CashFlowSectionDTO is one section of the cash-flow statement.
type CashFlowSectionDTO struct {
	Inflow  float64 `json:"inflow"`
	Outflow float64 `json:"outflow"`
	Net     float64 `json:"net"`
}

// CashFlowDTO is the cash movement report for one period.
type CashFlowDTO struct {
	Period     string             `json:"period"`
	PropertyID string             `json:"property_id,omitempty"`
	Operating  CashFlowSectionDTO `json:"operating"`
	Investing  CashFlowSectionDTO `json:"investing"`
	Financing  CashFlowSectionDTO `json:"financing"`
	NetChange  float64            `json:"net_change"`
}

// ArrearsDTO is a tenant's (or property's) arrears position.
type ArrearsDTO struct {
	TenantID        string  `json:"tenant_id,omitempty"`
	PropertyID      string  `json:"property_id,omitempty"`
	TotalRecognized float64 `json:"total_recognized"`
	TotalSettled    float64 `json:"total_settled"`
	Outstanding     float64 `json:"outstanding"`
	CreditBalance   bool    `json:"credit_balance"`
	InArrears       bool    `json:"in_arrears"`
	AsOf            string  `json:"as_of"`
}

// ScopeArrearsDTO is one property's aggregate within the portfolio view.
type ScopeArrearsDTO struct {
	PropertyID        string  `json:"property_id"`
	TenantsInArrears  int     `json:"tenants_in_arrears"`
	Outstanding       float64 `json:"outstanding"`
}

// PortfolioArrearsDTO sweeps every property.
type PortfolioArrearsDTO struct {
	AsOf             string            `json:"as_of"`
	Properties       []ScopeArrearsDTO `json:"properties"`
	TenantsInArrears int               `json:"tenants_in_arrears"`
	TotalOutstanding float64           `json:"total_outstanding"`
}

// AccountDTO is a chart account, optionally with its current balance.
type AccountDTO struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Class   string   `json:"class"`
	Balance *float64 `json:"balance,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func toLineDTO(l ledger.LedgerLine) LineDTO {
	return LineDTO{
		AccountCode: l.AccountCode,
		AccountName: l.AccountName,
		Class:       string(l.AccountClass),
		Debit:       money(l.Debit),
		Credit:      money(l.Credit),
		Period:      string(l.Period),
		Description: l.Description,
	}
}

func toEntryDTO(e ledger.LedgerEntry) EntryDTO {
	dto := EntryDTO{
		ID:          e.ID,
		Date:        e.Date.String(),
		Description: e.Description,
		Source:      string(e.Source),
		Status:      string(e.Status),
		PropertyID:  string(e.Scope),
		TotalDebit:  money(e.TotalDebit),
		TotalCredit: money(e.TotalCredit),
		Tags:        e.Tags,
		Lines:       make([]LineDTO, 0, len(e.Lines)),
	}
	for _, l := range e.Lines {
		dto.Lines = append(dto.Lines, toLineDTO(l))
	}
	return dto
}

func toEntryDTOs(entries []ledger.LedgerEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toObligationDTO(o accrual.Obligation) ObligationDTO {
	dto := ObligationDTO{
		ID:          o.ID,
		TenantID:    string(o.Subject),
		PropertyID:  string(o.Scope),
		Kind:        o.Kind,
		MonthlyRent: money(o.Rate),
		OneTimeFee:  money(o.OneTimeFee),
		ActiveFrom:  o.From.String(),
	}
	if !o.To.IsZero() {
		dto.ActiveTo = o.To.String()
	}
	return dto
}

func toAccrualRunDTO(r accrual.BatchResult) AccrualRunDTO {
	dto := AccrualRunDTO{
		Period:       string(r.Period),
		CreatedCount: len(r.Created),
		SkippedCount: len(r.Skipped),
		Created:      toEntryDTOs(r.Created),
		Skipped:      make([]SkipDTO, 0, len(r.Skipped)),
	}
	for _, s := range r.Skipped {
		dto.Skipped = append(dto.Skipped, SkipDTO{
			ObligationID: s.ObligationID,
			TenantID:     string(s.Subject),
			Reason:       s.Reason,
		})
	}
	return dto
}

func toAllocationDTO(r allocation.Result) AllocationDTO {
	dto := AllocationDTO{
		Entry:       toEntryDTO(r.Entry),
		Settled:     make([]SettledPeriodDTO, 0, len(r.Settled)),
		Unallocated: money(r.Unallocated),
	}
	for _, s := range r.Settled {
		dto.Settled = append(dto.Settled, SettledPeriodDTO{
			Period:    string(s.Period),
			Applied:   money(s.Applied),
			Remaining: money(s.Remaining),
		})
	}
	return dto
}

func toBreakdownDTOs(lines []statements.BreakdownLine) []BreakdownDTO {
	dtos := make([]BreakdownDTO, len(lines))
	for i, l := range lines {
		dtos[i] = BreakdownDTO{Key: l.Key, Label: l.Label, Amount: money(l.Amount)}
	}
	return dtos
}

func toIncomeStatementDTO(s statements.IncomeStatement) IncomeStatementDTO {
	return IncomeStatementDTO{
		Period:        string(s.Period),
		Basis:         string(s.Basis),
		PropertyID:    string(s.Scope),
		Revenue:       toBreakdownDTOs(s.Revenue),
		Expenses:      toBreakdownDTOs(s.Expenses),
		TotalRevenue:  money(s.TotalRevenue),
		TotalExpenses: money(s.TotalExpenses),
		NetIncome:     money(s.NetIncome),
	}
}

func toBalanceSheetDTO(s statements.BalanceSheet) BalanceSheetDTO {
	return BalanceSheetDTO{
		AsOf:             s.AsOf.String(),
		PropertyID:       string(s.Scope),
		CashAndBank:      toBreakdownDTOs(s.CashAndBank),
		ReceivablesTotal: money(s.ReceivablesTotal),
		Liabilities:      toBreakdownDTOs(s.Liabilities),
		TotalAssets:      money(s.TotalAssets),
		TotalLiabilities: money(s.TotalLiabilities),
		Equity:           money(s.Equity),
		Check: BalanceCheckDTO{
			AssetsTotal:           money(s.Check.AssetsTotal),
			LiabilitiesPlusEquity: money(s.Check.LiabilitiesPlusEquity),
			Difference:            money(s.Check.Difference),
			Balanced:              s.Check.Balanced,
		},
	}
}

func toCashFlowSectionDTO(s statements.CashFlowSection) CashFlowSectionDTO {
	return CashFlowSectionDTO{Inflow: money(s.Inflow), Outflow: money(s.Outflow), Net: money(s.Net)}
}

func toCashFlowDTO(s statements.CashFlowStatement) CashFlowDTO {
	return CashFlowDTO{
		Period:     string(s.Period),
		PropertyID: string(s.Scope),
		Operating:  toCashFlowSectionDTO(s.Operating),
		Investing:  toCashFlowSectionDTO(s.Investing),
		Financing:  toCashFlowSectionDTO(s.Financing),
		NetChange:  money(s.NetChange),
	}
}

func toArrearsDTO(s statements.ArrearsSnapshot) ArrearsDTO {
	return ArrearsDTO{
		TenantID:        string(s.Subject),
		PropertyID:      string(s.Scope),
		TotalRecognized: money(s.TotalRecognized),
		TotalSettled:    money(s.TotalSettled),
		Outstanding:     money(s.Outstanding),
		CreditBalance:   s.CreditBalance,
		InArrears:       s.InArrears,
		AsOf:            s.AsOf.String(),
	}
}

func toPortfolioArrearsDTO(p statements.PortfolioArrears) PortfolioArrearsDTO {
	dto := PortfolioArrearsDTO{
		AsOf:             p.AsOf.String(),
		Properties:       make([]ScopeArrearsDTO, 0, len(p.Scopes)),
		TenantsInArrears: p.SubjectsInArrears,
		TotalOutstanding: money(p.TotalOutstanding),
	}
	for _, s := range p.Scopes {
		dto.Properties = append(dto.Properties, ScopeArrearsDTO{
			PropertyID:       string(s.Scope),
			TenantsInArrears: s.SubjectsInArrears,
			Outstanding:      money(s.Outstanding),
		})
	}
	return dto
}
