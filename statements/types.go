/*
Package statements composes aggregator output into financial reports.

PURPOSE:
  Income statement, balance sheet, cash-flow statement, and arrears
  reports over the ledger, under accrual or cash basis. All generators
  are pure functions of the ledger snapshot at call time; there is no
  internal state machine, so calls may run concurrently.

BASIS:
  Accrual matches lines by their stamped accounting period. Cash
  matches cash-receipt/expense-payment entries by calendar date. Both
  read the same period stamp that every line carries from creation.

DEGRADATION:
  A balance sheet that doesn't balance is returned with its numbers and
  a BalanceCheck describing the gap — a data-quality signal for
  operators, never an error. Losing a whole report to one bad posting
  is worse than flagging it.
*/
package statements

import (
	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// BASIS
// =============================================================================

type Basis string

const (
	BasisAccrual Basis = "accrual"
	BasisCash    Basis = "cash"
)

// =============================================================================
// INCOME STATEMENT
// =============================================================================

// BreakdownLine is one account's (or payment kind's) contribution.
type BreakdownLine struct {
	Key    string // account code for accrual, payment kind for cash
	Label  string
	Amount decimal.Decimal
}

type IncomeStatement struct {
	Period ledger.PeriodKey
	Basis  Basis
	Scope  ledger.PropertyID

	Revenue  []BreakdownLine
	Expenses []BreakdownLine

	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// =============================================================================
// BALANCE SHEET
// =============================================================================

// BalanceCheck is the diagnostic for the accounting equation. Imbalance
// is returned as data, never thrown.
type BalanceCheck struct {
	AssetsTotal           decimal.Decimal
	LiabilitiesPlusEquity decimal.Decimal
	Difference            decimal.Decimal // Assets - (Liabilities + Equity)
	Balanced              bool
}

type BalanceSheet struct {
	AsOf  ledger.Date
	Scope ledger.PropertyID

	CashAndBank      []BreakdownLine
	ReceivablesTotal decimal.Decimal
	Liabilities      []BreakdownLine

	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal

	// Equity is cumulative (income - expense) to date, recomputed fresh
	// each call; there is no stored retained-earnings ledger.
	Equity decimal.Decimal

	Check BalanceCheck
}

// =============================================================================
// CASH FLOW STATEMENT
// =============================================================================

type CashFlowSection struct {
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
	Net     decimal.Decimal
}

type CashFlowStatement struct {
	Period ledger.PeriodKey
	Scope  ledger.PropertyID

	Operating CashFlowSection

	// Investing and Financing exist structurally but are always zero:
	// no capital/financing-transaction classification rule exists yet.
	Investing CashFlowSection
	Financing CashFlowSection

	NetChange decimal.Decimal
}

// =============================================================================
// ARREARS
// =============================================================================

// ArrearsSnapshot is a derived, non-persisted view of what a subject
// (or a whole scope) owes as of a date.
type ArrearsSnapshot struct {
	Subject ledger.TenantID   // set for per-subject snapshots
	Scope   ledger.PropertyID // set for per-scope snapshots

	TotalRecognized decimal.Decimal
	TotalSettled    decimal.Decimal
	Outstanding     decimal.Decimal // signed
	CreditBalance   bool

	AsOf      ledger.Date
	InArrears bool
}

// ScopeArrears is one property's aggregate within the portfolio view.
type ScopeArrears struct {
	Scope             ledger.PropertyID
	SubjectsInArrears int
	Outstanding       decimal.Decimal
}

// PortfolioArrears sweeps every scope.
type PortfolioArrears struct {
	AsOf              ledger.Date
	Scopes            []ScopeArrears
	SubjectsInArrears int
	TotalOutstanding  decimal.Decimal
}
