/*
account.go - Chart of accounts registry

PURPOSE:
  Defines accounts and the registry the posting validator resolves codes
  against. The receivable control account is partitioned into one
  sub-account per tenant using a "control.suffix" code convention
  (e.g. "1200.T-042"), so per-tenant balances fall out of ordinary
  account aggregation.

SUB-ACCOUNT CONVENTION:
  <control code> "." <counterparty id>
  Sub-accounts are not registered individually; the registry resolves
  them through their control account and they inherit its classification
  and active flag.

SEE ALSO:
  - validate.go: Uses Registry to reject unknown account codes
  - aggregate.go: Uses the prefix convention for receivable scans
*/
package ledger

import (
	"sort"
	"strings"
)

// =============================================================================
// ACCOUNT
// =============================================================================

type Account struct {
	Code   string
	Name   string
	Class  AccountClass
	Active bool
}

// Registry resolves account codes. Consumed by the validator and the
// aggregator; the engine never mutates the chart.
type Registry interface {
	// Lookup resolves a code, including receivable sub-accounts.
	Lookup(code string) (Account, bool)

	// Accounts returns all registered accounts, ordered by code.
	// Sub-accounts are not enumerated.
	Accounts() []Account
}

// =============================================================================
// STATIC CHART - In-memory Registry
// =============================================================================

// StaticChart is a fixed chart of accounts with control-account
// sub-code resolution.
type StaticChart struct {
	accounts map[string]Account
	controls map[string]bool // codes that may carry sub-accounts
}

func NewStaticChart(accounts []Account, controlCodes ...string) *StaticChart {
	c := &StaticChart{
		accounts: make(map[string]Account, len(accounts)),
		controls: make(map[string]bool, len(controlCodes)),
	}
	for _, a := range accounts {
		c.accounts[a.Code] = a
	}
	for _, code := range controlCodes {
		c.controls[code] = true
	}
	return c
}

func (c *StaticChart) Lookup(code string) (Account, bool) {
	if a, ok := c.accounts[code]; ok {
		return a, ok
	}

	// Sub-account: resolve through the control account.
	control, suffix, ok := SplitSubAccount(code)
	if !ok || !c.controls[control] {
		return Account{}, false
	}
	parent, ok := c.accounts[control]
	if !ok {
		return Account{}, false
	}
	return Account{
		Code:   code,
		Name:   parent.Name + " / " + suffix,
		Class:  parent.Class,
		Active: parent.Active,
	}, true
}

func (c *StaticChart) Accounts() []Account {
	out := make([]Account, 0, len(c.accounts))
	for _, a := range c.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// SubAccount builds a sub-account code under a control account.
func SubAccount(controlCode, suffix string) string {
	return controlCode + "." + suffix
}

// SplitSubAccount splits "control.suffix" codes. ok is false for plain codes.
func SplitSubAccount(code string) (control, suffix string, ok bool) {
	i := strings.Index(code, ".")
	if i <= 0 || i == len(code)-1 {
		return "", "", false
	}
	return code[:i], code[i+1:], true
}

// =============================================================================
// DEFAULT CHART - Student-housing operator accounts
// =============================================================================

// Well-known account codes used by the generators. Callers with a custom
// chart configure their own codes on the components instead.
const (
	AcctCash           = "1000" // operating cash
	AcctBank           = "1100" // bank account
	AcctRentReceivable = "1200" // receivable control, sub-account per tenant
	AcctPayable        = "2000"
	AcctTenantAdvances = "2100" // overpayments held as liability
	AcctDepositsHeld   = "2200"
	AcctRetained       = "3000"
	AcctRentIncome     = "4000"
	AcctFeeIncome      = "4100" // one-time amenity/administration fees
	AcctLateFeeIncome  = "4200"
	AcctMaintenance    = "5000"
	AcctUtilities      = "5100"
	AcctCleaning       = "5200"
)

// DefaultChart returns the standard chart for a student-housing operator.
func DefaultChart() *StaticChart {
	return NewStaticChart([]Account{
		{Code: AcctCash, Name: "Operating Cash", Class: ClassAsset, Active: true},
		{Code: AcctBank, Name: "Bank Account", Class: ClassAsset, Active: true},
		{Code: AcctRentReceivable, Name: "Rent Receivable", Class: ClassAsset, Active: true},
		{Code: AcctPayable, Name: "Accounts Payable", Class: ClassLiability, Active: true},
		{Code: AcctTenantAdvances, Name: "Tenant Advances", Class: ClassLiability, Active: true},
		{Code: AcctDepositsHeld, Name: "Security Deposits Held", Class: ClassLiability, Active: true},
		{Code: AcctRetained, Name: "Retained Earnings", Class: ClassEquity, Active: true},
		{Code: AcctRentIncome, Name: "Rental Income", Class: ClassIncome, Active: true},
		{Code: AcctFeeIncome, Name: "Fee Income", Class: ClassIncome, Active: true},
		{Code: AcctLateFeeIncome, Name: "Late Fee Income", Class: ClassIncome, Active: true},
		{Code: AcctMaintenance, Name: "Property Maintenance", Class: ClassExpense, Active: true},
		{Code: AcctUtilities, Name: "Utilities", Class: ClassExpense, Active: true},
		{Code: AcctCleaning, Name: "Cleaning Services", Class: ClassExpense, Active: true},
	}, AcctRentReceivable)
}

// ReceivableFor returns the tenant's receivable sub-account code under
// the default chart's control account.
func ReceivableFor(tenant TenantID) string {
	return SubAccount(AcctRentReceivable, string(tenant))
}

// TenantOfReceivable extracts the tenant from a receivable sub-account
// code. ok is false for the control account itself or unrelated codes.
func TenantOfReceivable(code string) (TenantID, bool) {
	control, suffix, ok := SplitSubAccount(code)
	if !ok || control != AcctRentReceivable {
		return "", false
	}
	return TenantID(suffix), true
}
