/*
Package ledger provides the core double-entry ledger engine.

PURPOSE:
  This package contains the types and algorithms for recording balanced
  postings and aggregating them into account balances. Recurring rent
  recognition, cash receipts, expense payments, and adjustments all flow
  through the same entry model.

KEY CONCEPTS IN THIS FILE (types.go):
  - LedgerEntry: An immutable, balanced posting (header + lines)
  - LedgerLine: A single debit or credit against one account
  - AccountClass: Asset/Liability/Equity/Income/Expense classification
  - SourceKind: What business event produced the entry
  - PeriodKey stamping: every line carries the accounting period it
    logically belongs to, independent of the entry's calendar date

DESIGN PRINCIPLES:
  1. Immutability: Posted entries are never edited, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Duality: Every entry balances (total debits == total credits)
  4. Auditability: Every entry has a source kind, origin reference,
     and idempotency key

SEE ALSO:
  - validate.go: Balanced double-entry enforcement
  - aggregate.go: Balance computation from entries
  - store.go: Persistence interface (append-only)
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT CLASSIFICATION
// =============================================================================

// AccountClass drives the sign rule used by the aggregator.
// Asset/Expense accounts carry debit-normal balances,
// Liability/Equity/Income accounts carry credit-normal balances.
type AccountClass string

const (
	ClassAsset     AccountClass = "asset"
	ClassLiability AccountClass = "liability"
	ClassEquity    AccountClass = "equity"
	ClassIncome    AccountClass = "income"
	ClassExpense   AccountClass = "expense"
)

// =============================================================================
// ENTRY STATUS AND SOURCE
// =============================================================================

type EntryStatus string

const (
	StatusDraft  EntryStatus = "draft"
	StatusPosted EntryStatus = "posted"
	StatusVoid   EntryStatus = "void"
)

// SourceKind records which business event produced an entry.
type SourceKind string

const (
	SourceRentRecognition    SourceKind = "rent_recognition"
	SourceExpenseRecognition SourceKind = "expense_recognition"
	SourceCashReceipt        SourceKind = "cash_receipt"
	SourceExpensePayment     SourceKind = "expense_payment"
	SourceAdjustment         SourceKind = "adjustment"
	SourceReversal           SourceKind = "reversal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type PropertyID string

// OriginRef points at the external object that produced an entry
// (an obligation, a receipt, an invoice).
type OriginRef struct {
	Kind string
	ID   string
}

// =============================================================================
// TAGS - Open key/value metadata on entries
// =============================================================================

// Well-known tag keys. Tags are open; these are the ones the engine reads.
const (
	TagCounterparty = "counterpartyId"
	TagPaymentKind  = "paymentKind"
	TagReversedFrom = "reversedEntryId"
)

// =============================================================================
// LEDGER LINE - Single debit or credit
// =============================================================================

// LedgerLine is one side of a posting against a single account.
// Exactly one of Debit/Credit is non-zero; both are >= 0.
//
// Period is the accounting period this line logically belongs to:
// the recognition period on recognition lines and the SETTLED period on
// settlement lines. A settlement's calendar date need not equal its
// target period, so receivable netting reads this stamp, never the
// entry date.
type LedgerLine struct {
	AccountCode  string
	AccountName  string
	AccountClass AccountClass
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Period       PeriodKey
	Description  string
}

// =============================================================================
// LEDGER ENTRY - Balanced posting
// =============================================================================

// LedgerEntry is a balanced double-entry posting.
//
// INVARIANTS (enforced by the Validator before posting):
//   - sum(lines.Debit)  == TotalDebit
//   - sum(lines.Credit) == TotalCredit
//   - TotalDebit == TotalCredit (within Tolerance)
//
// A posted entry's lines are never edited. Corrections are additive
// reversing entries referencing the original.
type LedgerEntry struct {
	ID             string
	TransactionID  string
	Date           Date // recognition/settlement date, not wall-clock creation
	Description    string
	Source         SourceKind
	Origin         OriginRef
	Status         EntryStatus
	Lines          []LedgerLine
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	Scope          PropertyID // optional scope reference; empty = unscoped
	Tags           map[string]string
	IdempotencyKey string
	CreatedAt      Date
}

// Tolerance is the rounding tolerance for balance checks.
var Tolerance = decimal.NewFromFloat(0.01)

// Tag returns the tag value for key, or "".
func (e *LedgerEntry) Tag(key string) string {
	if e.Tags == nil {
		return ""
	}
	return e.Tags[key]
}

// SetTag sets a tag, allocating the map on first use.
func (e *LedgerEntry) SetTag(key, value string) {
	if e.Tags == nil {
		e.Tags = make(map[string]string)
	}
	e.Tags[key] = value
}

// SumLines recomputes line totals. Used by builders before validation;
// the validator still cross-checks against the stored totals.
func (e *LedgerEntry) SumLines() (debit, credit decimal.Decimal) {
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Balanced reports whether the stored totals agree with each other and
// with the lines, within Tolerance.
func (e *LedgerEntry) Balanced() bool {
	d, c := e.SumLines()
	return d.Sub(e.TotalDebit).Abs().LessThanOrEqual(Tolerance) &&
		c.Sub(e.TotalCredit).Abs().LessThanOrEqual(Tolerance) &&
		e.TotalDebit.Sub(e.TotalCredit).Abs().LessThanOrEqual(Tolerance)
}

// DebitLine builds a debit line against an account.
func DebitLine(acct Account, amount decimal.Decimal, period PeriodKey, desc string) LedgerLine {
	return LedgerLine{
		AccountCode:  acct.Code,
		AccountName:  acct.Name,
		AccountClass: acct.Class,
		Debit:        amount,
		Credit:       decimal.Zero,
		Period:       period,
		Description:  desc,
	}
}

// CreditLine builds a credit line against an account.
func CreditLine(acct Account, amount decimal.Decimal, period PeriodKey, desc string) LedgerLine {
	return LedgerLine{
		AccountCode:  acct.Code,
		AccountName:  acct.Name,
		AccountClass: acct.Class,
		Debit:        decimal.Zero,
		Credit:       amount,
		Period:       period,
		Description:  desc,
	}
}
