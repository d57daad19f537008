/*
Package allocation applies cash receipts against recognized obligations.

ALGORITHM (oldest period first):
  1. Load the subject's recognition periods with per-period
     outstanding = recognized - settled, ordered oldest first
  2. Walk periods oldest to newest, applying
     min(remaining, periodOutstanding) to each; every resulting credit
     line is stamped with the SETTLED period's key, not the receipt's
     calendar date
  3. Stop when the receipt is exhausted or no outstanding remains
  4. Route any leftover to the tenant-advance liability account —
     overpayment is held, never rejected

POSTING SHAPE:
  One balanced entry per receipt: a single debit to the cash account for
  the full amount, one credit to the tenant's receivable sub-account per
  settled period, plus the advance credit if any.
*/
package allocation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// RECEIPT AND RESULT
// =============================================================================

// Receipt is a cash payment from a tenant.
type Receipt struct {
	ID         string
	Subject    ledger.TenantID
	Scope      ledger.PropertyID
	Amount     decimal.Decimal
	ReceivedAt ledger.Date

	// PaymentKind tags the entry ("rent" when empty).
	PaymentKind string
}

// SettledPeriod records how much of the receipt went to one period.
type SettledPeriod struct {
	Period  ledger.PeriodKey
	Applied decimal.Decimal

	// Remaining outstanding for the period after this application.
	Remaining decimal.Decimal
}

// Result describes where a receipt went.
type Result struct {
	Entry   ledger.LedgerEntry
	Settled []SettledPeriod

	// Unallocated is the overpayment routed to the advance account.
	Unallocated decimal.Decimal
}

// =============================================================================
// ALLOCATOR
// =============================================================================

type Allocator struct {
	Ledger     *ledger.Ledger
	Aggregator *ledger.Aggregator
	Chart      ledger.Registry

	// CashAccount receives the debit; AdvanceAccount the overpayment
	// credit. Default-chart codes when empty.
	CashAccount    string
	AdvanceAccount string
}

func NewAllocator(l *ledger.Ledger, agg *ledger.Aggregator, chart ledger.Registry) *Allocator {
	return &Allocator{
		Ledger:         l,
		Aggregator:     agg,
		Chart:          chart,
		CashAccount:    ledger.AcctCash,
		AdvanceAccount: ledger.AcctTenantAdvances,
	}
}

// Allocate applies a receipt against the subject's outstanding periods
// and posts the resulting balanced entry.
func (a *Allocator) Allocate(ctx context.Context, receipt Receipt) (Result, error) {
	if !receipt.Amount.IsPositive() {
		return Result{}, &ledger.ValidationError{
			Kind:    ledger.Unbalanced,
			Message: fmt.Sprintf("receipt amount must be positive, got %s", receipt.Amount),
		}
	}
	if receipt.Subject == "" {
		return Result{}, fmt.Errorf("allocate receipt: %w", ledger.ErrSubjectNotFound)
	}

	cashAcct, ok := a.Chart.Lookup(a.CashAccount)
	if !ok {
		return Result{}, &ledger.ValidationError{Kind: ledger.UnknownAccount, Message: "cash account", AccountCode: a.CashAccount}
	}
	advanceAcct, ok := a.Chart.Lookup(a.AdvanceAccount)
	if !ok {
		return Result{}, &ledger.ValidationError{Kind: ledger.UnknownAccount, Message: "advance account", AccountCode: a.AdvanceAccount}
	}
	recvAcct, ok := a.Chart.Lookup(ledger.ReceivableFor(receipt.Subject))
	if !ok {
		return Result{}, &ledger.ValidationError{Kind: ledger.UnknownAccount, Message: "receivable sub-account", AccountCode: ledger.ReceivableFor(receipt.Subject)}
	}

	// No date cutoff: outstanding is defined by period stamps, and a
	// receipt must settle a recognition even when the recognition entry
	// is dated after the receipt (month-end-dated accruals paid
	// mid-month). A scoped receipt settles only that property's periods.
	periods, err := a.Aggregator.OutstandingByPeriod(ctx, receipt.Subject, ledger.Date{}, receipt.Scope)
	if err != nil {
		return Result{}, fmt.Errorf("load outstanding periods for %s: %w", receipt.Subject, err)
	}

	paymentKind := receipt.PaymentKind
	if paymentKind == "" {
		paymentKind = "rent"
	}

	entry := ledger.LedgerEntry{
		Date:        receipt.ReceivedAt,
		Description: fmt.Sprintf("Receipt %s from %s", receipt.Amount, receipt.Subject),
		Source:      ledger.SourceCashReceipt,
		Origin:      ledger.OriginRef{Kind: "receipt", ID: receipt.ID},
		Scope:       receipt.Scope,
		Lines: []ledger.LedgerLine{
			// Single debit for the full receipt; the receipt period is
			// the calendar period it arrived in.
			ledger.DebitLine(cashAcct, receipt.Amount, ledger.PeriodOf(receipt.ReceivedAt), "cash received"),
		},
	}
	entry.SetTag(ledger.TagCounterparty, string(receipt.Subject))
	entry.SetTag(ledger.TagPaymentKind, paymentKind)

	result := Result{Settled: nil, Unallocated: decimal.Zero}
	remaining := receipt.Amount

	// Oldest period first; OutstandingByPeriod already sorts ascending.
	for _, p := range periods {
		if !remaining.IsPositive() {
			break
		}
		if !p.Outstanding.IsPositive() {
			continue
		}

		applied := decimal.Min(remaining, p.Outstanding)
		remaining = remaining.Sub(applied)

		entry.Lines = append(entry.Lines, ledger.CreditLine(
			recvAcct, applied, p.Period,
			fmt.Sprintf("settles %s", p.Period),
		))
		result.Settled = append(result.Settled, SettledPeriod{
			Period:    p.Period,
			Applied:   applied,
			Remaining: p.Outstanding.Sub(applied),
		})
	}

	// Leftover becomes a held advance, never a rejection.
	if remaining.IsPositive() {
		entry.Lines = append(entry.Lines, ledger.CreditLine(
			advanceAcct, remaining, ledger.PeriodOf(receipt.ReceivedAt), "overpayment held as advance",
		))
		result.Unallocated = remaining
	}

	entry.TotalDebit, entry.TotalCredit = entry.SumLines()

	posted, err := a.Ledger.Post(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("post receipt %s: %w", receipt.ID, err)
	}
	result.Entry = posted
	return result, nil
}
