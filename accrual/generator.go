/*
generator.go - Idempotent periodic recognition

ALGORITHM:
  For each obligation active during the period:
    1. Build the idempotency key accrual:<subject>:<period>:<kind>
    2. Skip if a posting with that key already exists
    3. Recognized amount = base rate, prorated by elapsed days when the
       period is a partial first/last period, plus the one-time fee in
       the obligation's first active period (per the scope's fee policy)
    4. Post one balanced entry: debit the tenant's receivable
       sub-account, credit income per the fee breakdown

  Missing data is a per-item skip with a reason, never a batch failure.
  The batch reports created entries and skips side by side.

CONCURRENCY:
  The existence check is advisory. Two concurrent runs for the same
  period both pass the check; the store's unique idempotency-key
  constraint rejects the second append, which the generator records as
  a skip. No double-posting is possible.
*/
package accrual

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// BATCH RESULT - Partial success is the normal case
// =============================================================================

// Skip records why one obligation produced no posting.
type Skip struct {
	ObligationID string
	Subject      ledger.TenantID
	Reason       string
}

// BatchResult reports a generation run. A run with skips is still a
// successful run.
type BatchResult struct {
	Period  ledger.PeriodKey
	Created []ledger.LedgerEntry
	Skipped []Skip
}

// =============================================================================
// GENERATOR
// =============================================================================

type Generator struct {
	Ledger   *ledger.Ledger
	Chart    ledger.Registry
	Source   ObligationSource
	Schedule FeeSchedule
}

func NewGenerator(l *ledger.Ledger, chart ledger.Registry, source ObligationSource, schedule FeeSchedule) *Generator {
	return &Generator{Ledger: l, Chart: chart, Source: source, Schedule: schedule}
}

// IdempotencyKey builds the uniqueness key for one recognition posting.
func IdempotencyKey(subject ledger.TenantID, period ledger.PeriodKey, kind string) string {
	if kind == "" {
		kind = "rent"
	}
	return fmt.Sprintf("accrual:%s:%s:%s", subject, period, kind)
}

// GenerateForPeriod posts recognition entries for every obligation
// active during the period. Idempotent: a second call for the same
// period creates nothing and reports every obligation as skipped.
func (g *Generator) GenerateForPeriod(ctx context.Context, period ledger.PeriodKey) (BatchResult, error) {
	result := BatchResult{Period: period}

	obligations, err := g.Source.ActiveForPeriod(ctx, period)
	if err != nil {
		return result, fmt.Errorf("load obligations for %s: %w", period, err)
	}

	for _, o := range obligations {
		entry, skip := g.buildEntry(o, period)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}

		exists, err := g.Ledger.Store.Exists(ctx, entry.IdempotencyKey)
		if err != nil {
			return result, fmt.Errorf("idempotency check %s: %w", entry.IdempotencyKey, err)
		}
		if exists {
			result.Skipped = append(result.Skipped, Skip{
				ObligationID: o.ID,
				Subject:      o.Subject,
				Reason:       "already recognized for period",
			})
			continue
		}

		posted, err := g.Ledger.Post(ctx, *entry)
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			// Lost the race to a concurrent run; the store constraint
			// held the invariant.
			result.Skipped = append(result.Skipped, Skip{
				ObligationID: o.ID,
				Subject:      o.Subject,
				Reason:       "already recognized for period",
			})
			continue
		}
		if err != nil {
			return result, fmt.Errorf("post recognition for %s: %w", o.ID, err)
		}
		result.Created = append(result.Created, posted)
	}

	return result, nil
}

// buildEntry computes the recognized amount and assembles the candidate
// posting. A nil entry with a non-nil skip means "no posting, here's why".
func (g *Generator) buildEntry(o Obligation, period ledger.PeriodKey) (*ledger.LedgerEntry, *Skip) {
	if o.Subject == "" {
		return nil, &Skip{ObligationID: o.ID, Reason: "missing subject"}
	}
	if !o.Rate.IsPositive() {
		return nil, &Skip{ObligationID: o.ID, Subject: o.Subject, Reason: "missing or non-positive rate"}
	}
	if o.From.IsZero() {
		return nil, &Skip{ObligationID: o.ID, Subject: o.Subject, Reason: "missing active window"}
	}

	activeFrom, activeTo, ok := o.ActiveDuring(period)
	if !ok {
		return nil, &Skip{ObligationID: o.ID, Subject: o.Subject, Reason: "not active in period"}
	}

	baseAcct, ok := g.Chart.Lookup(g.Schedule.BaseIncomeAccount)
	if !ok {
		return nil, &Skip{ObligationID: o.ID, Subject: o.Subject, Reason: "income account not in chart"}
	}
	recvAcct, ok := g.Chart.Lookup(ledger.ReceivableFor(o.Subject))
	if !ok {
		return nil, &Skip{ObligationID: o.ID, Subject: o.Subject, Reason: "receivable sub-account unresolvable"}
	}

	// Base rate, prorated by elapsed days for partial first/last periods.
	base := o.Rate
	activeDays := ledger.DaysBetween(activeFrom, activeTo) + 1
	if activeDays < period.Days() {
		fraction := decimal.NewFromInt(int64(activeDays)).
			Div(decimal.NewFromInt(int64(period.Days())))
		base = o.Rate.Mul(fraction).Round(2)
	}

	fee := g.feeFor(o, period)

	total := base.Add(fee)
	entry := &ledger.LedgerEntry{
		Date:        period.End(),
		Description: fmt.Sprintf("Rent recognition %s for %s", period, o.Subject),
		Source:      ledger.SourceRentRecognition,
		Origin:      ledger.OriginRef{Kind: "obligation", ID: o.ID},
		Scope:       o.Scope,
		TotalDebit:  total,
		TotalCredit: total,
		Lines: []ledger.LedgerLine{
			ledger.DebitLine(recvAcct, total, period, "rent receivable"),
			ledger.CreditLine(baseAcct, base, period, "base rent"),
		},
		IdempotencyKey: IdempotencyKey(o.Subject, period, o.Kind),
	}
	entry.SetTag(ledger.TagCounterparty, string(o.Subject))

	if fee.IsPositive() {
		feeAcct, ok := g.Chart.Lookup(g.Schedule.FeeIncomeAccount)
		if !ok {
			return nil, &Skip{ObligationID: o.ID, Subject: o.Subject, Reason: "fee income account not in chart"}
		}
		entry.Lines = append(entry.Lines, ledger.CreditLine(feeAcct, fee, period, "one-time fee"))
	}

	return entry, nil
}

// feeFor returns the one-time fee recognized in this period: zero unless
// this is the obligation's first active period and the scope policy
// charges it.
func (g *Generator) feeFor(o Obligation, period ledger.PeriodKey) decimal.Decimal {
	if period != o.FirstPeriod() {
		return decimal.Zero
	}
	if g.Schedule.PolicyFor(o.Scope) == FeeWaived {
		return decimal.Zero
	}
	fee := o.OneTimeFee
	if fee.IsNegative() {
		fee = g.Schedule.DefaultOneTimeFee
	}
	if !fee.IsPositive() {
		return decimal.Zero
	}
	return fee
}
