/*
aggregate.go - Point-in-time balance aggregation

PURPOSE:
  Computes account balances and derived receivable positions by scanning
  posted entries. This is the read side every statement is built on:
  pure, deterministic, no state beyond the store itself, safe to call
  concurrently for independent codes.

SIGN RULE:
  A single classification-keyed table. Asset/Expense balances are
  debit - credit; Liability/Equity/Income balances are credit - debit.
  No per-account-code branching.

RECEIVABLE MATCHING:
  Outstanding receivables are recognized - settled per PERIOD STAMP, not
  per calendar date: a March rent payment received in May still settles
  March. Balances are signed; a tenant who has paid ahead shows a
  negative outstanding with CreditBalance set, never a clamped zero.
*/
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SIGN TABLE
// =============================================================================

// debitNormal maps each classification to its balance orientation.
var debitNormal = map[AccountClass]bool{
	ClassAsset:     true,
	ClassExpense:   true,
	ClassLiability: false,
	ClassEquity:    false,
	ClassIncome:    false,
}

// SignedBalance applies the classification sign rule to raw sums.
func SignedBalance(class AccountClass, debit, credit decimal.Decimal) decimal.Decimal {
	if debitNormal[class] {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes balances from the ledger snapshot at call time.
type Aggregator struct {
	Store Store
	Chart Registry
}

func NewAggregator(store Store, chart Registry) *Aggregator {
	return &Aggregator{Store: store, Chart: chart}
}

// BalanceOf returns the signed balance of one account code from posted
// entries dated on or before asOf, optionally restricted to a scope.
// For a control account code the balance includes all sub-accounts.
func (a *Aggregator) BalanceOf(ctx context.Context, code string, asOf Date, scope PropertyID) (decimal.Decimal, error) {
	acct, ok := a.Chart.Lookup(code)
	if !ok {
		return decimal.Zero, &ValidationError{Kind: UnknownAccount, Message: "balance query", AccountCode: code}
	}

	entries, err := a.Store.Query(ctx, Filter{
		To:            &asOf,
		Scope:         scope,
		Status:        StatusPosted,
		AccountPrefix: code,
	})
	if err != nil {
		return decimal.Zero, err
	}

	debit, credit := decimal.Zero, decimal.Zero
	for i := range entries {
		for _, l := range entries[i].Lines {
			if !matchesPrefix(l.AccountCode, code) {
				continue
			}
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
	}
	return SignedBalance(acct.Class, debit, credit), nil
}

// Balances computes several account balances concurrently and joins the
// results. Sub-aggregations are independent; no state is shared beyond
// the store.
func (a *Aggregator) Balances(ctx context.Context, codes []string, asOf Date, scope PropertyID) (map[string]decimal.Decimal, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	out := make(map[string]decimal.Decimal, len(codes))

	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			bal, err := a.BalanceOf(ctx, code, asOf, scope)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			out[code] = bal
		}(code)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// =============================================================================
// RECEIVABLE OUTSTANDING - Period-stamp matching, not account netting
// =============================================================================

// Outstanding is a subject's derived receivable position.
type Outstanding struct {
	Subject    TenantID
	Recognized decimal.Decimal
	Settled    decimal.Decimal
	Balance    decimal.Decimal // Recognized - Settled, signed

	// CreditBalance is set when settlements exceed recognition
	// (overpayment / paid ahead). The balance stays signed.
	CreditBalance bool
}

// PeriodOutstanding is one period's recognized-vs-settled position.
type PeriodOutstanding struct {
	Period      PeriodKey
	Recognized  decimal.Decimal
	Settled     decimal.Decimal
	Outstanding decimal.Decimal
}

// receivableLines returns posted lines on the subject's receivable
// sub-account. A zero asOf applies no date cutoff; an empty scope spans
// all properties.
func (a *Aggregator) receivableLines(ctx context.Context, subject TenantID, asOf Date, scope PropertyID) ([]LedgerLine, error) {
	code := ReceivableFor(subject)
	f := Filter{
		Status:      StatusPosted,
		Scope:       scope,
		AccountCode: code,
	}
	if !asOf.IsZero() {
		f.To = &asOf
	}
	entries, err := a.Store.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	var lines []LedgerLine
	for i := range entries {
		for _, l := range entries[i].Lines {
			if l.AccountCode == code {
				lines = append(lines, l)
			}
		}
	}
	return lines, nil
}

// ReceivableOutstanding computes a subject's signed outstanding balance
// as recognized total minus settled total, using the period stamps on
// receivable lines. A non-empty scope restricts to entries on that
// property; empty spans the subject's whole position.
func (a *Aggregator) ReceivableOutstanding(ctx context.Context, subject TenantID, asOf Date, scope PropertyID) (Outstanding, error) {
	lines, err := a.receivableLines(ctx, subject, asOf, scope)
	if err != nil {
		return Outstanding{}, err
	}

	recognized, settled := decimal.Zero, decimal.Zero
	for _, l := range lines {
		recognized = recognized.Add(l.Debit)
		settled = settled.Add(l.Credit)
	}

	balance := recognized.Sub(settled)
	return Outstanding{
		Subject:       subject,
		Recognized:    recognized,
		Settled:       settled,
		Balance:       balance,
		CreditBalance: balance.IsNegative(),
	}, nil
}

// OutstandingByPeriod returns the subject's per-period positions,
// oldest period first. The payment allocator walks this order with a
// zero asOf: what is owed is defined by period stamps, not by when the
// recognition entry happened to be dated.
func (a *Aggregator) OutstandingByPeriod(ctx context.Context, subject TenantID, asOf Date, scope PropertyID) ([]PeriodOutstanding, error) {
	lines, err := a.receivableLines(ctx, subject, asOf, scope)
	if err != nil {
		return nil, err
	}

	type sums struct{ recognized, settled decimal.Decimal }
	byPeriod := make(map[PeriodKey]*sums)
	for _, l := range lines {
		s, ok := byPeriod[l.Period]
		if !ok {
			s = &sums{recognized: decimal.Zero, settled: decimal.Zero}
			byPeriod[l.Period] = s
		}
		s.recognized = s.recognized.Add(l.Debit)
		s.settled = s.settled.Add(l.Credit)
	}

	periods := make([]PeriodKey, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	out := make([]PeriodOutstanding, 0, len(periods))
	for _, p := range periods {
		s := byPeriod[p]
		out = append(out, PeriodOutstanding{
			Period:      p,
			Recognized:  s.recognized,
			Settled:     s.settled,
			Outstanding: s.recognized.Sub(s.settled),
		})
	}
	return out, nil
}

// =============================================================================
// DISCOVERY - Subjects and scopes present in the ledger
// =============================================================================

// Subjects lists tenants with receivable activity on or before asOf,
// optionally restricted to a scope.
func (a *Aggregator) Subjects(ctx context.Context, asOf Date, scope PropertyID) ([]TenantID, error) {
	entries, err := a.Store.Query(ctx, Filter{
		To:            &asOf,
		Scope:         scope,
		Status:        StatusPosted,
		AccountPrefix: AcctRentReceivable,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[TenantID]bool)
	var subjects []TenantID
	for i := range entries {
		for _, l := range entries[i].Lines {
			tenant, ok := TenantOfReceivable(l.AccountCode)
			if !ok || seen[tenant] {
				continue
			}
			seen[tenant] = true
			subjects = append(subjects, tenant)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })
	return subjects, nil
}

// Scopes lists properties referenced by posted entries.
func (a *Aggregator) Scopes(ctx context.Context) ([]PropertyID, error) {
	entries, err := a.Store.Query(ctx, Filter{Status: StatusPosted})
	if err != nil {
		return nil, err
	}
	seen := make(map[PropertyID]bool)
	var scopes []PropertyID
	for i := range entries {
		if entries[i].Scope == "" || seen[entries[i].Scope] {
			continue
		}
		seen[entries[i].Scope] = true
		scopes = append(scopes, entries[i].Scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes, nil
}

// ReceivableTotal sums signed outstanding across all subjects in scope.
// Used by the balance sheet's asset section.
func (a *Aggregator) ReceivableTotal(ctx context.Context, asOf Date, scope PropertyID) (decimal.Decimal, error) {
	subjects, err := a.Subjects(ctx, asOf, scope)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, subject := range subjects {
		o, err := a.ReceivableOutstanding(ctx, subject, asOf, scope)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(o.Balance)
	}
	return total, nil
}
