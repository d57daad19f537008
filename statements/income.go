package statements

import (
	"context"
	"fmt"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// INCOME STATEMENT
// =============================================================================

// IncomeStatement builds the revenue/expense report for one period.
//
// Accrual basis: sums Income/Expense-class lines whose period stamp
// equals the target period, regardless of posting date — a recognition
// posted late still lands in its period.
//
// Cash basis: sums the cash-account movement of cash-receipt and
// expense-payment entries whose accounting date falls within the
// period, broken down by payment kind. Reversals of those entries net
// against the originals under the original's kind.
func (g *Generator) IncomeStatement(ctx context.Context, period ledger.PeriodKey, basis Basis, scope ledger.PropertyID) (IncomeStatement, error) {
	switch basis {
	case BasisCash:
		return g.cashIncomeStatement(ctx, period, scope)
	case BasisAccrual, "":
		return g.accrualIncomeStatement(ctx, period, scope)
	default:
		return IncomeStatement{}, fmt.Errorf("%w: unknown basis %q", ledger.ErrInvalidPeriod, basis)
	}
}

func (g *Generator) accrualIncomeStatement(ctx context.Context, period ledger.PeriodKey, scope ledger.PropertyID) (IncomeStatement, error) {
	entries, err := g.Store.Query(ctx, ledger.Filter{
		Status:     ledger.StatusPosted,
		Scope:      scope,
		LinePeriod: period,
	})
	if err != nil {
		return IncomeStatement{}, err
	}

	revenue, expenses := newBreakdown(), newBreakdown()
	for i := range entries {
		for _, l := range entries[i].Lines {
			if l.Period != period {
				continue
			}
			switch l.AccountClass {
			case ledger.ClassIncome:
				revenue.add(l.AccountCode, l.AccountName, ledger.SignedBalance(l.AccountClass, l.Debit, l.Credit))
			case ledger.ClassExpense:
				expenses.add(l.AccountCode, l.AccountName, ledger.SignedBalance(l.AccountClass, l.Debit, l.Credit))
			}
		}
	}

	stmt := IncomeStatement{Period: period, Basis: BasisAccrual, Scope: scope}
	stmt.Revenue, stmt.TotalRevenue = revenue.lines()
	stmt.Expenses, stmt.TotalExpenses = expenses.lines()
	stmt.NetIncome = stmt.TotalRevenue.Sub(stmt.TotalExpenses)
	return stmt, nil
}

func (g *Generator) cashIncomeStatement(ctx context.Context, period ledger.PeriodKey, scope ledger.PropertyID) (IncomeStatement, error) {
	from, to := period.Start(), period.End()
	entries, err := g.Store.Query(ctx, ledger.Filter{
		Status: ledger.StatusPosted,
		Scope:  scope,
		From:   &from,
		To:     &to,
		Sources: []ledger.SourceKind{
			ledger.SourceCashReceipt,
			ledger.SourceExpensePayment,
			ledger.SourceReversal,
		},
	})
	if err != nil {
		return IncomeStatement{}, err
	}

	revenue, expenses := newBreakdown(), newBreakdown()
	for i := range entries {
		e := &entries[i]
		source := e.Source
		kind := e.Tag(ledger.TagPaymentKind)

		// A reversal is classified by the entry it undoes; its swapped
		// lines carry the negative cash movement and net the original
		// out of the report.
		if source == ledger.SourceReversal {
			orig, err := g.reversedOriginal(ctx, e)
			if err != nil {
				return IncomeStatement{}, err
			}
			source = orig.Source
			kind = orig.Tag(ledger.TagPaymentKind)
		}
		if kind == "" {
			kind = string(source)
		}

		for _, l := range e.Lines {
			if !g.isCashAccount(l.AccountCode) {
				continue
			}
			switch source {
			case ledger.SourceCashReceipt:
				// Cash in = revenue on a cash basis.
				revenue.add(kind, kind, l.Debit.Sub(l.Credit))
			case ledger.SourceExpensePayment:
				// Cash out = expense on a cash basis.
				expenses.add(kind, kind, l.Credit.Sub(l.Debit))
			}
		}
	}

	stmt := IncomeStatement{Period: period, Basis: BasisCash, Scope: scope}
	stmt.Revenue, stmt.TotalRevenue = revenue.lines()
	stmt.Expenses, stmt.TotalExpenses = expenses.lines()
	stmt.NetIncome = stmt.TotalRevenue.Sub(stmt.TotalExpenses)
	return stmt, nil
}

// reversedOriginal loads the entry a reversal undoes.
func (g *Generator) reversedOriginal(ctx context.Context, e *ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	ref := e.Tag(ledger.TagReversedFrom)
	if ref == "" {
		ref = e.Origin.ID
	}
	orig, err := g.Store.Get(ctx, ref)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("resolve reversal %s: %w", e.ID, err)
	}
	return orig, nil
}
