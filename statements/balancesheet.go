package statements

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// BALANCE SHEET
// =============================================================================

// BalanceSheet builds the point-in-time position:
//
//	Assets      = cash/bank balances + signed receivable outstanding
//	Liabilities = liability-class account balances
//	Equity      = cumulative (income - expense) to date
//
// Cash balances are independent sub-aggregations dispatched
// concurrently and joined. The accounting equation is verified and any
// gap is reported in Check — the statement never fails on imbalance.
func (g *Generator) BalanceSheet(ctx context.Context, asOf ledger.Date, scope ledger.PropertyID) (BalanceSheet, error) {
	sheet := BalanceSheet{AsOf: asOf, Scope: scope}

	// Cash and bank, concurrently.
	cashBalances, err := g.Aggregator.Balances(ctx, g.CashAccounts, asOf, scope)
	if err != nil {
		return BalanceSheet{}, err
	}
	cash := newBreakdown()
	for _, code := range g.CashAccounts {
		acct, ok := g.Chart.Lookup(code)
		if !ok {
			continue
		}
		cash.add(code, acct.Name, cashBalances[code])
	}
	var cashTotal decimal.Decimal
	sheet.CashAndBank, cashTotal = cash.lines()

	// Receivables through period-stamp netting, not naive account sums.
	sheet.ReceivablesTotal, err = g.Aggregator.ReceivableTotal(ctx, asOf, scope)
	if err != nil {
		return BalanceSheet{}, err
	}
	sheet.TotalAssets = cashTotal.Add(sheet.ReceivablesTotal)

	// Liability-class accounts from the chart.
	liabilities := newBreakdown()
	for _, acct := range g.Chart.Accounts() {
		if acct.Class != ledger.ClassLiability {
			continue
		}
		bal, err := g.Aggregator.BalanceOf(ctx, acct.Code, asOf, scope)
		if err != nil {
			return BalanceSheet{}, err
		}
		if bal.IsZero() {
			continue
		}
		liabilities.add(acct.Code, acct.Name, bal)
	}
	sheet.Liabilities, sheet.TotalLiabilities = liabilities.lines()

	// Equity: replay all income/expense lines to date. No stored
	// retained-earnings balance to drift out of sync.
	sheet.Equity, err = g.cumulativeNetIncome(ctx, asOf, scope)
	if err != nil {
		return BalanceSheet{}, err
	}

	liabPlusEquity := sheet.TotalLiabilities.Add(sheet.Equity)
	diff := sheet.TotalAssets.Sub(liabPlusEquity)
	sheet.Check = BalanceCheck{
		AssetsTotal:           sheet.TotalAssets,
		LiabilitiesPlusEquity: liabPlusEquity,
		Difference:            diff,
		Balanced:              diff.Abs().LessThanOrEqual(ledger.Tolerance),
	}
	return sheet, nil
}

func (g *Generator) cumulativeNetIncome(ctx context.Context, asOf ledger.Date, scope ledger.PropertyID) (decimal.Decimal, error) {
	entries, err := g.Store.Query(ctx, ledger.Filter{
		Status: ledger.StatusPosted,
		Scope:  scope,
		To:     &asOf,
	})
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	for i := range entries {
		for _, l := range entries[i].Lines {
			switch l.AccountClass {
			case ledger.ClassIncome:
				net = net.Add(ledger.SignedBalance(l.AccountClass, l.Debit, l.Credit))
			case ledger.ClassExpense:
				net = net.Sub(ledger.SignedBalance(l.AccountClass, l.Debit, l.Credit))
			case ledger.ClassEquity:
				// Directly posted equity (owner contributions) counts too.
				net = net.Add(ledger.SignedBalance(l.AccountClass, l.Debit, l.Credit))
			}
		}
	}
	return net, nil
}
