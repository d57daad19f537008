package statements

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// CASH FLOW STATEMENT
// =============================================================================

// CashFlow builds the cash movement report for one period: operating
// inflow and outflow across the designated cash/bank accounts within
// the period's calendar dates.
//
// Investing and Financing are structural placeholders and always zero:
// classifying capital/financing transactions needs an explicit rule
// that does not exist yet.
func (g *Generator) CashFlow(ctx context.Context, period ledger.PeriodKey, scope ledger.PropertyID) (CashFlowStatement, error) {
	from, to := period.Start(), period.End()
	entries, err := g.Store.Query(ctx, ledger.Filter{
		Status: ledger.StatusPosted,
		Scope:  scope,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return CashFlowStatement{}, err
	}

	inflow, outflow := decimal.Zero, decimal.Zero
	for i := range entries {
		for _, l := range entries[i].Lines {
			if !g.isCashAccount(l.AccountCode) {
				continue
			}
			inflow = inflow.Add(l.Debit)
			outflow = outflow.Add(l.Credit)
		}
	}

	operating := CashFlowSection{
		Inflow:  inflow,
		Outflow: outflow,
		Net:     inflow.Sub(outflow),
	}
	zero := CashFlowSection{Inflow: decimal.Zero, Outflow: decimal.Zero, Net: decimal.Zero}

	return CashFlowStatement{
		Period:    period,
		Scope:     scope,
		Operating: operating,
		Investing: zero,
		Financing: zero,
		NetChange: operating.Net,
	}, nil
}
