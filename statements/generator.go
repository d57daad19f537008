package statements

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// GENERATOR - Shared dependencies for all statements
// =============================================================================

// Generator produces statements from the ledger. Stateless: every call
// rescans matching entries, so a posting concurrent with an in-flight
// report may yield a transiently inconsistent snapshot (reports are
// read-committed-per-query).
type Generator struct {
	Store      ledger.Store
	Aggregator *ledger.Aggregator
	Chart      ledger.Registry

	// CashAccounts are the designated cash/bank codes the balance sheet
	// and cash-flow statement sweep. Default-chart codes when empty.
	CashAccounts []string
}

func NewGenerator(store ledger.Store, agg *ledger.Aggregator, chart ledger.Registry) *Generator {
	return &Generator{
		Store:        store,
		Aggregator:   agg,
		Chart:        chart,
		CashAccounts: []string{ledger.AcctCash, ledger.AcctBank},
	}
}

func (g *Generator) isCashAccount(code string) bool {
	for _, c := range g.CashAccounts {
		if c == code {
			return true
		}
	}
	return false
}

// breakdown accumulates keyed amounts and renders them in key order.
type breakdown struct {
	amounts map[string]decimal.Decimal
	labels  map[string]string
}

func newBreakdown() *breakdown {
	return &breakdown{amounts: map[string]decimal.Decimal{}, labels: map[string]string{}}
}

func (b *breakdown) add(key, label string, amount decimal.Decimal) {
	if cur, ok := b.amounts[key]; ok {
		b.amounts[key] = cur.Add(amount)
	} else {
		b.amounts[key] = amount
		b.labels[key] = label
	}
}

func (b *breakdown) lines() ([]BreakdownLine, decimal.Decimal) {
	keys := make([]string, 0, len(b.amounts))
	for k := range b.amounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := decimal.Zero
	out := make([]BreakdownLine, 0, len(keys))
	for _, k := range keys {
		out = append(out, BreakdownLine{Key: k, Label: b.labels[k], Amount: b.amounts[k]})
		total = total.Add(b.amounts[k])
	}
	return out, total
}
