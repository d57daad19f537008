package statements_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthstay/rentledger/allocation"
	"github.com/hearthstay/rentledger/ledger"
	"github.com/hearthstay/rentledger/ledger/store"
	"github.com/hearthstay/rentledger/statements"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	ledger     *ledger.Ledger
	aggregator *ledger.Aggregator
	allocator  *allocation.Allocator
	statements *statements.Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chart := ledger.DefaultChart()
	lgr := ledger.New(store.NewMemory(), chart)
	agg := ledger.NewAggregator(lgr.Store, chart)
	return &fixture{
		ledger:     lgr,
		aggregator: agg,
		allocator:  allocation.NewAllocator(lgr, agg, chart),
		statements: statements.NewGenerator(lgr.Store, agg, chart),
	}
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// recognize posts a base-rent plus fee recognition for one period. The
// entry is dated on the given posting date, which may be far from the
// stamped period.
func (f *fixture) recognize(t *testing.T, tenant ledger.TenantID, scope ledger.PropertyID, period ledger.PeriodKey, base, fee float64, postedOn ledger.Date) {
	t.Helper()
	chart := ledger.DefaultChart()
	recv, _ := chart.Lookup(ledger.ReceivableFor(tenant))
	income, _ := chart.Lookup(ledger.AcctRentIncome)
	feeAcct, _ := chart.Lookup(ledger.AcctFeeIncome)

	lines := []ledger.LedgerLine{
		ledger.DebitLine(recv, dec(base+fee), period, ""),
		ledger.CreditLine(income, dec(base), period, ""),
	}
	if fee > 0 {
		lines = append(lines, ledger.CreditLine(feeAcct, dec(fee), period, ""))
	}
	e := ledger.LedgerEntry{
		Date:   postedOn,
		Source: ledger.SourceRentRecognition,
		Scope:  scope,
		Lines:  lines,
	}
	e.SetTag(ledger.TagCounterparty, string(tenant))
	_, err := f.ledger.Post(context.Background(), e)
	require.NoError(t, err)
}

func (f *fixture) pay(t *testing.T, tenant ledger.TenantID, scope ledger.PropertyID, v float64, on ledger.Date) {
	t.Helper()
	_, err := f.allocator.Allocate(context.Background(), allocation.Receipt{
		ID:         "rcpt-" + string(tenant),
		Subject:    tenant,
		Scope:      scope,
		Amount:     dec(v),
		ReceivedAt: on,
	})
	require.NoError(t, err)
}

func (f *fixture) spend(t *testing.T, scope ledger.PropertyID, account string, kind string, v float64, on ledger.Date) ledger.LedgerEntry {
	t.Helper()
	chart := ledger.DefaultChart()
	expense, _ := chart.Lookup(account)
	cash, _ := chart.Lookup(ledger.AcctCash)

	e := ledger.LedgerEntry{
		Date:   on,
		Source: ledger.SourceExpensePayment,
		Scope:  scope,
		Lines: []ledger.LedgerLine{
			ledger.DebitLine(expense, dec(v), ledger.PeriodOf(on), ""),
			ledger.CreditLine(cash, dec(v), ledger.PeriodOf(on), ""),
		},
	}
	e.SetTag(ledger.TagPaymentKind, kind)
	posted, err := f.ledger.Post(context.Background(), e)
	require.NoError(t, err)
	return posted
}

// =============================================================================
// INCOME STATEMENT TESTS
// =============================================================================

func TestIncomeStatement_AccrualMatchesPeriodStamp(t *testing.T) {
	// A June recognition posted in August still lands in June's report.
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "prop-maple", "2026-06", 200, 20, ledger.NewDate(2026, time.August, 3))
	f.recognize(t, "T-001", "prop-maple", "2026-07", 200, 0, ledger.NewDate(2026, time.July, 31))

	stmt, err := f.statements.IncomeStatement(ctx, "2026-06", statements.BasisAccrual, "")
	require.NoError(t, err)

	assert.True(t, stmt.TotalRevenue.Equal(dec(220)), "revenue %s", stmt.TotalRevenue)
	require.Len(t, stmt.Revenue, 2)
	assert.Equal(t, ledger.AcctRentIncome, stmt.Revenue[0].Key)
	assert.True(t, stmt.Revenue[0].Amount.Equal(dec(200)))
	assert.Equal(t, ledger.AcctFeeIncome, stmt.Revenue[1].Key)
	assert.True(t, stmt.Revenue[1].Amount.Equal(dec(20)))
	assert.True(t, stmt.NetIncome.Equal(dec(220)))
}

func TestIncomeStatement_AccrualExpensesByPeriod(t *testing.T) {
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.spend(t, "prop-maple", ledger.AcctMaintenance, "repairs", 150, ledger.NewDate(2026, time.June, 12))

	stmt, err := f.statements.IncomeStatement(context.Background(), "2026-06", statements.BasisAccrual, "")
	require.NoError(t, err)
	assert.True(t, stmt.TotalExpenses.Equal(dec(150)))
	assert.True(t, stmt.NetIncome.Equal(dec(450)))
}

func TestIncomeStatement_CashBasisByPaymentKind(t *testing.T) {
	// Cash basis counts money moved in the period, keyed by payment kind.
	// The March receipt settles a January debt; it is still March revenue.
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-01", 600, 0, ledger.NewDate(2026, time.January, 31))
	f.pay(t, "T-001", "prop-maple", 600, ledger.NewDate(2026, time.March, 4))
	f.spend(t, "prop-maple", ledger.AcctUtilities, "utilities", 90, ledger.NewDate(2026, time.March, 15))

	stmt, err := f.statements.IncomeStatement(context.Background(), "2026-03", statements.BasisCash, "")
	require.NoError(t, err)

	require.Len(t, stmt.Revenue, 1)
	assert.Equal(t, "rent", stmt.Revenue[0].Key)
	assert.True(t, stmt.Revenue[0].Amount.Equal(dec(600)))
	require.Len(t, stmt.Expenses, 1)
	assert.Equal(t, "utilities", stmt.Expenses[0].Key)
	assert.True(t, stmt.Expenses[0].Amount.Equal(dec(90)))
	assert.True(t, stmt.NetIncome.Equal(dec(510)))

	// Accrual view of the same month sees neither.
	accrual, err := f.statements.IncomeStatement(context.Background(), "2026-01", statements.BasisAccrual, "")
	require.NoError(t, err)
	assert.True(t, accrual.TotalRevenue.Equal(dec(600)))
}

func TestIncomeStatement_CashBasisNetsReversedReceipt(t *testing.T) {
	// A receipt posted in error and reversed leaves no cash revenue.
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "prop-maple", "2026-03", 600, 0, ledger.NewDate(2026, time.March, 31))

	result, err := f.allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-err",
		Subject:    "T-001",
		Scope:      "prop-maple",
		Amount:     dec(600),
		ReceivedAt: ledger.NewDate(2026, time.March, 10),
	})
	require.NoError(t, err)
	_, err = f.ledger.Reverse(ctx, result.Entry.ID, "misapplied receipt")
	require.NoError(t, err)

	stmt, err := f.statements.IncomeStatement(ctx, "2026-03", statements.BasisCash, "")
	require.NoError(t, err)
	assert.True(t, stmt.TotalRevenue.IsZero(), "revenue %s", stmt.TotalRevenue)
	assert.True(t, stmt.NetIncome.IsZero())
}

func TestIncomeStatement_CashBasisNetsReversedExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	posted := f.spend(t, "prop-maple", ledger.AcctUtilities, "utilities", 90, ledger.NewDate(2026, time.March, 15))
	_, err := f.ledger.Reverse(ctx, posted.ID, "duplicate invoice")
	require.NoError(t, err)

	stmt, err := f.statements.IncomeStatement(ctx, "2026-03", statements.BasisCash, "")
	require.NoError(t, err)
	assert.True(t, stmt.TotalExpenses.IsZero(), "expenses %s", stmt.TotalExpenses)
}

func TestIncomeStatement_UnknownBasisRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.statements.IncomeStatement(context.Background(), "2026-03", statements.Basis("modified"), "")
	assert.Error(t, err)
}

func TestIncomeStatement_ScopeFilter(t *testing.T) {
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.recognize(t, "T-002", "prop-birch", "2026-06", 720, 0, ledger.NewDate(2026, time.June, 30))

	stmt, err := f.statements.IncomeStatement(context.Background(), "2026-06", statements.BasisAccrual, "prop-maple")
	require.NoError(t, err)
	assert.True(t, stmt.TotalRevenue.Equal(dec(600)))
}

// =============================================================================
// CASH FLOW TESTS
// =============================================================================

func TestCashFlow_NetChange(t *testing.T) {
	// 600 in, 540 out within the month: net +60.
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-001", "prop-maple", 600, ledger.NewDate(2026, time.July, 2))
	f.spend(t, "prop-maple", ledger.AcctMaintenance, "repairs", 540, ledger.NewDate(2026, time.July, 20))

	stmt, err := f.statements.CashFlow(context.Background(), "2026-07", "")
	require.NoError(t, err)

	assert.True(t, stmt.Operating.Inflow.Equal(dec(600)))
	assert.True(t, stmt.Operating.Outflow.Equal(dec(540)))
	assert.True(t, stmt.NetChange.Equal(dec(60)))
	assert.True(t, stmt.Investing.Net.IsZero())
	assert.True(t, stmt.Financing.Net.IsZero())
}

func TestCashFlow_ReversedReceiptNetsToZero(t *testing.T) {
	// The reversal's cash credit offsets the receipt's debit.
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))

	result, err := f.allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-err",
		Subject:    "T-001",
		Scope:      "prop-maple",
		Amount:     dec(600),
		ReceivedAt: ledger.NewDate(2026, time.July, 2),
	})
	require.NoError(t, err)
	_, err = f.ledger.Reverse(ctx, result.Entry.ID, "")
	require.NoError(t, err)

	stmt, err := f.statements.CashFlow(ctx, "2026-07", "")
	require.NoError(t, err)
	assert.True(t, stmt.Operating.Inflow.Equal(dec(600)))
	assert.True(t, stmt.Operating.Outflow.Equal(dec(600)))
	assert.True(t, stmt.NetChange.IsZero())
}

func TestCashFlow_OutsidePeriodExcluded(t *testing.T) {
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-001", "prop-maple", 600, ledger.NewDate(2026, time.July, 2))

	stmt, err := f.statements.CashFlow(context.Background(), "2026-06", "")
	require.NoError(t, err)
	assert.True(t, stmt.NetChange.IsZero())
}

// =============================================================================
// BALANCE SHEET TESTS
// =============================================================================

func TestBalanceSheet_EquationHolds(t *testing.T) {
	// 600 recognized, 400 paid: cash 400, receivable 200, equity 600.
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-001", "prop-maple", 400, ledger.NewDate(2026, time.July, 3))

	sheet, err := f.statements.BalanceSheet(context.Background(), ledger.NewDate(2026, time.July, 31), "")
	require.NoError(t, err)

	assert.True(t, sheet.ReceivablesTotal.Equal(dec(200)))
	assert.True(t, sheet.TotalAssets.Equal(dec(600)))
	assert.True(t, sheet.TotalLiabilities.IsZero())
	assert.True(t, sheet.Equity.Equal(dec(600)))
	assert.True(t, sheet.Check.Balanced)
	assert.True(t, sheet.Check.Difference.IsZero())
}

func TestBalanceSheet_OverpaymentShowsAsLiability(t *testing.T) {
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-001", "prop-maple", 800, ledger.NewDate(2026, time.July, 3))

	sheet, err := f.statements.BalanceSheet(context.Background(), ledger.NewDate(2026, time.July, 31), "")
	require.NoError(t, err)

	require.Len(t, sheet.Liabilities, 1)
	assert.Equal(t, ledger.AcctTenantAdvances, sheet.Liabilities[0].Key)
	assert.True(t, sheet.TotalLiabilities.Equal(dec(200)))
	assert.True(t, sheet.ReceivablesTotal.IsZero())
	assert.True(t, sheet.Check.Balanced)
}

// =============================================================================
// ARREARS TESTS
// =============================================================================

func TestArrearsFor_Subject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "prop-maple", "2026-05", 600, 0, ledger.NewDate(2026, time.May, 31))
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-001", "prop-maple", 600, ledger.NewDate(2026, time.June, 1))

	snap, err := f.statements.ArrearsFor(ctx, "T-001", ledger.NewDate(2026, time.July, 1))
	require.NoError(t, err)
	assert.True(t, snap.TotalRecognized.Equal(dec(1200)))
	assert.True(t, snap.TotalSettled.Equal(dec(600)))
	assert.True(t, snap.Outstanding.Equal(dec(600)))
	assert.True(t, snap.InArrears)
	assert.False(t, snap.CreditBalance)
}

func TestArrearsFor_PaidAheadNotInArrears(t *testing.T) {
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-001", "prop-maple", 600, ledger.NewDate(2026, time.July, 1))

	snap, err := f.statements.ArrearsFor(context.Background(), "T-001", ledger.NewDate(2026, time.July, 1))
	require.NoError(t, err)
	assert.True(t, snap.Outstanding.IsZero())
	assert.False(t, snap.InArrears)
}

func TestArrearsFor_UnknownSubject(t *testing.T) {
	f := newFixture(t)
	_, err := f.statements.ArrearsFor(context.Background(), "T-404", ledger.Today())
	assert.True(t, errors.Is(err, ledger.ErrSubjectNotFound))
}

func TestArrearsForScope_Aggregates(t *testing.T) {
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.recognize(t, "T-002", "prop-maple", "2026-06", 720, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-002", "prop-maple", 720, ledger.NewDate(2026, time.July, 1))

	snap, err := f.statements.ArrearsForScope(context.Background(), "prop-maple", ledger.NewDate(2026, time.July, 31))
	require.NoError(t, err)
	assert.True(t, snap.TotalRecognized.Equal(dec(1320)))
	assert.True(t, snap.Outstanding.Equal(dec(600)))
	assert.True(t, snap.InArrears)
}

func TestArrearsForScope_ExcludesOtherProperties(t *testing.T) {
	// One tenant owes in two properties; each scope sees only its own.
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.recognize(t, "T-001", "prop-birch", "2026-06", 400, 0, ledger.NewDate(2026, time.June, 30))

	snap, err := f.statements.ArrearsForScope(context.Background(), "prop-maple", ledger.NewDate(2026, time.July, 31))
	require.NoError(t, err)
	assert.True(t, snap.TotalRecognized.Equal(dec(600)), "recognized %s", snap.TotalRecognized)
	assert.True(t, snap.Outstanding.Equal(dec(600)))
}

func TestArrearsForScope_UnknownScope(t *testing.T) {
	f := newFixture(t)
	_, err := f.statements.ArrearsForScope(context.Background(), "prop-404", ledger.Today())
	assert.True(t, errors.Is(err, ledger.ErrScopeNotFound))
}

func TestPortfolioArrears_SweepsScopes(t *testing.T) {
	f := newFixture(t)
	f.recognize(t, "T-001", "prop-maple", "2026-06", 600, 0, ledger.NewDate(2026, time.June, 30))
	f.recognize(t, "T-002", "prop-birch", "2026-06", 720, 0, ledger.NewDate(2026, time.June, 30))
	f.recognize(t, "T-003", "prop-birch", "2026-06", 500, 0, ledger.NewDate(2026, time.June, 30))
	f.pay(t, "T-003", "prop-birch", 500, ledger.NewDate(2026, time.July, 1))

	report, err := f.statements.PortfolioArrears(context.Background(), ledger.NewDate(2026, time.July, 31))
	require.NoError(t, err)

	require.Len(t, report.Scopes, 2)
	assert.Equal(t, 2, report.SubjectsInArrears)
	assert.True(t, report.TotalOutstanding.Equal(dec(1320)))

	byScope := map[ledger.PropertyID]statements.ScopeArrears{}
	for _, s := range report.Scopes {
		byScope[s.Scope] = s
	}
	assert.Equal(t, 1, byScope["prop-maple"].SubjectsInArrears)
	assert.True(t, byScope["prop-birch"].Outstanding.Equal(dec(720)))
}
