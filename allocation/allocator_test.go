package allocation_test

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
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	ledger     *ledger.Ledger
	aggregator *ledger.Aggregator
	allocator  *allocation.Allocator
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
	}
}

// recognize posts a rent recognition for the tenant and period.
func (f *fixture) recognize(t *testing.T, tenant ledger.TenantID, period ledger.PeriodKey, v float64) {
	f.recognizeIn(t, tenant, "", period, v)
}

func (f *fixture) recognizeIn(t *testing.T, tenant ledger.TenantID, scope ledger.PropertyID, period ledger.PeriodKey, v float64) {
	t.Helper()
	chart := ledger.DefaultChart()
	recv, _ := chart.Lookup(ledger.ReceivableFor(tenant))
	income, _ := chart.Lookup(ledger.AcctRentIncome)

	e := ledger.LedgerEntry{
		Date:   period.End(),
		Source: ledger.SourceRentRecognition,
		Scope:  scope,
		Lines: []ledger.LedgerLine{
			ledger.DebitLine(recv, decimal.NewFromFloat(v), period, ""),
			ledger.CreditLine(income, decimal.NewFromFloat(v), period, ""),
		},
	}
	e.SetTag(ledger.TagCounterparty, string(tenant))
	_, err := f.ledger.Post(context.Background(), e)
	require.NoError(t, err)
}

// =============================================================================
// OLDEST-FIRST ALLOCATION TESTS
// =============================================================================

func TestAllocate_OldestPeriodFirst(t *testing.T) {
	// Three months of rent outstanding; a payment covering one and a half
	// months settles March fully and half of April, May untouched.
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "2026-03", 600)
	f.recognize(t, "T-001", "2026-04", 600)
	f.recognize(t, "T-001", "2026-05", 600)

	result, err := f.allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-1",
		Subject:    "T-001",
		Amount:     decimal.NewFromFloat(900),
		ReceivedAt: ledger.NewDate(2026, time.May, 10),
	})
	require.NoError(t, err)

	require.Len(t, result.Settled, 2)
	assert.Equal(t, ledger.PeriodKey("2026-03"), result.Settled[0].Period)
	assert.True(t, result.Settled[0].Applied.Equal(decimal.NewFromFloat(600)))
	assert.True(t, result.Settled[0].Remaining.IsZero())
	assert.Equal(t, ledger.PeriodKey("2026-04"), result.Settled[1].Period)
	assert.True(t, result.Settled[1].Applied.Equal(decimal.NewFromFloat(300)))
	assert.True(t, result.Settled[1].Remaining.Equal(decimal.NewFromFloat(300)))
	assert.True(t, result.Unallocated.IsZero())

	// Credit lines carry the settled periods' stamps, not the receipt's.
	require.Len(t, result.Entry.Lines, 3)
	assert.Equal(t, ledger.PeriodKey("2026-05"), result.Entry.Lines[0].Period)
	assert.Equal(t, ledger.PeriodKey("2026-03"), result.Entry.Lines[1].Period)
	assert.Equal(t, ledger.PeriodKey("2026-04"), result.Entry.Lines[2].Period)

	periods, err := f.aggregator.OutstandingByPeriod(ctx, "T-001", ledger.Today(), "")
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.True(t, periods[0].Outstanding.IsZero())
	assert.True(t, periods[1].Outstanding.Equal(decimal.NewFromFloat(300)))
	assert.True(t, periods[2].Outstanding.Equal(decimal.NewFromFloat(600)))
}

func TestAllocate_LatePaymentSettlesOldPeriod(t *testing.T) {
	// A May payment against a March debt settles March by period stamp.
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "2026-03", 600)

	result, err := f.allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-1",
		Subject:    "T-001",
		Amount:     decimal.NewFromFloat(600),
		ReceivedAt: ledger.NewDate(2026, time.May, 2),
	})
	require.NoError(t, err)
	require.Len(t, result.Settled, 1)
	assert.Equal(t, ledger.PeriodKey("2026-03"), result.Settled[0].Period)

	o, err := f.aggregator.ReceivableOutstanding(ctx, "T-001", ledger.Today(), "")
	require.NoError(t, err)
	assert.True(t, o.Balance.IsZero())
}

func TestAllocate_MidMonthReceiptSettlesMonthEndRecognition(t *testing.T) {
	// Recognition entries are dated at period end; a receipt arriving
	// earlier in the month must still settle the period instead of
	// sliding into the advance account.
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "2026-03", 600)

	result, err := f.allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-1",
		Subject:    "T-001",
		Amount:     decimal.NewFromFloat(600),
		ReceivedAt: ledger.NewDate(2026, time.March, 15),
	})
	require.NoError(t, err)

	require.Len(t, result.Settled, 1)
	assert.Equal(t, ledger.PeriodKey("2026-03"), result.Settled[0].Period)
	assert.True(t, result.Unallocated.IsZero())

	o, err := f.aggregator.ReceivableOutstanding(ctx, "T-001", ledger.Today(), "")
	require.NoError(t, err)
	assert.True(t, o.Balance.IsZero())
}

func TestAllocate_ScopedReceiptSettlesOnlyThatProperty(t *testing.T) {
	// The same tenant owes rent in two properties; a receipt carrying a
	// scope settles only that property's periods.
	f := newFixture(t)
	ctx := context.Background()
	f.recognizeIn(t, "T-001", "prop-maple", "2026-03", 600)
	f.recognizeIn(t, "T-001", "prop-birch", "2026-03", 400)

	result, err := f.allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-1",
		Subject:    "T-001",
		Scope:      "prop-maple",
		Amount:     decimal.NewFromFloat(600),
		ReceivedAt: ledger.NewDate(2026, time.April, 1),
	})
	require.NoError(t, err)
	require.Len(t, result.Settled, 1)
	assert.True(t, result.Settled[0].Applied.Equal(decimal.NewFromFloat(600)))
	assert.True(t, result.Unallocated.IsZero())

	o, err := f.aggregator.ReceivableOutstanding(ctx, "T-001", ledger.Today(), "prop-birch")
	require.NoError(t, err)
	assert.True(t, o.Balance.Equal(decimal.NewFromFloat(400)), "other property untouched, got %s", o.Balance)
}

// =============================================================================
// OVERPAYMENT TESTS
// =============================================================================

func TestAllocate_OverpaymentHeldAsAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.recognize(t, "T-001", "2026-03", 600)

	result, err := f.allocator.Allocate(ctx, allocation.Receipt{
		ID:         "rcpt-1",
		Subject:    "T-001",
		Amount:     decimal.NewFromFloat(800),
		ReceivedAt: ledger.NewDate(2026, time.March, 28),
	})
	require.NoError(t, err)
	assert.True(t, result.Unallocated.Equal(decimal.NewFromFloat(200)))

	// Advance sits on the liability account, not as a clamped receivable.
	advance, err := f.aggregator.BalanceOf(ctx, ledger.AcctTenantAdvances, ledger.Today(), "")
	require.NoError(t, err)
	assert.True(t, advance.Equal(decimal.NewFromFloat(200)))

	last := result.Entry.Lines[len(result.Entry.Lines)-1]
	assert.Equal(t, ledger.AcctTenantAdvances, last.AccountCode)
	assert.True(t, last.Credit.Equal(decimal.NewFromFloat(200)))
}

func TestAllocate_NoOutstanding_FullAmountToAdvance(t *testing.T) {
	f := newFixture(t)

	result, err := f.allocator.Allocate(context.Background(), allocation.Receipt{
		ID:         "rcpt-1",
		Subject:    "T-001",
		Amount:     decimal.NewFromFloat(500),
		ReceivedAt: ledger.NewDate(2026, time.March, 5),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Settled)
	assert.True(t, result.Unallocated.Equal(decimal.NewFromFloat(500)))
	assert.True(t, result.Entry.Balanced())
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestAllocate_NonPositiveAmountRejected(t *testing.T) {
	f := newFixture(t)

	for _, v := range []float64{0, -50} {
		_, err := f.allocator.Allocate(context.Background(), allocation.Receipt{
			ID:         "rcpt-1",
			Subject:    "T-001",
			Amount:     decimal.NewFromFloat(v),
			ReceivedAt: ledger.Today(),
		})
		assert.True(t, ledger.IsValidation(err), "amount %v: got %v", v, err)
	}
}

func TestAllocate_EmptySubjectRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.allocator.Allocate(context.Background(), allocation.Receipt{
		ID:         "rcpt-1",
		Amount:     decimal.NewFromFloat(100),
		ReceivedAt: ledger.Today(),
	})
	assert.True(t, errors.Is(err, ledger.ErrSubjectNotFound))
}
