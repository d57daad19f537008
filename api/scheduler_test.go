package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/api"
	"github.com/hearthstay/rentledger/ledger"
	"github.com/hearthstay/rentledger/ledger/store"
)

func TestScheduler_RunNowCoversCurrentAndPreviousPeriods(t *testing.T) {
	registry := accrual.NewRegistry()
	registry.Put(accrual.Obligation{
		ID:      "ob-1",
		Subject: "tenant-anna",
		Rate:    decimal.NewFromInt(600),
		From:    ledger.NewDate(2020, time.January, 1), // long-running tenancy
	})
	handler := api.NewHandler(store.NewMemory(), registry)

	scheduler := api.NewAccrualScheduler(handler)
	scheduler.RunNow()

	entries, err := handler.Ledger.Entries(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "previous and current period recognized")

	// Idempotent: a second run adds nothing.
	scheduler.RunNow()
	entries, err = handler.Ledger.Entries(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	handler := api.NewHandler(store.NewMemory(), accrual.NewRegistry())
	scheduler := api.NewAccrualScheduler(handler)
	scheduler.Enabled = false

	scheduler.Start()
	scheduler.Stop() // no ticker, no goroutine to join
}
