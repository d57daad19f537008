/*
Package accrual generates periodic rent recognition postings.

PURPOSE:
  For each obligation active during a period, post one balanced entry
  debiting the tenant's receivable sub-account and crediting income,
  exactly once per (tenant, period, kind). Re-running a period is safe:
  existing postings are skipped, and the store's idempotency-key
  constraint backstops concurrent runs.

KEY CONCEPTS IN THIS FILE (obligation.go):
  - Obligation: a recurring rent/fee commitment with an active window
  - ObligationSource: where active obligations come from
  - FeeSchedule: versioned configuration for fee amounts and accounts
    (no inline fallback constants)

SEE ALSO:
  - generator.go: The period-generation algorithm
*/
package accrual

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// OBLIGATION - Recurring rent/fee commitment
// =============================================================================

// Obligation is a tenant's recurring commitment: a base rate per period
// plus an optional one-time fee charged in the first active period.
type Obligation struct {
	ID         string
	Subject    ledger.TenantID
	Scope      ledger.PropertyID
	Kind       string // "rent" (default), "parking", ...
	Rate       decimal.Decimal
	OneTimeFee decimal.Decimal // zero = none; negative = use schedule default

	// Active window. From is required; To may be zero for open-ended.
	From ledger.Date
	To   ledger.Date
}

// ActiveDuring reports whether the obligation overlaps the period, and
// the overlapping day range when it does.
func (o Obligation) ActiveDuring(period ledger.PeriodKey) (from, to ledger.Date, ok bool) {
	from, to = period.Start(), period.End()
	if o.From.After(to) {
		return ledger.Date{}, ledger.Date{}, false
	}
	if !o.To.IsZero() && o.To.Before(from) {
		return ledger.Date{}, ledger.Date{}, false
	}
	if o.From.After(from) {
		from = o.From
	}
	if !o.To.IsZero() && o.To.Before(to) {
		to = o.To
	}
	return from, to, true
}

// FirstPeriod returns the obligation's first active period.
func (o Obligation) FirstPeriod() ledger.PeriodKey {
	return ledger.PeriodOf(o.From)
}

// ObligationSource supplies active obligations per period. The ledger
// stores implement this; tests use a Registry.
type ObligationSource interface {
	ActiveForPeriod(ctx context.Context, period ledger.PeriodKey) ([]Obligation, error)
}

// =============================================================================
// FEE SCHEDULE - Versioned configuration passed into the generator
// =============================================================================

// FeePolicy controls how the one-time fee is charged per scope.
type FeePolicy string

const (
	// FeeFirstPeriodFull charges the full fee in the first active
	// period regardless of proration.
	FeeFirstPeriodFull FeePolicy = "first_period_full"

	// FeeWaived suppresses the one-time fee for the scope.
	FeeWaived FeePolicy = "waived"
)

// FeeSchedule is the versioned configuration table for recognition
// postings: which income accounts to credit and what the one-time fee
// defaults to, with per-scope policy overrides.
type FeeSchedule struct {
	Version int

	// Income account credited with the base recurring rate.
	BaseIncomeAccount string

	// Income account credited with the one-time fee.
	FeeIncomeAccount string

	// DefaultOneTimeFee applies when an obligation carries a negative
	// OneTimeFee (meaning "use the schedule default").
	DefaultOneTimeFee decimal.Decimal

	// PolicyByScope overrides the fee policy per property. Scopes not
	// listed use FeeFirstPeriodFull.
	PolicyByScope map[ledger.PropertyID]FeePolicy
}

// DefaultFeeSchedule returns version 1 of the schedule against the
// default chart.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Version:           1,
		BaseIncomeAccount: ledger.AcctRentIncome,
		FeeIncomeAccount:  ledger.AcctFeeIncome,
		DefaultOneTimeFee: decimal.Zero,
	}
}

// PolicyFor returns the fee policy for a scope.
func (s FeeSchedule) PolicyFor(scope ledger.PropertyID) FeePolicy {
	if p, ok := s.PolicyByScope[scope]; ok {
		return p
	}
	return FeeFirstPeriodFull
}

// =============================================================================
// REGISTRY - In-memory ObligationSource
// =============================================================================

// Registry is a concurrency-safe in-memory obligation catalog.
type Registry struct {
	mu          sync.RWMutex
	obligations map[string]Obligation
}

func NewRegistry() *Registry {
	return &Registry{obligations: make(map[string]Obligation)}
}

// Put registers or replaces an obligation.
func (r *Registry) Put(o Obligation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obligations[o.ID] = o
}

// All returns every registered obligation, ordered by ID.
func (r *Registry) All() []Obligation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Obligation, 0, len(r.obligations))
	for _, o := range r.obligations {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutObligation and ListObligations mirror the SQL stores' catalog
// methods so the Registry can stand in for them.
func (r *Registry) PutObligation(_ context.Context, o Obligation) error {
	r.Put(o)
	return nil
}

func (r *Registry) ListObligations(_ context.Context) ([]Obligation, error) {
	return r.All(), nil
}

func (r *Registry) ActiveForPeriod(_ context.Context, period ledger.PeriodKey) ([]Obligation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Obligation
	for _, o := range r.obligations {
		if _, _, ok := o.ActiveDuring(period); ok {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ ObligationSource = (*Registry)(nil)
