package statements

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// ARREARS CALCULATOR
// =============================================================================

// ArrearsFor derives one subject's arrears position from recognized vs
// settled totals. A tenant who has paid ahead comes back with a signed
// negative outstanding and CreditBalance set.
func (g *Generator) ArrearsFor(ctx context.Context, subject ledger.TenantID, asOf ledger.Date) (ArrearsSnapshot, error) {
	o, err := g.Aggregator.ReceivableOutstanding(ctx, subject, asOf, "")
	if err != nil {
		return ArrearsSnapshot{}, err
	}
	if o.Recognized.IsZero() && o.Settled.IsZero() {
		return ArrearsSnapshot{}, fmt.Errorf("arrears for %s: %w", subject, ledger.ErrSubjectNotFound)
	}
	return ArrearsSnapshot{
		Subject:         subject,
		TotalRecognized: o.Recognized,
		TotalSettled:    o.Settled,
		Outstanding:     o.Balance,
		CreditBalance:   o.CreditBalance,
		AsOf:            asOf,
		InArrears:       o.Balance.GreaterThan(ledger.Tolerance),
	}, nil
}

// ArrearsForScope aggregates arrears across every subject with activity
// in one property.
func (g *Generator) ArrearsForScope(ctx context.Context, scope ledger.PropertyID, asOf ledger.Date) (ArrearsSnapshot, error) {
	subjects, err := g.Aggregator.Subjects(ctx, asOf, scope)
	if err != nil {
		return ArrearsSnapshot{}, err
	}
	if len(subjects) == 0 {
		return ArrearsSnapshot{}, fmt.Errorf("arrears for scope %s: %w", scope, ledger.ErrScopeNotFound)
	}

	snap := ArrearsSnapshot{Scope: scope, AsOf: asOf}
	for _, subject := range subjects {
		// Scoped: a tenant's debts in other properties do not bleed
		// into this property's aggregate.
		o, err := g.Aggregator.ReceivableOutstanding(ctx, subject, asOf, scope)
		if err != nil {
			return ArrearsSnapshot{}, err
		}
		snap.TotalRecognized = snap.TotalRecognized.Add(o.Recognized)
		snap.TotalSettled = snap.TotalSettled.Add(o.Settled)
		snap.Outstanding = snap.Outstanding.Add(o.Balance)
	}
	snap.CreditBalance = snap.Outstanding.IsNegative()
	snap.InArrears = snap.Outstanding.GreaterThan(ledger.Tolerance)
	return snap, nil
}

// PortfolioArrears sweeps all scopes and reports counts and totals of
// subjects in arrears across the whole portfolio.
func (g *Generator) PortfolioArrears(ctx context.Context, asOf ledger.Date) (PortfolioArrears, error) {
	scopes, err := g.Aggregator.Scopes(ctx)
	if err != nil {
		return PortfolioArrears{}, err
	}

	report := PortfolioArrears{AsOf: asOf, TotalOutstanding: decimal.Zero}
	for _, scope := range scopes {
		subjects, err := g.Aggregator.Subjects(ctx, asOf, scope)
		if err != nil {
			return PortfolioArrears{}, err
		}

		sa := ScopeArrears{Scope: scope, Outstanding: decimal.Zero}
		for _, subject := range subjects {
			o, err := g.Aggregator.ReceivableOutstanding(ctx, subject, asOf, scope)
			if err != nil {
				return PortfolioArrears{}, err
			}
			sa.Outstanding = sa.Outstanding.Add(o.Balance)
			if o.Balance.GreaterThan(ledger.Tolerance) {
				sa.SubjectsInArrears++
			}
		}
		report.Scopes = append(report.Scopes, sa)
		report.SubjectsInArrears += sa.SubjectsInArrears
		report.TotalOutstanding = report.TotalOutstanding.Add(sa.Outstanding)
	}
	return report, nil
}
