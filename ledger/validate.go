/*
validate.go - Balanced double-entry enforcement

PURPOSE:
  A candidate entry must pass validation before it may transition to
  posted. This is the single gate in front of the store: nothing the
  generators produce reaches persistence unbalanced.

CHECKS:
  1. At least two lines
  2. Every account code resolves in the chart of accounts
  3. Each line has exactly one non-negative side set
  4. sum(debits) == TotalDebit, sum(credits) == TotalCredit
  5. TotalDebit == TotalCredit (within ledger.Tolerance)

SEE ALSO:
  - errors.go: ValidationError taxonomy
  - ledger.go: Post() runs validation before appending
*/
package ledger

import "fmt"

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator enforces the balanced double-entry invariant against a
// chart of accounts.
type Validator struct {
	Chart Registry
}

func NewValidator(chart Registry) *Validator {
	return &Validator{Chart: chart}
}

// Validate checks a candidate entry. A nil return means the entry may
// be posted.
func (v *Validator) Validate(entry *LedgerEntry) error {
	if len(entry.Lines) < 2 {
		return &ValidationError{
			Kind:    EmptyLineSet,
			Message: fmt.Sprintf("entry requires at least 2 lines, got %d", len(entry.Lines)),
		}
	}

	for i, line := range entry.Lines {
		if _, ok := v.Chart.Lookup(line.AccountCode); !ok {
			return &ValidationError{
				Kind:        UnknownAccount,
				Message:     fmt.Sprintf("line %d references unregistered account", i),
				AccountCode: line.AccountCode,
			}
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return &ValidationError{
				Kind:    Unbalanced,
				Message: fmt.Sprintf("line %d has a negative side", i),
			}
		}
		// Exactly one side per line. Historically unenforced upstream;
		// the aggregator's sign rule assumes it.
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return &ValidationError{
				Kind:    Unbalanced,
				Message: fmt.Sprintf("line %d must set exactly one of debit/credit", i),
			}
		}
	}

	sumDebit, sumCredit := entry.SumLines()
	if sumDebit.Sub(entry.TotalDebit).Abs().GreaterThan(Tolerance) {
		return &ValidationError{
			Kind:    Unbalanced,
			Message: fmt.Sprintf("line debits %s != total debit %s", sumDebit, entry.TotalDebit),
		}
	}
	if sumCredit.Sub(entry.TotalCredit).Abs().GreaterThan(Tolerance) {
		return &ValidationError{
			Kind:    Unbalanced,
			Message: fmt.Sprintf("line credits %s != total credit %s", sumCredit, entry.TotalCredit),
		}
	}
	if entry.TotalDebit.Sub(entry.TotalCredit).Abs().GreaterThan(Tolerance) {
		return &ValidationError{
			Kind:    Unbalanced,
			Message: fmt.Sprintf("total debit %s != total credit %s", entry.TotalDebit, entry.TotalCredit),
		}
	}

	return nil
}
