/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - a candidate posting breaks double-entry rules;
     rejected synchronously before persistence
  2. Not-found errors - unknown subject, scope, entry, or account
  3. Store errors - persistence-level failures, propagated to the caller

NOT ERRORS:
  Balance-sheet imbalance is a data-quality signal, returned as data on
  the statement (statements.BalanceCheck), never as an error. Per-item
  accrual skips are reported inside the batch result, not raised.

USAGE:
  if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
      // already posted, safe to treat as a skip
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when an entry with the same
	// idempotency key already exists. Expected behavior for retries and
	// for re-running accrual generation.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrAlreadyReversed is returned when reversing an entry that already
	// has a reversal.
	ErrAlreadyReversed = errors.New("entry already reversed")

	// ErrSubjectNotFound is returned for an unknown counterparty.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrScopeNotFound is returned for an unknown property scope.
	ErrScopeNotFound = errors.New("scope not found")

	// ErrInvalidPeriod is returned for a malformed period key.
	ErrInvalidPeriod = errors.New("invalid period key")

	// ErrNotPosted is returned when an operation requires a posted entry.
	ErrNotPosted = errors.New("entry is not posted")
)

// =============================================================================
// VALIDATION ERROR - Candidate posting rejected before persistence
// =============================================================================

// ValidationKind classifies why a candidate entry was rejected.
type ValidationKind string

const (
	// Unbalanced covers all arithmetic failures: line sums disagreeing
	// with totals, totals disagreeing with each other, and malformed
	// lines (negative sides, both sides set, neither side set).
	Unbalanced ValidationKind = "unbalanced"

	// UnknownAccount means a line references a code the chart of
	// accounts cannot resolve.
	UnknownAccount ValidationKind = "unknown_account"

	// EmptyLineSet means the entry has fewer than two lines.
	EmptyLineSet ValidationKind = "empty_line_set"
)

// ValidationError describes why a candidate entry may not be posted.
type ValidationError struct {
	Kind    ValidationKind
	Message string

	// AccountCode is set for UnknownAccount.
	AccountCode string
}

func (e *ValidationError) Error() string {
	if e.AccountCode != "" {
		return fmt.Sprintf("%s: %s (account %s)", e.Kind, e.Message, e.AccountCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err is a posting validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return IsValidation(err) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrSubjectNotFound) ||
		errors.Is(err, ErrScopeNotFound)
}
