/*
store.go - Persistence interface for ledger entries

PURPOSE:
  Defines the interface between the engine and the database. The Store
  handles persistence while maintaining append-only semantics. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

APPEND-ONLY CONTRACT:
  - Append() / AppendBatch(): the only write operations
  - NO Update() or Delete() methods exist
  Once posted, an entry is permanent; corrections are additive reversing
  entries. This keeps a posting concurrent with an in-flight report from
  ever mutating a record mid-read.

IDEMPOTENCY:
  The store enforces idempotency-key uniqueness atomically (UNIQUE index
  in SQL stores, map check under the write lock in memory). Appending a
  duplicate key returns ErrDuplicateIdempotencyKey. This is what makes
  accrual generation safe under concurrent invocation: the
  check-then-insert in the generator is advisory, the store constraint
  is authoritative.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for testing
  - store/sqlite:           SQLite with WAL
  - store/postgres:         PostgreSQL via sqlx

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package ledger

import "context"

// =============================================================================
// FILTER - Query predicate
// =============================================================================

// Filter selects entries. Zero values match everything; reports are
// read-committed-per-query, there is no multi-query snapshot isolation.
type Filter struct {
	// Inclusive bounds on the entry's accounting date.
	From *Date
	To   *Date

	// Scope restricts to entries carrying this property reference.
	Scope PropertyID

	// Sources restricts to these source kinds (empty = any).
	Sources []SourceKind

	// Status restricts to entries in this status (empty = any).
	Status EntryStatus

	// AccountCode matches entries with a line on exactly this code.
	AccountCode string

	// AccountPrefix matches entries with a line on this control code or
	// any of its sub-accounts.
	AccountPrefix string

	// LinePeriod matches entries with a line stamped with this period.
	LinePeriod PeriodKey

	// TagKey/TagValue match entries carrying this tag. TagValue is
	// ignored when TagKey is empty; an empty TagValue matches any value.
	TagKey   string
	TagValue string
}

// Matches applies the filter to one entry. SQL stores push the
// predicates into queries; the memory store and tests use this directly.
func (f Filter) Matches(e *LedgerEntry) bool {
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	if f.Scope != "" && e.Scope != f.Scope {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if e.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TagKey != "" {
		v, ok := e.Tags[f.TagKey]
		if !ok || (f.TagValue != "" && v != f.TagValue) {
			return false
		}
	}
	if f.AccountCode != "" || f.AccountPrefix != "" || f.LinePeriod != "" {
		found := false
		for _, l := range e.Lines {
			if f.AccountCode != "" && l.AccountCode != f.AccountCode {
				continue
			}
			if f.AccountPrefix != "" && !matchesPrefix(l.AccountCode, f.AccountPrefix) {
				continue
			}
			if f.LinePeriod != "" && l.Period != f.LinePeriod {
				continue
			}
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesPrefix(code, prefix string) bool {
	if code == prefix {
		return true
	}
	control, _, ok := SplitSubAccount(code)
	return ok && control == prefix
}

// =============================================================================
// STORE - Interface for entry persistence (append-only)
// =============================================================================

// Store handles persistence of ledger entries.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
// Corrections are made via reversing entries.
type Store interface {
	// Append persists an entry. Returns ErrDuplicateIdempotencyKey if
	// the entry's idempotency key already exists. The uniqueness check
	// is atomic with the write.
	Append(ctx context.Context, entry LedgerEntry) error

	// AppendBatch persists multiple entries atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, entries []LedgerEntry) error

	// Query returns entries matching the filter, ordered by accounting
	// date then insertion order. Read-only.
	Query(ctx context.Context, f Filter) ([]LedgerEntry, error)

	// Get returns a single entry by ID, or ErrEntryNotFound.
	Get(ctx context.Context, id string) (LedgerEntry, error)

	// Exists checks whether an idempotency key is already present.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
