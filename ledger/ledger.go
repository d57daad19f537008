/*
ledger.go - Posting gateway over the store

PURPOSE:
  The Ledger is the write path into the store. Every entry the accrual
  generator or payment allocator produces goes through Post(), which
  validates the double-entry invariant and stamps the entry posted
  before appending. There is no path that persists an invalid entry.

CORRECTIONS:
  Posted entries are never edited. Reverse() appends a new entry with
  every line's debit and credit swapped, tagged with the original entry
  ID. Both remain in the ledger; the net effect is the correction and
  the history is preserved.

SEE ALSO:
  - validate.go: The invariant gate
  - store.go: The append-only persistence contract
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store     Store
	Validator *Validator
}

func New(store Store, chart Registry) *Ledger {
	return &Ledger{Store: store, Validator: NewValidator(chart)}
}

// Post validates a candidate entry, fills in identifiers and totals
// where the caller left them zero, marks it posted, and appends it.
// Only a valid entry may transition to posted.
func (l *Ledger) Post(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.TransactionID == "" {
		entry.TransactionID = entry.ID
	}
	if entry.TotalDebit.IsZero() && entry.TotalCredit.IsZero() {
		entry.TotalDebit, entry.TotalCredit = entry.SumLines()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = Today()
	}

	if err := l.Validator.Validate(&entry); err != nil {
		return LedgerEntry{}, err
	}

	entry.Status = StatusPosted
	if err := l.Store.Append(ctx, entry); err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

// PostAll posts a batch atomically. All entries are validated before
// anything is appended.
func (l *Ledger) PostAll(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error) {
	out := make([]LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.TransactionID == "" {
			entry.TransactionID = entry.ID
		}
		if entry.TotalDebit.IsZero() && entry.TotalCredit.IsZero() {
			entry.TotalDebit, entry.TotalCredit = entry.SumLines()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = Today()
		}
		if err := l.Validator.Validate(&entry); err != nil {
			return nil, err
		}
		entry.Status = StatusPosted
		out = append(out, entry)
	}
	if err := l.Store.AppendBatch(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Entries returns posted entries matching the filter.
func (l *Ledger) Entries(ctx context.Context, f Filter) ([]LedgerEntry, error) {
	if f.Status == "" {
		f.Status = StatusPosted
	}
	return l.Store.Query(ctx, f)
}

// Reverse appends a reversing entry for a posted entry: same accounts
// and periods, debit and credit swapped per line. Refuses to reverse
// twice.
func (l *Ledger) Reverse(ctx context.Context, entryID, reason string) (LedgerEntry, error) {
	original, err := l.Store.Get(ctx, entryID)
	if err != nil {
		return LedgerEntry{}, err
	}
	if original.Status != StatusPosted {
		return LedgerEntry{}, fmt.Errorf("reverse %s: %w", entryID, ErrNotPosted)
	}

	existing, err := l.Store.Query(ctx, Filter{TagKey: TagReversedFrom, TagValue: entryID})
	if err != nil {
		return LedgerEntry{}, err
	}
	if len(existing) > 0 {
		return LedgerEntry{}, fmt.Errorf("reverse %s: %w", entryID, ErrAlreadyReversed)
	}

	reversal := LedgerEntry{
		Date:        original.Date,
		Description: fmt.Sprintf("Reversal of %s: %s", original.ID, original.Description),
		Source:      SourceReversal,
		Origin:      OriginRef{Kind: "entry", ID: original.ID},
		Scope:       original.Scope,
		TotalDebit:  original.TotalCredit,
		TotalCredit: original.TotalDebit,
	}
	reversal.SetTag(TagReversedFrom, original.ID)
	if reason != "" {
		reversal.Description += " (" + reason + ")"
	}
	if cp := original.Tag(TagCounterparty); cp != "" {
		reversal.SetTag(TagCounterparty, cp)
	}

	for _, line := range original.Lines {
		reversal.Lines = append(reversal.Lines, LedgerLine{
			AccountCode:  line.AccountCode,
			AccountName:  line.AccountName,
			AccountClass: line.AccountClass,
			Debit:        line.Credit,
			Credit:       line.Debit,
			Period:       line.Period,
			Description:  line.Description,
		})
	}

	return l.Post(ctx, reversal)
}
