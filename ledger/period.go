package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD KEY - Year-month identifier for accounting periods
// =============================================================================

// PeriodKey identifies an accounting period ("2025-03"). It tags which
// period a recognition or settlement logically belongs to, independent of
// the literal calendar date of the posting.
//
// Period keys sort lexicographically in chronological order, which the
// allocator relies on for oldest-first walks.
type PeriodKey string

// NewPeriod builds the key for a year and month.
func NewPeriod(year int, month time.Month) PeriodKey {
	return PeriodKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// PeriodOf returns the period containing a date.
func PeriodOf(d Date) PeriodKey {
	return NewPeriod(d.Year(), d.Month())
}

// ParsePeriod parses a "YYYY-MM" key.
func ParsePeriod(s string) (PeriodKey, error) {
	t, err := time.Parse("2006-01", string(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return NewPeriod(t.Year(), t.Month()), nil
}

func (p PeriodKey) parse() (int, time.Month) {
	t, err := time.Parse("2006-01", string(p))
	if err != nil {
		return 0, time.January
	}
	return t.Year(), t.Month()
}

// Start returns the first day of the period.
func (p PeriodKey) Start() Date {
	y, m := p.parse()
	return NewDate(y, m, 1)
}

// End returns the last day of the period.
func (p PeriodKey) End() Date {
	y, m := p.parse()
	first := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	return DateOf(first.AddDate(0, 0, -1))
}

// Days returns the number of calendar days in the period.
func (p PeriodKey) Days() int {
	return DaysBetween(p.Start(), p.End()) + 1
}

// Contains reports whether the date falls inside the period.
func (p PeriodKey) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start()) && d.BeforeOrEqual(p.End())
}

// Next returns the following period.
func (p PeriodKey) Next() PeriodKey {
	return PeriodOf(p.End().AddDays(1))
}

// Prev returns the preceding period.
func (p PeriodKey) Prev() PeriodKey {
	return PeriodOf(p.Start().AddDays(-1))
}

// Before reports chronological order. Keys are zero-padded so string
// order is chronological order.
func (p PeriodKey) Before(other PeriodKey) bool { return p < other }

func (p PeriodKey) String() string { return string(p) }

// PeriodsBetween returns all periods from 'from' through 'to', inclusive.
func PeriodsBetween(from, to PeriodKey) []PeriodKey {
	var out []PeriodKey
	for p := from; !to.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}
