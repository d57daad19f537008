/*
Package postgres provides a PostgreSQL-backed implementation of the
storage interfaces.

PURPOSE:
  Production twin of store/sqlite, built on sqlx over lib/pq. The schema
  and append-only contract are identical; PostgreSQL's own concurrency
  control replaces the process-level mutex the SQLite store needs.

IDEMPOTENCY:
  The partial UNIQUE index on entries.idempotency_key is the
  authoritative duplicate guard. A violation (SQLSTATE 23505) is mapped
  to ledger.ErrDuplicateIdempotencyKey.

USAGE:
  store, err := postgres.New(os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/sqlite/sqlite.go: Embedded/dev twin
*/
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/ledger"
)

// Store implements ledger.Store and accrual.ObligationSource using
// PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// New connects to PostgreSQL with the given DSN and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		entry_date DATE NOT NULL,
		description TEXT,
		source_kind TEXT NOT NULL,
		origin_kind TEXT,
		origin_id TEXT,
		status TEXT NOT NULL,
		total_debit NUMERIC(14,2) NOT NULL,
		total_credit NUMERIC(14,2) NOT NULL,
		scope_id TEXT,
		tags_json JSONB,
		idempotency_key TEXT,
		created_at DATE NOT NULL,
		seq BIGSERIAL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_idempotency
		ON entries(idempotency_key) WHERE idempotency_key IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(entry_date);
	CREATE INDEX IF NOT EXISTS idx_entries_scope ON entries(scope_id);
	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source_kind);

	CREATE TABLE IF NOT EXISTS lines (
		entry_id TEXT NOT NULL REFERENCES entries(id),
		line_no INTEGER NOT NULL,
		account_code TEXT NOT NULL,
		account_name TEXT,
		account_class TEXT NOT NULL,
		debit NUMERIC(14,2) NOT NULL,
		credit NUMERIC(14,2) NOT NULL,
		period_key TEXT,
		description TEXT,
		PRIMARY KEY (entry_id, line_no)
	);

	CREATE INDEX IF NOT EXISTS idx_lines_account ON lines(account_code);
	CREATE INDEX IF NOT EXISTS idx_lines_period ON lines(period_key);

	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		scope_id TEXT,
		kind TEXT,
		rate NUMERIC(14,2) NOT NULL,
		one_time_fee NUMERIC(14,2) NOT NULL,
		active_from DATE NOT NULL,
		active_to DATE
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_subject ON obligations(subject_id);
	CREATE INDEX IF NOT EXISTS idx_obligations_window ON obligations(active_from, active_to);
	`
	_, err := s.db.Exec(schema)
	return err
}

// entryRow maps the entries table for sqlx scanning.
type entryRow struct {
	ID             string         `db:"id"`
	TransactionID  string         `db:"transaction_id"`
	EntryDate      string         `db:"entry_date"`
	Description    sql.NullString `db:"description"`
	SourceKind     string         `db:"source_kind"`
	OriginKind     sql.NullString `db:"origin_kind"`
	OriginID       sql.NullString `db:"origin_id"`
	Status         string         `db:"status"`
	TotalDebit     string         `db:"total_debit"`
	TotalCredit    string         `db:"total_credit"`
	ScopeID        sql.NullString `db:"scope_id"`
	TagsJSON       sql.NullString `db:"tags_json"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	CreatedAt      string         `db:"created_at"`
}

type lineRow struct {
	EntryID      string         `db:"entry_id"`
	LineNo       int            `db:"line_no"`
	AccountCode  string         `db:"account_code"`
	AccountName  sql.NullString `db:"account_name"`
	AccountClass string         `db:"account_class"`
	Debit        string         `db:"debit"`
	Credit       string         `db:"credit"`
	PeriodKey    sql.NullString `db:"period_key"`
	Description  sql.NullString `db:"description"`
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// Append persists an entry with its lines in one transaction.
func (s *Store) Append(ctx context.Context, entry ledger.LedgerEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendBatch persists multiple entries atomically.
func (s *Store) AppendBatch(ctx context.Context, entries []ledger.LedgerEntry) error {
	keys := make(map[string]bool)
	for i := range entries {
		k := entries[i].IdempotencyKey
		if k == "" {
			continue
		}
		if keys[k] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		keys[k] = true
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range entries {
		if err := appendEntry(ctx, tx, entries[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func appendEntry(ctx context.Context, tx *sqlx.Tx, entry ledger.LedgerEntry) error {
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries
		(id, transaction_id, entry_date, description, source_kind, origin_kind,
		 origin_id, status, total_debit, total_credit, scope_id, tags_json,
		 idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		entry.ID,
		entry.TransactionID,
		entry.Date.String(),
		entry.Description,
		string(entry.Source),
		entry.Origin.Kind,
		entry.Origin.ID,
		string(entry.Status),
		entry.TotalDebit.String(),
		entry.TotalCredit.String(),
		nullString(string(entry.Scope)),
		string(tagsJSON),
		nullString(entry.IdempotencyKey),
		entry.CreatedAt.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	for i, l := range entry.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lines
			(entry_id, line_no, account_code, account_name, account_class,
			 debit, credit, period_key, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			entry.ID, i, l.AccountCode, l.AccountName, string(l.AccountClass),
			l.Debit.String(), l.Credit.String(), string(l.Period), l.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert line %d: %w", i, err)
		}
	}
	return nil
}

// Query returns entries matching the filter, ordered by accounting date
// then insertion order. Header and line predicates narrow the scan in
// SQL; Filter.Matches is the final authority on each candidate.
func (s *Store) Query(ctx context.Context, f ledger.Filter) ([]ledger.LedgerEntry, error) {
	query := `SELECT e.id FROM entries e WHERE 1=1`
	var args []any
	next := func() string { return fmt.Sprintf("$%d", len(args)) }

	if f.From != nil {
		args = append(args, f.From.String())
		query += " AND e.entry_date >= " + next()
	}
	if f.To != nil {
		args = append(args, f.To.String())
		query += " AND e.entry_date <= " + next()
	}
	if f.Scope != "" {
		args = append(args, string(f.Scope))
		query += " AND e.scope_id = " + next()
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += " AND e.status = " + next()
	}
	if len(f.Sources) > 0 {
		sources := make([]string, len(f.Sources))
		for i, src := range f.Sources {
			sources[i] = string(src)
		}
		args = append(args, pq.Array(sources))
		query += " AND e.source_kind = ANY(" + next() + ")"
	}
	if f.AccountCode != "" || f.AccountPrefix != "" || f.LinePeriod != "" {
		var conds []string
		if f.AccountCode != "" {
			args = append(args, f.AccountCode)
			conds = append(conds, "l.account_code = "+next())
		}
		if f.AccountPrefix != "" {
			args = append(args, f.AccountPrefix)
			eq := next()
			args = append(args, f.AccountPrefix+".%")
			like := next()
			conds = append(conds, "(l.account_code = "+eq+" OR l.account_code LIKE "+like+")")
		}
		if f.LinePeriod != "" {
			args = append(args, string(f.LinePeriod))
			conds = append(conds, "l.period_key = "+next())
		}
		query += " AND EXISTS (SELECT 1 FROM lines l WHERE l.entry_id = e.id AND " +
			strings.Join(conds, " AND ") + ")"
	}
	query += " ORDER BY e.entry_date ASC, e.seq ASC"

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	var out []ledger.LedgerEntry
	for _, id := range ids {
		entry, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if f.Matches(&entry) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Get returns a single entry with its lines.
func (s *Store) Get(ctx context.Context, id string) (ledger.LedgerEntry, error) {
	var row entryRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, transaction_id, to_char(entry_date, 'YYYY-MM-DD') AS entry_date,
		       description, source_kind, origin_kind, origin_id, status,
		       total_debit, total_credit, scope_id, tags_json::text AS tags_json,
		       idempotency_key, to_char(created_at, 'YYYY-MM-DD') AS created_at
		FROM entries WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.LedgerEntry{}, ledger.ErrEntryNotFound
	}
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to get entry: %w", err)
	}

	entry, err := row.toEntry()
	if err != nil {
		return ledger.LedgerEntry{}, err
	}

	var lines []lineRow
	err = s.db.SelectContext(ctx, &lines, `
		SELECT entry_id, line_no, account_code, account_name, account_class,
		       debit, credit, period_key, description
		FROM lines WHERE entry_id = $1 ORDER BY line_no ASC
	`, id)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to query lines: %w", err)
	}
	for _, l := range lines {
		entry.Lines = append(entry.Lines, ledger.LedgerLine{
			AccountCode:  l.AccountCode,
			AccountName:  l.AccountName.String,
			AccountClass: ledger.AccountClass(l.AccountClass),
			Debit:        mustDecimal(l.Debit),
			Credit:       mustDecimal(l.Credit),
			Period:       ledger.PeriodKey(l.PeriodKey.String),
			Description:  l.Description.String,
		})
	}
	return entry, nil
}

func (r entryRow) toEntry() (ledger.LedgerEntry, error) {
	date, err := ledger.ParseDate(r.EntryDate)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to parse entry date: %w", err)
	}
	created, _ := ledger.ParseDate(r.CreatedAt)

	entry := ledger.LedgerEntry{
		ID:             r.ID,
		TransactionID:  r.TransactionID,
		Date:           date,
		Description:    r.Description.String,
		Source:         ledger.SourceKind(r.SourceKind),
		Origin:         ledger.OriginRef{Kind: r.OriginKind.String, ID: r.OriginID.String},
		Status:         ledger.EntryStatus(r.Status),
		TotalDebit:     mustDecimal(r.TotalDebit),
		TotalCredit:    mustDecimal(r.TotalCredit),
		Scope:          ledger.PropertyID(r.ScopeID.String),
		IdempotencyKey: r.IdempotencyKey.String,
		CreatedAt:      created,
	}
	if r.TagsJSON.Valid && r.TagsJSON.String != "" && r.TagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(r.TagsJSON.String), &entry.Tags); err != nil {
			return ledger.LedgerEntry{}, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return entry, nil
}

// Exists checks whether an idempotency key has already been used.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM entries WHERE idempotency_key = $1", idempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// OBLIGATION SOURCE (accrual.ObligationSource interface)
// =============================================================================

type obligationRow struct {
	ID         string         `db:"id"`
	SubjectID  string         `db:"subject_id"`
	ScopeID    sql.NullString `db:"scope_id"`
	Kind       sql.NullString `db:"kind"`
	Rate       string         `db:"rate"`
	OneTimeFee string         `db:"one_time_fee"`
	ActiveFrom string         `db:"active_from"`
	ActiveTo   sql.NullString `db:"active_to"`
}

// PutObligation registers or replaces an obligation.
func (s *Store) PutObligation(ctx context.Context, o accrual.Obligation) error {
	var activeTo any
	if !o.To.IsZero() {
		activeTo = o.To.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO obligations
		(id, subject_id, scope_id, kind, rate, one_time_fee, active_from, active_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			scope_id = EXCLUDED.scope_id,
			kind = EXCLUDED.kind,
			rate = EXCLUDED.rate,
			one_time_fee = EXCLUDED.one_time_fee,
			active_from = EXCLUDED.active_from,
			active_to = EXCLUDED.active_to
	`, o.ID, string(o.Subject), nullString(string(o.Scope)), o.Kind,
		o.Rate.String(), o.OneTimeFee.String(), o.From.String(), activeTo)
	if err != nil {
		return fmt.Errorf("failed to put obligation: %w", err)
	}
	return nil
}

// ListObligations returns every registered obligation ordered by ID.
func (s *Store) ListObligations(ctx context.Context) ([]accrual.Obligation, error) {
	return s.queryObligations(ctx, `
		SELECT id, subject_id, scope_id, kind, rate, one_time_fee,
		       to_char(active_from, 'YYYY-MM-DD') AS active_from,
		       to_char(active_to, 'YYYY-MM-DD') AS active_to
		FROM obligations ORDER BY id
	`)
}

// ActiveForPeriod returns obligations whose active window overlaps the
// given period.
func (s *Store) ActiveForPeriod(ctx context.Context, period ledger.PeriodKey) ([]accrual.Obligation, error) {
	return s.queryObligations(ctx, `
		SELECT id, subject_id, scope_id, kind, rate, one_time_fee,
		       to_char(active_from, 'YYYY-MM-DD') AS active_from,
		       to_char(active_to, 'YYYY-MM-DD') AS active_to
		FROM obligations
		WHERE active_from <= $1 AND (active_to IS NULL OR active_to >= $2)
		ORDER BY id
	`, period.End().String(), period.Start().String())
}

func (s *Store) queryObligations(ctx context.Context, query string, args ...any) ([]accrual.Obligation, error) {
	var rows []obligationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}

	var out []accrual.Obligation
	for _, r := range rows {
		from, err := ledger.ParseDate(r.ActiveFrom)
		if err != nil {
			return nil, fmt.Errorf("failed to parse obligation window: %w", err)
		}
		o := accrual.Obligation{
			ID:         r.ID,
			Subject:    ledger.TenantID(r.SubjectID),
			Scope:      ledger.PropertyID(r.ScopeID.String),
			Kind:       r.Kind.String,
			Rate:       mustDecimal(r.Rate),
			OneTimeFee: mustDecimal(r.OneTimeFee),
			From:       from,
		}
		if r.ActiveTo.Valid && r.ActiveTo.String != "" {
			o.To, _ = ledger.ParseDate(r.ActiveTo.String)
		}
		out = append(out, o)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var (
	_ ledger.Store             = (*Store)(nil)
	_ accrual.ObligationSource = (*Store)(nil)
)
