/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and accrual.ObligationSource using SQLite.
  In production, the same patterns apply to PostgreSQL (store/postgres)
  - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the entries or lines tables
  - No DELETE statements on the entries or lines tables
  - Corrections via reversing entries only

IDEMPOTENCY:
  A UNIQUE index on entries.idempotency_key makes duplicate detection
  atomic with the insert. Concurrent recognition runs for the same
  period cannot double-post: the second insert fails the constraint and
  is surfaced as ledger.ErrDuplicateIdempotencyKey.

KEY TABLES:
  entries:     Immutable posting headers
  lines:       Debit/credit lines with their period stamps
  obligations: Recurring rent/fee commitments

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/rentledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  lgr := ledger.New(store, ledger.DefaultChart())

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL twin
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/ledger"
)

// Store implements ledger.Store and accrual.ObligationSource using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Entries (append-only posting headers)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		description TEXT,
		source_kind TEXT NOT NULL,
		origin_kind TEXT,
		origin_id TEXT,
		status TEXT NOT NULL,
		total_debit TEXT NOT NULL,
		total_credit TEXT NOT NULL,
		scope_id TEXT,
		tags_json TEXT,
		idempotency_key TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: store-level uniqueness makes periodic recognition safe
	-- under concurrent invocation (one posting per subject+period+kind)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_idempotency
		ON entries(idempotency_key) WHERE idempotency_key IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(entry_date);
	CREATE INDEX IF NOT EXISTS idx_entries_scope ON entries(scope_id);
	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source_kind);

	-- Lines (one row per debit/credit)
	CREATE TABLE IF NOT EXISTS lines (
		entry_id TEXT NOT NULL,
		line_no INTEGER NOT NULL,
		account_code TEXT NOT NULL,
		account_name TEXT,
		account_class TEXT NOT NULL,
		debit TEXT NOT NULL,
		credit TEXT NOT NULL,
		period_key TEXT,
		description TEXT,
		PRIMARY KEY (entry_id, line_no)
	);

	CREATE INDEX IF NOT EXISTS idx_lines_account ON lines(account_code);
	CREATE INDEX IF NOT EXISTS idx_lines_period ON lines(period_key);

	-- Obligations (recurring rent/fee commitments)
	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		scope_id TEXT,
		kind TEXT,
		rate TEXT NOT NULL,
		one_time_fee TEXT NOT NULL,
		active_from TEXT NOT NULL,
		active_to TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_subject ON obligations(subject_id);
	CREATE INDEX IF NOT EXISTS idx_obligations_window ON obligations(active_from, active_to);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// Append adds an entry with its lines in one database transaction.
func (s *Store) Append(ctx context.Context, entry ledger.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendBatch adds multiple entries atomically: all or none.
func (s *Store) AppendBatch(ctx context.Context, entries []ledger.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Duplicate idempotency keys within one batch fail before any insert
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

	tx, err := s.db.BeginTx(ctx, nil)
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

func appendEntry(ctx context.Context, tx *sql.Tx, entry ledger.LedgerEntry) error {
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries
		(id, transaction_id, entry_date, description, source_kind, origin_kind,
		 origin_id, status, total_debit, total_credit, scope_id, tags_json,
		 idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	for i, l := range entry.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lines
			(entry_id, line_no, account_code, account_name, account_class,
			 debit, credit, period_key, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
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
// SQL; Filter.Matches is the final authority on each candidate (tag
// predicates live inside the JSON blob).
func (s *Store) Query(ctx context.Context, f ledger.Filter) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT e.id FROM entries e WHERE 1=1`
	var args []any

	if f.From != nil {
		query += " AND e.entry_date >= ?"
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += " AND e.entry_date <= ?"
		args = append(args, f.To.String())
	}
	if f.Scope != "" {
		query += " AND e.scope_id = ?"
		args = append(args, string(f.Scope))
	}
	if f.Status != "" {
		query += " AND e.status = ?"
		args = append(args, string(f.Status))
	}
	if len(f.Sources) > 0 {
		query += " AND e.source_kind IN (?" + strings.Repeat(",?", len(f.Sources)-1) + ")"
		for _, src := range f.Sources {
			args = append(args, string(src))
		}
	}
	if f.AccountCode != "" || f.AccountPrefix != "" || f.LinePeriod != "" {
		var conds []string
		if f.AccountCode != "" {
			conds = append(conds, "l.account_code = ?")
			args = append(args, f.AccountCode)
		}
		if f.AccountPrefix != "" {
			conds = append(conds, "(l.account_code = ? OR l.account_code LIKE ?)")
			args = append(args, f.AccountPrefix, f.AccountPrefix+".%")
		}
		if f.LinePeriod != "" {
			conds = append(conds, "l.period_key = ?")
			args = append(args, string(f.LinePeriod))
		}
		query += " AND EXISTS (SELECT 1 FROM lines l WHERE l.entry_id = e.id AND " +
			strings.Join(conds, " AND ") + ")"
	}
	query += " ORDER BY e.entry_date ASC, e.rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entry id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []ledger.LedgerEntry
	for _, id := range ids {
		entry, err := s.getLocked(ctx, id)
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(ctx, id)
}

func (s *Store) getLocked(ctx context.Context, id string) (ledger.LedgerEntry, error) {
	var (
		entry                    ledger.LedgerEntry
		entryDate, createdAt     string
		source, status           string
		totalDebit, totalCredit  string
		scope, idemKey, tagsJSON sql.NullString
		originKind, originID     sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, entry_date, description, source_kind,
		       origin_kind, origin_id, status, total_debit, total_credit,
		       scope_id, tags_json, idempotency_key, created_at
		FROM entries WHERE id = ?
	`, id).Scan(
		&entry.ID, &entry.TransactionID, &entryDate, &entry.Description, &source,
		&originKind, &originID, &status, &totalDebit, &totalCredit,
		&scope, &tagsJSON, &idemKey, &createdAt,
	)
	if err == sql.ErrNoRows {
		return ledger.LedgerEntry{}, ledger.ErrEntryNotFound
	}
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to scan entry: %w", err)
	}

	entry.Date, err = ledger.ParseDate(entryDate)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to parse entry date: %w", err)
	}
	entry.CreatedAt, _ = ledger.ParseDate(createdAt)
	entry.Source = ledger.SourceKind(source)
	entry.Status = ledger.EntryStatus(status)
	entry.Origin = ledger.OriginRef{Kind: originKind.String, ID: originID.String}
	entry.Scope = ledger.PropertyID(scope.String)
	entry.IdempotencyKey = idemKey.String
	entry.TotalDebit = mustDecimal(totalDebit)
	entry.TotalCredit = mustDecimal(totalCredit)
	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &entry.Tags); err != nil {
			return ledger.LedgerEntry{}, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT account_code, account_name, account_class, debit, credit,
		       period_key, description
		FROM lines WHERE entry_id = ? ORDER BY line_no ASC
	`, id)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l             ledger.LedgerLine
			class         string
			debit, credit string
			period        sql.NullString
		)
		if err := rows.Scan(&l.AccountCode, &l.AccountName, &class, &debit, &credit, &period, &l.Description); err != nil {
			return ledger.LedgerEntry{}, fmt.Errorf("failed to scan line: %w", err)
		}
		l.AccountClass = ledger.AccountClass(class)
		l.Debit = mustDecimal(debit)
		l.Credit = mustDecimal(credit)
		l.Period = ledger.PeriodKey(period.String)
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

// Exists checks if an idempotency key has already been used.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// OBLIGATION SOURCE (accrual.ObligationSource interface)
// =============================================================================

// PutObligation registers or replaces an obligation.
func (s *Store) PutObligation(ctx context.Context, o accrual.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var activeTo any
	if !o.To.IsZero() {
		activeTo = o.To.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO obligations
		(id, subject_id, scope_id, kind, rate, one_time_fee, active_from, active_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject_id = excluded.subject_id,
			scope_id = excluded.scope_id,
			kind = excluded.kind,
			rate = excluded.rate,
			one_time_fee = excluded.one_time_fee,
			active_from = excluded.active_from,
			active_to = excluded.active_to
	`, o.ID, string(o.Subject), nullString(string(o.Scope)), o.Kind,
		o.Rate.String(), o.OneTimeFee.String(), o.From.String(), activeTo)
	if err != nil {
		return fmt.Errorf("failed to put obligation: %w", err)
	}
	return nil
}

// ListObligations returns every registered obligation ordered by ID.
func (s *Store) ListObligations(ctx context.Context) ([]accrual.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryObligations(ctx, `
		SELECT id, subject_id, scope_id, kind, rate, one_time_fee, active_from, active_to
		FROM obligations ORDER BY id
	`)
}

// ActiveForPeriod returns obligations whose active window overlaps the
// given period.
func (s *Store) ActiveForPeriod(ctx context.Context, period ledger.PeriodKey) ([]accrual.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryObligations(ctx, `
		SELECT id, subject_id, scope_id, kind, rate, one_time_fee, active_from, active_to
		FROM obligations
		WHERE active_from <= ? AND (active_to IS NULL OR active_to >= ?)
		ORDER BY id
	`, period.End().String(), period.Start().String())
}

func (s *Store) queryObligations(ctx context.Context, query string, args ...any) ([]accrual.Obligation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()

	var out []accrual.Obligation
	for rows.Next() {
		var (
			o           accrual.Obligation
			subject     string
			rate, fee   string
			from        string
			scope, kind sql.NullString
			to          sql.NullString
		)
		if err := rows.Scan(&o.ID, &subject, &scope, &kind, &rate, &fee, &from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		o.Subject = ledger.TenantID(subject)
		o.Scope = ledger.PropertyID(scope.String)
		o.Kind = kind.String
		o.Rate = mustDecimal(rate)
		o.OneTimeFee = mustDecimal(fee)
		o.From, err = ledger.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("failed to parse obligation window: %w", err)
		}
		if to.Valid && to.String != "" {
			o.To, _ = ledger.ParseDate(to.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
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

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ ledger.Store             = (*Store)(nil)
	_ accrual.ObligationSource = (*Store)(nil)
)
