/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists spend transactions, rule catalogs and finished calculations.
  The engine itself never touches the database: the API loads spend
  through generic.Ledger, runs a session, and stores the outcome here.

INTERFACES IMPLEMENTED:
  generic.Store: Transaction persistence

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the transactions table
  - No DELETE statements on the transactions table
  - Duplicate transaction ids fail with generic.ErrDuplicateTransaction

KEY TABLES:
  transactions:   Immutable log of purchases per account
  catalog_rules:  Named rule catalogs, one row per rule
  calculations:   Finished sessions with their summary

INDEXES:
  - idx_transactions_account_date: Spend aggregation (hot path)
  - idx_calculations_account: Calculation history per account

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to
  a single connection since every new connection would open an empty one.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging) so readers
  don't block the single writer.

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/ledger.go: Higher-level ledger using Store
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/rewards-engine/generic"
)

// Store implements generic.Store plus catalog and calculation storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = dbPath + "?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
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
	-- Transactions (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		merchant TEXT NOT NULL,
		amount TEXT NOT NULL,
		occurred_on TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account_date
		ON transactions(account_id, occurred_on);

	-- Rule catalogs
	CREATE TABLE IF NOT EXISTS catalog_rules (
		catalog TEXT NOT NULL,
		rule_id INTEGER NOT NULL,
		reward INTEGER NOT NULL,
		description TEXT,
		requirements_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (catalog, rule_id)
	);

	-- Finished calculation sessions
	CREATE TABLE IF NOT EXISTS calculations (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		program TEXT,
		strategy TEXT NOT NULL,
		rule_ids_json TEXT NOT NULL,
		period_start TEXT,
		period_end TEXT,
		spend_json TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		total INTEGER NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calculations_account
		ON calculations(account_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append adds a transaction. Transactions without an id get a random one.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendTx(ctx, s.db, tx)
}

func (s *Store) appendTx(ctx context.Context, db execer, tx generic.Transaction) error {
	if tx.ID == "" {
		tx.ID = generic.TransactionID(uuid.NewString())
	}

	query := `
		INSERT INTO transactions (id, account_id, merchant, amount, occurred_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		string(tx.ID),
		string(tx.AccountID),
		string(tx.Merchant),
		tx.Amount.String(),
		tx.At.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", generic.ErrDuplicateTransaction, tx.ID)
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[generic.TransactionID]bool, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			continue
		}
		if seen[tx.ID] {
			return fmt.Errorf("%w: %s", generic.ErrDuplicateTransaction, tx.ID)
		}
		seen[tx.ID] = true
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Load returns all transactions for an account, ordered by date.
func (s *Store) Load(ctx context.Context, account generic.AccountID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, account_id, merchant, amount, occurred_on
		FROM transactions
		WHERE account_id = ?
		ORDER BY occurred_on ASC, id ASC
	`
	return s.queryTransactions(ctx, query, string(account))
}

// LoadRange returns transactions dated within [from, to].
func (s *Store) LoadRange(ctx context.Context, account generic.AccountID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, account_id, merchant, amount, occurred_on
		FROM transactions
		WHERE account_id = ? AND occurred_on >= ? AND occurred_on <= ?
		ORDER BY occurred_on ASC, id ASC
	`
	return s.queryTransactions(ctx, query, string(account), from.String(), to.String())
}

// Exists checks whether a transaction id is stored.
func (s *Store) Exists(ctx context.Context, id generic.TransactionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE id = ?",
		string(id),
	).Scan(&count)

	return count > 0, err
}

// Accounts lists every account with at least one transaction.
func (s *Store) Accounts(ctx context.Context) ([]generic.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT account_id FROM transactions ORDER BY account_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []generic.AccountID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		accounts = append(accounts, generic.AccountID(id))
	}
	return accounts, rows.Err()
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		id, account, merchant string
		amount, occurredOn    string
	)
	if err := rows.Scan(&id, &account, &merchant, &amount, &occurredOn); err != nil {
		return generic.Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return generic.Transaction{}, fmt.Errorf("transaction %s: bad amount %q: %w", id, amount, err)
	}
	at, err := generic.ParseDate(occurredOn)
	if err != nil {
		return generic.Transaction{}, fmt.Errorf("transaction %s: bad date %q: %w", id, occurredOn, err)
	}

	return generic.Transaction{
		ID:        generic.TransactionID(id),
		AccountID: generic.AccountID(account),
		Merchant:  generic.MerchantID(merchant),
		Amount:    value,
		At:        at,
	}, nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

type requirementRecord struct {
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
}

// SaveCatalog replaces the named catalog with the given rules.
func (s *Store) SaveCatalog(ctx context.Context, name string, catalog *generic.Catalog) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("catalog name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM catalog_rules WHERE catalog = ?", name); err != nil {
		return fmt.Errorf("failed to clear catalog %s: %w", name, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range catalog.Rules() {
		reqs := make([]requirementRecord, len(r.Requirements))
		for i, req := range r.Requirements {
			reqs[i] = requirementRecord{Merchant: string(req.Merchant), Amount: req.Amount.String()}
		}
		reqJSON, err := json.Marshal(reqs)
		if err != nil {
			return err
		}

		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO catalog_rules (catalog, rule_id, reward, description, requirements_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, name, int(r.ID), int64(r.Reward), nullString(r.Description), string(reqJSON), now)
		if err != nil {
			return fmt.Errorf("failed to save rule %d: %w", r.ID, err)
		}
	}

	return sqlTx.Commit()
}

// LoadCatalog rebuilds a stored catalog. Returns nil, nil if it doesn't exist.
func (s *Store) LoadCatalog(ctx context.Context, name string) (*generic.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, reward, description, requirements_json
		FROM catalog_rules
		WHERE catalog = ?
		ORDER BY rule_id
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*generic.Rule
	for rows.Next() {
		var (
			id, reward  int64
			description sql.NullString
			reqJSON     string
		)
		if err := rows.Scan(&id, &reward, &description, &reqJSON); err != nil {
			return nil, err
		}

		var records []requirementRecord
		if err := json.Unmarshal([]byte(reqJSON), &records); err != nil {
			return nil, fmt.Errorf("rule %d: bad requirements: %w", id, err)
		}
		reqs := make([]generic.Requirement, len(records))
		for i, rec := range records {
			amount, err := decimal.NewFromString(rec.Amount)
			if err != nil {
				return nil, fmt.Errorf("rule %d: bad amount %q: %w", id, rec.Amount, err)
			}
			reqs[i] = generic.Requirement{Merchant: generic.MerchantID(rec.Merchant), Amount: amount}
		}

		r, err := generic.NewRule(generic.RuleID(id), generic.Points(reward), reqs...)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r.WithDescription(description.String))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return generic.NewCatalog(rules...)
}

// =============================================================================
// CALCULATION STORE
// =============================================================================

// CalculationRecord is a finished session as persisted.
type CalculationRecord struct {
	ID        string
	AccountID generic.AccountID
	Program   string
	Strategy  generic.Strategy
	RuleIDs   []generic.RuleID
	Period    generic.Period
	Spend     map[generic.MerchantID]string
	Summary   generic.Summary
	CreatedAt time.Time
}

// NewCalculationRecord captures an allocation for storage.
func NewCalculationRecord(account generic.AccountID, program string, ruleIDs []generic.RuleID, period generic.Period, a *generic.Allocation) CalculationRecord {
	spend := make(map[generic.MerchantID]string, a.Spend.Len())
	for _, m := range a.Spend.Merchants() {
		spend[m] = a.Spend.Get(m).String()
	}
	return CalculationRecord{
		AccountID: account,
		Program:   program,
		Strategy:  a.Strategy,
		RuleIDs:   append([]generic.RuleID(nil), ruleIDs...),
		Period:    period,
		Spend:     spend,
		Summary:   generic.Summarize(a),
	}
}

// SaveCalculation stores a record, assigning ID and CreatedAt when empty.
func (s *Store) SaveCalculation(ctx context.Context, rec *CalculationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	ruleIDsJSON, err := json.Marshal(rec.RuleIDs)
	if err != nil {
		return err
	}
	spendJSON, err := json.Marshal(rec.Spend)
	if err != nil {
		return err
	}
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculations
		(id, account_id, program, strategy, rule_ids_json, period_start, period_end,
		 spend_json, summary_json, total, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		string(rec.AccountID),
		nullString(rec.Program),
		string(rec.Strategy),
		string(ruleIDsJSON),
		nullDate(rec.Period.Start),
		nullDate(rec.Period.End),
		string(spendJSON),
		string(summaryJSON),
		int64(rec.Summary.GrandTotal),
		rec.Summary.Degraded,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save calculation: %w", err)
	}
	return nil
}

const calculationColumns = `id, account_id, program, strategy, rule_ids_json, period_start, period_end,
	spend_json, summary_json, created_at`

// GetCalculation returns a stored record or generic.ErrCalculationNotFound.
func (s *Store) GetCalculation(ctx context.Context, id string) (*CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+calculationColumns+" FROM calculations WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", generic.ErrCalculationNotFound, id)
	}
	rec, err := scanCalculation(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCalculations returns an account's records, newest first.
func (s *Store) ListCalculations(ctx context.Context, account generic.AccountID) ([]CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+calculationColumns+" FROM calculations WHERE account_id = ? ORDER BY created_at DESC, id",
		string(account),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CalculationRecord
	for rows.Next() {
		rec, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanCalculation(rows *sql.Rows) (CalculationRecord, error) {
	var (
		rec                      CalculationRecord
		account, strategy        string
		program, start, end      sql.NullString
		ruleIDsJSON, spendJSON   string
		summaryJSON, createdAt   string
	)
	err := rows.Scan(&rec.ID, &account, &program, &strategy, &ruleIDsJSON, &start, &end,
		&spendJSON, &summaryJSON, &createdAt)
	if err != nil {
		return rec, fmt.Errorf("failed to scan calculation: %w", err)
	}

	rec.AccountID = generic.AccountID(account)
	rec.Program = program.String
	rec.Strategy = generic.Strategy(strategy)
	if err := json.Unmarshal([]byte(ruleIDsJSON), &rec.RuleIDs); err != nil {
		return rec, fmt.Errorf("calculation %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(spendJSON), &rec.Spend); err != nil {
		return rec, fmt.Errorf("calculation %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &rec.Summary); err != nil {
		return rec, fmt.Errorf("calculation %s: %w", rec.ID, err)
	}
	if start.Valid {
		rec.Period.Start, _ = generic.ParseDate(start.String)
	}
	if end.Valid {
		rec.Period.End, _ = generic.ParseDate(end.String)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// Reset clears all data (for testing/demo purposes).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transactions", "catalog_rules", "calculations"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}

var _ generic.Store = (*Store)(nil)
