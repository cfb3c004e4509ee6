package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// SQLiteStore backs both the account store and the transaction ledger with a
// single embedded database, which lets a balance update and its ledger entry
// commit in one transaction. Monetary values are stored as fixed two-decimal
// strings so they round-trip without float drift.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open sqlite database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate creates the schema when missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		type TEXT NOT NULL,
		balance TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner);

	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		owner TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate sqlite schema: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]*Account, error) {
	return s.queryAccounts(ctx, `SELECT id, owner, type, balance FROM accounts ORDER BY id`)
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, owner string) ([]*Account, error) {
	return s.queryAccounts(ctx, `SELECT id, owner, type, balance FROM accounts WHERE owner = ? ORDER BY id`, owner)
}

func (s *SQLiteStore) queryAccounts(ctx context.Context, query string, args ...any) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query accounts: %v", ErrStorage, err)
	}
	defer rows.Close()
	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate accounts: %v", ErrStorage, err)
	}
	return out, nil
}

func (s *SQLiteStore) NextID(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 1000) + 1 FROM accounts`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("%w: next account id: %v", ErrStorage, err)
	}
	return next, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, a *Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin insert: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT type FROM accounts WHERE owner = ?`, a.Owner)
	if err != nil {
		return fmt.Errorf("%w: check owner constraints: %v", ErrStorage, err)
	}
	count := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return fmt.Errorf("%w: scan owner accounts: %v", ErrStorage, err)
		}
		count++
		if AccountType(t) == a.Type {
			rows.Close()
			return fmt.Errorf("%w: owner %s already holds a %s account", ErrConstraint, a.Owner, a.Type)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate owner accounts: %v", ErrStorage, err)
	}
	if count >= 2 {
		return fmt.Errorf("%w: owner %s already has %d accounts", ErrConstraint, a.Owner, count)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO accounts (id, owner, type, balance) VALUES (?, ?, ?, ?)`,
		a.ID, a.Owner, string(a.Type), a.Balance.StringFixed(2))
	if err != nil {
		return fmt.Errorf("%w: insert account: %v", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit insert: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete account: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete account: %v", ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance.StringFixed(2), id)
	if err != nil {
		return fmt.Errorf("%w: update balance: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update balance: %v", ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id int64) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, owner, type, balance FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

// Ledger returns the transaction-ledger view over the same database.
func (s *SQLiteStore) Ledger() *SQLiteLedger {
	return &SQLiteLedger{db: s.db}
}

// SQLiteLedger is the append-only transaction history over the shared
// sqlite database.
type SQLiteLedger struct {
	db *sql.DB
}

func (l *SQLiteLedger) Append(ctx context.Context, t *Transaction) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, kind, amount, recorded_at, owner) VALUES (?, ?, ?, ?, ?)`,
		t.AccountID, string(t.Kind), t.Amount.StringFixed(2), t.Timestamp.Format(TimestampLayout), t.Owner)
	if err != nil {
		return fmt.Errorf("%w: append transaction: %v", ErrStorage, err)
	}
	return nil
}

func (l *SQLiteLedger) ListAll(ctx context.Context) ([]*Transaction, error) {
	return l.queryTransactions(ctx,
		`SELECT account_id, kind, amount, recorded_at, owner FROM transactions ORDER BY seq`)
}

func (l *SQLiteLedger) ListByOwner(ctx context.Context, owner string) ([]*Transaction, error) {
	return l.queryTransactions(ctx,
		`SELECT account_id, kind, amount, recorded_at, owner FROM transactions WHERE owner = ? ORDER BY seq`, owner)
}

func (l *SQLiteLedger) queryTransactions(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query transactions: %v", ErrStorage, err)
	}
	defer rows.Close()
	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transactions: %v", ErrStorage, err)
	}
	return out, nil
}

// ApplyTransaction commits the balance update and the ledger entry as one
// transaction. The UPDATE matches on both id and owner, so a mismatched
// owner surfaces as ErrNotFound without touching anything.
func (s *SQLiteStore) ApplyTransaction(ctx context.Context, account *Account, newBalance decimal.Decimal, entry *Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin apply: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ? AND owner = ?`,
		newBalance.StringFixed(2), account.ID, account.Owner)
	if err != nil {
		return fmt.Errorf("%w: apply balance: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: apply balance: %v", ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d owned by %s", ErrNotFound, account.ID, account.Owner)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (account_id, kind, amount, recorded_at, owner) VALUES (?, ?, ?, ?, ?)`,
		entry.AccountID, string(entry.Kind), entry.Amount.StringFixed(2),
		entry.Timestamp.Format(TimestampLayout), entry.Owner)
	if err != nil {
		return fmt.Errorf("%w: apply ledger entry: %v", ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit apply: %v", ErrStorage, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		a        Account
		acctType string
		balance  string
	)
	if err := row.Scan(&a.ID, &a.Owner, &acctType, &balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan account: %v", ErrStorage, err)
	}
	t, err := ParseAccountType(acctType)
	if err != nil {
		return nil, fmt.Errorf("%w: stored account type %q", ErrStorage, acctType)
	}
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("%w: stored balance %q", ErrStorage, balance)
	}
	a.Type = t
	a.Balance = bal
	return &a, nil
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		t        Transaction
		kind     string
		amount   string
		recorded string
	)
	if err := row.Scan(&t.AccountID, &kind, &amount, &recorded, &t.Owner); err != nil {
		return nil, fmt.Errorf("%w: scan transaction: %v", ErrStorage, err)
	}
	k, err := ParseTransactionKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: stored kind %q", ErrStorage, kind)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: stored amount %q", ErrStorage, amount)
	}
	ts, err := parseTimestamp(recorded)
	if err != nil {
		return nil, err
	}
	t.Kind = k
	t.Amount = amt
	t.Timestamp = ts
	return &t, nil
}
