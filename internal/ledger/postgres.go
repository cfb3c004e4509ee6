package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore backs the account store and the transaction ledger with
// PostgreSQL. Mutations run in SERIALIZABLE transactions and retry a bounded
// number of times on serialization failures; logical rejections are never
// retried.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// Migrate creates the schema when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGINT PRIMARY KEY,
		owner TEXT NOT NULL,
		type TEXT NOT NULL,
		balance NUMERIC(14,2) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner);

	CREATE TABLE IF NOT EXISTS transactions (
		seq BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		recorded_at TEXT NOT NULL,
		owner TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner);
	`
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate postgres schema: %v", ErrStorage, err)
	}
	return nil
}

// inSerializableTx runs fn inside a SERIALIZABLE transaction, retrying up to
// three times when PostgreSQL reports a serialization failure (code 40001).
func (s *PostgresStore) inSerializableTx(ctx context.Context, fn func(pgx.Tx) error) error {
	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.runTx(ctx, fn)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "40001" {
				if attempt == maxRetries-1 {
					return fmt.Errorf("%w: gave up after %d serialization retries: %v", ErrStorage, maxRetries, err)
				}
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return err
		}
		return nil
	}
	return nil
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(pgx.Tx) error) error {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := s.Pool.Acquire(queryCtx)
	if err != nil {
		return fmt.Errorf("%w: acquire connection: %v", ErrStorage, err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback(queryCtx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(queryCtx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*Account, error) {
	return s.queryAccounts(ctx, `SELECT id, owner, type, balance::text FROM accounts ORDER BY id`)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner string) ([]*Account, error) {
	return s.queryAccounts(ctx, `SELECT id, owner, type, balance::text FROM accounts WHERE owner = $1 ORDER BY id`, owner)
}

func (s *PostgresStore) queryAccounts(ctx context.Context, query string, args ...any) ([]*Account, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
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

func (s *PostgresStore) NextID(ctx context.Context) (int64, error) {
	var next int64
	err := s.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 1000) + 1 FROM accounts`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("%w: next account id: %v", ErrStorage, err)
	}
	return next, nil
}

func (s *PostgresStore) Insert(ctx context.Context, a *Account) error {
	return s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT type FROM accounts WHERE owner = $1 FOR UPDATE`, a.Owner)
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

		_, err = tx.Exec(ctx, `INSERT INTO accounts (id, owner, type, balance) VALUES ($1, $2, $3, $4)`,
			a.ID, a.Owner, string(a.Type), a.Balance.StringFixed(2))
		if err != nil {
			return fmt.Errorf("%w: insert account: %v", ErrStorage, err)
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete account: %v", ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance.StringFixed(2), id)
	if err != nil {
		return fmt.Errorf("%w: update balance: %v", ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*Account, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, owner, type, balance::text FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

// ApplyTransaction commits the balance update and the ledger entry in one
// SERIALIZABLE transaction. The UPDATE matches on both id and owner; a
// mismatch surfaces as ErrNotFound with nothing written.
func (s *PostgresStore) ApplyTransaction(ctx context.Context, account *Account, newBalance decimal.Decimal, entry *Transaction) error {
	return s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2 AND owner = $3`,
			newBalance.StringFixed(2), account.ID, account.Owner)
		if err != nil {
			return fmt.Errorf("%w: apply balance: %v", ErrStorage, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: id %d owned by %s", ErrNotFound, account.ID, account.Owner)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (account_id, kind, amount, recorded_at, owner) VALUES ($1, $2, $3, $4, $5)`,
			entry.AccountID, string(entry.Kind), entry.Amount.StringFixed(2),
			entry.Timestamp.Format(TimestampLayout), entry.Owner)
		if err != nil {
			return fmt.Errorf("%w: apply ledger entry: %v", ErrStorage, err)
		}
		return nil
	})
}

// Ledger returns the transaction-ledger view over the same pool.
func (s *PostgresStore) Ledger() *PostgresLedger {
	return &PostgresLedger{pool: s.Pool}
}

// PostgresLedger is the append-only transaction history over the shared
// pool.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func (l *PostgresLedger) Append(ctx context.Context, t *Transaction) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO transactions (account_id, kind, amount, recorded_at, owner) VALUES ($1, $2, $3, $4, $5)`,
		t.AccountID, string(t.Kind), t.Amount.StringFixed(2), t.Timestamp.Format(TimestampLayout), t.Owner)
	if err != nil {
		return fmt.Errorf("%w: append transaction: %v", ErrStorage, err)
	}
	return nil
}

func (l *PostgresLedger) ListAll(ctx context.Context) ([]*Transaction, error) {
	return l.queryTransactions(ctx,
		`SELECT account_id, kind, amount::text, recorded_at, owner FROM transactions ORDER BY seq`)
}

func (l *PostgresLedger) ListByOwner(ctx context.Context, owner string) ([]*Transaction, error) {
	return l.queryTransactions(ctx,
		`SELECT account_id, kind, amount::text, recorded_at, owner FROM transactions WHERE owner = $1 ORDER BY seq`, owner)
}

func (l *PostgresLedger) queryTransactions(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := l.pool.Query(ctx, query, args...)
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
