package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteStore keeps user records in a users table, typically sharing the
// database file with the ledger stores.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open sqlite database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate creates the users table when missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate users schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Find(ctx context.Context, username string) (*User, error) {
	var (
		u    User
		role string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password, role FROM users WHERE username = ?`, username).
		Scan(&u.Username, &u.Password, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("stored role for %s: %w", username, err)
	}
	u.Role = r
	return &u, nil
}

func (s *SQLiteStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password, role) VALUES (?, ?, ?)`,
		u.Username, u.Password, string(u.Role))
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return nil
}

func (s *SQLiteStore) ListByRole(ctx context.Context, role Role) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password, role FROM users WHERE role = ? ORDER BY username`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		var (
			u User
			r string
		)
		if err := rows.Scan(&u.Username, &u.Password, &r); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = Role(r)
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, username string, role Role) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = ? AND role = ?`, username, string(role))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return nil
}
