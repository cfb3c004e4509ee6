package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountStore owns the durable account records. Implementations enforce
// the per-owner constraints (at most two accounts, never two of the same
// type) on Insert and guarantee whole-snapshot atomicity: a failed mutation
// leaves the previous state intact.
type AccountStore interface {
	// ListAll returns every stored account in insertion order.
	ListAll(ctx context.Context) ([]*Account, error)
	// ListByOwner returns the accounts whose owner matches exactly.
	ListByOwner(ctx context.Context, owner string) ([]*Account, error)
	// NextID returns max(stored ids, 1000) + 1. An empty store yields 1001.
	NextID(ctx context.Context) (int64, error)
	// Insert appends a validated account. Fails with ErrConstraint when the
	// owner already has two accounts or one of the same type.
	Insert(ctx context.Context, a *Account) error
	// Delete removes the account with the given id. Fails with ErrNotFound
	// if absent. Transaction history is never touched.
	Delete(ctx context.Context, id int64) error
	// UpdateBalance rewrites the balance of the matching account.
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	// FindByID looks up a single account, ErrNotFound if absent.
	FindByID(ctx context.Context, id int64) (*Account, error)
}

// TransactionLedger owns the append-only transaction history. Entries are
// immutable once written; there are no update or delete operations.
type TransactionLedger interface {
	// Append adds one record. Fails only on storage I/O errors.
	Append(ctx context.Context, t *Transaction) error
	// ListAll returns every record in append (chronological) order.
	ListAll(ctx context.Context) ([]*Transaction, error)
	// ListByOwner filters ListAll by acting username.
	ListByOwner(ctx context.Context, owner string) ([]*Transaction, error)
}

// TransactionApplier is an optional upgrade for backends whose account and
// transaction stores share one database: the balance update and the ledger
// append commit as a single transaction. The service falls back to
// write-then-append with compensating rollback when the backend cannot
// provide it.
type TransactionApplier interface {
	// ApplyTransaction updates the balance of the account matching both id
	// and owner and appends the ledger entry atomically. Fails with
	// ErrNotFound when no account matches the (id, owner) pair.
	ApplyTransaction(ctx context.Context, account *Account, newBalance decimal.Decimal, entry *Transaction) error
}
