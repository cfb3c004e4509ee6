package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bank-ledger/pkg/audit"
)

// UserRegistry is the slice of the external user store the account service
// touches: creating an account registers the owner as a customer when the
// username is not yet known.
type UserRegistry interface {
	EnsureCustomer(ctx context.Context, username, password string) error
}

// Service orchestrates the account store and the transaction ledger. It
// holds no persistent state of its own; one mutex serializes all mutating
// operations so the whole-snapshot stores never see concurrent writers.
type Service struct {
	mu       sync.Mutex
	accounts AccountStore
	ledger   TransactionLedger
	users    UserRegistry
	audit    *audit.ChainLogger
}

// NewService wires the account service. The audit logger may be nil.
func NewService(accounts AccountStore, ledger TransactionLedger, users UserRegistry, chain *audit.ChainLogger) *Service {
	return &Service{accounts: accounts, ledger: ledger, users: users, audit: chain}
}

// CreateAccountRequest carries the operator input for account creation.
// InitialBalance arrives as entered; the service owns parsing it.
type CreateAccountRequest struct {
	Owner          string
	Password       string
	Type           string
	InitialBalance string
	RequestedBy    string
}

// CreateAccount validates the request, assigns the next id and stores the
// account. The owner is registered as a customer user when unknown. No
// ledger entry is written: an initial balance is not a deposit event.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if err := ValidateOwner(req.Owner); err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password must not be empty", ErrValidation)
	}
	acctType, err := ParseAccountType(req.Type)
	if err != nil {
		return nil, err
	}
	balance, err := ParseAmount(req.InitialBalance)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.accounts.ListByOwner(ctx, req.Owner)
	if err != nil {
		return nil, err
	}
	if len(existing) >= 2 {
		return nil, fmt.Errorf("%w: owner %s already has %d accounts", ErrConstraint, req.Owner, len(existing))
	}
	for _, a := range existing {
		if a.Type == acctType {
			return nil, fmt.Errorf("%w: owner %s already holds a %s account", ErrConstraint, req.Owner, acctType)
		}
	}

	if s.users != nil {
		if err := s.users.EnsureCustomer(ctx, req.Owner, req.Password); err != nil {
			return nil, fmt.Errorf("register customer %s: %w", req.Owner, err)
		}
	}

	id, err := s.accounts.NextID(ctx)
	if err != nil {
		return nil, err
	}
	account := &Account{ID: id, Owner: req.Owner, Type: acctType, Balance: balance.Round(2)}
	if err := s.accounts.Insert(ctx, account); err != nil {
		return nil, err
	}

	s.auditf("correlation=%s op=create_account requested_by=%s owner=%s id=%d type=%s",
		uuid.New().String(), req.RequestedBy, req.Owner, id, acctType)
	return account, nil
}

// DeleteAccount removes the account record. Its transaction history is kept:
// the ledger outlives the accounts it explains.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	s.auditf("correlation=%s op=delete_account id=%d", uuid.New().String(), id)
	return nil
}

// SetBalance is the administrative override: it rewrites the balance
// directly, bypassing the deposit/withdraw rules (including the fixed
// account restriction), and records no ledger entry.
func (s *Service) SetBalance(ctx context.Context, id int64, newBalance string) error {
	balance, err := ParseAmount(newBalance)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.accounts.UpdateBalance(ctx, id, balance.Round(2)); err != nil {
		return err
	}
	s.auditf("correlation=%s op=set_balance id=%d balance=%s", uuid.New().String(), id, balance.StringFixed(2))
	return nil
}

// PerformTransaction applies a signed amount to the account matching both
// id and owner: positive for a deposit, negative for a withdrawal. On
// success exactly one ledger entry is appended, carrying the absolute
// amount. A rejection leaves the account untouched and appends nothing.
//
// Fixed-account gating is the caller's duty: the menu layer rejects
// owner-initiated deposits/withdrawals on fixed accounts before calling.
func (s *Service) PerformTransaction(ctx context.Context, id int64, owner string, signedAmount decimal.Decimal, kind TransactionKind) error {
	if signedAmount.IsZero() {
		return fmt.Errorf("%w: amount must not be zero", ErrValidation)
	}
	switch kind {
	case KindDeposit:
		if signedAmount.IsNegative() {
			return fmt.Errorf("%w: deposit amount must be positive", ErrValidation)
		}
	case KindWithdraw:
		if signedAmount.IsPositive() {
			return fmt.Errorf("%w: withdrawal amount must be negative", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if account.Owner != owner {
		// An id held by a different owner is reported, not silently skipped.
		return fmt.Errorf("%w: id %d owned by %s", ErrNotFound, id, owner)
	}

	newBalance := account.Balance.Add(signedAmount).Round(2)
	if newBalance.IsNegative() {
		s.auditf("correlation=%s op=%s id=%d owner=%s outcome=insufficient_funds",
			uuid.New().String(), kind, id, owner)
		return fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientFunds, account.Balance.StringFixed(2), signedAmount.Abs().StringFixed(2))
	}

	entry := &Transaction{
		AccountID: id,
		Kind:      kind,
		Amount:    signedAmount.Abs().Round(2),
		Timestamp: time.Now(),
		Owner:     owner,
	}

	if err := s.commitTransaction(ctx, account, newBalance, entry); err != nil {
		return err
	}

	s.auditf("correlation=%s op=%s id=%d owner=%s amount=%s balance=%s",
		uuid.New().String(), kind, id, owner, entry.Amount.StringFixed(2), newBalance.StringFixed(2))
	return nil
}

// commitTransaction makes the balance update and the ledger append one
// logical unit. Backends sharing a database commit both in a single
// transaction; otherwise the balance is written first and restored if the
// ledger append fails.
func (s *Service) commitTransaction(ctx context.Context, account *Account, newBalance decimal.Decimal, entry *Transaction) error {
	if applier, ok := s.accounts.(TransactionApplier); ok {
		return applier.ApplyTransaction(ctx, account, newBalance, entry)
	}

	if err := s.accounts.UpdateBalance(ctx, account.ID, newBalance); err != nil {
		return err
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if rbErr := s.accounts.UpdateBalance(ctx, account.ID, account.Balance); rbErr != nil {
			return fmt.Errorf("%w: ledger append failed and balance rollback failed: %v (append: %v)",
				ErrStorage, rbErr, err)
		}
		return err
	}
	return nil
}

// ListAccounts returns all accounts, or only the given owner's when a
// filter is supplied.
func (s *Service) ListAccounts(ctx context.Context, ownerFilter string) ([]*Account, error) {
	if ownerFilter == "" {
		return s.accounts.ListAll(ctx)
	}
	return s.accounts.ListByOwner(ctx, ownerFilter)
}

// ListTransactions returns the full history, or only the entries acted by
// the given owner when a filter is supplied.
func (s *Service) ListTransactions(ctx context.Context, ownerFilter string) ([]*Transaction, error) {
	if ownerFilter == "" {
		return s.ledger.ListAll(ctx)
	}
	return s.ledger.ListByOwner(ctx, ownerFilter)
}

func (s *Service) auditf(format string, args ...any) {
	if s.audit == nil {
		return
	}
	s.audit.Append(fmt.Sprintf(format, args...))
}

// IsRejection reports whether err is a logical rejection (validation,
// constraint, not-found, insufficient funds) as opposed to a storage
// failure. Rejections must never be retried.
func IsRejection(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConstraint) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientFunds)
}
