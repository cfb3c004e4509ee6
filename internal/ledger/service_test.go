package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bank-ledger/pkg/audit"
)

// stubRegistry records EnsureCustomer calls in memory.
type stubRegistry struct {
	registered map[string]string
}

func (r *stubRegistry) EnsureCustomer(ctx context.Context, username, password string) error {
	if r.registered == nil {
		r.registered = make(map[string]string)
	}
	if _, ok := r.registered[username]; !ok {
		r.registered[username] = password
	}
	return nil
}

type serviceFixture struct {
	svc      *Service
	accounts AccountStore
	ledger   TransactionLedger
	registry *stubRegistry
	chain    *audit.ChainLogger
}

func newFileFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dir := t.TempDir()
	accounts, err := NewFileAccountStore(filepath.Join(dir, "accounts.txt"))
	require.NoError(t, err)
	ledgerStore, err := NewFileLedger(filepath.Join(dir, "transactions.txt"))
	require.NoError(t, err)
	registry := &stubRegistry{}
	chain := audit.NewChainLogger()
	return &serviceFixture{
		svc:      NewService(accounts, ledgerStore, registry, chain),
		accounts: accounts,
		ledger:   ledgerStore,
		registry: registry,
		chain:    chain,
	}
}

func TestCreateAccountOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{
		Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100.00", RequestedBy: "admin",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1001), account.ID)
	assert.Equal(t, "alice", account.Owner)
	assert.Equal(t, AccountNormal, account.Type)
	assert.Equal(t, "100.00", account.Balance.StringFixed(2))

	// Registered as customer, no transaction logged for creation.
	assert.Contains(t, f.registry.registered, "alice")
	history, err := f.svc.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCreateAccountValidation(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	cases := []struct {
		name string
		req  CreateAccountRequest
	}{
		{"empty owner", CreateAccountRequest{Owner: "", Password: "pw", Type: "normal", InitialBalance: "10"}},
		{"numeric owner", CreateAccountRequest{Owner: "12345", Password: "pw", Type: "normal", InitialBalance: "10"}},
		{"empty password", CreateAccountRequest{Owner: "alice", Password: "", Type: "normal", InitialBalance: "10"}},
		{"bad type", CreateAccountRequest{Owner: "alice", Password: "pw", Type: "savings", InitialBalance: "10"}},
		{"bad balance", CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "ten"}},
		{"negative balance", CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "-5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateAccount(ctx, tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateAccountOwnerLimits(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	_, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "10"})
	require.NoError(t, err)

	// Duplicate type is rejected even below the account limit.
	_, err = f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "10"})
	assert.ErrorIs(t, err, ErrConstraint)

	_, err = f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "fixed", InitialBalance: "10"})
	require.NoError(t, err)

	// Two accounts held: a third is rejected regardless of type.
	_, err = f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "10"})
	assert.ErrorIs(t, err, ErrConstraint)

	accounts, err := f.svc.ListAccounts(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestPerformTransactionDeposit(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100.00"})
	require.NoError(t, err)

	err = f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(50), KindDeposit)
	require.NoError(t, err)

	updated, err := f.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "150.00", updated.Balance.StringFixed(2))

	history, err := f.svc.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, account.ID, history[0].AccountID)
	assert.Equal(t, KindDeposit, history[0].Kind)
	assert.Equal(t, "50.00", history[0].Amount.StringFixed(2))
	assert.Equal(t, "alice", history[0].Owner)
}

func TestPerformTransactionInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100.00"})
	require.NoError(t, err)

	err = f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(-150), KindWithdraw)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Balance unchanged, nothing appended.
	unchanged, err := f.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", unchanged.Balance.StringFixed(2))
	history, err := f.svc.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPerformTransactionOwnerMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100.00"})
	require.NoError(t, err)

	err = f.svc.PerformTransaction(ctx, account.ID, "bob", decimal.NewFromInt(10), KindDeposit)
	assert.ErrorIs(t, err, ErrNotFound)

	unchanged, err := f.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", unchanged.Balance.StringFixed(2))
	history, err := f.svc.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPerformTransactionSignConventions(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100.00"})
	require.NoError(t, err)

	err = f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(-10), KindDeposit)
	assert.ErrorIs(t, err, ErrValidation)
	err = f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(10), KindWithdraw)
	assert.ErrorIs(t, err, ErrValidation)
	err = f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.Zero, KindDeposit)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPerformTransactionWithdrawToZero(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100.00"})
	require.NoError(t, err)

	err = f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(-100), KindWithdraw)
	require.NoError(t, err)

	updated, err := f.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", updated.Balance.StringFixed(2))

	history, err := f.svc.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, KindWithdraw, history[0].Kind)
	assert.Equal(t, "100.00", history[0].Amount.StringFixed(2))
}

func TestSetBalanceBypassesTransactionRules(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	// Fixed accounts refuse owner deposits/withdrawals at the menu layer,
	// but the administrative override still applies.
	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "fixed", InitialBalance: "500"})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetBalance(ctx, account.ID, "750.5"))

	updated, err := f.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "750.50", updated.Balance.StringFixed(2))

	// The override is not a logged transaction.
	history, err := f.svc.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, f.svc.SetBalance(ctx, account.ID, "-1"), ErrValidation)
	assert.ErrorIs(t, f.svc.SetBalance(ctx, 9999, "10"), ErrNotFound)
}

func TestDeleteAccountKeepsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100"})
	require.NoError(t, err)
	require.NoError(t, f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(25), KindDeposit))

	require.NoError(t, f.svc.DeleteAccount(ctx, account.ID))
	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, account.ID), ErrNotFound)

	accounts, err := f.svc.ListAccounts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, accounts)

	// Transactions outlive their account.
	history, err := f.svc.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestBalancesNeverNegativeAcrossOperations(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "30"})
	require.NoError(t, err)

	ops := []decimal.Decimal{
		decimal.NewFromInt(-10),
		decimal.NewFromInt(-25), // rejected: would go negative
		decimal.NewFromInt(5),
		decimal.NewFromInt(-25),
		decimal.NewFromInt(-1), // rejected: balance is zero
	}
	for _, amt := range ops {
		kind := KindDeposit
		if amt.IsNegative() {
			kind = KindWithdraw
		}
		err := f.svc.PerformTransaction(ctx, account.ID, "alice", amt, kind)
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
		current, err := f.accounts.FindByID(ctx, account.ID)
		require.NoError(t, err)
		assert.False(t, current.Balance.IsNegative())
	}

	history, err := f.svc.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestMutationsAreAudited(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	account, err := f.svc.CreateAccount(ctx, CreateAccountRequest{Owner: "alice", Password: "pw", Type: "normal", InitialBalance: "100"})
	require.NoError(t, err)
	require.NoError(t, f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(10), KindDeposit))
	require.Error(t, f.svc.PerformTransaction(ctx, account.ID, "alice", decimal.NewFromInt(-500), KindWithdraw))
	require.NoError(t, f.svc.SetBalance(ctx, account.ID, "42"))
	require.NoError(t, f.svc.DeleteAccount(ctx, account.ID))

	// create + deposit + rejected withdrawal + override + delete
	assert.Equal(t, 5, f.chain.Len())
	assert.True(t, f.chain.Verify())
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrValidation))
	assert.True(t, IsRejection(ErrConstraint))
	assert.True(t, IsRejection(ErrNotFound))
	assert.True(t, IsRejection(ErrInsufficientFunds))
	assert.False(t, IsRejection(ErrStorage))
}
