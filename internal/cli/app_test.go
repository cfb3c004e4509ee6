package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bank-ledger/internal/auth"
	"github.com/example/bank-ledger/internal/ledger"
	"github.com/example/bank-ledger/pkg/audit"
)

type fixture struct {
	svc   *ledger.Service
	users *auth.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	accounts, err := ledger.NewFileAccountStore(filepath.Join(dir, "accounts.txt"))
	require.NoError(t, err)
	entries, err := ledger.NewFileLedger(filepath.Join(dir, "transactions.txt"))
	require.NoError(t, err)
	userStore, err := auth.NewFileStore(filepath.Join(dir, "users.txt"))
	require.NoError(t, err)

	users := auth.NewService(userStore)
	require.NoError(t, userStore.Create(context.Background(),
		&auth.User{Username: "root", Password: "secret", Role: auth.RoleAdmin}))

	svc := ledger.NewService(accounts, entries, users, audit.NewChainLogger())
	return &fixture{svc: svc, users: users}
}

// runSession feeds a scripted set of menu inputs through the app and
// returns everything it printed.
func runSession(t *testing.T, f *fixture, lines ...string) string {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := New(in, &out, f.svc, f.users, logger)
	require.NoError(t, app.Run(context.Background()))
	return out.String()
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	out := runSession(t, f,
		"1", // Login
		"root", "wrong",
		"2", // Exit
	)
	assert.Contains(t, out, "Login failed: invalid credentials.")
	assert.NotContains(t, out, "Admin Menu")
}

func TestAdminCreatesAccountAndCustomerDeposits(t *testing.T) {
	f := newFixture(t)

	out := runSession(t, f,
		"1", // Login
		"root", "secret",
		"4", // Create Customer Account
		"alice", "pw",
		"1",      // normal
		"100.00", // initial balance
		"9",      // Logout
		"2",      // Exit
	)
	assert.Contains(t, out, "Logged in as admin: root")
	assert.Contains(t, out, "Account created. (ID 1001)")

	// Creating the account registered alice as a customer.
	out = runSession(t, f,
		"1", // Login
		"alice", "pw",
		"1", // Deposit
		"1", // first account
		"50.00",
		"3", // View My Accounts
		"4", // View My Transactions
		"5", // Logout
		"2", // Exit
	)
	assert.Contains(t, out, "Logged in as customer: alice")
	assert.Contains(t, out, "Transaction successful.")
	assert.Contains(t, out, "ID: 1001 | User: alice | Type: normal | Balance: $150.00")
	assert.Contains(t, out, "Account: 1001 | deposit | $50.00")
}

func TestCustomerCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	runSession(t, f,
		"1", "root", "secret",
		"4", "bob", "pw", "1", "20.00",
		"9", "2",
	)

	out := runSession(t, f,
		"1", "bob", "pw",
		"2", // Withdraw
		"1",
		"100.00",
		"5", "2",
	)
	assert.Contains(t, out, "Insufficient funds.")
	assert.NotContains(t, out, "Transaction successful.")

	out = runSession(t, f,
		"1", "bob", "pw",
		"3", // View My Accounts
		"5", "2",
	)
	assert.Contains(t, out, "Balance: $20.00")
}

func TestFixedAccountRejectsOwnerTransactions(t *testing.T) {
	f := newFixture(t)
	runSession(t, f,
		"1", "root", "secret",
		"4", "carol", "pw",
		"2", // fixed
		"500.00",
		"9", "2",
	)

	out := runSession(t, f,
		"1", "carol", "pw",
		"2", // Withdraw
		"1",
		"5", "2",
	)
	assert.Contains(t, out, "Cannot withdraw on a fixed account.")

	// The admin override path is not bound by the fixed-account rule.
	out = runSession(t, f,
		"1", "root", "secret",
		"6", // Update Account
		"1",
		"750.00",
		"7", // View All Accounts
		"9", "2",
	)
	assert.Contains(t, out, "Account updated.")
	assert.Contains(t, out, "Balance: $750.00")
}

func TestTransactionAmountValidation(t *testing.T) {
	f := newFixture(t)
	runSession(t, f,
		"1", "root", "secret",
		"4", "dave", "pw", "1", "10.00",
		"9", "2",
	)

	out := runSession(t, f,
		"1", "dave", "pw",
		"1", // Deposit
		"1",
		"-5.00", // rejected before the service sees it
		"1",
		"1",
		"abc",
		"5", "2",
	)
	assert.Contains(t, out, "Invalid amount.")
	assert.NotContains(t, out, "Transaction successful.")
}

func TestStaffMenuManagesAccounts(t *testing.T) {
	f := newFixture(t)
	runSession(t, f,
		"1", "root", "secret",
		"2", // Add Staff
		"teller1", "pw",
		"9", "2",
	)

	out := runSession(t, f,
		"1", "teller1", "pw",
		"1", // Create Customer Account
		"erin", "pw", "1", "30.00",
		"2", // View Accounts
		"3", // Delete Account
		"1",
		"6", "2",
	)
	assert.Contains(t, out, "Logged in as staff: teller1")
	assert.Contains(t, out, "Account created. (ID 1001)")
	assert.Contains(t, out, "Account deleted.")
}

func TestMenuCancellation(t *testing.T) {
	f := newFixture(t)
	out := runSession(t, f,
		"1", "root", "secret",
		"4", // Create Customer Account
		"exit",
		"9", "2",
	)
	assert.NotContains(t, out, "Account created.")

	// EOF mid-session ends the loop cleanly.
	out = runSession(t, f,
		"1", "root", "secret",
	)
	assert.Contains(t, out, "Admin Menu")
}
