package cli

import (
	"context"
	"fmt"

	"github.com/example/bank-ledger/internal/auth"
	"github.com/example/bank-ledger/internal/ledger"
)

func (a *App) viewStaff(ctx context.Context) []*auth.User {
	staff, err := a.users.ListStaff(ctx)
	if err != nil {
		a.renderErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "\n--- Staff List ---")
	for i, s := range staff {
		fmt.Fprintf(a.out, "%d. Username: %s\n", i+1, s.Username)
	}
	return staff
}

func (a *App) addStaff(ctx context.Context) error {
	fmt.Fprintln(a.out, "\n--- Add New Staff ---")
	username, cancelled, err := a.promptOrExit("Enter new staff username")
	if err != nil || cancelled {
		return err
	}
	password, err := a.prompt("Enter password: ")
	if err != nil {
		return err
	}
	if err := a.users.AddStaff(ctx, username, password); err != nil {
		fmt.Fprintf(a.out, "Cannot add staff: %v\n", err)
		return nil
	}
	fmt.Fprintln(a.out, "Staff added.")
	return nil
}

func (a *App) deleteStaff(ctx context.Context) error {
	staff := a.viewStaff(ctx)
	if len(staff) == 0 {
		fmt.Fprintln(a.out, "No staff to delete.")
		return nil
	}
	n, err := a.selectIndex("Select staff to delete by number", len(staff))
	if err != nil || n == 0 {
		return err
	}
	if err := a.users.RemoveStaff(ctx, staff[n-1].Username); err != nil {
		fmt.Fprintf(a.out, "Cannot delete staff: %v\n", err)
		return nil
	}
	fmt.Fprintln(a.out, "Staff deleted.")
	return nil
}

func (a *App) createAccount(ctx context.Context, operator *auth.User) error {
	fmt.Fprintln(a.out, "\n--- Create New Account ---")
	username, cancelled, err := a.promptOrExit("Enter customer username")
	if err != nil || cancelled {
		return err
	}
	password, err := a.prompt("Enter customer password: ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account types:")
	fmt.Fprintf(a.out, " 1. %s\n", ledger.AccountNormal)
	fmt.Fprintf(a.out, " 2. %s\n", ledger.AccountFixed)
	n, err := a.selectIndex("Select type number", 2)
	if err != nil || n == 0 {
		return err
	}
	acctType := ledger.AccountNormal
	if n == 2 {
		acctType = ledger.AccountFixed
	}
	balance, err := a.prompt("Initial balance: ")
	if err != nil {
		return err
	}
	account, err := a.svc.CreateAccount(ctx, ledger.CreateAccountRequest{
		Owner:          username,
		Password:       password,
		Type:           string(acctType),
		InitialBalance: balance,
		RequestedBy:    operator.Username,
	})
	if err != nil {
		a.renderErr(err)
		return nil
	}
	fmt.Fprintf(a.out, "Account created. (ID %d)\n", account.ID)
	return nil
}

func (a *App) deleteAccount(ctx context.Context) error {
	accounts := a.viewAccounts(ctx, "")
	if len(accounts) == 0 {
		fmt.Fprintln(a.out, "No accounts to delete.")
		return nil
	}
	n, err := a.selectIndex("Select account to delete by number", len(accounts))
	if err != nil || n == 0 {
		return err
	}
	if err := a.svc.DeleteAccount(ctx, accounts[n-1].ID); err != nil {
		a.renderErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Account deleted.")
	return nil
}

func (a *App) updateAccount(ctx context.Context) error {
	accounts := a.viewAccounts(ctx, "")
	if len(accounts) == 0 {
		fmt.Fprintln(a.out, "No accounts to update.")
		return nil
	}
	n, err := a.selectIndex("Select account to update by number", len(accounts))
	if err != nil || n == 0 {
		return err
	}
	balance, cancelled, err := a.promptOrExit("Enter new balance")
	if err != nil || cancelled {
		return err
	}
	if err := a.svc.SetBalance(ctx, accounts[n-1].ID, balance); err != nil {
		a.renderErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Account updated.")
	return nil
}

// transact runs the owner-initiated deposit/withdraw flow. Fixed accounts
// are rejected here, before the service is involved: the restriction is an
// owner-facing rule, not a ledger rule, and administrative overrides must
// stay able to bypass it.
func (a *App) transact(ctx context.Context, user *auth.User, kind ledger.TransactionKind) error {
	accounts := a.viewAccounts(ctx, user.Username)
	if len(accounts) == 0 {
		fmt.Fprintln(a.out, "No accounts found.")
		return nil
	}
	n, err := a.selectIndex("Select account by number", len(accounts))
	if err != nil || n == 0 {
		return err
	}
	account := accounts[n-1]
	if account.Type == ledger.AccountFixed {
		fmt.Fprintf(a.out, "Cannot %s on a fixed account.\n", kind)
		return nil
	}
	raw, cancelled, err := a.promptOrExit(fmt.Sprintf("Enter %s amount", kind))
	if err != nil || cancelled {
		return err
	}
	amount, err := ledger.ParseAmount(raw)
	if err != nil {
		fmt.Fprintln(a.out, "Invalid amount.")
		return nil
	}
	if kind == ledger.KindWithdraw {
		amount = amount.Neg()
	}
	if err := a.svc.PerformTransaction(ctx, account.ID, user.Username, amount, kind); err != nil {
		a.renderErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Transaction successful.")
	return nil
}

func (a *App) viewAccounts(ctx context.Context, ownerFilter string) []*ledger.Account {
	accounts, err := a.svc.ListAccounts(ctx, ownerFilter)
	if err != nil {
		a.renderErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "\n--- Account List ---")
	for i, acc := range accounts {
		fmt.Fprintf(a.out, "%d. ID: %d | User: %s | Type: %s | Balance: $%s\n",
			i+1, acc.ID, acc.Owner, acc.Type, acc.Balance.StringFixed(2))
	}
	return accounts
}

func (a *App) viewTransactions(ctx context.Context, ownerFilter string) {
	transactions, err := a.svc.ListTransactions(ctx, ownerFilter)
	if err != nil {
		a.renderErr(err)
		return
	}
	if len(transactions) == 0 {
		fmt.Fprintln(a.out, "No transactions recorded.")
		return
	}
	fmt.Fprintln(a.out, "\n--- Transaction History ---")
	for _, t := range transactions {
		fmt.Fprintf(a.out, "%s | Account: %d | %s | $%s\n",
			t.Timestamp.Format(ledger.TimestampLayout), t.AccountID, t.Kind, t.Amount.StringFixed(2))
	}
}
