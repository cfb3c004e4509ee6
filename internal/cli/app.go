// Package cli is the operator surface: it translates menu input into
// account-service calls and renders the results. All prompting,
// re-prompting and error presentation lives here; the service below it
// only ever sees validated calls.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/example/bank-ledger/internal/auth"
	"github.com/example/bank-ledger/internal/ledger"
)

// App drives the interactive menu loop.
type App struct {
	in     *bufio.Scanner
	out    io.Writer
	svc    *ledger.Service
	users  *auth.Service
	logger *slog.Logger
}

// New wires the menu loop to its reader, writer and services.
func New(in io.Reader, out io.Writer, svc *ledger.Service, users *auth.Service, logger *slog.Logger) *App {
	return &App{
		in:     bufio.NewScanner(in),
		out:    out,
		svc:    svc,
		users:  users,
		logger: logger,
	}
}

// Run executes the top-level menu until the operator exits or input ends.
func (a *App) Run(ctx context.Context) error {
	for {
		fmt.Fprintln(a.out, "\n=== Bank Management System ===")
		fmt.Fprintln(a.out, "1. Login")
		fmt.Fprintln(a.out, "2. Exit")
		choice, err := a.prompt("Choose: ")
		if err != nil {
			return nil
		}
		switch choice {
		case "1":
			if err := a.login(ctx); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		case "2":
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid input.")
		}
	}
}

func (a *App) login(ctx context.Context) error {
	fmt.Fprintln(a.out, "\n=== Login ===")
	username, err := a.prompt("Username: ")
	if err != nil {
		return err
	}
	password, err := a.prompt("Password: ")
	if err != nil {
		return err
	}
	user, err := a.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fmt.Fprintln(a.out, "Login failed: invalid credentials.")
			return nil
		}
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s: %s\n", user.Role, user.Username)
	a.logger.Info("login", "username", user.Username, "role", user.Role)

	switch user.Role {
	case auth.RoleAdmin:
		return a.adminMenu(ctx, user)
	case auth.RoleStaff:
		return a.staffMenu(ctx, user)
	case auth.RoleCustomer:
		return a.customerMenu(ctx, user)
	}
	return nil
}

func (a *App) adminMenu(ctx context.Context, user *auth.User) error {
	for {
		fmt.Fprintln(a.out, "\n--- Admin Menu ---")
		fmt.Fprintln(a.out, "1. View Staff")
		fmt.Fprintln(a.out, "2. Add Staff")
		fmt.Fprintln(a.out, "3. Delete Staff")
		fmt.Fprintln(a.out, "4. Create Customer Account")
		fmt.Fprintln(a.out, "5. Delete Account")
		fmt.Fprintln(a.out, "6. Update Account")
		fmt.Fprintln(a.out, "7. View All Accounts")
		fmt.Fprintln(a.out, "8. View All Transactions")
		fmt.Fprintln(a.out, "9. Logout")
		choice, err := a.prompt("Choose: ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			a.viewStaff(ctx)
		case "2":
			if err := a.addStaff(ctx); err != nil {
				return err
			}
		case "3":
			if err := a.deleteStaff(ctx); err != nil {
				return err
			}
		case "4":
			if err := a.createAccount(ctx, user); err != nil {
				return err
			}
		case "5":
			if err := a.deleteAccount(ctx); err != nil {
				return err
			}
		case "6":
			if err := a.updateAccount(ctx); err != nil {
				return err
			}
		case "7":
			a.viewAccounts(ctx, "")
		case "8":
			a.viewTransactions(ctx, "")
		case "9":
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid input.")
		}
	}
}

func (a *App) staffMenu(ctx context.Context, user *auth.User) error {
	for {
		fmt.Fprintln(a.out, "\n--- Staff Menu ---")
		fmt.Fprintln(a.out, "1. Create Customer Account")
		fmt.Fprintln(a.out, "2. View Accounts")
		fmt.Fprintln(a.out, "3. Delete Account")
		fmt.Fprintln(a.out, "4. Update Account")
		fmt.Fprintln(a.out, "5. View All Transactions")
		fmt.Fprintln(a.out, "6. Logout")
		choice, err := a.prompt("Choose: ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			if err := a.createAccount(ctx, user); err != nil {
				return err
			}
		case "2":
			a.viewAccounts(ctx, "")
		case "3":
			if err := a.deleteAccount(ctx); err != nil {
				return err
			}
		case "4":
			if err := a.updateAccount(ctx); err != nil {
				return err
			}
		case "5":
			a.viewTransactions(ctx, "")
		case "6":
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid input.")
		}
	}
}

func (a *App) customerMenu(ctx context.Context, user *auth.User) error {
	for {
		fmt.Fprintf(a.out, "\n--- Customer Menu (%s) ---\n", user.Username)
		fmt.Fprintln(a.out, "1. Deposit")
		fmt.Fprintln(a.out, "2. Withdraw")
		fmt.Fprintln(a.out, "3. View My Accounts")
		fmt.Fprintln(a.out, "4. View My Transactions")
		fmt.Fprintln(a.out, "5. Logout")
		choice, err := a.prompt("Choose: ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			if err := a.transact(ctx, user, ledger.KindDeposit); err != nil {
				return err
			}
		case "2":
			if err := a.transact(ctx, user, ledger.KindWithdraw); err != nil {
				return err
			}
		case "3":
			a.viewAccounts(ctx, user.Username)
		case "4":
			a.viewTransactions(ctx, user.Username)
		case "5":
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid input.")
		}
	}
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(a.in.Text()), nil
}

// promptOrExit reads one line, reporting cancelled=true when the operator
// types "exit".
func (a *App) promptOrExit(label string) (value string, cancelled bool, err error) {
	v, err := a.prompt(label + " (or 'exit'): ")
	if err != nil {
		return "", false, err
	}
	if strings.EqualFold(v, "exit") {
		return "", true, nil
	}
	return v, false, nil
}

// selectIndex re-prompts until the operator picks a number in [1, max] or
// cancels with "exit". Returns 0 when cancelled.
func (a *App) selectIndex(label string, max int) (int, error) {
	for {
		v, cancelled, err := a.promptOrExit(label)
		if err != nil {
			return 0, err
		}
		if cancelled {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > max {
			fmt.Fprintln(a.out, "Invalid selection.")
			continue
		}
		return n, nil
	}
}

func (a *App) renderErr(err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		fmt.Fprintf(a.out, "Invalid input: %v\n", err)
	case errors.Is(err, ledger.ErrConstraint):
		fmt.Fprintf(a.out, "Rejected: %v\n", err)
	case errors.Is(err, ledger.ErrNotFound):
		fmt.Fprintln(a.out, "Account not found.")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		fmt.Fprintln(a.out, "Insufficient funds.")
	default:
		fmt.Fprintf(a.out, "Operation failed: %v\n", err)
		a.logger.Error("operation failed", "error", err)
	}
}
