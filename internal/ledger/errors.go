package ledger

import "errors"

// Error kinds returned by stores and the account service. Callers classify
// with errors.Is; the menu layer owns presentation. None of these terminate
// the process.
var (
	// ErrValidation marks malformed input (owner name, amount, type).
	// Locally correctable: the calling layer re-prompts.
	ErrValidation = errors.New("invalid input")

	// ErrConstraint marks a business-rule rejection: the per-owner account
	// limit or a duplicate account type.
	ErrConstraint = errors.New("constraint violation")

	// ErrNotFound marks a reference to an account id that does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrInsufficientFunds marks a withdrawal that would drive the balance
	// negative. The account is left unchanged and nothing is logged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStorage marks an I/O failure reading or writing a store. The store
	// remains in its last-known-good state.
	ErrStorage = errors.New("storage failure")
)
