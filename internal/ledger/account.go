package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the wall-clock format used in persisted transaction
// records. It sorts lexicographically and contains no comma, so records
// stay parseable without field escaping.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// AccountType is a closed set of account categories.
type AccountType string

const (
	// AccountNormal accepts owner-initiated deposits and withdrawals.
	AccountNormal AccountType = "normal"
	// AccountFixed rejects owner-initiated deposits and withdrawals;
	// administrative balance overrides still apply.
	AccountFixed AccountType = "fixed"
)

// ParseAccountType validates a textual account type.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(s); t {
	case AccountNormal, AccountFixed:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", ErrValidation, s)
}

// TransactionKind is a closed set of balance-changing operation kinds.
type TransactionKind string

const (
	KindDeposit  TransactionKind = "deposit"
	KindWithdraw TransactionKind = "withdraw"
)

// ParseTransactionKind validates a textual transaction kind.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch k := TransactionKind(s); k {
	case KindDeposit, KindWithdraw:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, s)
}

// Account is a customer bank account.
type Account struct {
	ID      int64
	Owner   string
	Type    AccountType
	Balance decimal.Decimal
}

// Record renders the account in its persisted form: id,owner,type,balance.
// The balance always carries exactly two decimal digits.
func (a *Account) Record() string {
	return fmt.Sprintf("%d,%s,%s,%s", a.ID, a.Owner, a.Type, a.Balance.StringFixed(2))
}

// ParseAccountRecord parses a single persisted account line.
func ParseAccountRecord(line string) (*Account, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: malformed account record %q", ErrStorage, line)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad account id in %q", ErrStorage, line)
	}
	acctType, err := ParseAccountType(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad account type in %q", ErrStorage, line)
	}
	balance, err := decimal.NewFromString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: bad balance in %q", ErrStorage, line)
	}
	return &Account{ID: id, Owner: parts[1], Type: acctType, Balance: balance}, nil
}

// Transaction is one immutable entry in the append-only ledger. Amount is
// stored as an absolute value; the kind carries the direction.
type Transaction struct {
	AccountID int64
	Kind      TransactionKind
	Amount    decimal.Decimal
	Timestamp time.Time
	Owner     string
}

// Record renders the transaction in its persisted form:
// accountId,kind,amount,timestamp,owner.
func (t *Transaction) Record() string {
	return fmt.Sprintf("%d,%s,%s,%s,%s",
		t.AccountID, t.Kind, t.Amount.StringFixed(2), t.Timestamp.Format(TimestampLayout), t.Owner)
}

// ParseTransactionRecord parses a single persisted transaction line.
func ParseTransactionRecord(line string) (*Transaction, error) {
	parts := strings.SplitN(line, ",", 5)
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: malformed transaction record %q", ErrStorage, line)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad account id in %q", ErrStorage, line)
	}
	kind, err := ParseTransactionKind(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad kind in %q", ErrStorage, line)
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount in %q", ErrStorage, line)
	}
	ts, err := parseTimestamp(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp in %q", ErrStorage, line)
	}
	return &Transaction{AccountID: id, Kind: kind, Amount: amount, Timestamp: ts, Owner: parts[4]}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrStorage, s)
	}
	return ts, nil
}
