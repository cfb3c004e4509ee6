package ledger

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ValidateOwner checks an owner username: non-empty and not purely numeric,
// so an owner name can never be confused with an account id in the
// comma-separated record format.
func ValidateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("%w: owner must not be empty", ErrValidation)
	}
	if isNumeric(owner) {
		return fmt.Errorf("%w: owner must not be numeric", ErrValidation)
	}
	if strings.Contains(owner, ",") {
		return fmt.Errorf("%w: owner must not contain a comma", ErrValidation)
	}
	return nil
}

// ParseAmount parses a non-negative decimal amount from operator input.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not a number", ErrValidation, s)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	return d, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
