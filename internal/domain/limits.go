package domain

import (
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Bounds of the transfers table. A transfer that would not fit is refused
// before it reaches the hub.
const (
	MaxIDTypeLen   = 32
	MaxIDValueLen  = 128
	MaxCurrencyLen = 10
	MaxNoteLen     = 255
	AmountScale    = 4
)

// maxAmount is the first value NUMERIC(18, 4) cannot hold.
var maxAmount = decimal.New(1, 18-AmountScale)

// ValidateAmount accepts positive amounts that the ledger stores exactly.
func ValidateAmount(a decimal.Decimal) error {
	switch {
	case !a.IsPositive():
		return fmt.Errorf("amount %s is not positive: %w", a, ErrInvalidAmount)
	case !a.Equal(a.Truncate(AmountScale)):
		return fmt.Errorf("amount %s has more than %d decimal places: %w", a, AmountScale, ErrInvalidAmount)
	case a.Cmp(maxAmount) >= 0:
		return fmt.Errorf("amount %s is too large: %w", a, ErrInvalidAmount)
	}
	return nil
}

// CheckLength counts characters, as Postgres does for VARCHAR.
func CheckLength(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return fmt.Errorf("%s longer than %d characters: %w", field, limit, ErrFieldTooLong)
	}
	return nil
}
