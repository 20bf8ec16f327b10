package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidFormat is returned when a raw value cannot be parsed as a finite
// decimal number.
var ErrInvalidFormat = errors.New("invalid_money_format")

// Normalize parses a raw monetary string and rounds it to two decimal places,
// with exact ties rounded away from zero. Empty strings, non-numeric input,
// NaN and infinities are rejected.
func Normalize(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Decimal{}, ErrInvalidFormat
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidFormat
	}

	return value.Round(2), nil
}

// String2dp renders a decimal with exactly two fraction digits.
func String2dp(value decimal.Decimal) string {
	return value.StringFixed(2)
}
