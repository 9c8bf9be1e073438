// Package core holds the ledger entry model and the normalization rules
// applied to values read from tabular stores and submitted through forms.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func normalizeDecimal(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, ",", ".")
}

// ParseCents converts a form amount to cents, rounding half away from zero.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. An empty
// string is zero. Negative values and anything that is not a number are rejected.
//
//	ParseCents("12,50")  -> 1250, nil
//	ParseCents("0.005")  -> 1, nil
//	ParseCents("-1")     -> 0, ErrNegativeAmount
func ParseCents(s string) (int64, error) {
	s = normalizeDecimal(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// ParseAmount is the lenient cell reader: "12,50" is 12.50 and anything that
// does not parse as a non-negative number is zero. ok is false when the cell
// held text that had to be coerced.
func ParseAmount(s string) (m Money, ok bool) {
	cents, err := ParseCents(s)
	if err != nil {
		return Money{}, false
	}
	return Money{Cents: cents}, true
}

// FormatDecimal renders cents as a plain period-decimal number ("12.50").
func FormatDecimal(m Money) string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}
