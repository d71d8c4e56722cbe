// Package core provides money parsing and handling utilities.
//
// Amounts are kept as decimal.Decimal so proportional allocation and
// percentages never accumulate binary floating point error.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a user supplied amount to a decimal.
//
// It accepts both dot (1234.5) and comma (1234,5) decimal separators. A comma
// followed by three or more digits is a thousands separator (1,200 is 1200).
// An empty string parses as zero. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("1200")     -> 1200, nil
//	ParseAmount("12,34")    -> 12.34, nil
//	ParseAmount("1,200")    -> 1200, nil
//	ParseAmount("")         -> 0, nil
//	ParseAmount("-1")       -> 0, ErrNegativeAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.NewReplacer(" ", "", "_", "", "¥", "", "€", "", "$", "").Replace(s)
	if i := strings.Index(s, ","); i >= 0 && strings.Count(s, ",") == 1 && !strings.Contains(s, ".") && len(s)-i-1 <= 2 {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// Percent returns part/whole*100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// ClampPercent limits a percentage to [0, 100].
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
