package domain

import (
	"github.com/shopspring/decimal"
)

// FormatAmount renders a float amount as a fixed 2-decimal string.
// All amount comparisons in this service go through this form; raw
// float comparison produces false mismatches between client-quoted
// and processor-computed values.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// NormalizeAmount re-renders an amount string ("100", "100.5",
// "100.0000001") as a fixed 2-decimal string. Returns false if the
// input does not parse as a decimal.
func NormalizeAmount(s string) (string, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", false
	}
	return d.StringFixed(2), true
}

// SameAmount compares two amount strings after normalization.
func SameAmount(a, b string) bool {
	na, ok := NormalizeAmount(a)
	if !ok {
		return false
	}
	nb, ok := NormalizeAmount(b)
	if !ok {
		return false
	}
	return na == nb
}

// CentsToAmount converts an integer minor-unit amount (Stripe style)
// to a fixed 2-decimal string.
func CentsToAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// AmountToCents converts a fixed 2-decimal amount string to minor
// units. Returns false if the input does not parse.
func AmountToCents(s string) (int64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Shift(2).Round(0).IntPart(), true
}
