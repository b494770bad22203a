// Package money owns the rounding policy for every monetary computation
// in the ledger. All amounts are rounded to 2 decimal places and all
// percentages to 4, half-up, so that a preview and the apply that follows
// it always produce the same figures.
package money

import "github.com/shopspring/decimal"

var (
	// Zero is the canonical zero amount.
	Zero = decimal.Zero

	// Hundred is used for percentage conversions.
	Hundred = decimal.NewFromInt(100)
)

// Round2 rounds an amount to 2 decimal places, half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round4 rounds a percentage to 4 decimal places, half-up.
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// ApplyPercent returns round2(amount * percent / 100).
func ApplyPercent(amount, percent decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(percent).Div(Hundred))
}

// PercentOf returns round4(part / whole * 100), or zero when whole is zero.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return Round4(part.Div(whole).Mul(Hundred))
}

// FromString parses a decimal amount. It exists so callers don't import
// shopspring/decimal just to parse request payloads.
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses a decimal amount and panics on failure. For
// constants and tests only.
func MustFromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
