package domain

import "github.com/shopspring/decimal"

// TruncateCents truncates (not rounds) a decimal to two places, matching the
// provider's fixed-point cent representation. The mean-price discount rule
// relies on truncation rather than rounding (see DiscountService).
func TruncateCents(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// ClampNonNegative floors a decimal at zero.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MoneyEqual compares two decimals for monetary equality (exact, post-truncation).
func MoneyEqual(a, b decimal.Decimal) bool {
	return a.Equal(b)
}
