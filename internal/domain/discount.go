package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountCode is an event-scoped code redeemable at registration time,
// A redemption spends up to uses_left slots at the discounted
// price; the remaining registrants in the same batch pay the full price,
// and the line is stored at the mean of the two, truncated to cents.
type DiscountCode struct {
	ID string `json:"id"`
	Code string `json:"code"`
	Active bool `json:"active"`
	EventIDs []string `json:"event_ids"`
	IsPercent bool `json:"is_percent"`
	Discount decimal.Decimal `json:"discount"`
	MaxUses *int `json:"max_uses,omitempty"`
	UsageHistory map[string]int `json:"usage_history"`
	CreatedOn time.Time `json:"created_on"`
}

// AppliesTo reports whether the code may be redeemed for blueprintID.
func (d *DiscountCode) AppliesTo(blueprintID string) bool {
	for _, id := range d.EventIDs {
		if id == blueprintID {
			return true
		}
	}
	return false
}

// UsesLeft returns max_uses - usage_history[uid], or -1 for unlimited.
func (d *DiscountCode) UsesLeft(uid string) int {
	if d.MaxUses == nil {
		return -1
	}
	used := 0
	if d.UsageHistory != nil {
		used = d.UsageHistory[uid]
	}
	left := *d.MaxUses - used
	if left < 0 {
		return 0
	}
	return left
}

// DiscountedPrice applies the code's percent-or-dollar discount to base.
func (d *DiscountCode) DiscountedPrice(base decimal.Decimal) decimal.Decimal {
	if d.IsPercent {
		factor := decimal.NewFromInt(1).Sub(d.Discount.Div(decimal.NewFromInt(100)))
		return ClampNonNegative(base.Mul(factor))
	}
	return ClampNonNegative(base.Sub(d.Discount))
}

// ValidateForRedemption checks the code exists/active/scoped and the
// requesting user still has uses left.
func ValidateForRedemption(d *DiscountCode, blueprintID, uid string) error {
	if !d.Active {
		return NewError(KindValidationFailed, "discount code is not active")
	}
	if !d.AppliesTo(blueprintID) {
		return NewError(KindValidationFailed, "discount code does not apply to this event")
	}
	if d.UsesLeft(uid) == 0 {
		return NewError(KindValidationFailed, "discount code has no uses left for this user")
	}
	return nil
}

// ComputeDiscountedUnitPrice implements the mean-price rule: of n additions,
// min(n, usesLeft) pay the discounted price and the rest pay base; the
// stored unit price is their mean, truncated (never rounded) to two
// decimals, and never exceeds base.
func ComputeDiscountedUnitPrice(base decimal.Decimal, d *DiscountCode, n, usesLeft int) decimal.Decimal {
	if n <= 0 {
		return base
	}
	discountedCount := n
	if usesLeft >= 0 && usesLeft < discountedCount {
		discountedCount = usesLeft
	}
	fullCount := n - discountedCount
	discounted := d.DiscountedPrice(base)
	total := discounted.Mul(decimal.NewFromInt(int64(discountedCount))).
		Add(base.Mul(decimal.NewFromInt(int64(fullCount))))
	mean := TruncateCents(total.Div(decimal.NewFromInt(int64(n))))
	if mean.GreaterThan(base) {
		return base
	}
	return mean
}

// DiscountRepository persists DiscountCode documents.
type DiscountRepository interface {
	Create(d *DiscountCode) (*DiscountCode, error)
	GetByID(id string) (*DiscountCode, error)
	GetByCode(code string) (*DiscountCode, error)
	Update(d *DiscountCode) (*DiscountCode, error)
	Delete(id string) error
}
