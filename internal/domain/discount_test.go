package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeDiscountedUnitPrice_MeanTruncatedToCents(t *testing.T) {
	// base 30.00, 50% off -> 15.00. Three registrants in the batch, only
	// two uses left: two pay 15.00, one pays 30.00. Mean = (15+15+30)/3 =
	// 20.00 exactly, so truncation doesn't come into play here; covered by
	// the next case below.
	base := decimal.NewFromInt(30)
	code := &DiscountCode{IsPercent: true, Discount: decimal.NewFromInt(50)}

	got := ComputeDiscountedUnitPrice(base, code, 3, 2)
	want := decimal.NewFromInt(20)
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestComputeDiscountedUnitPrice_TruncatesNotRounds(t *testing.T) {
	// base 10.00, 10% off -> 9.00. One of three registrants pays 9.00, two
	// pay full 10.00: mean = (9 + 10 + 10)/3 = 9.6666... which truncates to
	// 9.66, not rounds to 9.67.
	base := decimal.NewFromInt(10)
	code := &DiscountCode{IsPercent: true, Discount: decimal.NewFromInt(10)}

	got := ComputeDiscountedUnitPrice(base, code, 3, 1)
	want := decimal.RequireFromString("9.66")
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestComputeDiscountedUnitPrice_UnlimitedUsesDiscountsWholeBatch(t *testing.T) {
	base := decimal.NewFromInt(30)
	code := &DiscountCode{IsPercent: false, Discount: decimal.NewFromInt(5)}

	got := ComputeDiscountedUnitPrice(base, code, 4, -1)
	want := decimal.NewFromInt(25)
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestComputeDiscountedUnitPrice_ZeroUsesLeftFallsBackToBase(t *testing.T) {
	base := decimal.NewFromInt(30)
	code := &DiscountCode{IsPercent: true, Discount: decimal.NewFromInt(50)}

	got := ComputeDiscountedUnitPrice(base, code, 3, 0)
	if !got.Equal(base) {
		t.Errorf("got %s, want base %s", got, base)
	}
}

func TestComputeDiscountedUnitPrice_NeverExceedsBase(t *testing.T) {
	base := decimal.NewFromInt(10)
	// A negative dollar "discount" would otherwise push the unit price
	// above base; the mean is clamped back down to it.
	code := &DiscountCode{IsPercent: false, Discount: decimal.NewFromInt(-5)}

	got := ComputeDiscountedUnitPrice(base, code, 2, 2)
	if !got.Equal(base) {
		t.Errorf("got %s, want base %s", got, base)
	}
}

func TestComputeDiscountedUnitPrice_ZeroAdditionsReturnsBase(t *testing.T) {
	base := decimal.NewFromInt(30)
	code := &DiscountCode{IsPercent: true, Discount: decimal.NewFromInt(50)}

	got := ComputeDiscountedUnitPrice(base, code, 0, 5)
	if !got.Equal(base) {
		t.Errorf("got %s, want base %s", got, base)
	}
}

func TestDiscountCode_UsesLeft(t *testing.T) {
	max := 3
	d := &DiscountCode{
		MaxUses: &max,
		UsageHistory: map[string]int{"u1": 2},
	}
	if got := d.UsesLeft("u1"); got != 1 {
		t.Errorf("u1: got %d, want 1", got)
	}
	if got := d.UsesLeft("u2"); got != 3 {
		t.Errorf("u2: got %d, want 3", got)
	}

	d.UsageHistory["u3"] = 10
	if got := d.UsesLeft("u3"); got != 0 {
		t.Errorf("u3 (overspent): got %d, want 0", got)
	}

	unlimited := &DiscountCode{}
	if got := unlimited.UsesLeft("anyone"); got != -1 {
		t.Errorf("unlimited: got %d, want -1", got)
	}
}
