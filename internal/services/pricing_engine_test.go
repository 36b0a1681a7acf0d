package services

import (
	"errors"
	"testing"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
)

func testPricingConfig() PricingConfig {
	return PricingConfig{
		FreeShippingThreshold: 7500,
		FlatShippingCost:      999,
		TaxRateBPS:            800,
	}
}

func mustEngine(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(testPricingConfig())
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	return engine
}

func int64Ptr(v int64) *int64 { return &v }

func pricingLine(key string, price int64, qty int) domain.CartLineItem {
	return domain.CartLineItem{Key: key, ProductID: "prod_" + key, UnitPrice: price, Quantity: qty}
}

func TestNewPricingEngineRejectsInvalidConfig(t *testing.T) {
	cases := []PricingConfig{
		{FreeShippingThreshold: -1, FlatShippingCost: 999, TaxRateBPS: 800},
		{FreeShippingThreshold: 7500, FlatShippingCost: -1, TaxRateBPS: 800},
		{FreeShippingThreshold: 7500, FlatShippingCost: 999, TaxRateBPS: -1},
		{FreeShippingThreshold: 7500, FlatShippingCost: 999, TaxRateBPS: 10001},
	}
	for _, cfg := range cases {
		if _, err := NewPricingEngine(cfg); !errors.Is(err, ErrPricingInvalidConfig) {
			t.Fatalf("expected ErrPricingInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}

func TestCalculateWithoutCoupon(t *testing.T) {
	engine := mustEngine(t)

	totals, err := engine.Calculate([]domain.CartLineItem{
		pricingLine("var_a", 2000, 2),
		pricingLine("var_b", 1500, 1),
	}, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	want := Totals{Subtotal: 5500, Discount: 0, Shipping: 999, Tax: 440, Total: 6939}
	if totals != want {
		t.Fatalf("totals mismatch: got %+v want %+v", totals, want)
	}
}

func TestCalculateWithPercentageCoupon(t *testing.T) {
	engine := mustEngine(t)

	coupon := &domain.Coupon{
		Code:        "SAVE10",
		Type:        domain.DiscountTypePercentage,
		Value:       10,
		MinPurchase: int64Ptr(5000),
		ValidFrom:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:  time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		Active:      true,
	}

	totals, err := engine.Calculate([]domain.CartLineItem{
		pricingLine("var_a", 2000, 2),
		pricingLine("var_b", 1500, 1),
	}, coupon)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	want := Totals{Subtotal: 5500, Discount: 550, Shipping: 999, Tax: 396, Total: 6345}
	if totals != want {
		t.Fatalf("totals mismatch: got %+v want %+v", totals, want)
	}
}

func TestCalculateFreeShippingBoundary(t *testing.T) {
	engine := mustEngine(t)

	atThreshold, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", 7500, 1)}, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if atThreshold.Shipping != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", atThreshold.Shipping)
	}

	belowThreshold, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", 7499, 1)}, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if belowThreshold.Shipping != 999 {
		t.Fatalf("expected flat shipping one cent below threshold, got %d", belowThreshold.Shipping)
	}
}

func TestCalculateMinimumPurchaseZeroesDiscount(t *testing.T) {
	engine := mustEngine(t)

	coupon := &domain.Coupon{
		Code:        "SAVE10",
		Type:        domain.DiscountTypePercentage,
		Value:       10,
		MinPurchase: int64Ptr(5000),
		Active:      true,
	}

	totals, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", 4999, 1)}, coupon)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if totals.Discount != 0 {
		t.Fatalf("expected zero discount below minimum purchase, got %d", totals.Discount)
	}

	uncouponed, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", 4999, 1)}, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if totals.Total != uncouponed.Total {
		t.Fatalf("expected total unaffected by zeroed coupon: %d vs %d", totals.Total, uncouponed.Total)
	}
}

func TestCalculateMaxDiscountClamp(t *testing.T) {
	engine := mustEngine(t)

	coupon := &domain.Coupon{
		Code:        "HALF",
		Type:        domain.DiscountTypePercentage,
		Value:       50,
		MaxDiscount: int64Ptr(1000),
		Active:      true,
	}

	totals, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", 6000, 1)}, coupon)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if totals.Discount != 1000 {
		t.Fatalf("expected discount clamped to cap, got %d", totals.Discount)
	}
}

func TestCalculateFixedDiscountClampedToSubtotal(t *testing.T) {
	engine := mustEngine(t)

	coupon := &domain.Coupon{
		Code:   "BIGFIXED",
		Type:   domain.DiscountTypeFixed,
		Value:  5000,
		Active: true,
	}

	totals, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", 1200, 1)}, coupon)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if totals.Discount != 1200 {
		t.Fatalf("expected fixed discount clamped to subtotal, got %d", totals.Discount)
	}
	if totals.Tax != 0 {
		t.Fatalf("expected zero tax on fully discounted cart, got %d", totals.Tax)
	}
	if totals.Total != 999 {
		t.Fatalf("expected total equal to shipping, got %d", totals.Total)
	}
}

func TestCalculateSubtotalIndependentOfLineOrder(t *testing.T) {
	engine := mustEngine(t)

	lines := []domain.CartLineItem{
		pricingLine("var_a", 1299, 3),
		pricingLine("var_b", 450, 7),
		pricingLine("var_c", 9999, 1),
	}
	reversed := []domain.CartLineItem{lines[2], lines[1], lines[0]}

	forward, err := engine.Calculate(lines, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	backward, err := engine.Calculate(reversed, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if forward != backward {
		t.Fatalf("totals depend on line order: %+v vs %+v", forward, backward)
	}
	if want := int64(1299*3 + 450*7 + 9999); forward.Subtotal != want {
		t.Fatalf("subtotal mismatch: got %d want %d", forward.Subtotal, want)
	}
}

func TestCalculateRejectsInvalidLines(t *testing.T) {
	engine := mustEngine(t)

	if _, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", -1, 1)}, nil); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput for negative price, got %v", err)
	}
	if _, err := engine.Calculate([]domain.CartLineItem{pricingLine("var_a", 100, 0)}, nil); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput for zero quantity, got %v", err)
	}
}

func TestCalculateEmptyCartIsAllZero(t *testing.T) {
	engine := mustEngine(t)

	totals, err := engine.Calculate(nil, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if totals != (Totals{}) {
		t.Fatalf("expected zero totals for empty cart, got %+v", totals)
	}
}
