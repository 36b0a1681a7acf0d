package services

import (
	"errors"
	"fmt"
	"math"

	domain "github.com/lumenmarket/api/internal/domain"
)

var (
	// ErrPricingInvalidInput indicates a structurally invalid line item such as
	// a negative unit price or a non-positive quantity.
	ErrPricingInvalidInput = errors.New("pricing: invalid line item")
	// ErrPricingOverflow indicates the totals would exceed the representable range.
	ErrPricingOverflow = errors.New("pricing: amount overflow")
	// ErrPricingInvalidConfig indicates the engine was constructed with
	// out-of-range configuration.
	ErrPricingInvalidConfig = errors.New("pricing: invalid configuration")
)

// PricingConfig carries the three pricing constants. Amounts are minor units,
// the tax rate is expressed in basis points.
type PricingConfig struct {
	FreeShippingThreshold int64
	FlatShippingCost      int64
	TaxRateBPS            int64
}

// Totals is the full price breakdown for a set of line items. Every component
// is present even when zero so the breakdown can be audited.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// PricingEngine computes order totals. Calculate is deterministic and
// side-effect free so the live cart preview and the order materialisation
// path share one implementation and can never diverge in rounding.
type PricingEngine struct {
	cfg PricingConfig
}

// NewPricingEngine validates the configuration and constructs an engine.
func NewPricingEngine(cfg PricingConfig) (*PricingEngine, error) {
	if cfg.FreeShippingThreshold < 0 {
		return nil, fmt.Errorf("%w: free shipping threshold must not be negative", ErrPricingInvalidConfig)
	}
	if cfg.FlatShippingCost < 0 {
		return nil, fmt.Errorf("%w: flat shipping cost must not be negative", ErrPricingInvalidConfig)
	}
	if cfg.TaxRateBPS < 0 || cfg.TaxRateBPS > 10000 {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 10000 basis points", ErrPricingInvalidConfig)
	}
	return &PricingEngine{cfg: cfg}, nil
}

// Calculate produces the totals for the line items with an optional coupon.
// The coupon is assumed to have already passed eligibility evaluation; only
// the amount rules (minimum purchase, maximum discount) are applied here.
// An empty item set yields all-zero totals.
func (e *PricingEngine) Calculate(items []domain.CartLineItem, coupon *domain.Coupon) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, nil
	}

	var subtotal int64
	for _, item := range items {
		if item.UnitPrice < 0 || item.Quantity < 1 {
			return Totals{}, fmt.Errorf("%w: %q", ErrPricingInvalidInput, item.Key)
		}
		line := item.UnitPrice * int64(item.Quantity)
		if item.UnitPrice > 0 && line/item.UnitPrice != int64(item.Quantity) {
			return Totals{}, fmt.Errorf("%w: line %q", ErrPricingOverflow, item.Key)
		}
		if subtotal > math.MaxInt64-line {
			return Totals{}, fmt.Errorf("%w: subtotal", ErrPricingOverflow)
		}
		subtotal += line
	}

	var discount int64
	if coupon != nil {
		discount = discountAmount(*coupon, subtotal)
	}

	shipping := e.cfg.FlatShippingCost
	if subtotal >= e.cfg.FreeShippingThreshold {
		shipping = 0
	}

	taxable := subtotal - discount
	tax := (taxable*e.cfg.TaxRateBPS + 5000) / 10000

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    taxable + shipping + tax,
	}, nil
}

// discountAmount applies the coupon amount rules to a subtotal: percentage
// discounts round half up, fixed discounts never exceed the subtotal, an
// optional cap clamps the result, and an unmet minimum purchase zeroes the
// discount entirely rather than applying it partially.
func discountAmount(coupon domain.Coupon, subtotal int64) int64 {
	if coupon.MinPurchase != nil && subtotal < *coupon.MinPurchase {
		return 0
	}

	var discount int64
	switch coupon.Type {
	case domain.DiscountTypePercentage:
		discount = (subtotal*coupon.Value + 50) / 100
	case domain.DiscountTypeFixed:
		discount = coupon.Value
	default:
		return 0
	}

	if discount > subtotal {
		discount = subtotal
	}
	if coupon.MaxDiscount != nil && discount > *coupon.MaxDiscount {
		discount = *coupon.MaxDiscount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
