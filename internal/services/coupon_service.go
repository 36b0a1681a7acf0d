package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

var (
	// ErrCouponInvalidInput indicates a structurally invalid coupon definition.
	ErrCouponInvalidInput = errors.New("coupon service: invalid coupon")
)

// Rejection reasons reported by Evaluate. An empty reason means the coupon
// was accepted.
const (
	CouponReasonNotFound     = "not_found"
	CouponReasonInactive     = "inactive"
	CouponReasonNotStarted   = "not_started"
	CouponReasonExpired      = "expired"
	CouponReasonLimitReached = "usage_limit_reached"
)

// CouponEvaluation is the outcome of evaluating a coupon code against a
// subtotal. Applied reports acceptance; an accepted coupon can still carry a
// zero discount when the minimum-purchase rule zeroes it, and its usage
// counter is incremented either way once the order materialises.
type CouponEvaluation struct {
	Coupon   *domain.Coupon
	Discount int64
	Applied  bool
	Reason   string
}

// CouponServiceDeps lists the collaborators a CouponService needs.
type CouponServiceDeps struct {
	Coupons repositories.CouponRepository
	Logger  func(ctx context.Context, event string, fields map[string]any)
	Clock   func() time.Time
}

func (d *CouponServiceDeps) normalise() error {
	if d.Coupons == nil {
		return errors.New("coupon service: coupon repository is required")
	}
	if d.Logger == nil {
		d.Logger = func(context.Context, string, map[string]any) {}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	clock := d.Clock
	d.Clock = func() time.Time { return clock().UTC() }
	return nil
}

// CouponService evaluates coupon eligibility and manages coupon definitions.
type CouponService struct {
	deps CouponServiceDeps
}

// NewCouponService validates dependencies and constructs the service.
func NewCouponService(deps CouponServiceDeps) (*CouponService, error) {
	if err := deps.normalise(); err != nil {
		return nil, err
	}
	return &CouponService{deps: deps}, nil
}

// Evaluate resolves the coupon code and checks eligibility against the
// subtotal at the current time. A coupon that does not qualify degrades to a
// zero-discount evaluation; only backend failures surface as errors.
func (s *CouponService) Evaluate(ctx context.Context, code string, subtotal int64) (CouponEvaluation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CouponEvaluation{Reason: CouponReasonNotFound}, nil
	}

	coupon, err := s.deps.Coupons.FindByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.deps.Logger(ctx, "coupon.not_found", map[string]any{"code": code})
			return CouponEvaluation{Reason: CouponReasonNotFound}, nil
		}
		return CouponEvaluation{}, fmt.Errorf("coupon service: find %s: %w", code, err)
	}

	now := s.deps.Clock()
	if reason := rejectionReason(coupon, now); reason != "" {
		s.deps.Logger(ctx, "coupon.rejected", map[string]any{
			"code":   code,
			"reason": reason,
		})
		return CouponEvaluation{Coupon: &coupon, Reason: reason}, nil
	}

	return CouponEvaluation{
		Coupon:   &coupon,
		Discount: discountAmount(coupon, subtotal),
		Applied:  true,
	}, nil
}

// IncrementUsage records one redemption of the coupon.
func (s *CouponService) IncrementUsage(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if err := s.deps.Coupons.IncrementUsage(ctx, code); err != nil {
		return fmt.Errorf("coupon service: increment usage %s: %w", code, err)
	}
	return nil
}

// Upsert validates and stores a coupon definition.
func (s *CouponService) Upsert(ctx context.Context, coupon domain.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		return fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	switch coupon.Type {
	case domain.DiscountTypePercentage:
		if coupon.Value < 0 || coupon.Value > 100 {
			return fmt.Errorf("%w: percentage value must be between 0 and 100", ErrCouponInvalidInput)
		}
	case domain.DiscountTypeFixed:
		if coupon.Value < 0 {
			return fmt.Errorf("%w: fixed value must not be negative", ErrCouponInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrCouponInvalidInput, coupon.Type)
	}
	if coupon.MinPurchase != nil && *coupon.MinPurchase < 0 {
		return fmt.Errorf("%w: minimum purchase must not be negative", ErrCouponInvalidInput)
	}
	if coupon.MaxDiscount != nil && *coupon.MaxDiscount < 0 {
		return fmt.Errorf("%w: maximum discount must not be negative", ErrCouponInvalidInput)
	}
	if coupon.UsageLimit != nil && *coupon.UsageLimit < 0 {
		return fmt.Errorf("%w: usage limit must not be negative", ErrCouponInvalidInput)
	}
	if !coupon.ValidUntil.IsZero() && coupon.ValidUntil.Before(coupon.ValidFrom) {
		return fmt.Errorf("%w: validity window ends before it starts", ErrCouponInvalidInput)
	}

	if err := s.deps.Coupons.Upsert(ctx, coupon); err != nil {
		return fmt.Errorf("coupon service: upsert %s: %w", coupon.Code, err)
	}
	s.deps.Logger(ctx, "coupon.upserted", map[string]any{"code": coupon.Code})
	return nil
}

// List returns all coupon definitions.
func (s *CouponService) List(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := s.deps.Coupons.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("coupon service: list: %w", err)
	}
	return coupons, nil
}

// rejectionReason checks the eligibility rules in order: active flag, the
// inclusive validity window, then the usage cap.
func rejectionReason(coupon domain.Coupon, now time.Time) string {
	if !coupon.Active {
		return CouponReasonInactive
	}
	if now.Before(coupon.ValidFrom) {
		return CouponReasonNotStarted
	}
	if now.After(coupon.ValidUntil) {
		return CouponReasonExpired
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return CouponReasonLimitReached
	}
	return ""
}
