package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
)

// CouponRepository persists coupon definitions keyed by their uppercased code.
type CouponRepository struct {
	base *pfirestore.BaseRepository[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponDocument](provider, couponCollection, nil)
	return &CouponRepository{base: base}, nil
}

type couponDocument struct {
	Code        string    `firestore:"code"`
	Type        string    `firestore:"type"`
	Value       int64     `firestore:"value"`
	MinPurchase *int64    `firestore:"minPurchase,omitempty"`
	MaxDiscount *int64    `firestore:"maxDiscount,omitempty"`
	ValidFrom   time.Time `firestore:"validFrom"`
	ValidUntil  time.Time `firestore:"validUntil"`
	UsageLimit  *int64    `firestore:"usageLimit,omitempty"`
	UsedCount   int64     `firestore:"usedCount"`
	Active      bool      `firestore:"active"`
}

// FindByCode loads the coupon for the normalised code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	normalised := normaliseCouponCode(code)
	doc, err := r.base.Get(ctx, normalised)
	if err != nil {
		return domain.Coupon{}, err
	}
	return documentToCoupon(doc.ID, doc.Data), nil
}

// IncrementUsage applies a relative +1 to the coupon's usage counter.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string) error {
	_, err := r.base.Update(ctx, normaliseCouponCode(code), []firestore.Update{
		{Path: "usedCount", Value: firestore.Increment(1)},
	})
	return err
}

// Upsert stores the coupon under its normalised code.
func (r *CouponRepository) Upsert(ctx context.Context, coupon domain.Coupon) error {
	code := normaliseCouponCode(coupon.Code)
	if code == "" {
		return errors.New("coupon repository: coupon code is required")
	}
	coupon.Code = code
	_, err := r.base.Set(ctx, code, couponToDocument(coupon))
	return err
}

// List returns all coupon definitions.
func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("validUntil", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupons = append(coupons, documentToCoupon(doc.ID, doc.Data))
	}
	return coupons, nil
}

func couponToDocument(coupon domain.Coupon) couponDocument {
	return couponDocument{
		Code:        coupon.Code,
		Type:        string(coupon.Type),
		Value:       coupon.Value,
		MinPurchase: coupon.MinPurchase,
		MaxDiscount: coupon.MaxDiscount,
		ValidFrom:   coupon.ValidFrom.UTC(),
		ValidUntil:  coupon.ValidUntil.UTC(),
		UsageLimit:  coupon.UsageLimit,
		UsedCount:   coupon.UsedCount,
		Active:      coupon.Active,
	}
}

func documentToCoupon(id string, doc couponDocument) domain.Coupon {
	code := doc.Code
	if code == "" {
		code = id
	}
	return domain.Coupon{
		Code:        code,
		Type:        domain.DiscountType(doc.Type),
		Value:       doc.Value,
		MinPurchase: doc.MinPurchase,
		MaxDiscount: doc.MaxDiscount,
		ValidFrom:   doc.ValidFrom,
		ValidUntil:  doc.ValidUntil,
		UsageLimit:  doc.UsageLimit,
		UsedCount:   doc.UsedCount,
		Active:      doc.Active,
	}
}

func normaliseCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
