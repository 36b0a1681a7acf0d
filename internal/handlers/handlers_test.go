package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/lumenmarket/api/internal/cart"
	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/repositories"
	"github.com/lumenmarket/api/internal/services"
)

var handlersTestNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

type repoNotFoundError struct{}

func (repoNotFoundError) Error() string       { return "not found" }
func (repoNotFoundError) IsNotFound() bool    { return true }
func (repoNotFoundError) IsConflict() bool    { return false }
func (repoNotFoundError) IsUnavailable() bool { return false }

type repoConflictError struct{}

func (repoConflictError) Error() string       { return "conflict" }
func (repoConflictError) IsNotFound() bool    { return false }
func (repoConflictError) IsConflict() bool    { return true }
func (repoConflictError) IsUnavailable() bool { return false }

type memCouponRepo struct {
	coupons map[string]domain.Coupon
}

func (r *memCouponRepo) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	coupon, ok := r.coupons[code]
	if !ok {
		return domain.Coupon{}, repoNotFoundError{}
	}
	return coupon, nil
}

func (r *memCouponRepo) IncrementUsage(_ context.Context, code string) error {
	coupon, ok := r.coupons[code]
	if !ok {
		return repoNotFoundError{}
	}
	coupon.UsedCount++
	r.coupons[code] = coupon
	return nil
}

func (r *memCouponRepo) Upsert(_ context.Context, coupon domain.Coupon) error {
	r.coupons[coupon.Code] = coupon
	return nil
}

func (r *memCouponRepo) List(_ context.Context) ([]domain.Coupon, error) {
	out := make([]domain.Coupon, 0, len(r.coupons))
	for _, coupon := range r.coupons {
		out = append(out, coupon)
	}
	return out, nil
}

type memOrderRepo struct {
	orders map[string]domain.Order
}

func (r *memOrderRepo) Create(_ context.Context, create repositories.OrderCreate) error {
	if _, ok := r.orders[create.Order.ID]; ok {
		return repoConflictError{}
	}
	r.orders[create.Order.ID] = create.Order
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repoNotFoundError{}
	}
	return order, nil
}

func (r *memOrderRepo) FindByPaymentSessionID(_ context.Context, sessionID string) (domain.Order, error) {
	for _, order := range r.orders {
		if order.PaymentSessionID == sessionID {
			return order, nil
		}
	}
	return domain.Order{}, repoNotFoundError{}
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrderRepo) AttachPaymentSession(_ context.Context, orderID, sessionID string, now time.Time) error {
	order, ok := r.orders[orderID]
	if !ok {
		return repoNotFoundError{}
	}
	if order.PaymentSessionID == sessionID {
		return nil
	}
	if order.PaymentSessionID != "" {
		return repoConflictError{}
	}
	order.PaymentSessionID = sessionID
	order.UpdatedAt = now
	r.orders[orderID] = order
	return nil
}

func (r *memOrderRepo) TransitionStatus(_ context.Context, orderID string, from, to domain.OrderStatus, now time.Time) error {
	order, ok := r.orders[orderID]
	if !ok {
		return repoNotFoundError{}
	}
	if order.Status == to || domain.StatusRank(order.Status) >= domain.StatusRank(to) {
		return nil
	}
	if order.Status != from || !domain.CanTransition(from, to) {
		return repoConflictError{}
	}
	order.Status = to
	order.UpdatedAt = now
	r.orders[orderID] = order
	return nil
}

type memVariantRepo struct {
	prices map[string]domain.VariantPrice
}

func (r *memVariantRepo) ResolvePrice(_ context.Context, variantID string) (domain.VariantPrice, error) {
	price, ok := r.prices[variantID]
	if !ok {
		return domain.VariantPrice{}, repoNotFoundError{}
	}
	return price, nil
}

type stubPaymentProvider struct {
	createErr error
	created   int
}

func (p *stubPaymentProvider) CreateCheckoutSession(_ context.Context, req services.CheckoutSessionRequest) (services.PaymentSession, error) {
	if p.createErr != nil {
		return services.PaymentSession{}, p.createErr
	}
	p.created++
	id := fmt.Sprintf("cs_test_%d", p.created)
	return services.PaymentSession{SessionID: id, RedirectURL: "https://pay.example.com/" + id}, nil
}

func (p *stubPaymentProvider) CheckoutSessionURL(_ context.Context, sessionID string) (string, error) {
	return "https://pay.example.com/" + sessionID, nil
}

// fakeTokenVerifier maps bearer token strings to canned Firebase tokens.
type fakeTokenVerifier struct {
	tokens map[string]*firebaseauth.Token
}

func (v *fakeTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	token, ok := v.tokens[idToken]
	if !ok {
		return nil, errors.New("token not recognised")
	}
	return token, nil
}

func testAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(&fakeTokenVerifier{tokens: map[string]*firebaseauth.Token{
		"user-token": {
			UID: "user-1",
			Claims: map[string]interface{}{
				"role":  "user",
				"email": "alex@example.com",
			},
		},
		"other-token": {
			UID: "user-2",
			Claims: map[string]interface{}{
				"role":  "user",
				"email": "sam@example.com",
			},
		},
		"admin-token": {
			UID: "admin-1",
			Claims: map[string]interface{}{
				"role":  "admin",
				"email": "admin@example.com",
			},
		},
	}})
}

type testEnv struct {
	authn     *auth.Authenticator
	cartDeps  cart.Deps
	pricing   *services.PricingEngine
	coupons   *services.CouponService
	orders    *services.OrderService
	reconcile *services.ReconcileService
	orderRepo *memOrderRepo
	payments  *stubPaymentProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := func() time.Time { return handlersTestNow }
	minPurchase := int64(5000)
	couponRepo := &memCouponRepo{coupons: map[string]domain.Coupon{
		"SAVE10": {
			Code:        "SAVE10",
			Type:        domain.DiscountTypePercentage,
			Value:       10,
			MinPurchase: &minPurchase,
			ValidFrom:   handlersTestNow.AddDate(0, -1, 0),
			ValidUntil:  handlersTestNow.AddDate(0, 1, 0),
			Active:      true,
		},
	}}
	orderRepo := &memOrderRepo{orders: make(map[string]domain.Order)}
	variantRepo := &memVariantRepo{prices: map[string]domain.VariantPrice{
		"var_shirt": {VariantID: "var_shirt", ProductID: "prod_shirt", Name: "Shirt", UnitPrice: 2000},
		"var_mug":   {VariantID: "var_mug", ProductID: "prod_mug", Name: "Mug", UnitPrice: 1500},
	}}
	paymentsStub := &stubPaymentProvider{}

	pricing, err := services.NewPricingEngine(services.PricingConfig{
		FreeShippingThreshold: 7500,
		FlatShippingCost:      999,
		TaxRateBPS:            800,
	})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}

	coupons, err := services.NewCouponService(services.CouponServiceDeps{Coupons: couponRepo, Clock: clock})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}

	idSeq := 0
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   orderRepo,
		Variants: variantRepo,
		Coupons:  coupons,
		Pricing:  pricing,
		Payments: paymentsStub,
		Clock:    clock,
		IDGen: func() string {
			idSeq++
			return fmt.Sprintf("ord_test%d", idSeq)
		},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	reconcile, err := services.NewReconcileService(services.ReconcileServiceDeps{Orders: orderRepo, Clock: clock})
	if err != nil {
		t.Fatalf("NewReconcileService: %v", err)
	}

	return &testEnv{
		authn:     testAuthenticator(),
		cartDeps:  cart.Deps{Adapter: cart.NewMemoryAdapter(), Clock: clock},
		pricing:   pricing,
		coupons:   coupons,
		orders:    orders,
		reconcile: reconcile,
		orderRepo: orderRepo,
		payments:  paymentsStub,
	}
}
