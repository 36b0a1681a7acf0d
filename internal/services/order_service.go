package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the checkout request failed field validation.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderIdentityRequired indicates the caller is not authenticated.
	ErrOrderIdentityRequired = errors.New("order service: identity is required")
	// ErrVariantNotFound indicates a requested variant does not resolve in the catalog.
	ErrVariantNotFound = errors.New("order service: variant not found")
	// ErrOrderNotFound indicates the order does not exist or belongs to a
	// different identity; the two cases are deliberately indistinguishable.
	ErrOrderNotFound = errors.New("order service: order not found")
	// ErrOrderNotPayable indicates a checkout retry against an order that has
	// already left the awaiting-payment state.
	ErrOrderNotPayable = errors.New("order service: order is not awaiting payment")
	// ErrOrderInvalidTransition indicates a status update the transition table forbids.
	ErrOrderInvalidTransition = errors.New("order service: status transition not allowed")
	// ErrPaymentUnavailable indicates the payment provider failed; the order is
	// persisted and checkout is safe to retry against it.
	ErrPaymentUnavailable = errors.New("order service: payment provider unavailable")
)

// FieldValidationError reports the individual request fields that failed
// validation, using dotted paths such as "shippingAddress.city".
type FieldValidationError struct {
	Fields []string
}

func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("order service: invalid input: %s", strings.Join(e.Fields, ", "))
}

func (e *FieldValidationError) Unwrap() error { return ErrOrderInvalidInput }

// PaymentSession is the provider's answer to a checkout session request.
type PaymentSession struct {
	SessionID   string
	RedirectURL string
}

// CheckoutSessionRequest carries everything the payment provider needs to
// open a hosted checkout session for an order.
type CheckoutSessionRequest struct {
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	Items         []domain.OrderItem
	Totals        Totals
}

// PaymentProvider is the external processor contract.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (PaymentSession, error)
	// CheckoutSessionURL resolves the hosted redirect URL for an existing session.
	CheckoutSessionURL(ctx context.Context, sessionID string) (string, error)
}

// OrderEvent is an order lifecycle notification fanned out to downstream
// consumers (fulfilment, notifications). EventID is unique per emission so
// at-least-once consumers can deduplicate.
type OrderEvent struct {
	EventID     string    `json:"eventId"`
	Type        string    `json:"type"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	Total       int64     `json:"total"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Order event types.
const (
	OrderEventCreated = "order.created"
	OrderEventPaid    = "order.paid"
)

// OrderEventPublisher fans order lifecycle events out to interested consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// OrderLineRequest is a client-requested order line. The unit price is never
// taken from the client; it is resolved from the catalog at materialisation.
type OrderLineRequest struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderCommand is a validated checkout submission.
type CreateOrderCommand struct {
	UserID          string
	CustomerEmail   string
	Lines           []OrderLineRequest
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	CouponCode      string
}

// CreateOrderResult carries the materialised order and the provider redirect.
type CreateOrderResult struct {
	Order       domain.Order
	RedirectURL string
}

// OrderServiceDeps lists the collaborators an OrderService needs.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Variants repositories.VariantRepository
	Coupons  *CouponService
	Pricing  *PricingEngine
	Payments PaymentProvider
	Events   OrderEventPublisher
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Clock    func() time.Time
	IDGen    func() string
}

func (d *OrderServiceDeps) normalise() error {
	if d.Orders == nil {
		return errors.New("order service: order repository is required")
	}
	if d.Variants == nil {
		return errors.New("order service: variant repository is required")
	}
	if d.Coupons == nil {
		return errors.New("order service: coupon service is required")
	}
	if d.Pricing == nil {
		return errors.New("order service: pricing engine is required")
	}
	if d.Payments == nil {
		return errors.New("order service: payment provider is required")
	}
	if d.Logger == nil {
		d.Logger = func(context.Context, string, map[string]any) {}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	clock := d.Clock
	d.Clock = func() time.Time { return clock().UTC() }
	if d.IDGen == nil {
		d.IDGen = func() string { return "ord_" + ulid.Make().String() }
	}
	return nil
}

// OrderService materialises carts into durable orders and owns the checkout
// lifecycle up to the payment redirect.
type OrderService struct {
	deps OrderServiceDeps
}

// NewOrderService validates dependencies and constructs the service.
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if err := deps.normalise(); err != nil {
		return nil, err
	}
	return &OrderService{deps: deps}, nil
}

// CreateOrder runs the full materialisation flow: resolve authoritative
// prices, compute totals, persist the order atomically with the coupon usage
// increment, then open a payment session and attach it. A payment provider
// failure after persistence surfaces as ErrPaymentUnavailable with the
// persisted order attached; the order stays in PENDING and checkout can be
// retried against it.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	if cmd.UserID == "" {
		return CreateOrderResult{}, ErrOrderIdentityRequired
	}
	if err := validateCreateOrder(cmd); err != nil {
		return CreateOrderResult{}, err
	}

	items, pricingLines, err := s.resolveLines(ctx, cmd.Lines)
	if err != nil {
		return CreateOrderResult{}, err
	}

	base, err := s.deps.Pricing.Calculate(pricingLines, nil)
	if err != nil {
		return CreateOrderResult{}, err
	}

	var coupon *domain.Coupon
	couponApplied := false
	if cmd.CouponCode != "" {
		eval, err := s.deps.Coupons.Evaluate(ctx, cmd.CouponCode, base.Subtotal)
		if err != nil {
			return CreateOrderResult{}, err
		}
		if eval.Applied {
			coupon = eval.Coupon
			couponApplied = true
		}
	}

	totals, err := s.deps.Pricing.Calculate(pricingLines, coupon)
	if err != nil {
		return CreateOrderResult{}, err
	}

	now := s.deps.Clock()
	orderNumber, err := domain.NewOrderNumber(now)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("order service: generate order number: %w", err)
	}

	order := domain.Order{
		ID:              s.deps.IDGen(),
		OrderNumber:     orderNumber,
		UserID:          cmd.UserID,
		Status:          domain.OrderStatusPending,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		Total:           totals.Total,
		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  cmd.BillingAddress,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if couponApplied {
		order.CouponCode = coupon.Code
	}

	create := repositories.OrderCreate{
		Order:                order,
		CouponCode:           order.CouponCode,
		IncrementCouponUsage: couponApplied,
	}
	if err := s.deps.Orders.Create(ctx, create); err != nil {
		return CreateOrderResult{}, fmt.Errorf("order service: create order: %w", err)
	}
	s.deps.Logger(ctx, "order.created", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total":        order.Total,
		"coupon":       order.CouponCode,
	})
	s.publish(ctx, OrderEventCreated, order)

	redirectURL, err := s.openPaymentSession(ctx, &order, cmd.CustomerEmail, totals)
	if err != nil {
		return CreateOrderResult{Order: order}, err
	}

	return CreateOrderResult{Order: order, RedirectURL: redirectURL}, nil
}

// RetryCheckout re-opens payment for an order that is still awaiting payment.
// When a session is already attached its hosted URL is resolved again instead
// of creating a second session; the order identifier is the idempotency key.
func (s *OrderService) RetryCheckout(ctx context.Context, orderID, userID, customerEmail string) (CreateOrderResult, error) {
	order, err := s.getOwnedOrder(ctx, orderID, userID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if order.Status != domain.OrderStatusPending {
		return CreateOrderResult{}, fmt.Errorf("%w: status %s", ErrOrderNotPayable, order.Status)
	}

	if order.PaymentSessionID != "" {
		url, err := s.deps.Payments.CheckoutSessionURL(ctx, order.PaymentSessionID)
		if err != nil {
			s.deps.Logger(ctx, "order.payment_session_lookup_failed", map[string]any{
				"order_id": order.ID,
				"error":    err.Error(),
			})
			return CreateOrderResult{Order: order}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
		}
		return CreateOrderResult{Order: order, RedirectURL: url}, nil
	}

	totals := Totals{
		Subtotal: order.Subtotal,
		Discount: order.Discount,
		Shipping: order.Shipping,
		Tax:      order.Tax,
		Total:    order.Total,
	}
	redirectURL, err := s.openPaymentSession(ctx, &order, customerEmail, totals)
	if err != nil {
		return CreateOrderResult{Order: order}, err
	}
	return CreateOrderResult{Order: order, RedirectURL: redirectURL}, nil
}

// GetOrder fetches one of the caller's orders. An order owned by a different
// identity reports ErrOrderNotFound rather than leaking its existence.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	return s.getOwnedOrder(ctx, orderID, userID)
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrOrderIdentityRequired
	}
	orders, err := s.deps.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("order service: list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order forward through the fulfilment lifecycle on
// behalf of an administrator. Backward moves are rejected.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error) {
	if domain.StatusRank(to) < 0 {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidTransition, to)
	}

	order, err := s.deps.Orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("order service: find order: %w", err)
	}
	if !domain.CanTransition(order.Status, to) {
		return domain.Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, to)
	}

	now := s.deps.Clock()
	if err := s.deps.Orders.TransitionStatus(ctx, order.ID, order.Status, to, now); err != nil {
		if repositories.IsConflict(err) {
			return domain.Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, to)
		}
		return domain.Order{}, fmt.Errorf("order service: transition status: %w", err)
	}

	s.deps.Logger(ctx, "order.status_updated", map[string]any{
		"order_id": order.ID,
		"from":     string(order.Status),
		"to":       string(to),
	})
	order.Status = to
	order.UpdatedAt = now
	return order, nil
}

func (s *OrderService) getOwnedOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Order{}, ErrOrderIdentityRequired
	}

	order, err := s.deps.Orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("order service: find order: %w", err)
	}
	if order.UserID != userID {
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) resolveLines(ctx context.Context, lines []OrderLineRequest) ([]domain.OrderItem, []domain.CartLineItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	pricingLines := make([]domain.CartLineItem, 0, len(lines))
	for _, line := range lines {
		price, err := s.deps.Variants.ResolvePrice(ctx, line.VariantID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return nil, nil, fmt.Errorf("%w: %s", ErrVariantNotFound, line.VariantID)
			}
			return nil, nil, fmt.Errorf("order service: resolve price %s: %w", line.VariantID, err)
		}
		items = append(items, domain.OrderItem{
			ProductID: price.ProductID,
			VariantID: price.VariantID,
			Name:      price.Name,
			Quantity:  line.Quantity,
			UnitPrice: price.UnitPrice,
		})
		pricingLines = append(pricingLines, domain.CartLineItem{
			Key:       price.VariantID,
			ProductID: price.ProductID,
			Name:      price.Name,
			UnitPrice: price.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return items, pricingLines, nil
}

// openPaymentSession requests a hosted session and attaches its identifier to
// the order exactly once. All failures map to ErrPaymentUnavailable so the
// caller can present a retryable outcome.
func (s *OrderService) openPaymentSession(ctx context.Context, order *domain.Order, customerEmail string, totals Totals) (string, error) {
	session, err := s.deps.Payments.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: strings.TrimSpace(customerEmail),
		Items:         order.Items,
		Totals:        totals,
	})
	if err != nil {
		s.deps.Logger(ctx, "order.payment_session_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	if err := s.deps.Orders.AttachPaymentSession(ctx, order.ID, session.SessionID, s.deps.Clock()); err != nil {
		s.deps.Logger(ctx, "order.payment_session_attach_failed", map[string]any{
			"order_id":   order.ID,
			"session_id": session.SessionID,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("order service: attach payment session: %w", err)
	}
	order.PaymentSessionID = session.SessionID
	return session.RedirectURL, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order domain.Order) {
	if s.deps.Events == nil {
		return
	}
	_, err := s.deps.Events.PublishOrderEvent(ctx, OrderEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		OccurredAt:  s.deps.Clock(),
	})
	if err != nil {
		s.deps.Logger(ctx, "order.event_publish_failed", map[string]any{
			"order_id": order.ID,
			"type":     eventType,
			"error":    err.Error(),
		})
	}
}

func validateCreateOrder(cmd CreateOrderCommand) error {
	var fields []string
	if len(cmd.Lines) == 0 {
		fields = append(fields, "lines")
	}
	for i, line := range cmd.Lines {
		if strings.TrimSpace(line.VariantID) == "" {
			fields = append(fields, fmt.Sprintf("lines[%d].variantId", i))
		}
		if line.Quantity < 1 {
			fields = append(fields, fmt.Sprintf("lines[%d].quantity", i))
		}
	}
	for _, missing := range cmd.ShippingAddress.Validate() {
		fields = append(fields, "shippingAddress."+missing)
	}
	for _, missing := range cmd.BillingAddress.Validate() {
		fields = append(fields, "billingAddress."+missing)
	}
	if len(fields) > 0 {
		return &FieldValidationError{Fields: fields}
	}
	return nil
}
