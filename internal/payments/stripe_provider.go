package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/lumenmarket/api/internal/services"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProviderConfig configures the StripeProvider. Sessions overrides the
// live API client, primarily for tests.
type StripeProviderConfig struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	Currency   string
	Backends   *stripe.Backends
	Logger     StripeLogger
	Clock      func() time.Time
	Sessions   stripeSessionAPI
}

// StripeProvider opens hosted Stripe Checkout sessions for orders.
type StripeProvider struct {
	sessions   stripeSessionAPI
	successURL string
	cancelURL  string
	currency   string
	clock      func() time.Time
	logger     StripeLogger
}

// NewStripeProvider constructs a Stripe-backed payment provider.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return nil, errors.New("stripe: success and cancel URLs are required")
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sc := client.New(apiKey, cfg.Backends)
		sessions = sc.CheckoutSessions
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		sessions:   sessions,
		successURL: strings.TrimSpace(cfg.SuccessURL),
		cancelURL:  strings.TrimSpace(cfg.CancelURL),
		currency:   currency,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateCheckoutSession opens a payment-mode Checkout session for the order.
// The line items carry the order's snapshot prices in minor units; shipping
// and tax are added as their own lines. When a discount applies the breakdown
// collapses into a single consolidated line so the charged amount matches the
// order total exactly.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req services.CheckoutSessionRequest) (services.PaymentSession, error) {
	if p == nil {
		return services.PaymentSession{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(appendOrderParam(p.successURL, req.OrderID)),
		CancelURL:  stripe.String(appendOrderParam(p.cancelURL, req.OrderID)),
		Metadata: map[string]string{
			"orderId":     req.OrderID,
			"orderNumber": req.OrderNumber,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.OrderID)
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.LineItems = p.lineItems(req)

	session, err := p.sessions.New(params)
	if err != nil {
		return services.PaymentSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session_created", map[string]any{
		"session_id":   session.ID,
		"order_id":     req.OrderID,
		"order_number": req.OrderNumber,
		"amount":       req.Totals.Total,
	})

	return services.PaymentSession{
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

// CheckoutSessionURL resolves the hosted URL for a previously created session.
func (p *StripeProvider) CheckoutSessionURL(ctx context.Context, sessionID string) (string, error) {
	if p == nil {
		return "", errors.New("stripe: provider is nil")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := p.sessions.Get(sessionID, params)
	if err != nil {
		return "", fmt.Errorf("stripe: get checkout session %s: %w", sessionID, err)
	}
	if session.URL == "" {
		return "", fmt.Errorf("stripe: session %s has no hosted url", sessionID)
	}
	return session.URL, nil
}

func (p *StripeProvider) lineItems(req services.CheckoutSessionRequest) []*stripe.CheckoutSessionLineItemParams {
	if req.Totals.Discount > 0 {
		name := "Order " + req.OrderNumber
		return []*stripe.CheckoutSessionLineItemParams{p.line(name, req.Totals.Total, 1)}
	}

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items)+2)
	for _, item := range req.Items {
		qty := int64(item.Quantity)
		if qty < 1 {
			qty = 1
		}
		items = append(items, p.line(item.Name, item.UnitPrice, qty))
	}
	if req.Totals.Shipping > 0 {
		items = append(items, p.line("Shipping", req.Totals.Shipping, 1))
	}
	if req.Totals.Tax > 0 {
		items = append(items, p.line("Tax", req.Totals.Tax, 1))
	}
	if len(items) == 0 {
		items = append(items, p.line("Order "+req.OrderNumber, req.Totals.Total, 1))
	}
	return items
}

func (p *StripeProvider) line(name string, amount int64, quantity int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(quantity),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(p.currency),
			UnitAmount: stripe.Int64(amount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}

func appendOrderParam(base, orderID string) string {
	parsed, err := url.Parse(base)
	if err != nil {
		return base
	}
	query := parsed.Query()
	query.Set("order_id", orderID)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
