package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// EventCheckoutCompleted is the Stripe event type the reconciliation path acts on.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	// ErrWebhookSignature indicates the payload failed signature verification.
	ErrWebhookSignature = errors.New("stripe webhook: signature verification failed")
	// ErrWebhookPayload indicates the verified payload could not be decoded.
	ErrWebhookPayload = errors.New("stripe webhook: malformed payload")
)

// WebhookVerifier authenticates inbound Stripe webhook deliveries against the
// endpoint's signing secret before any payload field is trusted.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier constructs a verifier for the endpoint signing secret.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("stripe webhook: signing secret is required")
	}
	return &WebhookVerifier{secret: secret}, nil
}

// Verify checks the Stripe-Signature header against the payload and returns
// the decoded event. Verification failures never expose payload contents.
func (v *WebhookVerifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}
	return event, nil
}

// SessionIDFromEvent extracts the checkout session identifier from a verified
// checkout event.
func SessionIDFromEvent(event stripe.Event) (string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWebhookPayload, err)
	}
	if session.ID == "" {
		return "", fmt.Errorf("%w: missing session id", ErrWebhookPayload)
	}
	return session.ID, nil
}
