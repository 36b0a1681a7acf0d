package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSigningSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	timestamp := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload() []byte {
	return []byte(`{
		"id": "evt_test_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "object": "checkout.session"}}
	}`)
}

func TestVerifyAcceptsSignedPayload(t *testing.T) {
	verifier, err := NewWebhookVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	payload := checkoutCompletedPayload()
	event, err := verifier.Verify(payload, signPayload(t, payload, testSigningSecret, time.Now()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if event.Type != EventCheckoutCompleted {
		t.Fatalf("unexpected event type %q", event.Type)
	}

	sessionID, err := SessionIDFromEvent(event)
	if err != nil {
		t.Fatalf("SessionIDFromEvent: %v", err)
	}
	if sessionID != "cs_test_1" {
		t.Fatalf("unexpected session id %q", sessionID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	verifier, err := NewWebhookVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	payload := checkoutCompletedPayload()
	if _, err := verifier.Verify(payload, signPayload(t, payload, "whsec_other", time.Now())); !errors.Is(err, ErrWebhookSignature) {
		t.Fatalf("expected ErrWebhookSignature, got %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	verifier, err := NewWebhookVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	payload := checkoutCompletedPayload()
	header := signPayload(t, payload, testSigningSecret, time.Now())
	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	if _, err := verifier.Verify(tampered, header); !errors.Is(err, ErrWebhookSignature) {
		t.Fatalf("expected ErrWebhookSignature, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	verifier, err := NewWebhookVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	payload := checkoutCompletedPayload()
	stale := signPayload(t, payload, testSigningSecret, time.Now().Add(-time.Hour))
	if _, err := verifier.Verify(payload, stale); !errors.Is(err, ErrWebhookSignature) {
		t.Fatalf("expected ErrWebhookSignature for stale signature, got %v", err)
	}
}

func TestSessionIDFromEventRejectsMissingID(t *testing.T) {
	verifier, err := NewWebhookVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}

	payload := []byte(`{"id": "evt_test_2", "type": "checkout.session.completed", "data": {"object": {"object": "checkout.session"}}}`)
	event, err := verifier.Verify(payload, signPayload(t, payload, testSigningSecret, time.Now()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := SessionIDFromEvent(event); !errors.Is(err, ErrWebhookPayload) {
		t.Fatalf("expected ErrWebhookPayload, got %v", err)
	}
}
