package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
)

func newReconcileFixture(t *testing.T) (*ReconcileService, *fakeOrderRepository, *fakeEventPublisher) {
	t.Helper()

	orders := newFakeOrderRepository()
	events := &fakeEventPublisher{}
	service, err := NewReconcileService(ReconcileServiceDeps{
		Orders: orders,
		Events: events,
		Clock:  func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewReconcileService: %v", err)
	}
	return service, orders, events
}

func pendingOrderWithSession(id, sessionID string) domain.Order {
	return domain.Order{
		ID:               id,
		OrderNumber:      "ORD-1700000000000-ABCDEF123",
		UserID:           "user-1",
		Status:           domain.OrderStatusPending,
		Total:            6939,
		PaymentSessionID: sessionID,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
}

func TestHandleCheckoutCompletedTransitionsOrder(t *testing.T) {
	service, orders, events := newReconcileFixture(t)
	orders.orders["ord_1"] = pendingOrderWithSession("ord_1", "cs_test_1")

	if err := service.HandleCheckoutCompleted(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("HandleCheckoutCompleted: %v", err)
	}

	order, err := orders.FindByID(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", order.Status)
	}
	if len(events.events) != 1 || events.events[0].Type != OrderEventPaid {
		t.Fatalf("expected one order.paid event, got %+v", events.events)
	}
}

func TestHandleCheckoutCompletedReplayIsNoop(t *testing.T) {
	service, orders, events := newReconcileFixture(t)
	orders.orders["ord_1"] = pendingOrderWithSession("ord_1", "cs_test_1")

	if err := service.HandleCheckoutCompleted(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := service.HandleCheckoutCompleted(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("replay should acknowledge: %v", err)
	}

	order, _ := orders.FindByID(context.Background(), "ord_1")
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected PROCESSING after replay, got %s", order.Status)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected exactly one order.paid event, got %d", len(events.events))
	}
}

func TestHandleCheckoutCompletedUnknownSessionIsAcknowledged(t *testing.T) {
	service, _, events := newReconcileFixture(t)

	if err := service.HandleCheckoutCompleted(context.Background(), "cs_unknown"); err != nil {
		t.Fatalf("unknown session must be acknowledged: %v", err)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events for unknown session, got %+v", events.events)
	}
}

func TestHandleCheckoutCompletedSkipsShippedOrder(t *testing.T) {
	service, orders, events := newReconcileFixture(t)
	order := pendingOrderWithSession("ord_1", "cs_test_1")
	order.Status = domain.OrderStatusShipped
	orders.orders["ord_1"] = order

	if err := service.HandleCheckoutCompleted(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("HandleCheckoutCompleted: %v", err)
	}

	current, _ := orders.FindByID(context.Background(), "ord_1")
	if current.Status != domain.OrderStatusShipped {
		t.Fatalf("expected status untouched, got %s", current.Status)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events, got %+v", events.events)
	}
}
