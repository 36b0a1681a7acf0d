package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

// ReconcileServiceDeps lists the collaborators a ReconcileService needs.
type ReconcileServiceDeps struct {
	Orders repositories.OrderRepository
	Events OrderEventPublisher
	Logger func(ctx context.Context, event string, fields map[string]any)
	Clock  func() time.Time
}

func (d *ReconcileServiceDeps) normalise() error {
	if d.Orders == nil {
		return errors.New("reconcile service: order repository is required")
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

// ReconcileService applies verified payment notifications to order state. It
// must tolerate at-least-once delivery: replays and unknown sessions are
// acknowledged, never errored, so the processor stops redelivering.
type ReconcileService struct {
	deps ReconcileServiceDeps
}

// NewReconcileService validates dependencies and constructs the service.
func NewReconcileService(deps ReconcileServiceDeps) (*ReconcileService, error) {
	if err := deps.normalise(); err != nil {
		return nil, err
	}
	return &ReconcileService{deps: deps}, nil
}

// HandleCheckoutCompleted moves the order attached to the payment session
// from PENDING to PROCESSING. An unknown session is logged and acknowledged;
// an order already at PROCESSING or beyond is a no-op.
func (s *ReconcileService) HandleCheckoutCompleted(ctx context.Context, sessionID string) error {
	order, err := s.deps.Orders.FindByPaymentSessionID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.deps.Logger(ctx, "reconcile.unknown_session", map[string]any{
				"session_id": sessionID,
			})
			return nil
		}
		return fmt.Errorf("reconcile service: find order by session: %w", err)
	}

	if domain.StatusRank(order.Status) >= domain.StatusRank(domain.OrderStatusProcessing) {
		s.deps.Logger(ctx, "reconcile.replay_ignored", map[string]any{
			"order_id": order.ID,
			"status":   string(order.Status),
		})
		return nil
	}

	now := s.deps.Clock()
	if err := s.deps.Orders.TransitionStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusProcessing, now); err != nil {
		return fmt.Errorf("reconcile service: transition order %s: %w", order.ID, err)
	}

	s.deps.Logger(ctx, "reconcile.order_paid", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	s.publishPaid(ctx, order, now)
	return nil
}

func (s *ReconcileService) publishPaid(ctx context.Context, order domain.Order, now time.Time) {
	if s.deps.Events == nil {
		return
	}
	_, err := s.deps.Events.PublishOrderEvent(ctx, OrderEvent{
		EventID:     uuid.NewString(),
		Type:        OrderEventPaid,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		OccurredAt:  now,
	})
	if err != nil {
		s.deps.Logger(ctx, "reconcile.event_publish_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
