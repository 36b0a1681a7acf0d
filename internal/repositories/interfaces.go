package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err categorises as a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err categorises as a conflicting update.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err categorises as a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// OrderCreate carries the order insert plus the coupon bookkeeping that must
// commit in the same transaction.
type OrderCreate struct {
	Order                domain.Order
	CouponCode           string
	IncrementCouponUsage bool
}

// OrderRepository persists orders with their line items as a single document.
type OrderRepository interface {
	// Create atomically inserts the order and, when requested, applies a
	// relative increment to the coupon's usage counter.
	Create(ctx context.Context, create OrderCreate) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByPaymentSessionID resolves the order previously attached to the
	// payment session, returning a not-found error when no order matches.
	FindByPaymentSessionID(ctx context.Context, sessionID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// AttachPaymentSession records the payment session identifier exactly
	// once; a second attempt with a different session is a conflict.
	AttachPaymentSession(ctx context.Context, orderID, sessionID string, now time.Time) error
	// TransitionStatus moves the order between statuses, enforcing the
	// forward-only transition table inside the transaction.
	TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, now time.Time) error
}

// CouponRepository persists coupon definitions and usage counters.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	// IncrementUsage applies a relative +1 to the usage counter.
	IncrementUsage(ctx context.Context, code string) error
	Upsert(ctx context.Context, coupon domain.Coupon) error
	List(ctx context.Context) ([]domain.Coupon, error)
}

// VariantRepository resolves authoritative catalog prices for variants.
type VariantRepository interface {
	ResolvePrice(ctx context.Context, variantID string) (domain.VariantPrice, error)
}

// HealthRepository evaluates dependency readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (HealthReport, error)
}

// HealthStatus enumerates probe outcomes.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// HealthCheckResult captures a single dependency probe outcome.
type HealthCheckResult struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency probe outcomes.
type HealthReport struct {
	Status      HealthStatus
	Checks      map[string]HealthCheckResult
	GeneratedAt time.Time
}
