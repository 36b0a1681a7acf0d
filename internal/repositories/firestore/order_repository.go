package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
	"github.com/lumenmarket/api/internal/repositories"
)

const (
	orderCollection  = "orders"
	couponCollection = "coupons"
)

// OrderRepository persists orders as single documents with inline line items.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

type orderDocument struct {
	OrderNumber      string              `firestore:"orderNumber"`
	UserID           string              `firestore:"userId"`
	Status           string              `firestore:"status"`
	Subtotal         int64               `firestore:"subtotal"`
	Discount         int64               `firestore:"discount"`
	Shipping         int64               `firestore:"shipping"`
	Tax              int64               `firestore:"tax"`
	Total            int64               `firestore:"total"`
	CouponCode       string              `firestore:"couponCode,omitempty"`
	ShippingAddress  addressDocument     `firestore:"shippingAddress"`
	BillingAddress   addressDocument     `firestore:"billingAddress"`
	PaymentSessionID string              `firestore:"stripeSessionId,omitempty"`
	Items            []orderItemDocument `firestore:"items"`
	CreatedAt        time.Time           `firestore:"createdAt"`
	UpdatedAt        time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	VariantID string `firestore:"variantId"`
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
}

type addressDocument struct {
	Name       string `firestore:"name"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

// Create atomically inserts the order document and, when requested, applies a
// relative increment to the coupon usage counter in the same transaction.
func (r *OrderRepository) Create(ctx context.Context, create repositories.OrderCreate) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}

	order := create.Order
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}

	var couponRef *firestore.DocumentRef
	if create.IncrementCouponUsage {
		code := normaliseCouponCode(create.CouponCode)
		if code == "" {
			return errors.New("order repository: coupon code is required for usage increment")
		}
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		couponRef = client.Collection(couponCollection).Doc(code)
	}

	doc := orderToDocument(order)

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		if couponRef != nil {
			return tx.Update(couponRef, []firestore.Update{
				{Path: "usedCount", Value: firestore.Increment(1)},
			})
		}
		return nil
	})
}

// FindByID fetches an order by its document identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return documentToOrder(doc.ID, doc.Data), nil
}

// FindByPaymentSessionID resolves the order previously attached to the payment session.
func (r *OrderRepository) FindByPaymentSessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Order{}, pfirestore.WrapError("orders.query", status.Error(codes.NotFound, "payment session id is empty"))
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("stripeSessionId", "==", sessionID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.query", status.Errorf(codes.NotFound, "no order for payment session %s", sessionID))
	}
	return documentToOrder(docs[0].ID, docs[0].Data), nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, documentToOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

// AttachPaymentSession records the payment session identifier exactly once.
// Re-attaching the same session is a no-op; a different session is a conflict.
func (r *OrderRepository) AttachPaymentSession(ctx context.Context, orderID, sessionID string, now time.Time) error {
	orderID = strings.TrimSpace(orderID)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("order repository: payment session id is required")
	}

	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		doc, err := r.base.Decode(ctx, snapshot)
		if err != nil {
			return err
		}
		if existing := strings.TrimSpace(doc.Data.PaymentSessionID); existing != "" {
			if existing == sessionID {
				return nil
			}
			return status.Errorf(codes.FailedPrecondition, "order %s already has payment session %s", orderID, existing)
		}
		return tx.Update(orderRef, []firestore.Update{
			{Path: "stripeSessionId", Value: sessionID},
			{Path: "updatedAt", Value: now.UTC()},
		})
	})
}

// TransitionStatus moves the order between statuses, enforcing forward-only
// transitions. Replays that find the order already at or past the target
// status succeed without writing.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, now time.Time) error {
	orderRef, err := r.base.DocumentRef(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		doc, err := r.base.Decode(ctx, snapshot)
		if err != nil {
			return err
		}

		current := domain.OrderStatus(doc.Data.Status)
		if current == to || domain.StatusRank(current) >= domain.StatusRank(to) {
			return nil
		}
		if current != from {
			return status.Errorf(codes.FailedPrecondition, "order %s is %s, expected %s", orderID, current, from)
		}
		if !domain.CanTransition(current, to) {
			return status.Errorf(codes.FailedPrecondition, "order %s cannot move from %s to %s", orderID, current, to)
		}

		return tx.Update(orderRef, []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "updatedAt", Value: now.UTC()},
		})
	})
}

func orderToDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderDocument{
		OrderNumber:      order.OrderNumber,
		UserID:           order.UserID,
		Status:           string(order.Status),
		Subtotal:         order.Subtotal,
		Discount:         order.Discount,
		Shipping:         order.Shipping,
		Tax:              order.Tax,
		Total:            order.Total,
		CouponCode:       order.CouponCode,
		ShippingAddress:  addressToDocument(order.ShippingAddress),
		BillingAddress:   addressToDocument(order.BillingAddress),
		PaymentSessionID: order.PaymentSessionID,
		Items:            items,
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
	}
}

func documentToOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return domain.Order{
		ID:               id,
		OrderNumber:      doc.OrderNumber,
		UserID:           doc.UserID,
		Status:           domain.OrderStatus(doc.Status),
		Subtotal:         doc.Subtotal,
		Discount:         doc.Discount,
		Shipping:         doc.Shipping,
		Tax:              doc.Tax,
		Total:            doc.Total,
		CouponCode:       doc.CouponCode,
		ShippingAddress:  documentToAddress(doc.ShippingAddress),
		BillingAddress:   documentToAddress(doc.BillingAddress),
		PaymentSessionID: doc.PaymentSessionID,
		Items:            items,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func addressToDocument(addr domain.Address) addressDocument {
	return addressDocument{
		Name:       addr.Name,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func documentToAddress(doc addressDocument) domain.Address {
	return domain.Address{
		Name:       doc.Name,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		State:      doc.State,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
		Phone:      doc.Phone,
	}
}
