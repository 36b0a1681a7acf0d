package domain

import (
	"strings"
	"time"
)

// All monetary amounts are expressed in minor currency units (cents).

// DiscountType enumerates the supported coupon discount kinds.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// OrderStatus captures the order lifecycle. Transitions only move forward.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
	OrderStatusCanceled:   4,
}

// StatusRank returns the ordering position of a status, or -1 when unknown.
func StatusRank(status OrderStatus) int {
	rank, ok := orderStatusRank[status]
	if !ok {
		return -1
	}
	return rank
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition reports whether moving an order from one status to another is allowed.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CartLineItem is a single entry in a cart or wishlist collection.
// Key is the variant identifier for carts and the product identifier for
// wishlists; at most one entry per key exists in a collection.
type CartLineItem struct {
	Key        string            `json:"key"`
	ProductID  string            `json:"productId"`
	Name       string            `json:"name"`
	UnitPrice  int64             `json:"unitPrice"`
	Image      string            `json:"image,omitempty"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Coupon is a named discount rule with eligibility constraints and a usage cap.
type Coupon struct {
	Code        string
	Type        DiscountType
	Value       int64
	MinPurchase *int64
	MaxDiscount *int64
	ValidFrom   time.Time
	ValidUntil  time.Time
	UsageLimit  *int64
	UsedCount   int64
	Active      bool
}

// Address is a structured postal address; Validate enumerates missing
// required fields instead of accepting arbitrary shapes.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Validate returns the names of required fields that are missing or blank.
func (a Address) Validate() []string {
	var missing []string
	check := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	check("name", a.Name)
	check("line1", a.Line1)
	check("city", a.City)
	check("postalCode", a.PostalCode)
	check("country", a.Country)
	return missing
}

// OrderItem snapshots a purchased variant at order time. Later catalog price
// changes never affect it.
type OrderItem struct {
	ProductID string
	VariantID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// Order is the durable, financially authoritative record of a checkout.
// It is created atomically with its items and never deleted; the only
// mutations are forward status transitions and the one-time attachment of
// the payment session identifier.
type Order struct {
	ID               string
	OrderNumber      string
	UserID           string
	Status           OrderStatus
	Subtotal         int64
	Discount         int64
	Shipping         int64
	Tax              int64
	Total            int64
	CouponCode       string
	ShippingAddress  Address
	BillingAddress   Address
	PaymentSessionID string
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VariantPrice is the authoritative catalog answer for a variant lookup.
type VariantPrice struct {
	VariantID string
	ProductID string
	Name      string
	UnitPrice int64
}
