package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
)

// sessionTokenHeader carries the opaque anonymous-session token used to key
// carts and wishlists when no authenticated identity is present.
const sessionTokenHeader = "X-Session-Token"

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// resolveOwner keys cart and wishlist state: the authenticated identity wins,
// anonymous requests fall back to the opaque session token header.
func resolveOwner(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
		return identity.UID
	}
	return strings.TrimSpace(r.Header.Get(sessionTokenHeader))
}

type addressPayload struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload{
		Name:       strings.TrimSpace(addr.Name),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
		Phone:      strings.TrimSpace(addr.Phone),
	}
}

func (p addressPayload) toDomain() domain.Address {
	return domain.Address{
		Name:       p.Name,
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Country:    p.Country,
		Phone:      p.Phone,
	}
}

type lineItemPayload struct {
	Key        string            `json:"key"`
	ProductID  string            `json:"product_id"`
	Name       string            `json:"name"`
	UnitPrice  int64             `json:"unit_price"`
	Image      string            `json:"image,omitempty"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func buildLineItemPayloads(items []domain.CartLineItem) []lineItemPayload {
	payload := make([]lineItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, lineItemPayload{
			Key:        item.Key,
			ProductID:  item.ProductID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Image:      item.Image,
			Quantity:   item.Quantity,
			Attributes: item.Attributes,
		})
	}
	return payload
}

func (p lineItemPayload) toDomain() domain.CartLineItem {
	return domain.CartLineItem{
		Key:        p.Key,
		ProductID:  p.ProductID,
		Name:       p.Name,
		UnitPrice:  p.UnitPrice,
		Image:      p.Image,
		Quantity:   p.Quantity,
		Attributes: p.Attributes,
	}
}
