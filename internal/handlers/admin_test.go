package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumenmarket/api/internal/domain"
)

func newAdminRouter(env *testEnv) chi.Router {
	h := NewAdminHandlers(env.authn, env.coupons, env.orders)
	return NewRouter(WithAdminRoutes(h.Routes))
}

func adminRequest(router chi.Router, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAdminHandlers_RoleGate(t *testing.T) {
	env := newTestEnv(t)
	router := newAdminRouter(env)

	t.Run("regular user is rejected", func(t *testing.T) {
		rr := adminRequest(router, http.MethodGet, "/api/v1/admin/coupons", "user-token", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
		if body := decodeBody(t, rr); body["error"] != "insufficient_role" {
			t.Fatalf("error = %v, want insufficient_role", body["error"])
		}
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		rr := adminRequest(router, http.MethodGet, "/api/v1/admin/coupons", "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("admin passes", func(t *testing.T) {
		rr := adminRequest(router, http.MethodGet, "/api/v1/admin/coupons", "admin-token", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
	})
}

func TestAdminHandlers_UpsertCoupon(t *testing.T) {
	env := newTestEnv(t)
	router := newAdminRouter(env)

	t.Run("valid coupon is stored", func(t *testing.T) {
		body := `{
			"type": "fixed",
			"value": 500,
			"valid_from": "2026-06-01T00:00:00Z",
			"valid_until": "2026-07-01T00:00:00Z",
			"usage_limit": 100,
			"active": true
		}`
		rr := adminRequest(router, http.MethodPut, "/api/v1/admin/coupons/summer5", "admin-token", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		coupon := decodeBody(t, rr)["coupon"].(map[string]any)
		if coupon["code"] != "SUMMER5" {
			t.Fatalf("code = %v, want SUMMER5", coupon["code"])
		}
		if coupon["type"] != "FIXED" {
			t.Fatalf("type = %v, want FIXED", coupon["type"])
		}

		listRR := adminRequest(router, http.MethodGet, "/api/v1/admin/coupons", "admin-token", "")
		if listRR.Code != http.StatusOK {
			t.Fatalf("list status = %d", listRR.Code)
		}
		coupons := decodeBody(t, listRR)["coupons"].([]any)
		if len(coupons) != 2 {
			t.Fatalf("coupons = %d, want 2", len(coupons))
		}
	})

	t.Run("invalid discount type", func(t *testing.T) {
		body := `{"type": "BOGO", "value": 1, "valid_from": "2026-06-01T00:00:00Z", "valid_until": "2026-07-01T00:00:00Z", "active": true}`
		rr := adminRequest(router, http.MethodPut, "/api/v1/admin/coupons/broken", "admin-token", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		if respBody := decodeBody(t, rr); respBody["error"] != "invalid_coupon" {
			t.Fatalf("error = %v, want invalid_coupon", respBody["error"])
		}
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		body := `{"type": "FIXED", "value": 1, "valid_from": "yesterday", "valid_until": "2026-07-01T00:00:00Z", "active": true}`
		rr := adminRequest(router, http.MethodPut, "/api/v1/admin/coupons/broken", "admin-token", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
	})
}

func TestAdminHandlers_UpdateOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	router := newAdminRouter(env)
	env.orderRepo.orders["ord_admin1"] = domain.Order{
		ID:          "ord_admin1",
		OrderNumber: "ORD-ADMIN001",
		UserID:      "user-1",
		Status:      domain.OrderStatusProcessing,
		Total:       6939,
		CreatedAt:   handlersTestNow,
		UpdatedAt:   handlersTestNow,
	}

	t.Run("forward transition succeeds", func(t *testing.T) {
		rr := adminRequest(router, http.MethodPatch, "/api/v1/admin/orders/ord_admin1/status", "admin-token", `{"status": "shipped"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		order := decodeBody(t, rr)["order"].(map[string]any)
		if order["status"] != "SHIPPED" {
			t.Fatalf("status = %v, want SHIPPED", order["status"])
		}
	})

	t.Run("backward transition is rejected", func(t *testing.T) {
		rr := adminRequest(router, http.MethodPatch, "/api/v1/admin/orders/ord_admin1/status", "admin-token", `{"status": "PENDING"}`)
		if rr.Code != http.StatusConflict {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		if body := decodeBody(t, rr); body["error"] != "invalid_transition" {
			t.Fatalf("error = %v, want invalid_transition", body["error"])
		}
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		rr := adminRequest(router, http.MethodPatch, "/api/v1/admin/orders/ord_admin1/status", "admin-token", `{"status": "TELEPORTED"}`)
		if rr.Code != http.StatusConflict {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		rr := adminRequest(router, http.MethodPatch, "/api/v1/admin/orders/ord_ghost/status", "admin-token", `{"status": "SHIPPED"}`)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
	})
}
