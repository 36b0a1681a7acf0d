package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newCartRouter(env *testEnv) chi.Router {
	h := NewCartHandlers(env.authn, env.cartDeps, env.pricing, env.coupons)
	return NewRouter(WithCartRoutes(h.Routes))
}

func seedCart(t *testing.T, router chi.Router, sessionToken string) {
	t.Helper()
	for _, body := range []string{
		`{"key":"var_shirt","product_id":"prod_shirt","name":"Shirt","unit_price":2000,"quantity":2}`,
		`{"key":"var_mug","product_id":"prod_mug","name":"Mug","unit_price":1500,"quantity":1}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		req.Header.Set(sessionTokenHeader, sessionToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("seed cart item: status = %d body = %s", rr.Code, rr.Body.String())
		}
	}
}

func TestCartHandlers_AddAndEstimate(t *testing.T) {
	env := newTestEnv(t)
	router := newCartRouter(env)

	seedCart(t, router, "sess-abc")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set(sessionTokenHeader, "sess-abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["owner"] != "sess-abc" {
		t.Fatalf("owner = %v, want sess-abc", body["owner"])
	}
	if count, _ := body["count"].(float64); count != 3 {
		t.Fatalf("count = %v, want 3", body["count"])
	}
	estimate, ok := body["estimate"].(map[string]any)
	if !ok {
		t.Fatalf("estimate missing: %v", body)
	}
	if estimate["subtotal"] != float64(5500) {
		t.Fatalf("subtotal = %v, want 5500", estimate["subtotal"])
	}
	if estimate["shipping"] != float64(999) {
		t.Fatalf("shipping = %v, want 999", estimate["shipping"])
	}
	if estimate["tax"] != float64(440) {
		t.Fatalf("tax = %v, want 440", estimate["tax"])
	}
	if estimate["total"] != float64(6939) {
		t.Fatalf("total = %v, want 6939", estimate["total"])
	}
}

func TestCartHandlers_CouponPreview(t *testing.T) {
	env := newTestEnv(t)
	router := newCartRouter(env)
	seedCart(t, router, "sess-abc")

	t.Run("valid coupon lowers the estimate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/?coupon=save10", nil)
		req.Header.Set(sessionTokenHeader, "sess-abc")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		body := decodeBody(t, rr)
		coupon, ok := body["coupon"].(map[string]any)
		if !ok {
			t.Fatalf("coupon missing: %v", body)
		}
		if coupon["code"] != "SAVE10" {
			t.Fatalf("code = %v, want SAVE10", coupon["code"])
		}
		if coupon["applied"] != true {
			t.Fatalf("applied = %v, want true", coupon["applied"])
		}
		if coupon["discount"] != float64(550) {
			t.Fatalf("discount = %v, want 550", coupon["discount"])
		}

		estimate := body["estimate"].(map[string]any)
		if estimate["discount"] != float64(550) {
			t.Fatalf("estimate discount = %v, want 550", estimate["discount"])
		}
		if estimate["tax"] != float64(396) {
			t.Fatalf("estimate tax = %v, want 396", estimate["tax"])
		}
		if estimate["total"] != float64(6345) {
			t.Fatalf("estimate total = %v, want 6345", estimate["total"])
		}
	})

	t.Run("unknown coupon reports rejection without failing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/?coupon=NOPE", nil)
		req.Header.Set(sessionTokenHeader, "sess-abc")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		body := decodeBody(t, rr)
		coupon := body["coupon"].(map[string]any)
		if coupon["applied"] != false {
			t.Fatalf("applied = %v, want false", coupon["applied"])
		}
		if coupon["reason"] != "not_found" {
			t.Fatalf("reason = %v, want not_found", coupon["reason"])
		}
		estimate := body["estimate"].(map[string]any)
		if estimate["discount"] != float64(0) {
			t.Fatalf("estimate discount = %v, want 0", estimate["discount"])
		}
	})
}

func TestCartHandlers_OwnerResolution(t *testing.T) {
	env := newTestEnv(t)
	router := newCartRouter(env)

	t.Run("missing owner is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
		if body := decodeBody(t, rr); body["error"] != "session_required" {
			t.Fatalf("error = %v, want session_required", body["error"])
		}
	})

	t.Run("identity takes precedence over session token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
		req.Header.Set("Authorization", "Bearer user-token")
		req.Header.Set(sessionTokenHeader, "sess-abc")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		if body := decodeBody(t, rr); body["owner"] != "user-1" {
			t.Fatalf("owner = %v, want user-1", body["owner"])
		}
	})

	t.Run("invalid bearer token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})
}

func TestCartHandlers_UpdateAndRemove(t *testing.T) {
	env := newTestEnv(t)
	router := newCartRouter(env)
	seedCart(t, router, "sess-abc")

	t.Run("zero quantity removes the item", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/var_mug", strings.NewReader(`{"quantity":0}`))
		req.Header.Set(sessionTokenHeader, "sess-abc")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		body := decodeBody(t, rr)
		items := body["items"].([]any)
		if len(items) != 1 {
			t.Fatalf("items = %d, want 1", len(items))
		}
	})

	t.Run("delete clears the cart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/", nil)
		req.Header.Set(sessionTokenHeader, "sess-abc")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		body := decodeBody(t, rr)
		if count, _ := body["count"].(float64); count != 0 {
			t.Fatalf("count = %v, want 0", body["count"])
		}
	})

	t.Run("invalid item is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"key":"","unit_price":100,"quantity":1}`))
		req.Header.Set(sessionTokenHeader, "sess-abc")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
		if body := decodeBody(t, rr); body["error"] != "invalid_item" {
			t.Fatalf("error = %v, want invalid_item", body["error"])
		}
	})
}

func TestCartHandlers_Replace(t *testing.T) {
	env := newTestEnv(t)
	router := newCartRouter(env)
	seedCart(t, router, "sess-abc")

	payload := `{"items":[{"key":"var_shirt","product_id":"prod_shirt","name":"Shirt","unit_price":2000,"quantity":4}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/", strings.NewReader(payload))
	req.Header.Set(sessionTokenHeader, "sess-abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	items := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	estimate := body["estimate"].(map[string]any)
	// 8000 clears the free shipping threshold.
	if estimate["shipping"] != float64(0) {
		t.Fatalf("shipping = %v, want 0", estimate["shipping"])
	}
	if estimate["total"] != float64(8640) {
		t.Fatalf("total = %v, want 8640", estimate["total"])
	}
}
