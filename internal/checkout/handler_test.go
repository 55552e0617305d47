package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/shakthiframing/storefront/internal/auth"
	"github.com/shakthiframing/storefront/internal/cart"
	"github.com/shakthiframing/storefront/internal/catalog"
	"github.com/shakthiframing/storefront/internal/domain"
	"github.com/shakthiframing/storefront/internal/payment"
)

type fakeCatalog struct {
	products map[string]*domain.Product
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if product, ok := c.products[id]; ok {
		return product, nil
	}
	return nil, catalog.ErrProductNotFound
}

func newTestHandler(t *testing.T, payments PaymentRetriever, orders OrderSubmitter) *Handler {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	lookup := &fakeCatalog{products: map[string]*domain.Product{
		"prod-oak": {
			ID:     "prod-oak",
			Name:   "Oak Frame 30x40",
			Price:  decimal.RequireFromString("45.00"),
			Images: []string{"/images/oak.jpg"},
		},
	}}

	return NewHandler(cart.NewRedisRepository(client, time.Hour), lookup, payments, orders, testLogger())
}

func asCustomer(r *http.Request) *http.Request {
	principal := &auth.Principal{ID: "user-1", Name: "Shakthi", Email: "shakthi@example.com", Role: auth.RoleCustomer}
	return r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
}

type cartEnvelope struct {
	Success bool `json:"success"`
	Cart    struct {
		Items           []domain.CartItem       `json:"items"`
		ShippingAddress *domain.ShippingAddress `json:"shippingAddress"`
		TotalItems      int                     `json:"totalItems"`
		TotalPrice      decimal.Decimal         `json:"totalPrice"`
	} `json:"cart"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartEnvelope {
	t.Helper()
	var env cartEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode cart response: %v", err)
	}
	return env
}

func addOak(t *testing.T, h *Handler, quantity int) {
	t.Helper()
	body := `{"productId": "prod-oak", "quantity": ` + strconv.Itoa(quantity) + `}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.HandleAddItem(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("HandleAddItem status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleAddItemSnapshotsProduct(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/cart/items",
		strings.NewReader(`{"productId": "prod-oak", "quantity": 2}`)))
	rec := httptest.NewRecorder()
	h.HandleAddItem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeCart(t, rec)
	if len(env.Cart.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(env.Cart.Items))
	}
	item := env.Cart.Items[0]
	if item.ProductRef != "prod-oak" || item.Name != "Oak Frame 30x40" || item.Image != "/images/oak.jpg" {
		t.Errorf("unexpected snapshot %+v", item)
	}
	if got, want := env.Cart.TotalPrice.StringFixed(2), "90.00"; got != want {
		t.Errorf("total = %s, want %s", got, want)
	}
}

func TestHandleAddItemUnknownProduct(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/cart/items",
		strings.NewReader(`{"productId": "prod-missing", "quantity": 1}`)))
	rec := httptest.NewRecorder()
	h.HandleAddItem(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleAddItemRejectsNonPositiveQuantity(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/cart/items",
		strings.NewReader(`{"productId": "prod-oak", "quantity": 0}`)))
	rec := httptest.NewRecorder()
	h.HandleAddItem(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleUpdateItemZeroRemoves(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})
	addOak(t, h, 2)

	req := asCustomer(httptest.NewRequest(http.MethodPut, "/cart/items/prod-oak",
		strings.NewReader(`{"quantity": 0}`)))
	req.SetPathValue("productId", "prod-oak")
	rec := httptest.NewRecorder()
	h.HandleUpdateItem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeCart(t, rec)
	if len(env.Cart.Items) != 0 {
		t.Errorf("items = %d, want 0 after zero-quantity update", len(env.Cart.Items))
	}
}

func TestHandleRemoveItem(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})
	addOak(t, h, 1)

	req := asCustomer(httptest.NewRequest(http.MethodDelete, "/cart/items/prod-oak", nil))
	req.SetPathValue("productId", "prod-oak")
	rec := httptest.NewRecorder()
	h.HandleRemoveItem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeCart(t, rec)
	if len(env.Cart.Items) != 0 {
		t.Errorf("items = %d, want 0", len(env.Cart.Items))
	}
}

func TestHandleSaveShippingAddress(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})
	addOak(t, h, 1)

	req := asCustomer(httptest.NewRequest(http.MethodPut, "/cart/shipping-address",
		strings.NewReader(`{"address": "12 Gallery Lane", "city": "Coimbatore", "postalCode": "641001", "country": "India"}`)))
	rec := httptest.NewRecorder()
	h.HandleSaveShippingAddress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeCart(t, rec)
	if env.Cart.ShippingAddress == nil || env.Cart.ShippingAddress.City != "Coimbatore" {
		t.Errorf("unexpected address %+v", env.Cart.ShippingAddress)
	}
}

func TestHandleClearCartDropsAddress(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})
	addOak(t, h, 1)

	addrReq := asCustomer(httptest.NewRequest(http.MethodPut, "/cart/shipping-address",
		strings.NewReader(`{"address": "12 Gallery Lane", "city": "Coimbatore", "postalCode": "641001", "country": "India"}`)))
	h.HandleSaveShippingAddress(httptest.NewRecorder(), addrReq)

	req := asCustomer(httptest.NewRequest(http.MethodDelete, "/cart", nil))
	rec := httptest.NewRecorder()
	h.HandleClearCart(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeCart(t, rec)
	if len(env.Cart.Items) != 0 {
		t.Errorf("items = %d, want 0", len(env.Cart.Items))
	}
	if env.Cart.ShippingAddress != nil {
		t.Errorf("address = %+v, want nil after clear", env.Cart.ShippingAddress)
	}

	getReq := asCustomer(httptest.NewRequest(http.MethodGet, "/cart", nil))
	getRec := httptest.NewRecorder()
	h.HandleGetCart(getRec, getReq)
	if env := decodeCart(t, getRec); len(env.Cart.Items) != 0 || env.Cart.ShippingAddress != nil {
		t.Errorf("cleared cart persisted: %+v", env.Cart)
	}
}

func TestHandleGetCartRequiresPrincipal(t *testing.T) {
	h := newTestHandler(t, &fakePayments{}, &fakeSubmitter{})

	rec := httptest.NewRecorder()
	h.HandleGetCart(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleCompleteConfirmsOnce(t *testing.T) {
	payments := &fakePayments{intent: &payment.Intent{ID: "pi_123", Status: payment.StatusSucceeded}}
	submitter := &fakeSubmitter{orderID: "order-1"}
	h := newTestHandler(t, payments, submitter)

	addOak(t, h, 2)
	addrReq := asCustomer(httptest.NewRequest(http.MethodPut, "/cart/shipping-address",
		strings.NewReader(`{"address": "12 Gallery Lane", "city": "Coimbatore", "postalCode": "641001", "country": "India"}`)))
	h.HandleSaveShippingAddress(httptest.NewRecorder(), addrReq)

	complete := func() *httptest.ResponseRecorder {
		req := asCustomer(httptest.NewRequest(http.MethodPost, "/checkout/complete",
			strings.NewReader(`{"paymentIntentId": "pi_123"}`)))
		rec := httptest.NewRecorder()
		h.HandleComplete(rec, req)
		return rec
	}

	first := complete()
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", first.Code, first.Body.String())
	}

	var body struct {
		Success bool   `json:"success"`
		State   State  `json:"state"`
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(first.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.Success || body.State != StateOrderConfirmed || body.OrderID != "order-1" {
		t.Errorf("unexpected body %+v", body)
	}

	// A duplicated trigger for the same intent hits the same latched attempt.
	second := complete()
	if second.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d, body %s", second.Code, second.Body.String())
	}
	if submitter.count() != 1 {
		t.Errorf("submit count = %d, want exactly 1", submitter.count())
	}
}

func TestHandleCompleteRetriesAfterSubmitFailure(t *testing.T) {
	payments := &fakePayments{intent: &payment.Intent{ID: "pi_123", Status: payment.StatusSucceeded}}
	submitter := &fakeSubmitter{orderID: "order-1", err: errors.New("orders service unavailable")}
	h := newTestHandler(t, payments, submitter)

	addOak(t, h, 2)
	addrReq := asCustomer(httptest.NewRequest(http.MethodPut, "/cart/shipping-address",
		strings.NewReader(`{"address": "12 Gallery Lane", "city": "Coimbatore", "postalCode": "641001", "country": "India"}`)))
	h.HandleSaveShippingAddress(httptest.NewRecorder(), addrReq)

	complete := func() *httptest.ResponseRecorder {
		req := asCustomer(httptest.NewRequest(http.MethodPost, "/checkout/complete",
			strings.NewReader(`{"paymentIntentId": "pi_123"}`)))
		rec := httptest.NewRecorder()
		h.HandleComplete(rec, req)
		return rec
	}

	first := complete()
	if first.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", first.Code, http.StatusBadGateway)
	}

	// The cart survives the failed write, so the checkout can be redone.
	getRec := httptest.NewRecorder()
	h.HandleGetCart(getRec, asCustomer(httptest.NewRequest(http.MethodGet, "/cart", nil)))
	if env := decodeCart(t, getRec); len(env.Cart.Items) != 1 {
		t.Fatalf("items after failed submit = %d, want 1", len(env.Cart.Items))
	}

	// Once the orders service recovers, the same paid intent confirms.
	submitter.err = nil
	second := complete()
	if second.Code != http.StatusOK {
		t.Fatalf("retry status = %d, body %s", second.Code, second.Body.String())
	}

	var body struct {
		Success bool   `json:"success"`
		State   State  `json:"state"`
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.Success || body.State != StateOrderConfirmed || body.OrderID != "order-1" {
		t.Errorf("unexpected retry body %+v", body)
	}
	if submitter.count() != 2 {
		t.Errorf("submit count = %d, want 2", submitter.count())
	}
}

func TestHandleCompleteSweepsStaleAttempts(t *testing.T) {
	payments := &fakePayments{intent: &payment.Intent{ID: "pi_123", Status: payment.StatusSucceeded}}
	submitter := &fakeSubmitter{orderID: "order-1"}
	h := newTestHandler(t, payments, submitter)
	h.attemptTTL = -time.Second

	addOak(t, h, 1)
	addrReq := asCustomer(httptest.NewRequest(http.MethodPut, "/cart/shipping-address",
		strings.NewReader(`{"address": "12 Gallery Lane", "city": "Coimbatore", "postalCode": "641001", "country": "India"}`)))
	h.HandleSaveShippingAddress(httptest.NewRecorder(), addrReq)

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/checkout/complete",
		strings.NewReader(`{"paymentIntentId": "pi_123"}`)))
	rec := httptest.NewRecorder()
	h.HandleComplete(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	h.mu.Lock()
	settled := len(h.attempts)
	h.mu.Unlock()
	if settled != 1 {
		t.Fatalf("attempts after confirm = %d, want 1", settled)
	}

	// Any later attempt sweeps entries past their TTL.
	h.attempt("user-2", "pi_999")

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.attempts) != 1 {
		t.Fatalf("attempts after sweep = %d, want 1", len(h.attempts))
	}
	if _, ok := h.attempts[attemptKey("user-2", "pi_999")]; !ok {
		t.Error("expected only the fresh attempt to remain")
	}
}

func TestHandleCompletePaymentProcessing(t *testing.T) {
	payments := &fakePayments{intent: &payment.Intent{ID: "pi_123", Status: payment.StatusProcessing}}
	h := newTestHandler(t, payments, &fakeSubmitter{})

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/checkout/complete",
		strings.NewReader(`{"paymentIntentId": "pi_123"}`)))
	rec := httptest.NewRecorder()
	h.HandleComplete(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

func TestHandleCompleteEmptyCart(t *testing.T) {
	payments := &fakePayments{intent: &payment.Intent{ID: "pi_123", Status: payment.StatusSucceeded}}
	h := newTestHandler(t, payments, &fakeSubmitter{})

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/checkout/complete",
		strings.NewReader(`{"paymentIntentId": "pi_123"}`)))
	rec := httptest.NewRecorder()
	h.HandleComplete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleCompletePaymentFailed(t *testing.T) {
	payments := &fakePayments{intent: &payment.Intent{ID: "pi_123", Status: payment.StatusFailed}}
	h := newTestHandler(t, payments, &fakeSubmitter{})
	addOak(t, h, 1)

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/checkout/complete",
		strings.NewReader(`{"paymentIntentId": "pi_123"}`)))
	rec := httptest.NewRecorder()
	h.HandleComplete(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
}
