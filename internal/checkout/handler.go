package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shakthiframing/storefront/internal/auth"
	"github.com/shakthiframing/storefront/internal/cart"
	"github.com/shakthiframing/storefront/internal/catalog"
	"github.com/shakthiframing/storefront/internal/domain"
	"github.com/shakthiframing/storefront/internal/payment"
)

// CatalogLookup supplies product snapshots for cart additions.
type CatalogLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// attemptTTL bounds how long a settled attempt keeps absorbing
// duplicate completion calls before its entry is swept.
const attemptTTL = time.Hour

type attemptEntry struct {
	reconciler *Reconciler
	createdAt  time.Time
}

type Handler struct {
	carts    cart.Repository
	catalog  CatalogLookup
	payments PaymentRetriever
	orders   OrderSubmitter
	logger   *slog.Logger

	attemptTTL time.Duration
	mu         sync.Mutex
	attempts   map[string]*attemptEntry
}

func NewHandler(carts cart.Repository, catalogClient CatalogLookup, payments PaymentRetriever, orders OrderSubmitter, logger *slog.Logger) *Handler {
	return &Handler{
		carts:      carts,
		catalog:    catalogClient,
		payments:   payments,
		orders:     orders,
		logger:     logger,
		attemptTTL: attemptTTL,
		attempts:   make(map[string]*attemptEntry),
	}
}

type cartResponse struct {
	Items           []domain.CartItem       `json:"items"`
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress,omitempty"`
	TotalItems      int                     `json:"totalItems"`
	TotalPrice      decimal.Decimal         `json:"totalPrice"`
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	store, err := h.carts.Load(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.writeCart(w, store)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to look up product", "error", err, "product_id", req.ProductID)
		h.writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	store, err := h.carts.Load(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	if err := store.AddItem(*product, req.Quantity); err != nil {
		h.writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}

	if err := h.carts.Save(r.Context(), principal.ID, store); err != nil {
		h.logger.Error("failed to save cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.logger.Info("cart item added", "owner_id", principal.ID, "product_id", req.ProductID, "quantity", req.Quantity)
	h.writeCart(w, store)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, err := h.carts.Load(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	store.UpdateQuantity(productID, req.Quantity)

	if err := h.carts.Save(r.Context(), principal.ID, store); err != nil {
		h.logger.Error("failed to save cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.writeCart(w, store)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	store, err := h.carts.Load(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	store.RemoveItem(productID)

	if err := h.carts.Save(r.Context(), principal.ID, store); err != nil {
		h.logger.Error("failed to save cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.writeCart(w, store)
}

func (h *Handler) HandleSaveShippingAddress(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	var addr domain.ShippingAddress
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, err := h.carts.Load(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	// No shape validation here; the capturing form owns it.
	store.SaveShippingAddress(addr)

	if err := h.carts.Save(r.Context(), principal.ID, store); err != nil {
		h.logger.Error("failed to save cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.writeCart(w, store)
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	if err := h.carts.Delete(r.Context(), principal.ID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.writeCart(w, cart.NewStore())
}

type completeRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reconciler := h.attempt(principal.ID, req.PaymentIntentID)
	result := reconciler.Complete(r.Context(), principal.ID, r.Header.Get("Authorization"), req.PaymentIntentID)

	switch result.State {
	case StateOrderConfirmed:
		h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": result.State, "orderId": result.OrderID})
	case StateAwaitingPayment:
		h.writeJSON(w, http.StatusAccepted, map[string]any{"success": false, "state": result.State, "message": result.Message})
	default:
		// A failed attempt must not strand a paid intent. Drop the
		// latched reconciler so a re-initiated checkout starts fresh.
		h.release(principal.ID, req.PaymentIntentID, reconciler)
		h.writeJSON(w, h.failureStatus(result.Err), map[string]any{"success": false, "state": result.State, "message": result.Message})
	}
}

// attempt returns the reconciler for one checkout attempt, creating it
// on first sight. Keying by principal and intent reference makes a
// duplicated completion call land on the same latched reconciler.
// Entries older than the attempt TTL are swept so the map stays
// bounded over the life of the service.
func (h *Handler) attempt(principalID, intentRef string) *Reconciler {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for key, entry := range h.attempts {
		if now.Sub(entry.createdAt) > h.attemptTTL {
			delete(h.attempts, key)
		}
	}

	key := attemptKey(principalID, intentRef)
	if entry, ok := h.attempts[key]; ok {
		return entry.reconciler
	}

	entry := &attemptEntry{
		reconciler: NewReconciler(h.carts, h.payments, h.orders, h.logger),
		createdAt:  now,
	}
	h.attempts[key] = entry
	return entry.reconciler
}

// release evicts one attempt, but only while it still holds the given
// reconciler. A concurrent caller that already re-armed the slot with
// a fresh reconciler keeps its entry.
func (h *Handler) release(principalID, intentRef string, reconciler *Reconciler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := attemptKey(principalID, intentRef)
	if entry, ok := h.attempts[key]; ok && entry.reconciler == reconciler {
		delete(h.attempts, key)
	}
}

func attemptKey(principalID, intentRef string) string {
	return principalID + ":" + intentRef
}

func (h *Handler) failureStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrMissingShippingAddress),
		errors.Is(err, payment.ErrMissingIntentRef):
		return http.StatusBadRequest
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) writeCart(w http.ResponseWriter, store *cart.Store) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cart": cartResponse{
			Items:           store.Items(),
			ShippingAddress: store.ShippingAddress(),
			TotalItems:      store.TotalItemCount(),
			TotalPrice:      store.TotalPrice(),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"success": false, "message": message})
}
