package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shakthiframing/storefront/internal/auth"
	"github.com/shakthiframing/storefront/internal/domain"
)

// OrderStore is the persistence surface the handler needs. Satisfied by
// *OrderRepository; faked in tests.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

// EventPublisher publishes order lifecycle events. Satisfied by
// *messaging.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	store    OrderStore
	producer EventPublisher
	logger   *slog.Logger
}

// NewHandler builds the orders handler. producer may be nil when no
// event bus is configured; order creation then skips the notification
// event.
func NewHandler(store OrderStore, producer EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		producer: producer,
		logger:   logger,
	}
}

// createOrderItem is the wire shape of a line item. The count arrives as
// "quantity" and is renamed to the persisted "qty" field here. The two
// names are a fixed boundary contract; do not unify them.
type createOrderItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Image      string          `json:"image"`
	Price      decimal.Decimal `json:"price"`
	ProductRef string          `json:"product"`
}

type createOrderRequest struct {
	OrderItems      []createOrderItem      `json:"orderItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	TotalPrice      decimal.Decimal        `json:"totalPrice"`
	IsPaid          bool                   `json:"isPaid"`
	PaidAt          *time.Time             `json:"paidAt"`
	PaymentResult   *domain.PaymentResult  `json:"paymentResult"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.OrderItems) == 0 {
		h.writeError(w, http.StatusBadRequest, "no order items")
		return
	}

	items := make([]domain.OrderItem, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		items = append(items, domain.OrderItem{
			Name:       item.Name,
			Qty:        item.Quantity,
			Image:      item.Image,
			Price:      item.Price,
			ProductRef: item.ProductRef,
		})
	}

	now := time.Now().UTC()
	order := &domain.Order{
		OwnerID:         principal.ID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		TotalPrice:      req.TotalPrice,
		IsPaid:          req.IsPaid,
		PaidAt:          req.PaidAt,
		PaymentResult:   req.PaymentResult,
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "owner_id", principal.ID)
	h.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "order": order})

	// Confirmation is best-effort and must never alter the response
	// already sent or roll back the order.
	go h.publishCreated(context.WithoutCancel(r.Context()), order, principal)
}

func (h *Handler) publishCreated(ctx context.Context, order *domain.Order, principal *auth.Principal) {
	if h.producer == nil {
		return
	}

	event := domain.OrderCreatedEvent{
		OrderID:    order.ID,
		OwnerID:    principal.ID,
		OwnerName:  principal.Name,
		OwnerEmail: principal.Email,
		TotalPrice: order.TotalPrice,
		Timestamp:  order.CreatedAt,
	}
	if err := h.producer.Publish(ctx, order.ID, event); err != nil {
		h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
	}
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	orders, err := h.store.ListByOwner(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "owner_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": orders})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(orders), "orders": orders})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authorized, no user data")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if principal.Role != auth.RoleAdmin && order.OwnerID != principal.ID {
		h.writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Status.IsValidTarget() {
		h.writeError(w, http.StatusBadRequest, "invalid status provided")
		return
	}

	order, err := h.store.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
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
