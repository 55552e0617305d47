package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shakthiframing/storefront/internal/cart"
	"github.com/shakthiframing/storefront/internal/domain"
	"github.com/shakthiframing/storefront/internal/payment"
)

// State is the client-observable phase of one checkout attempt.
type State string

const (
	StateAwaitingPayment State = "awaiting_payment_confirmation"
	StateSubmittingOrder State = "submitting_order"
	StateOrderConfirmed  State = "order_confirmed"
	StateOrderFailed     State = "order_failed"
)

func (s State) IsTerminal() bool {
	return s == StateOrderConfirmed || s == StateOrderFailed
}

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMissingShippingAddress = errors.New("shipping address is missing")
	ErrPaymentFailed          = errors.New("payment was not successful")
)

// PaymentRetriever reports the gateway's view of a payment attempt.
type PaymentRetriever interface {
	RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error)
}

// OrderSubmitter records the order with the backend, returning the
// persisted order id.
type OrderSubmitter interface {
	Submit(ctx context.Context, authorization string, draft OrderDraft) (string, error)
}

// OrderDraft is the order-creation request built from the cart snapshot.
// Its items marshal with the client-side "quantity" field; the orders
// service renames it to the persisted "qty" on its side of the boundary.
type OrderDraft struct {
	Items           []domain.CartItem      `json:"orderItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	TotalPrice      decimal.Decimal        `json:"totalPrice"`
	IsPaid          bool                   `json:"isPaid"`
	PaidAt          time.Time              `json:"paidAt"`
	PaymentResult   domain.PaymentResult   `json:"paymentResult"`
}

// Result is the outcome of one Complete invocation.
type Result struct {
	State   State  `json:"state"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`

	// Err carries the failure cause for status mapping; not serialized.
	Err error `json:"-"`
}

const submitTimeout = 15 * time.Second

// Reconciler converts one confirmed payment into at most one persisted
// order. It is created per checkout attempt and latches its terminal
// outcome: re-invoking Complete after a terminal transition returns the
// recorded result without resubmitting, so duplicate triggers are
// harmless. The guard is the state machine itself, not a debounce.
type Reconciler struct {
	mu     sync.Mutex
	state  State
	result Result

	carts    cart.Repository
	payments PaymentRetriever
	orders   OrderSubmitter
	logger   *slog.Logger
}

func NewReconciler(carts cart.Repository, payments PaymentRetriever, orders OrderSubmitter, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		state:    StateAwaitingPayment,
		carts:    carts,
		payments: payments,
		orders:   orders,
		logger:   logger,
	}
}

// Complete runs the reconciliation for the cart stored under cartKey.
// authorization is the caller's bearer header, forwarded to the orders
// service. The cart is cleared only after the orders service has
// acknowledged persistence; every failure path leaves it untouched for
// retry.
func (r *Reconciler) Complete(ctx context.Context, cartKey, authorization, intentRef string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsTerminal() {
		return r.result
	}

	intent, err := r.payments.RetrieveIntent(ctx, intentRef)
	if err != nil {
		return r.fail(err, "payment confirmation could not be retrieved")
	}

	switch intent.Status {
	case payment.StatusSucceeded:
		// fall through to submission
	case payment.StatusProcessing:
		// not terminal: report without consuming the attempt
		return Result{State: StateAwaitingPayment, Message: "payment is still processing"}
	default:
		return r.fail(ErrPaymentFailed, "payment failed")
	}

	r.state = StateSubmittingOrder

	store, err := r.carts.Load(ctx, cartKey)
	if err != nil {
		return r.fail(err, "cart could not be loaded")
	}

	items := store.Items()
	if len(items) == 0 {
		return r.fail(ErrEmptyCart, "cart is empty")
	}
	address := store.ShippingAddress()
	if address == nil {
		return r.fail(ErrMissingShippingAddress, "shipping address is missing")
	}

	draft := OrderDraft{
		Items:           items,
		ShippingAddress: *address,
		TotalPrice:      store.TotalPrice(),
		IsPaid:          true,
		PaidAt:          time.Now().UTC(),
		PaymentResult:   domain.PaymentResult{ID: intent.ID, Status: string(intent.Status)},
	}

	submitCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	orderID, err := r.orders.Submit(submitCtx, authorization, draft)
	if err != nil {
		return r.fail(fmt.Errorf("submit order: %w", err), "order could not be saved, cart preserved")
	}

	// Clearing the cart strictly after the acknowledged write; a
	// failed delete leaves a stale cart, not a lost order.
	if err := r.carts.Delete(ctx, cartKey); err != nil {
		r.logger.Error("failed to clear cart after order creation", "error", err, "order_id", orderID)
	}

	r.state = StateOrderConfirmed
	r.result = Result{State: StateOrderConfirmed, OrderID: orderID}
	r.logger.Info("checkout completed", "order_id", orderID)
	return r.result
}

func (r *Reconciler) fail(err error, message string) Result {
	r.logger.Info("checkout failed", "error", err, "message", message)
	r.state = StateOrderFailed
	r.result = Result{State: StateOrderFailed, Message: message, Err: err}
	return r.result
}
