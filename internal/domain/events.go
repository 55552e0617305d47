package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is published after an order has been durably
// persisted. It carries enough of the owner's contact details for the
// notifier to compose a confirmation without calling back into the
// orders service.
type OrderCreatedEvent struct {
	OrderID    string          `json:"order_id"`
	OwnerID    string          `json:"owner_id"`
	OwnerName  string          `json:"owner_name"`
	OwnerEmail string          `json:"owner_email"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Timestamp  time.Time       `json:"timestamp"`
}
