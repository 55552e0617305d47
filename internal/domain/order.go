package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValidTarget reports whether a status may be set through the admin
// status-update operation. "pending" is the creation default and is not
// a valid update target.
func (s OrderStatus) IsValidTarget() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is a line item as persisted. The stored field name is "qty";
// clients submit "quantity" and the orders handler performs the rename.
type OrderItem struct {
	Name       string          `json:"name"`
	Qty        int             `json:"qty"`
	Image      string          `json:"image"`
	Price      decimal.Decimal `json:"price"`
	ProductRef string          `json:"product"`
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Complete reports whether every required address field is present.
func (a ShippingAddress) Complete() bool {
	return a.Address != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// PaymentResult carries the external payment gateway's reference and
// terminal status as reported at checkout time.
type PaymentResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Order struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"user"`
	Items           []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	Status          OrderStatus     `json:"orderStatus"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
