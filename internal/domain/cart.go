package domain

import "github.com/shopspring/decimal"

// CartItem is a line item as held in the cart. Its wire name for the
// count is "quantity"; the persisted order item uses "qty". The two are
// distinct on purpose and must not be conflated.
type CartItem struct {
	ProductRef string          `json:"product"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"price"`
	Image      string          `json:"image"`
	Quantity   int             `json:"quantity"`
}
