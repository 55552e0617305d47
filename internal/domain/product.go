package domain

import "github.com/shopspring/decimal"

// Product is the catalog lookup shape used to snapshot cart items at
// add time. Cart and order line items never re-fetch it.
type Product struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Images []string        `json:"images"`
}
