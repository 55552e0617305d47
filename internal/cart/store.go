package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/shakthiframing/storefront/internal/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// Store holds one identity's cart: an ordered list of line items, unique
// per product reference, plus an optional shipping address. It performs
// pure data transforms only; persistence lives in Repository.
//
// A Store is created empty at session start and torn down (deleted from
// the repository) on login, registration, logout and on successful order
// submission, so a cart is never shared across identities.
type Store struct {
	items   []domain.CartItem
	address *domain.ShippingAddress
}

func NewStore() *Store {
	return &Store{}
}

// AddItem merges qty into an existing line item for the same product, or
// appends a new item snapshotting name, price and first image from the
// product at call time. The snapshot is never refreshed.
func (s *Store) AddItem(product domain.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	for i := range s.items {
		if s.items[i].ProductRef == product.ID {
			s.items[i].Quantity += qty
			return nil
		}
	}

	var image string
	if len(product.Images) > 0 {
		image = product.Images[0]
	}

	s.items = append(s.items, domain.CartItem{
		ProductRef: product.ID,
		Name:       product.Name,
		UnitPrice:  product.Price,
		Image:      image,
		Quantity:   qty,
	})
	return nil
}

// RemoveItem deletes the line item for productRef. Absent items are a
// no-op, not an error.
func (s *Store) RemoveItem(productRef string) {
	for i := range s.items {
		if s.items[i].ProductRef == productRef {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// UpdateQuantity sets the item's quantity to qty (absolute, not an
// increment). A qty of zero or less behaves as RemoveItem. Unknown
// productRef is a no-op.
func (s *Store) UpdateQuantity(productRef string, qty int) {
	if qty <= 0 {
		s.RemoveItem(productRef)
		return
	}
	for i := range s.items {
		if s.items[i].ProductRef == productRef {
			s.items[i].Quantity = qty
			return
		}
	}
}

// Clear empties the items and drops the shipping address.
func (s *Store) Clear() {
	s.items = nil
	s.address = nil
}

// SaveShippingAddress replaces any existing address unconditionally.
// Field validation is the capturing form's responsibility.
func (s *Store) SaveShippingAddress(addr domain.ShippingAddress) {
	s.address = &addr
}

func (s *Store) Items() []domain.CartItem {
	items := make([]domain.CartItem, len(s.items))
	copy(items, s.items)
	return items
}

func (s *Store) ShippingAddress() *domain.ShippingAddress {
	if s.address == nil {
		return nil
	}
	addr := *s.address
	return &addr
}

// TotalItemCount is the sum of quantities across items.
func (s *Store) TotalItemCount() int {
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is the sum of unit price times quantity across items.
func (s *Store) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
