package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shakthiframing/storefront/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	var paymentID, paymentStatus sql.NullString
	if order.PaymentResult != nil {
		paymentID = sql.NullString{String: order.PaymentResult.ID, Valid: true}
		paymentStatus = sql.NullString{String: order.PaymentResult.Status, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, owner_id,
			address, city, postal_code, country,
			total_price, is_paid, paid_at, payment_id, payment_status,
			status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`, order.ID, order.OwnerID,
		order.ShippingAddress.Address, order.ShippingAddress.City,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		order.TotalPrice, order.IsPaid, order.PaidAt, paymentID, paymentStatus,
		order.Status, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		itemID := uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_ref, name, image, price, qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, itemID, order.ID, item.ProductRef, item.Name, item.Image, item.Price, item.Qty)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	var paymentID, paymentStatus sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id,
			address, city, postal_code, country,
			total_price, is_paid, paid_at, payment_id, payment_status,
			status, delivered_at, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.OwnerID,
		&order.ShippingAddress.Address, &order.ShippingAddress.City,
		&order.ShippingAddress.PostalCode, &order.ShippingAddress.Country,
		&order.TotalPrice, &order.IsPaid, &order.PaidAt, &paymentID, &paymentStatus,
		&order.Status, &order.DeliveredAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if paymentID.Valid {
		order.PaymentResult = &domain.PaymentResult{ID: paymentID.String, Status: paymentStatus.String}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_ref, name, image, price, qty
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductRef, &item.Name, &item.Image, &item.Price, &item.Qty); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	// Delivered is terminal for fulfillment and also stamps the
	// delivery timestamp.
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`
	if status == domain.OrderStatusDelivered {
		query = `UPDATE orders SET status = $1, delivered_at = NOW(), updated_at = NOW() WHERE id = $2`
	}

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, owner_id,
			address, city, postal_code, country,
			total_price, is_paid, paid_at, payment_id, payment_status,
			status, delivered_at, created_at, updated_at
		FROM orders
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, owner_id,
			address, city, postal_code, country,
			total_price, is_paid, paid_at, payment_id, payment_status,
			status, delivered_at, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		var paymentID, paymentStatus sql.NullString
		if err := rows.Scan(&order.ID, &order.OwnerID,
			&order.ShippingAddress.Address, &order.ShippingAddress.City,
			&order.ShippingAddress.PostalCode, &order.ShippingAddress.Country,
			&order.TotalPrice, &order.IsPaid, &order.PaidAt, &paymentID, &paymentStatus,
			&order.Status, &order.DeliveredAt, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		if paymentID.Valid {
			order.PaymentResult = &domain.PaymentResult{ID: paymentID.String, Status: paymentStatus.String}
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_ref, name, image, price, qty
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductRef, &item.Name, &item.Image, &item.Price, &item.Qty); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
