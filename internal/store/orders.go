package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RishiVykunta/e-commerce/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, total_amount, shipping_address,
	COALESCE(phone_number, '') AS phone_number,
	COALESCE(payment_intent_id, '') AS payment_intent_id,
	status, COALESCE(idempotency_key, '') AS idempotency_key,
	created_at, updated_at`

const orderDetailColumns = `o.id, o.user_id, o.total_amount, o.shipping_address,
	COALESCE(o.phone_number, '') AS phone_number,
	COALESCE(o.payment_intent_id, '') AS payment_intent_id,
	o.status, COALESCE(o.idempotency_key, '') AS idempotency_key,
	o.created_at, o.updated_at,
	COALESCE(u.name, '') AS user_name,
	COALESCE(u.email, '') AS user_email`

// OrderTx is the set of writes the order engine performs inside one
// transaction.
type OrderTx interface {
	LockProducts(ctx context.Context, ids []int64) ([]models.Product, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
}

type orderTx struct {
	tx *sqlx.Tx
}

// LockProducts loads the given products and holds row locks on them until
// the transaction ends. Rows are locked in ascending id order so concurrent
// orders over overlapping products cannot deadlock.
func (t *orderTx) LockProducts(ctx context.Context, ids []int64) ([]models.Product, error) {
	var products []models.Product
	err := t.tx.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	return products, nil
}

// InsertOrder inserts the order header
func (t *orderTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, total_amount, shipping_address, phone_number, payment_intent_id, status, idempotency_key)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''))
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		order.UserID, order.TotalAmount, order.ShippingAddress, order.PhoneNumber,
		order.PaymentIntentID, order.Status, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == paymentIntentIndex {
				return fmt.Errorf("order with payment intent %q: %w", order.PaymentIntentID, ErrPaymentIntentUsed)
			}
			return fmt.Errorf("order with idempotency key %q: %w", order.IdempotencyKey, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// InsertOrderItem inserts one order line
func (t *orderTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if err := t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price); err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

// DecrementStock takes quantity units off a product. The update only
// matches while enough stock remains, so stock never goes negative.
func (t *orderTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
	}
	return nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderDetail retrieves an order with its owner and items
func (s *Store) GetOrderDetail(ctx context.Context, id int64) (*models.OrderDetail, error) {
	var order models.OrderDetail
	err := s.db.GetContext(ctx, &order, `
		SELECT `+orderDetailColumns+`
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	orders := []models.OrderDetail{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]models.OrderDetail, error) {
	orders := []models.OrderDetail{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return orders, s.attachItems(ctx, orders)
}

// ListOrders retrieves every order with its owner, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.OrderDetail, error) {
	orders := []models.OrderDetail{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT `+orderDetailColumns+`
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC`)
	if err != nil {
		return nil, err
	}
	return orders, s.attachItems(ctx, orders)
}

// UpdateOrderStatus updates order status and returns the updated header
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+orderColumns,
		status, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// attachItems loads the items of all given orders with a single query.
func (s *Store) attachItems(ctx context.Context, orders []models.OrderDetail) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItemDetail{}
	}

	var items []models.OrderItemDetail
	err := s.db.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, COALESCE(oi.product_id, 0) AS product_id, oi.quantity, oi.price,
		       COALESCE(p.name, '') AS product_name,
		       COALESCE(p.image_url, '') AS product_image
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return nil
}
