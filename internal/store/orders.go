package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/girishhardia/Jweluxe/internal/models"
)

// GetOrderByIdempotencyKey retrieves an order by idempotency key, or
// nil when no order carries it.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrderFromCartTx snapshots the caller's cart into a new order in
// a single transaction. Product rows are locked so the stock check and
// the recorded unit prices see a consistent view. Stock is not
// decremented here; that happens when payment is confirmed.
func (s *Store) CreateOrderFromCartTx(ctx context.Context, userID int64, idempotencyKey string) (*models.Order, []models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var entries []models.CartEntry
	err = tx.SelectContext(ctx, &entries, `
		SELECT ci.id, ci.product_id, p.name AS product_name, p.price AS unit_price,
		       p.image_url, ci.quantity, ci.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF p`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock cart products: %w", err)
	}

	if len(entries) == 0 {
		return nil, nil, models.ErrEmptyCart
	}

	var total int64
	for _, e := range entries {
		var stock int
		if err := tx.GetContext(ctx, &stock,
			"SELECT stock FROM products WHERE id = $1", e.ProductID); err != nil {
			return nil, nil, err
		}
		if e.Quantity > stock {
			return nil, nil, fmt.Errorf("%w: product %d has %d, requested %d",
				models.ErrInsufficientStock, e.ProductID, stock, e.Quantity)
		}
		total += e.Subtotal()
	}

	order := &models.Order{
		UserID:         sql.NullInt64{Int64: userID, Valid: true},
		TotalAmount:    total,
		PaymentStatus:  models.OrderStatusPaymentPending,
		IdempotencyKey: idempotencyKey,
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (user_id, total_amount, payment_status, idempotency_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		order.UserID, order.TotalAmount, order.PaymentStatus, order.IdempotencyKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	items := make([]models.OrderItem, 0, len(entries))
	for _, e := range entries {
		item := models.OrderItem{
			OrderID:   order.ID,
			ProductID: e.ProductID,
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice,
		}
		if err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
			return nil, nil, fmt.Errorf("failed to create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// ConfirmOrderTx applies a payment outcome to an order. The order row is
// locked; an already-terminal order is returned unchanged so replayed
// confirmations never decrement stock twice. On success the transaction
// decrements stock for each ordered product, clears the matching cart
// rows, and updates the payments record.
func (s *Store) ConfirmOrderTx(ctx context.Context, orderID int64, succeeded bool) (*models.Order, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, false, fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, false, err
	}

	if models.IsTerminalStatus(order.PaymentStatus) {
		return &order, false, nil
	}

	status := models.OrderStatusPaymentFailed
	paymentStatus := models.PaymentStatusFailed

	if succeeded {
		status = models.OrderStatusPaymentSucceeded
		paymentStatus = models.PaymentStatusSucceeded

		var items []models.OrderItem
		if err := tx.SelectContext(ctx, &items,
			"SELECT * FROM order_items WHERE order_id = $1 ORDER BY product_id", orderID); err != nil {
			return nil, false, err
		}

		for _, item := range items {
			res, err := tx.ExecContext(ctx,
				"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
				item.Quantity, item.ProductID)
			if err != nil {
				return nil, false, fmt.Errorf("failed to decrement stock: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return nil, false, err
			}
			if n == 0 {
				return nil, false, fmt.Errorf("%w: product %d", models.ErrInsufficientStock, item.ProductID)
			}
		}

		if order.UserID.Valid {
			for _, item := range items {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2",
					order.UserID.Int64, item.ProductID); err != nil {
					return nil, false, fmt.Errorf("failed to clear cart: %w", err)
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID); err != nil {
		return nil, false, err
	}

	// Only the row for the order's current intent is settled; rows for
	// superseded intents keep their pending status.
	if _, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = $1, updated_at = NOW() WHERE order_id = $2 AND provider_tx_id = $3",
		paymentStatus, orderID, order.PaymentIntentID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	order.PaymentStatus = status
	return &order, true, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// SetOrderPaymentIntent stores the external intent identifier on an order
func (s *Store) SetOrderPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2",
		intentID, orderID)
	return err
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, status, provider_tx_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.OrderID, payment.Status, payment.ProviderTxID, payment.Amount)
}

// GetPaymentByOrderID retrieves the latest payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: payment for order %d", models.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
