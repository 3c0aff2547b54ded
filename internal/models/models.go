package models

import (
	"database/sql"
	"time"
)

// User is a registered customer or administrator.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Category groups products. Deleting a category nulls the reference on
// dependent products, it never cascades to them.
type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product is a catalog entry. Price is stored in minor currency units.
type Product struct {
	ID          int64         `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	Price       int64         `db:"price" json:"price"`
	ImageURL    string        `db:"image_url" json:"image_url"`
	CategoryID  sql.NullInt64 `db:"category_id" json:"category_id,omitempty"`
	Stock       int           `db:"stock" json:"stock"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// CartItem is one (user, product) row. The pair is unique; repeated adds
// accumulate quantity.
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CartEntry is a cart item resolved with its product snapshot for display.
type CartEntry struct {
	ID          int64     `db:"id" json:"id"`
	ProductID   int64     `db:"product_id" json:"product_id"`
	ProductName string    `db:"product_name" json:"product_name"`
	UnitPrice   int64     `db:"unit_price" json:"unit_price"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	Quantity    int       `db:"quantity" json:"quantity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Subtotal returns unit price times quantity.
func (e CartEntry) Subtotal() int64 {
	return e.UnitPrice * int64(e.Quantity)
}

// Order is an immutable checkout record; only the payment status and the
// payment intent reference change after creation. The user reference is
// nullable so orders survive user deletion.
type Order struct {
	ID              int64         `db:"id" json:"id"`
	UserID          sql.NullInt64 `db:"user_id" json:"user_id"`
	TotalAmount     int64         `db:"total_amount" json:"total_amount"`
	PaymentStatus   string        `db:"payment_status" json:"payment_status"`
	PaymentIntentID string        `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	IdempotencyKey  string        `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// OrderItem is the cart snapshot captured at checkout, decoupled from
// later catalog changes.
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// Payment records a charge attempt against the external processor.
type Payment struct {
	ID           int64     `db:"id" json:"id"`
	OrderID      int64     `db:"order_id" json:"order_id"`
	Status       string    `db:"status" json:"status"`
	ProviderTxID string    `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	Amount       int64     `db:"amount" json:"amount"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Order payment statuses. payment_pending is the only non-terminal state.
const (
	OrderStatusPaymentPending   = "payment_pending"
	OrderStatusPaymentSucceeded = "payment_succeeded"
	OrderStatusPaymentFailed    = "payment_failed"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// IsTerminalStatus reports whether an order payment status admits no
// further transitions.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusPaymentSucceeded || status == OrderStatusPaymentFailed
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
