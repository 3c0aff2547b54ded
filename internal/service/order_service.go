package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/girishhardia/Jweluxe/internal/models"
	"github.com/girishhardia/Jweluxe/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the persistence surface the order service needs.
type OrderStore interface {
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	CreateOrderFromCartTx(ctx context.Context, userID int64, idempotencyKey string) (*models.Order, []models.OrderItem, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
}

// OrderEvents is the slice of the event publisher the order service uses.
type OrderEvents interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
}

// OrderService converts carts into orders and serves order reads.
type OrderService struct {
	store  OrderStore
	events OrderEvents
	logger *zap.Logger
}

// NewOrderService creates a new order service. Events may be nil when no
// broker is configured.
func NewOrderService(store OrderStore, events OrderEvents) *OrderService {
	return &OrderService{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
}

// OrderDetail is an order together with its snapshot items.
type OrderDetail struct {
	Order        *models.Order      `json:"order"`
	Items        []models.OrderItem `json:"items"`
	TotalDisplay string             `json:"total_display"`
}

// CreateOrder snapshots the caller's cart into a payment_pending order.
// An empty cart is rejected; a quantity beyond current stock is rejected
// so a later confirmation can never drive stock negative. A repeated
// idempotency key returns the original order instead of creating a
// second one.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, idempotencyKey string) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if idempotencyKey != "" {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", existing.ID))
			items, err := s.store.GetOrderItemsByOrderID(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			return &OrderDetail{
				Order:        existing,
				Items:        items,
				TotalDisplay: models.FormatAmount(existing.TotalAmount),
			}, nil
		}
	}

	order, items, err := s.store.CreateOrderFromCartTx(ctx, userID, idempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyCart):
			util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		case errors.Is(err, models.ErrInsufficientStock):
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		default:
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int64("total_amount", order.TotalAmount))

	if s.events != nil {
		eventItems := make([]models.OrderItemData, 0, len(items))
		for _, item := range items {
			eventItems = append(eventItems, models.OrderItemData{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
		event := &models.OrderCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCreated,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			UserID:      userID,
			TotalAmount: order.TotalAmount,
			Items:       eventItems,
		}
		if err := s.events.PublishOrderCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return &OrderDetail{
		Order:        order,
		Items:        items,
		TotalDisplay: models.FormatAmount(order.TotalAmount),
	}, nil
}

// GetOrder returns an order with its items. Orders belonging to other
// users are NotFound to the caller.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.UserID.Valid || order.UserID.Int64 != userID {
		return nil, models.ErrNotFound
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetail{
		Order:        order,
		Items:        items,
		TotalDisplay: models.FormatAmount(order.TotalAmount),
	}, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}
