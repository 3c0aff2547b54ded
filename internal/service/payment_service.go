package service

import (
	"context"
	"fmt"
	"time"

	"github.com/girishhardia/Jweluxe/internal/models"
	"github.com/girishhardia/Jweluxe/internal/stripe"
	"github.com/girishhardia/Jweluxe/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentStore is the persistence surface the payment service needs.
type PaymentStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	SetOrderPaymentIntent(ctx context.Context, orderID int64, intentID string) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	ConfirmOrderTx(ctx context.Context, orderID int64, succeeded bool) (*models.Order, bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// ProductInvalidator drops cached product copies after stock changes.
type ProductInvalidator interface {
	InvalidateProduct(ctx context.Context, id int64) error
}

// PaymentEvents is the slice of the event publisher the payment service uses.
type PaymentEvents interface {
	PublishPaymentIntentCreated(ctx context.Context, event *models.PaymentIntentCreatedEvent) error
	PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
}

// PaymentService drives the external processor and the order payment
// state machine. The processor's answer, not the client's, decides
// every transition.
type PaymentService struct {
	store     PaymentStore
	processor stripe.Client
	cache     ProductInvalidator
	events    PaymentEvents
	currency  string
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service. Cache and events may
// be nil when no Redis or broker is configured.
func NewPaymentService(store PaymentStore, processor stripe.Client, cache ProductInvalidator, events PaymentEvents, currency string) *PaymentService {
	return &PaymentService{
		store:     store,
		processor: processor,
		cache:     cache,
		events:    events,
		currency:  currency,
		logger:    util.GetLogger(),
	}
}

func (s *PaymentService) ownedOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.UserID.Valid || order.UserID.Int64 != userID {
		return nil, models.ErrNotFound
	}
	return order, nil
}

// CreatePaymentIntent obtains an intent from the processor for an order
// and records it. If the order already carries an intent, the existing
// one is fetched and returned instead of opening a second charge. On
// processor failure the order stays payment_pending and the error is
// surfaced for the caller to retry.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID, orderID int64) (*stripe.PaymentIntent, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePaymentIntent")
	defer span.End()

	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.PaymentStatus) {
		return nil, fmt.Errorf("%w: order %d is already %s", models.ErrValidation, orderID, order.PaymentStatus)
	}

	util.PaymentIntentsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProviderLatency.Observe(time.Since(start).Seconds())
	}()

	if order.PaymentIntentID != "" {
		intent, err := s.processor.GetPaymentIntent(ctx, order.PaymentIntentID)
		if err == nil {
			return intent, nil
		}
		s.logger.Warn("Failed to fetch existing intent, creating a new one",
			zap.Int64("order_id", orderID),
			zap.String("intent_id", order.PaymentIntentID),
			zap.Error(err))
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, order.TotalAmount, s.currency)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetOrderPaymentIntent(ctx, orderID, intent.ID); err != nil {
		return nil, fmt.Errorf("failed to store payment intent: %w", err)
	}

	payment := &models.Payment{
		OrderID:      orderID,
		Status:       models.PaymentStatusPending,
		ProviderTxID: intent.ID,
		Amount:       order.TotalAmount,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.logger.Info("Payment intent created",
		zap.Int64("order_id", orderID),
		zap.String("intent_id", intent.ID))

	if s.events != nil {
		event := &models.PaymentIntentCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentIntentCreated,
				Timestamp: time.Now(),
			},
			OrderID:         orderID,
			PaymentIntentID: intent.ID,
			Amount:          order.TotalAmount,
		}
		if err := s.events.PublishPaymentIntentCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish PaymentIntentCreated event", zap.Error(err))
		}
	}

	return intent, nil
}

// ConfirmPaymentForUser is the poll-driven confirmation entry point.
// Ownership is checked before the shared confirmation path runs.
func (s *PaymentService) ConfirmPaymentForUser(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	if _, err := s.ownedOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	return s.ConfirmPayment(ctx, orderID)
}

// ConfirmPayment queries the processor for the order's intent and
// applies the reported outcome. Confirming an already-settled order is a
// no-op; the stored state is returned unchanged, so replays never
// decrement stock twice. A still-pending intent leaves the order
// untouched for a later poll.
func (s *PaymentService) ConfirmPayment(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmPayment")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.PaymentStatus) {
		return order, nil
	}
	if order.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: order %d has no payment intent", models.ErrValidation, orderID)
	}

	intent, err := s.processor.GetPaymentIntent(ctx, order.PaymentIntentID)
	if err != nil {
		// Timeout or transport failure: outcome unknown, state untouched.
		return nil, err
	}
	if !intent.Terminal() {
		s.logger.Info("Payment intent still pending",
			zap.Int64("order_id", orderID),
			zap.String("intent_status", intent.Status))
		return order, nil
	}

	confirmed, changed, err := s.store.ConfirmOrderTx(ctx, orderID, intent.Succeeded())
	if err != nil {
		return nil, err
	}
	if !changed {
		return confirmed, nil
	}

	if intent.Succeeded() {
		util.PaymentSucceededTotal.Inc()
		s.logger.Info("Payment confirmed", zap.Int64("order_id", orderID))
		s.invalidateOrderProducts(ctx, orderID)
		s.publishSuccess(ctx, confirmed, intent)
	} else {
		util.PaymentFailedTotal.Inc()
		s.logger.Warn("Payment failed",
			zap.Int64("order_id", orderID),
			zap.String("intent_status", intent.Status))
		s.publishFailure(ctx, confirmed, intent)
	}

	return confirmed, nil
}

// invalidateOrderProducts drops cached copies of the settled order's
// products so subsequent reads observe the decremented stock.
func (s *PaymentService) invalidateOrderProducts(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Warn("Failed to load order items for cache invalidation",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	for _, item := range items {
		if err := s.cache.InvalidateProduct(ctx, item.ProductID); err != nil {
			s.logger.Warn("Failed to invalidate product cache",
				zap.Int64("product_id", item.ProductID), zap.Error(err))
		}
	}
}

func (s *PaymentService) publishSuccess(ctx context.Context, order *models.Order, intent *stripe.PaymentIntent) {
	if s.events == nil {
		return
	}
	now := time.Now()
	succeeded := &models.PaymentSucceededEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentSucceeded,
			Timestamp: now,
		},
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		Amount:          order.TotalAmount,
	}
	if err := s.events.PublishPaymentSucceeded(ctx, succeeded); err != nil {
		s.logger.Error("Failed to publish PaymentSucceeded event", zap.Error(err))
	}

	confirmedEvent := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderConfirmed,
			Timestamp: now,
		},
		OrderID: order.ID,
	}
	if order.UserID.Valid {
		confirmedEvent.UserID = order.UserID.Int64
	}
	if err := s.events.PublishOrderConfirmed(ctx, confirmedEvent); err != nil {
		s.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
	}
}

func (s *PaymentService) publishFailure(ctx context.Context, order *models.Order, intent *stripe.PaymentIntent) {
	if s.events == nil {
		return
	}
	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		Reason:          intent.Status,
	}
	if err := s.events.PublishPaymentFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

// HandleIntentCreated reconciles a payment intent from the event stream.
// The processed-events table keeps redelivered messages from re-running
// confirmation.
func (s *PaymentService) HandleIntentCreated(ctx context.Context, event *models.PaymentIntentCreatedEvent) error {
	processed, err := s.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	order, err := s.ConfirmPayment(ctx, event.OrderID)
	if err != nil {
		return err
	}

	// Leave still-pending intents unprocessed so a redelivery retries.
	if !models.IsTerminalStatus(order.PaymentStatus) {
		return nil
	}

	if err := s.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		s.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// GetPayment retrieves the latest payment record for an order.
func (s *PaymentService) GetPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	return s.store.GetPaymentByOrderID(ctx, orderID)
}
