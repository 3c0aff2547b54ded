package worker

import (
	"context"
	"log"

	"github.com/girishhardia/Jweluxe/internal/broker"
	"github.com/girishhardia/Jweluxe/internal/service"
)

// PaymentWorker reconciles open payment intents from the event stream.
// It stands in for processor webhooks: the confirmation it drives is
// idempotent, so a webhook added later can share the same path.
type PaymentWorker struct {
	consumer       *broker.Consumer
	eventHandler   *broker.EventHandler
	paymentService *service.PaymentService
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer *broker.Consumer, paymentService *service.PaymentService) *PaymentWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentIntentCreated(paymentService.HandleIntentCreated)

	return &PaymentWorker{
		consumer:       consumer,
		eventHandler:   eventHandler,
		paymentService: paymentService,
	}
}

// Start starts the worker
func (w *PaymentWorker) Start(ctx context.Context) error {
	log.Println("Starting payment worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *PaymentWorker) Stop() error {
	log.Println("Stopping payment worker...")
	return w.consumer.Close()
}
