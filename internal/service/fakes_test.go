package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/girishhardia/Jweluxe/internal/models"
	"github.com/girishhardia/Jweluxe/internal/store"
	"github.com/girishhardia/Jweluxe/internal/stripe"
)

// fakeStore is an in-memory stand-in for store.Store implementing every
// store interface the services declare.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	users      map[int64]*models.User
	categories map[int64]*models.Category
	products   map[int64]*models.Product
	cartItems  map[int64]*models.CartItem
	orders     map[int64]*models.Order
	orderItems map[int64][]models.OrderItem
	payments   map[int64][]*models.Payment
	processed  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[int64]*models.User),
		categories: make(map[int64]*models.Category),
		products:   make(map[int64]*models.Product),
		cartItems:  make(map[int64]*models.CartItem),
		orders:     make(map[int64]*models.Order),
		orderItems: make(map[int64][]models.OrderItem),
		payments:   make(map[int64][]*models.Payment),
		processed:  make(map[string]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func intPtr(n int) *int {
	return &n
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: %s", models.ErrDuplicateEmail, user.Email)
		}
	}
	user.ID = f.id()
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, email)
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, category *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == category.Slug {
			return fmt.Errorf("%w: slug %q already exists", models.ErrValidation, category.Slug)
		}
	}
	category.ID = f.id()
	category.CreatedAt = time.Now()
	cp := *category
	f.categories[category.ID] = &cp
	return nil
}

func (f *fakeStore) GetCategories(ctx context.Context) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Category{}
	for _, c := range f.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateProduct(ctx context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product.ID = f.id()
	product.CreatedAt = time.Now()
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.products[product.ID]
	if !ok {
		return fmt.Errorf("%w: product %d", models.ErrNotFound, product.ID)
	}
	cp := *product
	cp.CreatedAt = existing.CreatedAt
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", models.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.products {
		if filter.CategorySlug != "" {
			if !p.CategoryID.Valid {
				continue
			}
			cat, ok := f.categories[p.CategoryID.Int64]
			if !ok || cat.Slug != filter.CategorySlug {
				continue
			}
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Product{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ci := range f.cartItems {
		if ci.UserID == item.UserID && ci.ProductID == item.ProductID {
			ci.Quantity += item.Quantity
			*item = *ci
			return nil
		}
	}
	item.ID = f.id()
	item.CreatedAt = time.Now()
	cp := *item
	f.cartItems[item.ID] = &cp
	return nil
}

func (f *fakeStore) GetCartEntries(ctx context.Context, userID int64) ([]models.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cartEntriesLocked(userID), nil
}

func (f *fakeStore) cartEntriesLocked(userID int64) []models.CartEntry {
	entries := []models.CartEntry{}
	for _, ci := range f.cartItems {
		if ci.UserID != userID {
			continue
		}
		p := f.products[ci.ProductID]
		entries = append(entries, models.CartEntry{
			ID:          ci.ID,
			ProductID:   ci.ProductID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			ImageURL:    p.ImageURL,
			Quantity:    ci.Quantity,
			CreatedAt:   ci.CreatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func (f *fakeStore) DeleteCartItem(ctx context.Context, userID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ci, ok := f.cartItems[itemID]
	if !ok || ci.UserID != userID {
		return fmt.Errorf("%w: cart item %d", models.ErrNotFound, itemID)
	}
	delete(f.cartItems, itemID)
	return nil
}

func (f *fakeStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateOrderFromCartTx(ctx context.Context, userID int64, idempotencyKey string) (*models.Order, []models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.cartEntriesLocked(userID)
	if len(entries) == 0 {
		return nil, nil, models.ErrEmptyCart
	}

	var total int64
	for _, e := range entries {
		p := f.products[e.ProductID]
		if e.Quantity > p.Stock {
			return nil, nil, fmt.Errorf("%w: product %d has %d, requested %d",
				models.ErrInsufficientStock, e.ProductID, p.Stock, e.Quantity)
		}
		total += e.Subtotal()
	}

	order := &models.Order{
		ID:             f.id(),
		UserID:         sql.NullInt64{Int64: userID, Valid: true},
		TotalAmount:    total,
		PaymentStatus:  models.OrderStatusPaymentPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	cp := *order
	f.orders[order.ID] = &cp

	items := make([]models.OrderItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.OrderItem{
			ID:        f.id(),
			OrderID:   order.ID,
			ProductID: e.ProductID,
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice,
		})
	}
	f.orderItems[order.ID] = append([]models.OrderItem{}, items...)

	return order, items, nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if o.UserID.Valid && o.UserID.Int64 == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderItem{}, f.orderItems[orderID]...), nil
}

func (f *fakeStore) SetOrderPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	o.PaymentIntentID = intentID
	o.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment.ID = f.id()
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()
	cp := *payment
	f.payments[payment.OrderID] = append(f.payments[payment.OrderID], &cp)
	return nil
}

func (f *fakeStore) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.payments[orderID]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: payment for order %d", models.ErrNotFound, orderID)
	}
	cp := *rows[len(rows)-1]
	return &cp, nil
}

func (f *fakeStore) ConfirmOrderTx(ctx context.Context, orderID int64, succeeded bool) (*models.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok {
		return nil, false, fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	if models.IsTerminalStatus(o.PaymentStatus) {
		cp := *o
		return &cp, false, nil
	}

	status := models.OrderStatusPaymentFailed
	paymentStatus := models.PaymentStatusFailed

	if succeeded {
		status = models.OrderStatusPaymentSucceeded
		paymentStatus = models.PaymentStatusSucceeded

		for _, item := range f.orderItems[orderID] {
			p := f.products[item.ProductID]
			if p == nil || p.Stock < item.Quantity {
				return nil, false, fmt.Errorf("%w: product %d", models.ErrInsufficientStock, item.ProductID)
			}
		}
		for _, item := range f.orderItems[orderID] {
			f.products[item.ProductID].Stock -= item.Quantity
			if o.UserID.Valid {
				for id, ci := range f.cartItems {
					if ci.UserID == o.UserID.Int64 && ci.ProductID == item.ProductID {
						delete(f.cartItems, id)
					}
				}
			}
		}
	}

	o.PaymentStatus = status
	o.UpdatedAt = time.Now()
	for _, p := range f.payments[orderID] {
		if p.ProviderTxID == o.PaymentIntentID {
			p.Status = paymentStatus
			p.UpdatedAt = time.Now()
		}
	}

	cp := *o
	return &cp, true, nil
}

func (f *fakeStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[eventID], nil
}

func (f *fakeStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[eventID] = true
	return nil
}

// fakeProcessor is an in-memory payment processor.
type fakeProcessor struct {
	mu        sync.Mutex
	nextID    int
	intents   map[string]*stripe.PaymentIntent
	createErr error
	getErr    error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{intents: make(map[string]*stripe.PaymentIntent)}
}

func (f *fakeProcessor) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	intent := &stripe.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", f.nextID),
		ClientSecret: fmt.Sprintf("pi_%d_secret", f.nextID),
		Status:       stripe.IntentStatusProcessing,
		Amount:       amount,
		Currency:     currency,
	}
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *fakeProcessor) GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	intent, ok := f.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown intent %s", models.ErrPaymentProvider, intentID)
	}
	cp := *intent
	return &cp, nil
}

func (f *fakeProcessor) setStatus(intentID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if intent, ok := f.intents[intentID]; ok {
		intent.Status = status
	}
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) record(eventType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	f.record(event.EventType)
	return nil
}

func (f *fakePublisher) PublishPaymentIntentCreated(ctx context.Context, event *models.PaymentIntentCreatedEvent) error {
	f.record(event.EventType)
	return nil
}

func (f *fakePublisher) PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	f.record(event.EventType)
	return nil
}

func (f *fakePublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	f.record(event.EventType)
	return nil
}

func (f *fakePublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	f.record(event.EventType)
	return nil
}
