package api

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

// memStore backs the handler tests with an in-memory database
// implementing every store interface the services declare.
type memStore struct {
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

func newMemStore() *memStore {
	return &memStore{
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

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: %s", models.ErrDuplicateEmail, user.Email)
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, email)
}

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) promoteAdmin(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.IsAdmin = true
	}
}

func (m *memStore) CreateCategory(ctx context.Context, category *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Slug == category.Slug {
			return fmt.Errorf("%w: slug %q already exists", models.ErrValidation, category.Slug)
		}
	}
	category.ID = m.id()
	category.CreatedAt = time.Now()
	cp := *category
	m.categories[category.ID] = &cp
	return nil
}

func (m *memStore) GetCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Category{}
	for _, c := range m.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = m.id()
	product.CreatedAt = time.Now()
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *memStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[product.ID]
	if !ok {
		return fmt.Errorf("%w: product %d", models.ErrNotFound, product.ID)
	}
	cp := *product
	cp.CreatedAt = existing.CreatedAt
	m.products[product.ID] = &cp
	return nil
}

func (m *memStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", models.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.products {
		if filter.CategorySlug != "" {
			if !p.CategoryID.Valid {
				continue
			}
			cat, ok := m.categories[p.CategoryID.Int64]
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

func (m *memStore) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ci := range m.cartItems {
		if ci.UserID == item.UserID && ci.ProductID == item.ProductID {
			ci.Quantity += item.Quantity
			*item = *ci
			return nil
		}
	}
	item.ID = m.id()
	item.CreatedAt = time.Now()
	cp := *item
	m.cartItems[item.ID] = &cp
	return nil
}

func (m *memStore) GetCartEntries(ctx context.Context, userID int64) ([]models.CartEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartEntriesLocked(userID), nil
}

func (m *memStore) cartEntriesLocked(userID int64) []models.CartEntry {
	entries := []models.CartEntry{}
	for _, ci := range m.cartItems {
		if ci.UserID != userID {
			continue
		}
		p := m.products[ci.ProductID]
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

func (m *memStore) DeleteCartItem(ctx context.Context, userID, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci, ok := m.cartItems[itemID]
	if !ok || ci.UserID != userID {
		return fmt.Errorf("%w: cart item %d", models.ErrNotFound, itemID)
	}
	delete(m.cartItems, itemID)
	return nil
}

func (m *memStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateOrderFromCartTx(ctx context.Context, userID int64, idempotencyKey string) (*models.Order, []models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.cartEntriesLocked(userID)
	if len(entries) == 0 {
		return nil, nil, models.ErrEmptyCart
	}

	var total int64
	for _, e := range entries {
		p := m.products[e.ProductID]
		if e.Quantity > p.Stock {
			return nil, nil, fmt.Errorf("%w: product %d has %d, requested %d",
				models.ErrInsufficientStock, e.ProductID, p.Stock, e.Quantity)
		}
		total += e.Subtotal()
	}

	order := &models.Order{
		ID:             m.id(),
		UserID:         sql.NullInt64{Int64: userID, Valid: true},
		TotalAmount:    total,
		PaymentStatus:  models.OrderStatusPaymentPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	cp := *order
	m.orders[order.ID] = &cp

	items := make([]models.OrderItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.OrderItem{
			ID:        m.id(),
			OrderID:   order.ID,
			ProductID: e.ProductID,
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice,
		})
	}
	m.orderItems[order.ID] = append([]models.OrderItem{}, items...)

	return order, items, nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.UserID.Valid && o.UserID.Int64 == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderItem{}, m.orderItems[orderID]...), nil
}

func (m *memStore) SetOrderPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	o.PaymentIntentID = intentID
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment.ID = m.id()
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()
	cp := *payment
	m.payments[payment.OrderID] = append(m.payments[payment.OrderID], &cp)
	return nil
}

func (m *memStore) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.payments[orderID]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: payment for order %d", models.ErrNotFound, orderID)
	}
	cp := *rows[len(rows)-1]
	return &cp, nil
}

func (m *memStore) ConfirmOrderTx(ctx context.Context, orderID int64, succeeded bool) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
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

		for _, item := range m.orderItems[orderID] {
			p := m.products[item.ProductID]
			if p == nil || p.Stock < item.Quantity {
				return nil, false, fmt.Errorf("%w: product %d", models.ErrInsufficientStock, item.ProductID)
			}
		}
		for _, item := range m.orderItems[orderID] {
			m.products[item.ProductID].Stock -= item.Quantity
			if o.UserID.Valid {
				for id, ci := range m.cartItems {
					if ci.UserID == o.UserID.Int64 && ci.ProductID == item.ProductID {
						delete(m.cartItems, id)
					}
				}
			}
		}
	}

	o.PaymentStatus = status
	o.UpdatedAt = time.Now()
	for _, p := range m.payments[orderID] {
		if p.ProviderTxID == o.PaymentIntentID {
			p.Status = paymentStatus
			p.UpdatedAt = time.Now()
		}
	}

	cp := *o
	return &cp, true, nil
}

func (m *memStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[eventID], nil
}

func (m *memStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

// memProcessor is an in-memory payment processor for handler tests.
type memProcessor struct {
	mu      sync.Mutex
	nextID  int
	intents map[string]*stripe.PaymentIntent
}

func newMemProcessor() *memProcessor {
	return &memProcessor{intents: make(map[string]*stripe.PaymentIntent)}
}

func (m *memProcessor) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	intent := &stripe.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", m.nextID),
		ClientSecret: fmt.Sprintf("pi_%d_secret", m.nextID),
		Status:       stripe.IntentStatusProcessing,
		Amount:       amount,
		Currency:     currency,
	}
	m.intents[intent.ID] = intent
	return intent, nil
}

func (m *memProcessor) GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown intent %s", models.ErrPaymentProvider, intentID)
	}
	cp := *intent
	return &cp, nil
}

func (m *memProcessor) setStatus(intentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if intent, ok := m.intents[intentID]; ok {
		intent.Status = status
	}
}
