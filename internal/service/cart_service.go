package service

import (
	"context"
	"fmt"

	"github.com/girishhardia/Jweluxe/internal/models"
	"github.com/girishhardia/Jweluxe/internal/util"

	"go.uber.org/zap"
)

// CartStore is the persistence surface the cart service needs.
type CartStore interface {
	UpsertCartItem(ctx context.Context, item *models.CartItem) error
	GetCartEntries(ctx context.Context, userID int64) ([]models.CartEntry, error)
	DeleteCartItem(ctx context.Context, userID, itemID int64) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// CartService handles the per-user mutable cart.
type CartService struct {
	store  CartStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddToCartRequest carries a cart mutation payload.
type AddToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  *int  `json:"quantity"`
}

// AddToCart adds quantity of a product to the caller's cart. Adding a
// product already in the cart increments the existing row; quantities
// accumulate rather than replace. An omitted quantity defaults to 1; an
// explicit zero or negative quantity is rejected.
func (s *CartService) AddToCart(ctx context.Context, userID int64, req *AddToCartRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddToCart")
	defer span.End()

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", models.ErrValidation)
	}

	// Existence check; missing products are NotFound before any write.
	if _, err := s.store.GetProductByID(ctx, req.ProductID); err != nil {
		return nil, err
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  quantity,
	}
	if err := s.store.UpsertCartItem(ctx, item); err != nil {
		return nil, err
	}

	util.CartItemsAddedTotal.Inc()
	s.logger.Info("Cart item upserted",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// Cart is a user's resolved cart with a computed total.
type Cart struct {
	Items        []models.CartEntry `json:"items"`
	TotalAmount  int64              `json:"total_amount"`
	TotalDisplay string             `json:"total_display"`
}

// GetCart returns the caller's cart entries with product snapshots.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	entries, err := s.store.GetCartEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, e := range entries {
		total += e.Subtotal()
	}

	return &Cart{
		Items:        entries,
		TotalAmount:  total,
		TotalDisplay: models.FormatAmount(total),
	}, nil
}

// RemoveFromCart deletes one of the caller's cart rows. Items belonging
// to other users are NotFound.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, itemID int64) error {
	return s.store.DeleteCartItem(ctx, userID, itemID)
}
