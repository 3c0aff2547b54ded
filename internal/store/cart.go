package store

import (
	"context"
	"fmt"

	"github.com/girishhardia/Jweluxe/internal/models"
)

// UpsertCartItem adds quantity to a user's cart row for a product,
// creating the row if absent. Repeated adds accumulate.
func (s *Store) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity, created_at`

	return s.db.GetContext(ctx, item, query,
		item.UserID, item.ProductID, item.Quantity)
}

// GetCartEntries retrieves a user's cart joined with the product
// snapshot fields needed for display, oldest first.
func (s *Store) GetCartEntries(ctx context.Context, userID int64) ([]models.CartEntry, error) {
	entries := []models.CartEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT ci.id, ci.product_id, p.name AS product_name, p.price AS unit_price,
		       p.image_url, ci.quantity, ci.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at, ci.id`, userID)
	return entries, err
}

// DeleteCartItem removes a cart row owned by the given user. Rows owned
// by other users are invisible to the caller, so a mismatch is NotFound.
func (s *Store) DeleteCartItem(ctx context.Context, userID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: cart item %d", models.ErrNotFound, itemID)
	}
	return nil
}
