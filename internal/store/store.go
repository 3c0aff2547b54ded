package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/girishhardia/Jweluxe/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// CreateCategory inserts a category. A duplicate slug maps to a
// validation error since slugs are caller-supplied.
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (name, slug)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, category, query, category.Name, category.Slug)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: slug %q already exists", models.ErrValidation, category.Slug)
	}
	return err
}

// GetCategories retrieves all categories
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY id")
	return categories, err
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, image_url, category_id, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, product, query,
		product.Name, product.Description, product.Price,
		product.ImageURL, product.CategoryID, product.Stock)
}

// UpdateProduct updates the mutable fields of a product
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, image_url = $4, category_id = $5, stock = $6
		WHERE id = $7`,
		product.Name, product.Description, product.Price,
		product.ImageURL, product.CategoryID, product.Stock, product.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: product %d", models.ErrNotFound, product.ID)
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: product %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductFilter narrows and pages product listings.
type ProductFilter struct {
	CategorySlug string
	Limit        int
	Offset       int
}

// ListProducts retrieves products ordered by id, optionally filtered by
// category slug
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	products := []models.Product{}

	if filter.CategorySlug != "" {
		err := s.db.SelectContext(ctx, &products, `
			SELECT p.* FROM products p
			JOIN categories c ON c.id = p.category_id
			WHERE c.slug = $1
			ORDER BY p.id
			LIMIT $2 OFFSET $3`,
			filter.CategorySlug, filter.Limit, filter.Offset)
		return products, err
	}

	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products ORDER BY id LIMIT $1 OFFSET $2",
		filter.Limit, filter.Offset)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}
