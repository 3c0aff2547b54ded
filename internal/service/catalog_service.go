package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/girishhardia/Jweluxe/internal/models"
	"github.com/girishhardia/Jweluxe/internal/redisclient"
	"github.com/girishhardia/Jweluxe/internal/store"
	"github.com/girishhardia/Jweluxe/internal/util"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CatalogStore is the persistence surface the catalog service needs.
type CatalogStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategories(ctx context.Context) ([]models.Category, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error)
}

// ProductCache is the read-through cache for single-product lookups.
type ProductCache interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	SetProduct(ctx context.Context, product *models.Product) error
	InvalidateProduct(ctx context.Context, id int64) error
}

// CatalogService handles category and product reads and admin writes.
type CatalogService struct {
	store  CatalogStore
	cache  ProductCache
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service. The cache may be nil,
// in which case every read goes to the database.
func NewCatalogService(store CatalogStore, cache ProductCache) *CatalogService {
	return &CatalogService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// CreateCategoryRequest carries an admin category creation payload.
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// CreateCategory creates a category. Slugs are normalized to lower case.
func (s *CatalogService) CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateCategory")
	defer span.End()

	category := &models.Category{
		Name: strings.TrimSpace(req.Name),
		Slug: strings.ToLower(strings.TrimSpace(req.Slug)),
	}
	if category.Name == "" || category.Slug == "" {
		return nil, fmt.Errorf("%w: name and slug are required", models.ErrValidation)
	}

	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Category created", zap.Int64("category_id", category.ID), zap.String("slug", category.Slug))
	return category, nil
}

// ListCategories returns all categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.GetCategories(ctx)
}

// ProductRequest carries an admin product create/update payload. Price
// is a decimal string ("100.00") parsed to minor units.
type ProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       string `json:"price" binding:"required"`
	ImageURL    string `json:"image_url"`
	CategoryID  *int64 `json:"category_id"`
	Stock       int    `json:"stock"`
}

func (s *CatalogService) productFromRequest(req *ProductRequest) (*models.Product, error) {
	price, err := models.ParseAmount(req.Price)
	if err != nil {
		return nil, err
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", models.ErrValidation)
	}

	product := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	}
	if product.Name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	if req.CategoryID != nil {
		product.CategoryID = sql.NullInt64{Int64: *req.CategoryID, Valid: true}
	}
	return product, nil
}

// CreateProduct creates a product after validating fields.
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	product, err := s.productFromRequest(req)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID))
	return product, nil
}

// UpdateProduct replaces the mutable fields of an existing product and
// invalidates the cached copy.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	product, err := s.productFromRequest(req)
	if err != nil {
		return nil, err
	}
	product.ID = id

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProduct(ctx, id); err != nil {
			s.logger.Warn("Failed to invalidate product cache", zap.Int64("product_id", id), zap.Error(err))
		}
	}

	return s.store.GetProductByID(ctx, id)
}

// GetProduct returns one product, served from cache when possible.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	if s.cache != nil {
		product, err := s.cache.GetProduct(ctx, id)
		switch {
		case err == nil:
			util.ProductCacheHits.WithLabelValues("hit").Inc()
			return product, nil
		case redisclient.IsCacheMiss(err):
			util.ProductCacheHits.WithLabelValues("miss").Inc()
		default:
			util.ProductCacheHits.WithLabelValues("error").Inc()
			s.logger.Warn("Product cache read failed", zap.Int64("product_id", id), zap.Error(err))
		}
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProduct(ctx, product); err != nil {
			s.logger.Warn("Failed to cache product", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

// ListProducts pages through the catalog. Limit defaults to 20 and is
// capped at 100; ordering is by product id ascending.
func (s *CatalogService) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListProducts(ctx, filter)
}
