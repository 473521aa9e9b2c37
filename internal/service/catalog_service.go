package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/store"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// CatalogRepository is the product persistence the catalog needs.
type CatalogRepository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	CountProducts(ctx context.Context, f store.ProductFilter) (int, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// CatalogService manages the product catalog
type CatalogService struct {
	repo   CatalogRepository
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo, logger: util.GetLogger()}
}

// ProductQuery filters and pages a product listing.
type ProductQuery struct {
	Category string
	Search   string
	Page     int
	Limit    int
}

type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalProducts int  `json:"totalProducts"`
	HasNextPage   bool `json:"hasNextPage"`
	HasPrevPage   bool `json:"hasPrevPage"`
}

type ProductPage struct {
	Products   []models.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

// ProductInput holds the fields of a new product.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	ImageURL    string
}

// ProductPatch holds optional product changes; nil fields are left as is.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Stock       *int
	ImageURL    *string
}

func normalizeQuery(q ProductQuery) ProductQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// List returns one page of products, newest first
func (s *CatalogService) List(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	q = normalizeQuery(q)
	filter := store.ProductFilter{
		Category: q.Category,
		Search:   q.Search,
		Limit:    q.Limit,
		Offset:   (q.Page - 1) * q.Limit,
	}

	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	total, err := s.repo.CountProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	totalPages := (total + q.Limit - 1) / q.Limit
	return &ProductPage{
		Products: products,
		Pagination: Pagination{
			CurrentPage:   q.Page,
			TotalPages:    totalPages,
			TotalProducts: total,
			HasNextPage:   q.Page < totalPages,
			HasPrevPage:   q.Page > 1,
		},
	}, nil
}

// Get returns a single product
func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Get")
	defer span.End()

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("Product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func validateProduct(p *models.Product) error {
	if p.Name == "" || p.Description == "" || p.Category == "" {
		return invalidf("Please provide all required fields")
	}
	if !p.Price.IsPositive() {
		return invalidf("Price must be greater than zero")
	}
	if p.Stock < 0 {
		return invalidf("Stock cannot be negative")
	}
	return nil
}

// Create adds a product to the catalog
func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	product := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    strings.TrimSpace(in.Category),
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// Update applies a patch to an existing product
func (s *CatalogService) Update(ctx context.Context, id int64, patch ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != "" {
		product.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) != "" {
		product.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Stock != nil {
		product.Stock = *patch.Stock
	}
	if patch.ImageURL != nil && *patch.ImageURL != "" {
		product.ImageURL = *patch.ImageURL
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("Product not found")
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.Int64("product_id", product.ID))
	return product, nil
}

// Delete removes a product from the catalog
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Delete")
	defer span.End()

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("Product not found")
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}
