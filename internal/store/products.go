package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/RishiVykunta/e-commerce/internal/models"
)

const productColumns = `id, name, description, price, category, stock,
	COALESCE(image_url, '') AS image_url, created_at, updated_at`

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// where builds the shared WHERE clause for listing and counting.
func (f ProductFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns one page of products, newest first
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	where, args := f.where()
	args = append(args, f.Limit, f.Offset)

	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		productColumns, where, len(args)-1, len(args))

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	return products, nil
}

// CountProducts counts the products matching the filter, ignoring paging
func (s *Store) CountProducts(ctx context.Context, f ProductFilter) (int, error) {
	where, args := f.where()

	var total int
	err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+where, args...)
	return total, err
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, category, stock, image_url)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Price, p.Category, p.Stock, p.ImageURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct overwrites every editable column of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, category = $4, stock = $5,
		    image_url = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $7
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Price, p.Category, p.Stock, p.ImageURL, p.ID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	return err
}

// DeleteProduct removes a product. Historical order items keep their
// price snapshot and lose only the product reference.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}
