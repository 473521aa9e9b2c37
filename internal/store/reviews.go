package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RishiVykunta/e-commerce/internal/models"
)

const reviewColumns = `r.id, r.product_id, r.user_id, r.rating, r.comment,
	COALESCE(u.name, '') AS user_name, r.created_at, r.updated_at`

// ListReviewsByProduct returns a product's reviews, newest first
func (s *Store) ListReviewsByProduct(ctx context.Context, productID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.SelectContext(ctx, &reviews, `
		SELECT `+reviewColumns+`
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC, r.id DESC`, productID)
	return reviews, err
}

// GetReview returns the review a user left on a product
func (s *Store) GetReview(ctx context.Context, productID, userID int64) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review, `
		SELECT `+reviewColumns+`
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1 AND r.user_id = $2`, productID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review of product %d by user %d: %w", productID, userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// UpsertReview inserts the review or overwrites the rating and comment of
// the existing one for the same (product, user) pair.
func (s *Store) UpsertReview(ctx context.Context, r *models.Review) error {
	query := `
		INSERT INTO reviews (product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, user_id)
		DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query, r.ProductID, r.UserID, r.Rating, r.Comment).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// DeleteReview removes a user's review of a product
func (s *Store) DeleteReview(ctx context.Context, productID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM reviews WHERE product_id = $1 AND user_id = $2", productID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("review of product %d by user %d: %w", productID, userID, ErrNotFound)
	}
	return nil
}

// GetRatingSummary aggregates a product's ratings. Products without
// reviews get a zero summary.
func (s *Store) GetRatingSummary(ctx context.Context, productID int64) (models.RatingSummary, error) {
	var row struct {
		Avg   sql.NullFloat64 `db:"avg_rating"`
		Count int             `db:"total_reviews"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT AVG(rating)::float8 AS avg_rating, COUNT(*) AS total_reviews
		FROM reviews
		WHERE product_id = $1`, productID)
	if err != nil {
		return models.RatingSummary{}, err
	}

	return models.RatingSummary{
		AvgRating:    fmt.Sprintf("%.1f", row.Avg.Float64),
		TotalReviews: row.Count,
	}, nil
}
