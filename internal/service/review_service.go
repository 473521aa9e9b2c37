package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/store"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"go.uber.org/zap"
)

// ReviewRepository is the persistence the review aggregator needs.
type ReviewRepository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListReviewsByProduct(ctx context.Context, productID int64) ([]models.Review, error)
	GetReview(ctx context.Context, productID, userID int64) (*models.Review, error)
	UpsertReview(ctx context.Context, r *models.Review) error
	DeleteReview(ctx context.Context, productID, userID int64) error
	GetRatingSummary(ctx context.Context, productID int64) (models.RatingSummary, error)
}

// ReviewService keeps one review per user and product and reports averages
type ReviewService struct {
	repo   ReviewRepository
	logger *zap.Logger
}

// NewReviewService creates a new review service
func NewReviewService(repo ReviewRepository) *ReviewService {
	return &ReviewService{repo: repo, logger: util.GetLogger()}
}

type ReviewInput struct {
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// ProductReviews is a product's reviews with their summary.
type ProductReviews struct {
	Reviews []models.Review      `json:"reviews"`
	Rating  models.RatingSummary `json:"rating"`
}

// Upsert creates the caller's review of a product or replaces it
func (s *ReviewService) Upsert(ctx context.Context, caller models.Caller, in ReviewInput) (*models.Review, models.RatingSummary, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Upsert")
	defer span.End()

	if in.ProductID < 1 || in.Rating < 1 || in.Rating > 5 {
		return nil, models.RatingSummary{}, invalidf("Valid product_id and rating (1-5) are required")
	}

	if _, err := s.repo.GetProductByID(ctx, in.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.RatingSummary{}, notFoundf("Product not found")
		}
		return nil, models.RatingSummary{}, fmt.Errorf("failed to get product: %w", err)
	}

	review := &models.Review{
		ProductID: in.ProductID,
		UserID:    caller.ID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		UserName:  caller.Name,
	}
	if err := s.repo.UpsertReview(ctx, review); err != nil {
		return nil, models.RatingSummary{}, fmt.Errorf("failed to save review: %w", err)
	}
	util.ReviewsWrittenTotal.WithLabelValues("upsert").Inc()

	summary, err := s.AverageRating(ctx, in.ProductID)
	if err != nil {
		return nil, models.RatingSummary{}, err
	}
	return review, summary, nil
}

// AverageRating returns the rating summary of a product
func (s *ReviewService) AverageRating(ctx context.Context, productID int64) (models.RatingSummary, error) {
	summary, err := s.repo.GetRatingSummary(ctx, productID)
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("failed to get rating summary: %w", err)
	}
	return summary, nil
}

// ListForProduct returns a product's reviews, newest first
func (s *ReviewService) ListForProduct(ctx context.Context, productID int64) (*ProductReviews, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.ListForProduct")
	defer span.End()

	reviews, err := s.repo.ListReviewsByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	summary, err := s.AverageRating(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &ProductReviews{Reviews: reviews, Rating: summary}, nil
}

// GetMine returns the caller's review of a product, or nil
func (s *ReviewService) GetMine(ctx context.Context, caller models.Caller, productID int64) (*models.Review, error) {
	review, err := s.repo.GetReview(ctx, productID, caller.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// Delete removes the caller's review of a product
func (s *ReviewService) Delete(ctx context.Context, caller models.Caller, productID int64) (models.RatingSummary, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Delete")
	defer span.End()

	if err := s.repo.DeleteReview(ctx, productID, caller.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.RatingSummary{}, notFoundf("Review not found")
		}
		return models.RatingSummary{}, fmt.Errorf("failed to delete review: %w", err)
	}
	util.ReviewsWrittenTotal.WithLabelValues("delete").Inc()

	return s.AverageRating(ctx, productID)
}
