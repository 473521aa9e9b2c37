package api

import (
	"net/http"

	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProductReviews(c *gin.Context) {
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}

	result, err := h.reviews.ListForProduct(c.Request.Context(), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getMyReview returns the caller's review of a product, or null.
func (h *Handler) getMyReview(c *gin.Context) {
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}

	review, err := h.reviews.GetMine(c.Request.Context(), callerFrom(c), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) upsertReview(c *gin.Context) {
	var in service.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Valid product_id and rating (1-5) are required")
		return
	}

	review, rating, err := h.reviews.Upsert(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Review saved successfully",
		"review":  review,
		"rating":  rating,
	})
}

func (h *Handler) deleteReview(c *gin.Context) {
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}

	rating, err := h.reviews.Delete(c.Request.Context(), callerFrom(c), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Review deleted successfully",
		"rating":  rating,
	})
}
