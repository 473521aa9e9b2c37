package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// productForm is the body of a product create or update, sent either as
// JSON or as multipart form data with an optional image.
type productForm struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`

	uploaded string
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindProductForm reads the request body. It writes a 400 and returns false
// when the body cannot be parsed.
func (h *Handler) bindProductForm(c *gin.Context) (*productForm, bool) {
	var form productForm

	if !isMultipart(c) {
		if err := c.ShouldBindJSON(&form); err != nil {
			badRequest(c, "Invalid product data")
			return nil, false
		}
		return &form, true
	}

	if v, ok := c.GetPostForm("name"); ok {
		form.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		form.Description = &v
	}
	if v, ok := c.GetPostForm("category"); ok {
		form.Category = &v
	}
	if v, ok := c.GetPostForm("price"); ok && v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			badRequest(c, "Invalid price")
			return nil, false
		}
		form.Price = &price
	}
	if v, ok := c.GetPostForm("stock"); ok && v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "Invalid stock")
			return nil, false
		}
		form.Stock = &stock
	}

	file, err := imageFromForm(c)
	if err != nil {
		badRequest(c, "Invalid image upload")
		return nil, false
	}
	if file != nil {
		label := ""
		if form.Name != nil {
			label = *form.Name
		}
		url, err := h.uploads.Save(c, file, label)
		if err != nil {
			if errors.Is(err, errUnsupportedImage) || errors.Is(err, errImageTooLarge) {
				badRequest(c, err.Error())
				return nil, false
			}
			h.respondError(c, err)
			return nil, false
		}
		form.ImageURL = &url
		form.uploaded = url
	}
	return &form, true
}

// discardUpload removes the image stored for a request whose product write
// did not go through.
func (h *Handler) discardUpload(form *productForm) {
	if form.uploaded == "" {
		return
	}
	if err := h.uploads.Remove(form.uploaded); err != nil {
		h.logger.Warn("Failed to remove orphaned upload", zap.String("path", form.uploaded), zap.Error(err))
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (h *Handler) listProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.catalog.List(c.Request.Context(), service.ProductQuery{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	form, ok := h.bindProductForm(c)
	if !ok {
		return
	}

	product, err := h.catalog.Create(c.Request.Context(), service.ProductInput{
		Name:        deref(form.Name),
		Description: deref(form.Description),
		Price:       deref(form.Price),
		Category:    deref(form.Category),
		Stock:       deref(form.Stock),
		ImageURL:    deref(form.ImageURL),
	})
	if err != nil {
		h.discardUpload(form)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": product,
	})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	form, ok := h.bindProductForm(c)
	if !ok {
		return
	}

	product, err := h.catalog.Update(c.Request.Context(), id, service.ProductPatch{
		Name:        form.Name,
		Description: form.Description,
		Price:       form.Price,
		Category:    form.Category,
		Stock:       form.Stock,
		ImageURL:    form.ImageURL,
	})
	if err != nil {
		h.discardUpload(form)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": product,
	})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
