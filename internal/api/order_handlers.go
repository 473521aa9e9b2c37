package api

import (
	"net/http"

	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const headerIdempotencyKey = "Idempotency-Key"

// createOrder handles order creation requests
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid order data")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(headerIdempotencyKey)
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), callerFrom(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"order":   order,
	})
}

// getOrder handles get order requests
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.orders.ListMyOrders(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.orders.ListAllOrders(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Status is required")
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), callerFrom(c), id, body.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

func (h *Handler) createPaymentIntent(c *gin.Context) {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Valid amount is required")
		return
	}

	resp, err := h.orders.CreatePaymentIntent(c.Request.Context(), callerFrom(c), body.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Payment verification data is required"})
		return
	}

	resp, err := h.orders.VerifyPayment(c.Request.Context(), callerFrom(c), &req)
	if err != nil {
		if msg, ok := service.Message(err); ok && statusFor(err) == http.StatusBadRequest {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
