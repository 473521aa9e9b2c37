package api

import (
	"errors"
	"net/http"

	"github.com/RishiVykunta/e-commerce/internal/payment"
	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, payment.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)

	if msg, ok := service.Message(err); ok && status < http.StatusInternalServerError {
		c.JSON(status, gin.H{"message": msg})
		return
	}

	if status == http.StatusServiceUnavailable {
		h.logger.Warn("Payment gateway unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"message": "Payment gateway unavailable"})
		return
	}

	h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	body := gin.H{"message": "Server error"}
	if !h.opts.Production {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
