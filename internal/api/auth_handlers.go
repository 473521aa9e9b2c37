package api

import (
	"net/http"

	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide all required fields")
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide email and password")
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
