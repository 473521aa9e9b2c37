package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/service"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the business services the handlers call.
type Services struct {
	Auth    *service.AuthService
	Catalog *service.CatalogService
	Orders  *service.OrderService
	Reviews *service.ReviewService
}

// Options configures the HTTP surface.
type Options struct {
	Production     bool
	AllowedOrigins []string
	UploadDir      string
	UploadMaxBytes int64
	Readiness      map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	auth    *service.AuthService
	catalog *service.CatalogService
	orders  *service.OrderService
	reviews *service.ReviewService
	uploads *Uploader
	opts    Options
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	return &Handler{
		auth:    svc.Auth,
		catalog: svc.Catalog,
		orders:  svc.Orders,
		reviews: svc.Reviews,
		uploads: NewUploader(opts.UploadDir, opts.UploadMaxBytes),
		opts:    opts,
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(h.recovery())
	router.Use(requestIDMiddleware())
	router.Use(otelgin.Middleware(util.ServiceName))
	router.Use(corsMiddleware(h.opts.AllowedOrigins))
	router.Use(prometheusMiddleware())
	router.Use(loggerMiddleware(h.logger))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if h.opts.UploadDir != "" {
		router.Static("/uploads", h.opts.UploadDir)
	}

	api := router.Group("/api")
	api.GET("/health", h.healthCheck)
	api.GET("/ready", h.readinessCheck)

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.register)
		authRoutes.POST("/login", h.login)
		authRoutes.GET("/me", h.protect(), h.me)
	}

	products := api.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/:id", h.getProduct)
		products.POST("", h.protect(), adminOnly(), h.createProduct)
		products.PUT("/:id", h.protect(), adminOnly(), h.updateProduct)
		products.DELETE("/:id", h.protect(), adminOnly(), h.deleteProduct)
	}

	orders := api.Group("/orders", h.protect())
	{
		orders.POST("", h.createOrder)
		orders.GET("/myorders", h.listMyOrders)
		orders.GET("", adminOnly(), h.listAllOrders)
		orders.GET("/:id", h.getOrder)
		orders.PUT("/:id/status", adminOnly(), h.updateOrderStatus)
		orders.POST("/create-razorpay-order", h.createPaymentIntent)
		orders.POST("/verify-razorpay-payment", h.verifyPayment)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("/product/:productId", h.listProductReviews)
		reviews.GET("/product/:productId/user", h.protect(), h.getMyReview)
		reviews.POST("", h.protect(), h.upsertReview)
		reviews.DELETE("/:productId", h.protect(), h.deleteReview)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Server is running",
		"status":  "ok",
	})
}

// readinessCheck reports whether every backing dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.opts.Readiness {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid id"})
		return 0, false
	}
	return id, true
}
