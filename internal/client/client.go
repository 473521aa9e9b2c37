package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx answer from the storefront API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api: %d %s", e.StatusCode, e.Message)
}

// Client is a typed binding to the storefront HTTP API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL (without /api).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Register creates an account and keeps its token for later calls.
func (c *Client) Register(ctx context.Context, name, email, password string) (*service.AuthResponse, error) {
	var resp service.AuthResponse
	req := service.RegisterRequest{Name: name, Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	c.Token = resp.Token
	return &resp, nil
}

// Login signs in and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*service.AuthResponse, error) {
	var resp service.AuthResponse
	req := service.LoginRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	c.Token = resp.Token
	return &resp, nil
}

// ListProducts fetches one page of the catalog.
func (c *Client) ListProducts(ctx context.Context, q service.ProductQuery) (*service.ProductPage, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var page service.ProductPage
	if err := c.call(ctx, http.MethodGet, "/products", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePaymentIntent asks the backend to open a gateway order for amount.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal) (*service.PaymentIntentResponse, error) {
	var resp service.PaymentIntentResponse
	body := map[string]decimal.Decimal{"amount": amount}
	if err := c.call(ctx, http.MethodPost, "/orders/create-razorpay-order", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyPayment submits the gateway callback fields for signature checking.
func (c *Client) VerifyPayment(ctx context.Context, req service.VerifyPaymentRequest) (*service.VerifyPaymentResponse, error) {
	var resp service.VerifyPaymentResponse
	if err := c.call(ctx, http.MethodPost, "/orders/verify-razorpay-payment", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateOrder places an order. An empty idempotency key gets a fresh one so
// that a retried call cannot create a second order.
func (c *Client) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*models.OrderDetail, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	var resp struct {
		Message string              `json:"message"`
		Order   *models.OrderDetail `json:"order"`
	}
	if err := c.call(ctx, http.MethodPost, "/orders", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]models.OrderDetail, error) {
	var orders []models.OrderDetail
	if err := c.call(ctx, http.MethodGet, "/orders/myorders", nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*models.OrderDetail, error) {
	var order models.OrderDetail
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ProductReviews fetches the reviews and rating summary of a product.
func (c *Client) ProductReviews(ctx context.Context, productID int64) (*service.ProductReviews, error) {
	var resp service.ProductReviews
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/reviews/product/%d", productID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// call performs one JSON round trip against /api+path.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.BaseURL + "/api" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &e) != nil || e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
