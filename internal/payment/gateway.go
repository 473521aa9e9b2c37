package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("payment gateway keys not configured")
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)

// Payment statuses reported by the gateway that count as settled.
const (
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
)

// Config holds gateway credentials and endpoint settings.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
	Timeout   time.Duration
}

// Intent is a gateway order the client pays against.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment is a payment as reported by the gateway.
type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// Settled reports whether the gateway considers the payment successful.
func (p *Payment) Settled() bool {
	return p.Status == PaymentStatusCaptured || p.Status == PaymentStatusAuthorized
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("payment gateway returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("payment gateway returned status %d: %s (%s)", e.StatusCode, e.Description, e.Code)
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Gateway talks to a Razorpay compatible payment API.
type Gateway struct {
	cfg        Config
	httpClient *http.Client
	breaker    *CircuitBreaker
	logger     *zap.Logger
	now        func() time.Time
}

// NewGateway creates a gateway client
func NewGateway(cfg Config) *Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Gateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: NewCircuitBreaker(5, 30*time.Second),
		logger:  util.GetLogger(),
		now:     time.Now,
	}
}

// KeyID returns the public key handed to checkout clients
func (g *Gateway) KeyID() string {
	return g.cfg.KeyID
}

// Currency returns the currency intents are created in
func (g *Gateway) Currency() string {
	return g.cfg.Currency
}

// Configured reports whether both keys are present
func (g *Gateway) Configured() bool {
	return g.cfg.KeyID != "" && g.cfg.KeySecret != ""
}

// ToMinorUnits converts a major-unit amount to the smallest currency unit
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateIntent creates a gateway order for amount on behalf of userID
func (g *Gateway) CreateIntent(ctx context.Context, userID int64, amount decimal.Decimal) (*Intent, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.CreateIntent")
	defer span.End()

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	body := createOrderRequest{
		Amount:         ToMinorUnits(amount),
		Currency:       g.cfg.Currency,
		Receipt:        fmt.Sprintf("receipt_%d_%d", g.now().UnixMilli(), userID),
		PaymentCapture: 1,
	}

	var intent Intent
	if err := g.do(ctx, "create_intent", http.MethodPost, "/v1/orders", body, &intent); err != nil {
		util.PaymentIntentsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	util.PaymentIntentsTotal.WithLabelValues("created").Inc()
	g.logger.Info("Payment intent created",
		zap.String("intent_id", intent.ID),
		zap.Int64("user_id", userID),
		zap.Int64("amount", intent.Amount))

	return &intent, nil
}

// FetchPayment loads a payment from the gateway
func (g *Gateway) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.FetchPayment")
	defer span.End()

	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	var payment Payment
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := g.do(ctx, "fetch_payment", http.MethodGet, path, nil, &payment); err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &payment, nil
}

// VerifyCallback reports whether signature is the gateway's signature over
// the intent and payment ids.
func (g *Gateway) VerifyCallback(intentID, paymentID, signature string) bool {
	if g.cfg.KeySecret == "" {
		return false
	}
	expected := Sign(g.cfg.KeySecret, intentID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex HMAC-SHA256 of "intentID|paymentID" keyed by secret
func Sign(secret, intentID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// do performs one JSON round trip through the circuit breaker. Only transport
// failures and 5xx responses count against the breaker.
func (g *Gateway) do(ctx context.Context, operation, method, path string, in, out interface{}) error {
	var clientErr error

	start := time.Now()
	err := g.breaker.Execute(ctx, func() error {
		var reqBody io.Reader
		if in != nil {
			payload, err := json.Marshal(in)
			if err != nil {
				return fmt.Errorf("failed to marshal request: %w", err)
			}
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var er errorResponse
			if json.Unmarshal(raw, &er) == nil {
				apiErr.Code = er.Error.Code
				apiErr.Description = er.Error.Description
			}
			if resp.StatusCode >= 500 {
				return apiErr
			}
			clientErr = apiErr
			return nil
		}

		if err := json.Unmarshal(raw, out); err != nil {
			clientErr = fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	util.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		g.logger.Warn("Payment gateway call failed",
			zap.String("operation", operation),
			zap.String("breaker_state", g.breaker.GetState().String()),
			zap.Error(err))
		return err
	}
	return clientErr
}
