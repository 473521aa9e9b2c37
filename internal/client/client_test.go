package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI answers the checkout endpoints and records what it saw.
type fakeAPI struct {
	intentAmount decimal.Decimal
	order        service.CreateOrderRequest
	auth         []string
	rejectVerify bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/api/orders/create-razorpay-order", func(w http.ResponseWriter, r *http.Request) {
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		var body struct {
			Amount decimal.Decimal `json:"amount"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.intentAmount = body.Amount
		write(w, http.StatusOK, service.PaymentIntentResponse{OrderID: "order_1", Amount: 25000, Currency: "INR", Key: "rzp_test"})
	})
	mux.HandleFunc("/api/orders/verify-razorpay-payment", func(w http.ResponseWriter, r *http.Request) {
		if f.rejectVerify {
			write(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "Payment verification failed - Invalid signature"})
			return
		}
		var req service.VerifyPaymentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		write(w, http.StatusOK, service.VerifyPaymentResponse{Success: true, PaymentID: req.PaymentID, OrderID: req.IntentID})
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.order))
		write(w, http.StatusCreated, map[string]interface{}{
			"message": "Order created successfully",
			"order":   models.OrderDetail{Order: models.Order{ID: 41, TotalAmount: decimal.RequireFromString("250")}},
		})
	})
	return mux
}

func testCart(t *testing.T) *Cart {
	var cart Cart
	require.NoError(t, cart.Add(product(1, "100.00", 5), 2))
	require.NoError(t, cart.Add(product(2, "50.00", 5), 1))
	return &cart
}

func pay(_ context.Context, intent *service.PaymentIntentResponse) (service.VerifyPaymentRequest, error) {
	return service.VerifyPaymentRequest{IntentID: intent.OrderID, PaymentID: "pay_9", Signature: "sig"}, nil
}

func TestCheckout(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	c.Token = "tok"
	cart := testCart(t)

	order, err := c.Checkout(context.Background(), cart, ShippingDetails{Address: "1 Main St", Phone: "555"}, pay)

	require.NoError(t, err)
	assert.Equal(t, int64(41), order.ID)
	assert.True(t, decimal.RequireFromString("250").Equal(api.intentAmount))
	assert.Equal(t, "order_1", api.order.PaymentIntentID)
	assert.Equal(t, "checkout-pay_9", api.order.IdempotencyKey)
	assert.Equal(t, "1 Main St", api.order.ShippingAddress)
	assert.Len(t, api.order.Items, 2)
	assert.Equal(t, []string{"Bearer tok"}, api.auth)
	assert.Equal(t, 0, cart.Len())
}

func TestCheckoutKeepsCartWhenVerificationFails(t *testing.T) {
	api := &fakeAPI{rejectVerify: true}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL)
	cart := testCart(t)

	_, err := c.Checkout(context.Background(), cart, ShippingDetails{Address: "1 Main St"}, pay)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Payment verification failed - Invalid signature", apiErr.Message)
	assert.Equal(t, 2, cart.Len())
	assert.Empty(t, api.order.Items)
}

func TestCheckoutAbortedPayment(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL)
	cart := testCart(t)
	cancelled := errors.New("shopper closed the payment form")

	_, err := c.Checkout(context.Background(), cart, ShippingDetails{Address: "x"},
		func(context.Context, *service.PaymentIntentResponse) (service.VerifyPaymentRequest, error) {
			return service.VerifyPaymentRequest{}, cancelled
		})

	assert.ErrorIs(t, err, cancelled)
	assert.Equal(t, 2, cart.Len())
}

func TestCheckoutEmptyCart(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.Checkout(context.Background(), &Cart{}, ShippingDetails{}, pay)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestListProductsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(service.ProductPage{
			Products:   []models.Product{{ID: 1, Name: "Mug"}},
			Pagination: service.Pagination{CurrentPage: 2, TotalPages: 3},
		})
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL).ListProducts(context.Background(), service.ProductQuery{Category: "kitchen", Page: 2, Limit: 5})

	require.NoError(t, err)
	assert.Equal(t, "category=kitchen&limit=5&page=2", gotQuery)
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Equal(t, "Mug", page.Products[0].Name)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetProduct(context.Background(), 3)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Not Found", apiErr.Message)
}
