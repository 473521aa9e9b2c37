package service

import (
	"context"
	"errors"
	"testing"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentIntent(t *testing.T) {
	registry := newFakeRegistry()
	gw := &fakeGateway{}
	svc := NewOrderService(newMemRepo(), registry, nil, gw, OrderOptions{})

	resp, err := svc.CreatePaymentIntent(context.Background(), customer, decimal.RequireFromString("250.00"))
	require.NoError(t, err)

	assert.Equal(t, "order_1", resp.OrderID)
	assert.Equal(t, int64(25000), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_key", resp.Key)

	intent, err := registry.GetIntent(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, intent.UserID)
	assert.False(t, intent.Verified)
}

func TestCreatePaymentIntentRejectsBadAmount(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewOrderService(newMemRepo(), nil, nil, gw, OrderOptions{})

	_, err := svc.CreatePaymentIntent(context.Background(), customer, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	msg, _ := Message(err)
	assert.Equal(t, "Valid amount is required", msg)
	assert.Empty(t, gw.amounts)
}

func TestCreatePaymentIntentGatewayFailure(t *testing.T) {
	gw := &fakeGateway{createErr: payment.ErrNotConfigured}
	svc := NewOrderService(newMemRepo(), nil, nil, gw, OrderOptions{})

	_, err := svc.CreatePaymentIntent(context.Background(), customer, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, payment.ErrNotConfigured)
	_, safe := Message(err)
	assert.False(t, safe)
}

func TestVerifyPayment(t *testing.T) {
	registry := newFakeRegistry()
	pub := &fakePublisher{}
	svc := NewOrderService(newMemRepo(), registry, pub, &fakeGateway{secret: "topsecret"}, OrderOptions{})
	registry.intents["order_abc"] = models.PaymentIntent{IntentID: "order_abc", UserID: customer.ID}

	resp, err := svc.VerifyPayment(context.Background(), customer, &VerifyPaymentRequest{
		IntentID:  "order_abc",
		PaymentID: "pay_1",
		Signature: payment.Sign("topsecret", "order_abc", "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, &VerifyPaymentResponse{Success: true, PaymentID: "pay_1", OrderID: "order_abc"}, resp)

	intent, _ := registry.GetIntent(context.Background(), "order_abc")
	assert.True(t, intent.Verified)
	assert.Equal(t, "pay_1", intent.PaymentID)
	require.Len(t, pub.verified, 1)
	assert.Equal(t, "pay_1", pub.verified[0].PaymentID)
}

func TestVerifyPaymentMissingFields(t *testing.T) {
	svc := NewOrderService(newMemRepo(), nil, nil, &fakeGateway{secret: "s"}, OrderOptions{})

	_, err := svc.VerifyPayment(context.Background(), customer, &VerifyPaymentRequest{IntentID: "order_abc", PaymentID: "pay_1"})
	msg, _ := Message(err)
	assert.Equal(t, "Payment verification data is required", msg)
}

func TestVerifyPaymentBadSignatureHasNoSideEffects(t *testing.T) {
	registry := newFakeRegistry()
	pub := &fakePublisher{}
	svc := NewOrderService(newMemRepo(), registry, pub, &fakeGateway{secret: "topsecret"}, OrderOptions{})
	registry.intents["order_abc"] = models.PaymentIntent{IntentID: "order_abc", UserID: customer.ID}

	_, err := svc.VerifyPayment(context.Background(), customer, &VerifyPaymentRequest{
		IntentID:  "order_abc",
		PaymentID: "pay_1",
		Signature: payment.Sign("wrong", "order_abc", "pay_1"),
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	msg, _ := Message(err)
	assert.Equal(t, "Payment verification failed - Invalid signature", msg)

	intent, _ := registry.GetIntent(context.Background(), "order_abc")
	assert.False(t, intent.Verified)
	assert.Empty(t, pub.verified)
}

func TestVerifyPaymentConfirmWithGateway(t *testing.T) {
	gw := &fakeGateway{secret: "topsecret"}
	svc := NewOrderService(newMemRepo(), nil, nil, gw, OrderOptions{ConfirmWithGateway: true})
	req := &VerifyPaymentRequest{
		IntentID:  "order_abc",
		PaymentID: "pay_1",
		Signature: payment.Sign("topsecret", "order_abc", "pay_1"),
	}

	gw.payment = &payment.Payment{ID: "pay_1", OrderID: "order_abc", Status: payment.PaymentStatusCaptured}
	_, err := svc.VerifyPayment(context.Background(), customer, req)
	assert.NoError(t, err)

	gw.payment = &payment.Payment{ID: "pay_1", OrderID: "order_abc", Status: "failed"}
	_, err = svc.VerifyPayment(context.Background(), customer, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	gw.payment = &payment.Payment{ID: "pay_1", OrderID: "order_other", Status: payment.PaymentStatusCaptured}
	_, err = svc.VerifyPayment(context.Background(), customer, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	gw.fetchErr = errors.New("gateway down")
	_, err = svc.VerifyPayment(context.Background(), customer, req)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidArgument))
}
