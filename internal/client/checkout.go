package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/service"
)

var ErrEmptyCart = errors.New("cart is empty")

// PayFunc completes payment in the gateway's hosted UI for intent and returns
// the signed callback the gateway hands back.
type PayFunc func(ctx context.Context, intent *service.PaymentIntentResponse) (service.VerifyPaymentRequest, error)

// ShippingDetails is where the order goes.
type ShippingDetails struct {
	Address string
	Phone   string
}

// Checkout runs intent, pay, verify and create order in sequence. The cart is
// cleared only once the order exists.
func (c *Client) Checkout(ctx context.Context, cart *Cart, ship ShippingDetails, pay PayFunc) (*models.OrderDetail, error) {
	if cart.Len() == 0 {
		return nil, ErrEmptyCart
	}

	intent, err := c.CreatePaymentIntent(ctx, cart.Total())
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	callback, err := pay(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("payment was not completed: %w", err)
	}

	verified, err := c.VerifyPayment(ctx, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	order, err := c.CreateOrder(ctx, service.CreateOrderRequest{
		Items:           cart.OrderItems(),
		ShippingAddress: ship.Address,
		PhoneNumber:     ship.Phone,
		PaymentIntentID: verified.OrderID,
		IdempotencyKey:  "checkout-" + verified.PaymentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	cart.Clear()
	return order, nil
}
