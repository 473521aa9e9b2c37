package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/payment"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentIntentResponse is what a checkout client needs to open the
// gateway's payment form.
type PaymentIntentResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
}

// VerifyPaymentRequest carries the gateway callback fields.
type VerifyPaymentRequest struct {
	IntentID  string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyPaymentResponse confirms a verified payment.
type VerifyPaymentResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
}

// CreatePaymentIntent asks the gateway for a payment order of amount
func (s *OrderService) CreatePaymentIntent(ctx context.Context, caller models.Caller, amount decimal.Decimal) (*PaymentIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreatePaymentIntent")
	defer span.End()

	if !amount.IsPositive() {
		return nil, invalidf("Valid amount is required")
	}

	intent, err := s.gateway.CreateIntent(ctx, caller.ID, amount)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			return nil, invalidf("Valid amount is required")
		}
		return nil, err
	}

	if s.registry != nil {
		record := &models.PaymentIntent{
			IntentID:  intent.ID,
			UserID:    caller.ID,
			Amount:    intent.Amount,
			Currency:  intent.Currency,
			Receipt:   intent.Receipt,
			CreatedAt: time.Now(),
		}
		if err := s.registry.SaveIntent(ctx, record, s.opts.IntentTTL); err != nil {
			s.logger.Warn("Failed to register payment intent", zap.String("intent_id", intent.ID), zap.Error(err))
		}
	}

	return &PaymentIntentResponse{
		OrderID:  intent.ID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
		Key:      s.gateway.KeyID(),
	}, nil
}

// VerifyPayment checks a gateway callback signature. Failure has no side
// effects; success marks the intent verified and emits an event.
func (s *OrderService) VerifyPayment(ctx context.Context, caller models.Caller, req *VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.VerifyPayment")
	defer span.End()

	if req.IntentID == "" || req.PaymentID == "" || req.Signature == "" {
		util.PaymentVerificationsTotal.WithLabelValues("incomplete").Inc()
		return nil, invalidf("Payment verification data is required")
	}

	if !s.gateway.VerifyCallback(req.IntentID, req.PaymentID, req.Signature) {
		util.PaymentVerificationsTotal.WithLabelValues("invalid_signature").Inc()
		s.logger.Warn("Payment signature mismatch",
			zap.Int64("user_id", caller.ID),
			zap.String("intent_id", req.IntentID))
		return nil, invalidf("Payment verification failed - Invalid signature")
	}

	if s.opts.ConfirmWithGateway {
		if err := s.confirmSettled(ctx, req); err != nil {
			util.PaymentVerificationsTotal.WithLabelValues("unsettled").Inc()
			return nil, err
		}
	}

	if s.registry != nil {
		if err := s.registry.MarkIntentVerified(ctx, req.IntentID, req.PaymentID); err != nil {
			s.logger.Warn("Failed to mark payment intent verified", zap.String("intent_id", req.IntentID), zap.Error(err))
		}
	}

	util.PaymentVerificationsTotal.WithLabelValues("verified").Inc()
	s.logger.Info("Payment verified",
		zap.Int64("user_id", caller.ID),
		zap.String("intent_id", req.IntentID),
		zap.String("payment_id", req.PaymentID))

	if s.publisher != nil {
		event := &models.PaymentVerifiedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentVerified,
				Timestamp: time.Now(),
			},
			IntentID:  req.IntentID,
			PaymentID: req.PaymentID,
			UserID:    caller.ID,
		}
		pubCtx, cancel := publishContext(ctx)
		err := s.publisher.PublishPaymentVerified(pubCtx, event)
		cancel()
		if err != nil {
			s.logger.Error("Failed to publish PaymentVerified event", zap.String("intent_id", req.IntentID), zap.Error(err))
		}
	}

	return &VerifyPaymentResponse{
		Success:   true,
		PaymentID: req.PaymentID,
		OrderID:   req.IntentID,
	}, nil
}

func (s *OrderService) confirmSettled(ctx context.Context, req *VerifyPaymentRequest) error {
	p, err := s.gateway.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to confirm payment with gateway: %w", err)
	}
	if p.OrderID != req.IntentID || !p.Settled() {
		return invalidf("Payment verification failed - Payment not settled")
	}
	return nil
}
