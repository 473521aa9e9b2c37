package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/payment"
	"github.com/RishiVykunta/e-commerce/internal/store"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	idempotencyLockTTL  = 30 * time.Second
	eventPublishTimeout = 2 * time.Second
)

// OrderRepository is the persistence the order engine needs.
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(tx store.OrderTx) error) error
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderDetail(ctx context.Context, id int64) (*models.OrderDetail, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.OrderDetail, error)
	ListOrders(ctx context.Context) ([]models.OrderDetail, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error)
}

// IntentRegistry tracks gateway intents and short-lived request locks.
type IntentRegistry interface {
	SaveIntent(ctx context.Context, intent *models.PaymentIntent, ttl time.Duration) error
	GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	MarkIntentVerified(ctx context.Context, intentID, paymentID string) error
	AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// EventPublisher publishes order and payment events.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error
}

// PaymentGateway is the remote payment provider.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, userID int64, amount decimal.Decimal) (*payment.Intent, error)
	VerifyCallback(intentID, paymentID, signature string) bool
	FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
	KeyID() string
}

// OrderOptions tunes payment checks around order placement.
type OrderOptions struct {
	IntentTTL time.Duration
	// RequireVerified rejects orders that reference an intent which was not
	// verified for the same caller.
	RequireVerified bool
	// ConfirmWithGateway makes payment verification also ask the gateway
	// whether the payment settled.
	ConfirmWithGateway bool
}

// OrderService handles order business logic
type OrderService struct {
	repo      OrderRepository
	registry  IntentRegistry
	publisher EventPublisher
	gateway   PaymentGateway
	opts      OrderOptions
	logger    *zap.Logger
}

// NewOrderService creates a new order service. registry and publisher may be
// nil, in which case intent tracking and events are skipped.
func NewOrderService(
	repo OrderRepository,
	registry IntentRegistry,
	publisher EventPublisher,
	gateway PaymentGateway,
	opts OrderOptions,
) *OrderService {
	if opts.IntentTTL == 0 {
		opts.IntentTTL = 2 * time.Hour
	}
	return &OrderService{
		repo:      repo,
		registry:  registry,
		publisher: publisher,
		gateway:   gateway,
		opts:      opts,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	PhoneNumber     string             `json:"phone_number,omitempty"`
	PaymentIntentID string             `json:"payment_intent_id,omitempty"`
	IdempotencyKey  string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return invalidf("Order items are required")
	}
	for _, item := range req.Items {
		if item.ProductID < 1 {
			return invalidf("Invalid product id %d", item.ProductID)
		}
		if item.Quantity < 1 {
			return invalidf("Quantity for product %d must be at least 1", item.ProductID)
		}
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return invalidf("Shipping address is required")
	}
	return nil
}

// CreateOrder validates the cart against current stock and prices and writes
// the order, its items and the stock decrements in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, caller models.Caller, req *CreateOrderRequest) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateCreateOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, caller, req.IdempotencyKey)
		if err != nil || existing != nil {
			return existing, err
		}

		release, err := s.lockIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var paid *models.PaymentIntent
	if s.opts.RequireVerified {
		intent, err := s.verifiedIntent(ctx, caller, req.PaymentIntentID)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("unverified_payment").Inc()
			return nil, err
		}
		paid = intent
	}

	start := time.Now()
	order, lines, err := s.placeOrder(ctx, caller, req, paid)
	if err != nil {
		if errors.Is(err, store.ErrPaymentIntentUsed) {
			util.OrdersFailedTotal.WithLabelValues("payment_reused").Inc()
			return nil, newError(ErrConflict, "Payment has already been used for another order")
		}
		if errors.Is(err, store.ErrDuplicate) {
			existing, ferr := s.findByIdempotencyKey(ctx, caller, req.IdempotencyKey)
			if ferr == nil && existing == nil {
				return nil, newError(ErrConflict, "Idempotency key already used")
			}
			return existing, ferr
		}
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.logger.Warn("Order placement failed",
			zap.Int64("user_id", caller.ID),
			zap.Error(err))
		return nil, err
	}
	util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	util.OrdersCreatedTotal.Inc()

	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", caller.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	s.publishOrderPlaced(ctx, order, lines)

	detail, err := s.repo.GetOrderDetail(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load placed order: %w", err)
	}
	return detail, nil
}

// placeOrder runs the order transaction. Product rows are locked before the
// stock check so the check and the decrement see the same state. When paid is
// set its amount must equal the computed total.
func (s *OrderService) placeOrder(ctx context.Context, caller models.Caller, req *CreateOrderRequest, paid *models.PaymentIntent) (*models.Order, []models.OrderItemData, error) {
	requested := make(map[int64]int, len(req.Items))
	for _, item := range req.Items {
		requested[item.ProductID] += item.Quantity
	}
	ids := make([]int64, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var (
		order *models.Order
		lines []models.OrderItemData
	)

	err := s.repo.WithTx(ctx, func(tx store.OrderTx) error {
		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}
		products := make(map[int64]*models.Product, len(locked))
		for i := range locked {
			products[locked[i].ID] = &locked[i]
		}

		for _, item := range req.Items {
			product, ok := products[item.ProductID]
			if !ok {
				return notFoundf("Product %d not found", item.ProductID)
			}
			if requested[item.ProductID] > product.Stock {
				return newError(ErrInsufficientStock, "Insufficient stock for product %s", product.Name)
			}
		}

		total := calculateTotal(req.Items, products)
		if paid != nil && paid.Amount != payment.ToMinorUnits(total) {
			return invalidf("Payment amount does not match order total")
		}

		order = &models.Order{
			UserID:          caller.ID,
			TotalAmount:     total,
			ShippingAddress: strings.TrimSpace(req.ShippingAddress),
			PhoneNumber:     strings.TrimSpace(req.PhoneNumber),
			PaymentIntentID: req.PaymentIntentID,
			Status:          models.OrderStatusPlaced,
			IdempotencyKey:  req.IdempotencyKey,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		lines = make([]models.OrderItemData, 0, len(req.Items))
		for _, item := range req.Items {
			product := products[item.ProductID]
			line := &models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     product.Price,
			}
			if err := tx.InsertOrderItem(ctx, line); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return newError(ErrInsufficientStock, "Insufficient stock for product %s", product.Name)
				}
				return err
			}
			lines = append(lines, models.OrderItemData{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, lines, nil
}

// calculateTotal sums unit price times quantity over the cart
func calculateTotal(items []OrderItemRequest, products map[int64]*models.Product) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		product := products[item.ProductID]
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "payment_mismatch"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "db_error"
	}
}

// findByIdempotencyKey returns the caller's earlier order for key, or nil
// when there is none.
func (s *OrderService) findByIdempotencyKey(ctx context.Context, caller models.Caller, key string) (*models.OrderDetail, error) {
	existing, err := s.repo.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.UserID != caller.ID {
		return nil, newError(ErrConflict, "Idempotency key already used")
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", existing.ID))

	detail, err := s.repo.GetOrderDetail(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing order: %w", err)
	}
	return detail, nil
}

// lockIdempotencyKey keeps two concurrent first submissions of the same key
// from racing each other. Redis being unavailable does not block orders; the
// unique index on idempotency_key is the backstop.
func (s *OrderService) lockIdempotencyKey(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if s.registry == nil {
		return noop, nil
	}

	lockKey := "order:" + key
	token := uuid.New().String()
	ok, err := s.registry.AcquireLock(ctx, lockKey, token, idempotencyLockTTL)
	if err != nil {
		s.logger.Warn("Failed to acquire idempotency lock", zap.String("idempotency_key", key), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, newError(ErrConflict, "An order with this idempotency key is already being processed")
	}

	return func() {
		if err := s.registry.ReleaseLock(context.Background(), lockKey, token); err != nil {
			s.logger.Warn("Failed to release idempotency lock", zap.String("idempotency_key", key), zap.Error(err))
		}
	}, nil
}

// verifiedIntent loads the caller's verified payment intent.
func (s *OrderService) verifiedIntent(ctx context.Context, caller models.Caller, intentID string) (*models.PaymentIntent, error) {
	if intentID == "" {
		return nil, invalidf("Payment is required")
	}
	if s.registry == nil {
		return nil, invalidf("Payment has not been verified")
	}
	intent, err := s.registry.GetIntent(ctx, intentID)
	if err != nil || intent.UserID != caller.ID || !intent.Verified {
		return nil, invalidf("Payment has not been verified")
	}
	return intent, nil
}

// publishContext scopes an event publish to its own deadline. The request
// context only contributes its values, so a dropped client cannot abort the
// event for a write that already committed.
func publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order, lines []models.OrderItemData) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       lines,
	}
	ctx, cancel := publishContext(ctx)
	defer cancel()
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// GetOrder returns an order visible to the caller
func (s *OrderService) GetOrder(ctx context.Context, caller models.Caller, orderID int64) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("Order not found")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.UserID != caller.ID && !caller.IsAdmin() {
		return nil, newError(ErrForbidden, "Access denied")
	}
	return order, nil
}

// ListMyOrders returns the caller's orders, newest first
func (s *OrderService) ListMyOrders(ctx context.Context, caller models.Caller) ([]models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListMyOrders")
	defer span.End()

	orders, err := s.repo.ListOrdersByUser(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAllOrders returns every order, newest first
func (s *OrderService) ListAllOrders(ctx context.Context, caller models.Caller) ([]models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAllOrders")
	defer span.End()

	if !caller.IsAdmin() {
		return nil, newError(ErrForbidden, "Access denied. Admin only.")
	}
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus sets an order's status. Any of the known statuses may follow
// any other.
func (s *OrderService) UpdateStatus(ctx context.Context, caller models.Caller, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !caller.IsAdmin() {
		return nil, newError(ErrForbidden, "Access denied. Admin only.")
	}
	if status == "" {
		return nil, invalidf("Status is required")
	}
	if !models.ValidOrderStatus(status) {
		return nil, invalidf("Invalid status")
	}

	order, err := s.repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("Order not found")
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	util.OrderStatusChangesTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status),
		zap.Int64("admin_id", caller.ID))

	if s.publisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID: order.ID,
			UserID:  order.UserID,
			Status:  order.Status,
		}
		pubCtx, cancel := publishContext(ctx)
		err := s.publisher.PublishOrderStatusChanged(pubCtx, event)
		cancel()
		if err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	return order, nil
}
