package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/RishiVykunta/e-commerce/internal/broker"
	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/store"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventSource delivers order events to a handler until ctx is done.
type EventSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// UserLookup resolves the recipient of a notification.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Notification is a message addressed to a shopper.
type Notification struct {
	EventType string
	UserID    int64
	To        string
	Subject   string
	Body      string
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("Notification",
		zap.String("event_type", n.EventType),
		zap.Int64("user_id", n.UserID),
		zap.String("to", n.To),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body))
	return nil
}

// NotificationWorker turns order events into shopper notifications
type NotificationWorker struct {
	source       EventSource
	users        UserLookup
	sender       Sender
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(source EventSource, users UserLookup, sender Sender) *NotificationWorker {
	logger := util.GetLogger()
	w := &NotificationWorker{
		source:       source,
		users:        users,
		sender:       sender,
		eventHandler: broker.NewEventHandler(logger),
		logger:       logger,
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	w.eventHandler.OnPaymentVerified(w.handlePaymentVerified)

	return w
}

// Start consumes events until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.source.StartConsuming(ctx, w.HandleMessage)
}

// HandleMessage processes a single event message
func (w *NotificationWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.source.Close()
}

func (w *NotificationWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	units := 0
	for _, item := range event.Items {
		units += item.Quantity
	}
	return w.notify(ctx, event.EventType, event.UserID,
		fmt.Sprintf("Order #%d confirmed", event.OrderID),
		fmt.Sprintf("We received your order of %d item(s) totalling %s.", units, event.TotalAmount.StringFixed(2)))
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return w.notify(ctx, event.EventType, event.UserID,
		fmt.Sprintf("Order #%d is now %s", event.OrderID, event.Status),
		fmt.Sprintf("The status of your order #%d changed to %s.", event.OrderID, event.Status))
}

func (w *NotificationWorker) handlePaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error {
	return w.notify(ctx, event.EventType, event.UserID,
		"Payment received",
		fmt.Sprintf("Payment %s was confirmed.", event.PaymentID))
}

func (w *NotificationWorker) notify(ctx context.Context, eventType string, userID int64, subject, body string) error {
	ctx, span := util.StartSpan(ctx, "NotificationWorker.notify")
	defer span.End()

	user, err := w.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.logger.Warn("Skipping notification for unknown user",
				zap.String("event_type", eventType),
				zap.Int64("user_id", userID))
			return nil
		}
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	n := Notification{
		EventType: eventType,
		UserID:    userID,
		To:        user.Email,
		Subject:   subject,
		Body:      body,
	}
	if err := w.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	util.NotificationsTotal.WithLabelValues(eventType).Inc()
	return nil
}
