package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishOrderPlaced(t *testing.T) {
	w := &fakeWriter{}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	event := &models.OrderPlacedEvent{
		BaseEvent:   models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderPlaced, Timestamp: time.Now()},
		OrderID:     12,
		UserID:      3,
		TotalAmount: decimal.RequireFromString("250.00"),
	}
	require.NoError(t, pub.PublishOrderPlaced(context.Background(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-12", string(w.msgs[0].Key))

	var decoded models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded.EventType)
	assert.True(t, decoded.TotalAmount.Equal(event.TotalAmount))
}

func TestPublishWrapsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	err := pub.PublishPaymentVerified(context.Background(), &models.PaymentVerifiedEvent{IntentID: "order_1"})
	assert.ErrorContains(t, err, "broker down")
}

func TestHandleMessageRoutesByType(t *testing.T) {
	h := NewEventHandler(zaptest.NewLogger(t))

	var placed, changed, verified int
	h.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		placed++
		assert.Equal(t, int64(5), e.OrderID)
		return nil
	})
	h.OnOrderStatusChanged(func(_ context.Context, e *models.OrderStatusChangedEvent) error {
		changed++
		assert.Equal(t, models.OrderStatusShipped, e.Status)
		return nil
	})
	h.OnPaymentVerified(func(_ context.Context, e *models.PaymentVerifiedEvent) error {
		verified++
		return nil
	})

	send := func(v interface{}) {
		raw, _ := json.Marshal(v)
		require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	}

	send(models.OrderPlacedEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderPlaced}, OrderID: 5})
	send(models.OrderStatusChangedEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderStatusChanged}, Status: models.OrderStatusShipped})
	send(models.PaymentVerifiedEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypePaymentVerified}})
	send(models.BaseEvent{EventType: "SOMETHING_ELSE"})

	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, verified)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	h := NewEventHandler(zaptest.NewLogger(t))
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("{")}))
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestStartConsumingCommitsEvenOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}}, cancel: cancel}
	c := NewConsumerWithReader(r, "topic")

	handled := 0
	err := c.StartConsuming(ctx, func(context.Context, kafka.Message) error {
		handled++
		return errors.New("notify failed")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, handled)
	assert.Equal(t, []int64{1, 2}, r.committed)
}
