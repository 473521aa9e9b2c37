package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.GetState())

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Second)
	now := time.Now()
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Second)
	assert.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second)
	now := time.Now()
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Second)
	_ = cb.Execute(ctx, func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}
