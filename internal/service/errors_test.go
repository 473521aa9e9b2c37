package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("placing order: %w", newError(ErrInsufficientStock, "Insufficient stock for product %s", "Lamp"))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.False(t, errors.Is(err, ErrNotFound))

	msg, ok := Message(err)
	assert.True(t, ok)
	assert.Equal(t, "Insufficient stock for product Lamp", msg)
}

func TestMessageOnPlainError(t *testing.T) {
	_, ok := Message(errors.New("db down"))
	assert.False(t, ok)
}
