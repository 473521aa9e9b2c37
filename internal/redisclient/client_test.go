package redisclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	intent := parseIntent("order_1", map[string]string{
		"user_id":    "42",
		"amount":     "25000",
		"currency":   "INR",
		"receipt":    "receipt_1_42",
		"verified":   "1",
		"payment_id": "pay_9",
		"created_at": "1700000000",
	})

	assert.Equal(t, "order_1", intent.IntentID)
	assert.Equal(t, int64(42), intent.UserID)
	assert.Equal(t, int64(25000), intent.Amount)
	assert.True(t, intent.Verified)
	assert.Equal(t, "pay_9", intent.PaymentID)
	assert.Equal(t, time.Unix(1700000000, 0), intent.CreatedAt)
}

func TestParseIntentUnverified(t *testing.T) {
	intent := parseIntent("order_2", map[string]string{"verified": "0"})
	assert.False(t, intent.Verified)
	assert.Empty(t, intent.PaymentID)
}

func TestEmbeddedScripts(t *testing.T) {
	assert.Contains(t, markVerifiedScript, "HSET")
	assert.Contains(t, releaseLockScript, "DEL")
	assert.Equal(t, "payment_intent:abc", intentKey("abc"))
}
