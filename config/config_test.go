package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PAYMENT_REQUIRE_VERIFIED", "")

	cfg := Load()

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.False(t, cfg.Payment.RequireVerified)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FRONTEND_URL", "http://a.test/, http://b.test ,")
	t.Setenv("ORDER_TX_TIMEOUT", "750ms")
	t.Setenv("PAYMENT_REQUIRE_VERIFIED", "true")
	t.Setenv("ENV", "production")

	cfg := Load()

	assert.Equal(t, []string{"http://a.test/", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 750*time.Millisecond, cfg.Database.TxTimeout)
	assert.True(t, cfg.Payment.RequireVerified)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	assert.Equal(t, 3, getEnvInt("REDIS_DB", 3))
}
