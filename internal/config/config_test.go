package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, int64(180), cfg.Billing.FreeWaitingSeconds)
	assert.Equal(t, "0.05", cfg.Billing.PricePerSecond)
	assert.Equal(t, time.Second, cfg.View.TickInterval)
	assert.False(t, cfg.NewRelic.Enabled)
}

func TestLoad_BillingConstantsAreTunable(t *testing.T) {
	t.Setenv("BILLING_FREE_WAITING_SECONDS", "30")
	t.Setenv("BILLING_PRICE_PER_SECOND", "0.10")
	t.Setenv("SYNC_INTERVAL", "5s")
	t.Setenv("VIEW_BUTTONS_SWAPPED", "true")

	cfg := Load()

	assert.Equal(t, int64(30), cfg.Billing.FreeWaitingSeconds)
	assert.Equal(t, "0.10", cfg.Billing.PricePerSecond)
	assert.Equal(t, 5*time.Second, cfg.Sync.Interval)
	assert.True(t, cfg.View.ButtonsSwapped)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
}
