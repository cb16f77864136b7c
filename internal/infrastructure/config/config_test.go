package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"CHANNELSYNC_APP_NAME":                    os.Getenv("CHANNELSYNC_APP_NAME"),
		"CHANNELSYNC_APP_ENV":                     os.Getenv("CHANNELSYNC_APP_ENV"),
		"CHANNELSYNC_HTTP_PORT":                   os.Getenv("CHANNELSYNC_HTTP_PORT"),
		"CHANNELSYNC_MARKETPLACE_BASE_URL":        os.Getenv("CHANNELSYNC_MARKETPLACE_BASE_URL"),
		"CHANNELSYNC_MARKETPLACE_API_KEY":         os.Getenv("CHANNELSYNC_MARKETPLACE_API_KEY"),
		"CHANNELSYNC_MARKETPLACE_WAREHOUSE_ID":    os.Getenv("CHANNELSYNC_MARKETPLACE_WAREHOUSE_ID"),
		"CHANNELSYNC_INVENTORY_API_KEY":           os.Getenv("CHANNELSYNC_INVENTORY_API_KEY"),
		"CHANNELSYNC_SYNC_STOCK_INTERVAL_MINUTES": os.Getenv("CHANNELSYNC_SYNC_STOCK_INTERVAL_MINUTES"),
		"CHANNELSYNC_SYNC_ORDER_INTERVAL_MINUTES": os.Getenv("CHANNELSYNC_SYNC_ORDER_INTERVAL_MINUTES"),
		"CHANNELSYNC_MAPPING_PRODUCT_FILE":        os.Getenv("CHANNELSYNC_MAPPING_PRODUCT_FILE"),
		"CHANNELSYNC_WEBHOOK_TOKEN":               os.Getenv("CHANNELSYNC_WEBHOOK_TOKEN"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "channelsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.HTTP.Port)
		assert.Equal(t, 3, cfg.Marketplace.MaxRetries)
		assert.Equal(t, time.Second, cfg.Marketplace.PushRetryBaseDelay)
		assert.Equal(t, 2*time.Second, cfg.Marketplace.PollRetryBaseDelay)
		assert.Equal(t, 60, cfg.Sync.StockIntervalMinutes)
		assert.Equal(t, 15, cfg.Sync.OrderIntervalMinutes)
		assert.Equal(t, 50*time.Millisecond, cfg.Mapping.LockPollInterval)
		assert.Equal(t, 5*time.Second, cfg.Mapping.LockTimeout)
		assert.Equal(t, []string{"stock", "product"}, cfg.Webhook.AllowedResources)
	})

	t.Run("loads values from environment variables with CHANNELSYNC prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("CHANNELSYNC_APP_NAME", "test-sync")
		os.Setenv("CHANNELSYNC_HTTP_PORT", "9000")
		os.Setenv("CHANNELSYNC_MARKETPLACE_BASE_URL", "https://marketplace.test")
		os.Setenv("CHANNELSYNC_MARKETPLACE_API_KEY", "mk-key")
		os.Setenv("CHANNELSYNC_MARKETPLACE_WAREHOUSE_ID", "7")
		os.Setenv("CHANNELSYNC_SYNC_STOCK_INTERVAL_MINUTES", "30")
		os.Setenv("CHANNELSYNC_MAPPING_PRODUCT_FILE", "/tmp/mappings.json")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-sync", cfg.App.Name)
		assert.Equal(t, "9000", cfg.HTTP.Port)
		assert.Equal(t, "https://marketplace.test", cfg.Marketplace.BaseURL)
		assert.Equal(t, "mk-key", cfg.Marketplace.APIKey)
		assert.Equal(t, 7, cfg.Marketplace.WarehouseID)
		assert.Equal(t, 30, cfg.Sync.StockIntervalMinutes)
		assert.Equal(t, "/tmp/mappings.json", cfg.Mapping.ProductFile)
	})

	t.Run("rejects sub-minute sync intervals", func(t *testing.T) {
		clearEnv()
		os.Setenv("CHANNELSYNC_SYNC_STOCK_INTERVAL_MINUTES", "-5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stock_interval_minutes must be at least 1")
	})

	t.Run("zero interval uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("CHANNELSYNC_SYNC_ORDER_INTERVAL_MINUTES", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 15, cfg.Sync.OrderIntervalMinutes)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"CHANNELSYNC_APP_ENV":             os.Getenv("CHANNELSYNC_APP_ENV"),
		"CHANNELSYNC_MARKETPLACE_API_KEY": os.Getenv("CHANNELSYNC_MARKETPLACE_API_KEY"),
		"CHANNELSYNC_INVENTORY_API_KEY":   os.Getenv("CHANNELSYNC_INVENTORY_API_KEY"),
		"CHANNELSYNC_WEBHOOK_TOKEN":       os.Getenv("CHANNELSYNC_WEBHOOK_TOKEN"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("requires marketplace.api_key in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("CHANNELSYNC_APP_ENV", "production")
		os.Setenv("CHANNELSYNC_INVENTORY_API_KEY", "inv-key")
		os.Setenv("CHANNELSYNC_WEBHOOK_TOKEN", "hook-token")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "marketplace.api_key is required in production")
	})

	t.Run("requires webhook.token in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("CHANNELSYNC_APP_ENV", "production")
		os.Setenv("CHANNELSYNC_MARKETPLACE_API_KEY", "mk-key")
		os.Setenv("CHANNELSYNC_INVENTORY_API_KEY", "inv-key")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhook.token is required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		os.Setenv("CHANNELSYNC_APP_ENV", "production")
		os.Setenv("CHANNELSYNC_MARKETPLACE_API_KEY", "mk-key")
		os.Setenv("CHANNELSYNC_INVENTORY_API_KEY", "inv-key")
		os.Setenv("CHANNELSYNC_WEBHOOK_TOKEN", "hook-token")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestSyncConfig_Intervals(t *testing.T) {
	cfg := SyncConfig{StockIntervalMinutes: 45, OrderIntervalMinutes: 10}
	assert.Equal(t, 45*time.Minute, cfg.StockSyncInterval())
	assert.Equal(t, 10*time.Minute, cfg.OrderPollInterval())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.local", Port: 6380}
	assert.Equal(t, "redis.local:6380", cfg.Addr())
}
