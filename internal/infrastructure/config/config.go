package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Inventory   InventoryConfig
	Marketplace MarketplaceConfig
	Sync        SyncConfig
	Mapping     MappingConfig
	Webhook     WebhookConfig
	Redis       RedisConfig
	History     HistoryConfig
	Telemetry   TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodySize  int64
	CORSOrigins  []string
}

// InventoryConfig holds the inventory service connection settings
type InventoryConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// MarketplaceConfig holds the marketplace connection settings
type MarketplaceConfig struct {
	BaseURL            string
	APIKey             string
	RequestTimeout     time.Duration
	WarehouseID        int
	MaxRetries         int
	PushRetryBaseDelay time.Duration
	PollRetryBaseDelay time.Duration
}

// SyncConfig holds the reconciliation scheduler settings
type SyncConfig struct {
	Enabled              bool
	StockIntervalMinutes int
	OrderIntervalMinutes int
	RunHistorySize       int
}

// MappingConfig holds the id mapping file settings
type MappingConfig struct {
	ProductFile      string
	OrderFile        string
	LockPollInterval time.Duration
	LockTimeout      time.Duration
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	Token             string
	ExpectedUserAgent string
	AllowedResources  []string
}

// RedisConfig holds Redis connection settings for the processed-order set
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HistoryConfig holds the sync run history database settings
type HistoryConfig struct {
	Enabled bool
	Path    string
}

// TelemetryConfig holds OpenTelemetry and profiler configuration
type TelemetryConfig struct {
	MetricsEnabled    bool
	TracingEnabled    bool
	LogsEnabled       bool
	ProfilerEnabled   bool
	CollectorEndpoint string
	Insecure          bool
	SamplingRatio     float64
	PyroscopeAddress  string
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CHANNELSYNC_ prefix (e.g., CHANNELSYNC_MARKETPLACE_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CHANNELSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			Host:         v.GetString("http.host"),
			Port:         v.GetString("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			MaxBodySize:  v.GetInt64("http.max_body_size"),
			CORSOrigins:  v.GetStringSlice("http.cors_origins"),
		},
		Inventory: InventoryConfig{
			BaseURL:        v.GetString("inventory.base_url"),
			APIKey:         v.GetString("inventory.api_key"),
			RequestTimeout: v.GetDuration("inventory.request_timeout"),
		},
		Marketplace: MarketplaceConfig{
			BaseURL:            v.GetString("marketplace.base_url"),
			APIKey:             v.GetString("marketplace.api_key"),
			RequestTimeout:     v.GetDuration("marketplace.request_timeout"),
			WarehouseID:        v.GetInt("marketplace.warehouse_id"),
			MaxRetries:         v.GetInt("marketplace.max_retries"),
			PushRetryBaseDelay: v.GetDuration("marketplace.push_retry_base_delay"),
			PollRetryBaseDelay: v.GetDuration("marketplace.poll_retry_base_delay"),
		},
		Sync: SyncConfig{
			Enabled:              v.GetBool("sync.enabled"),
			StockIntervalMinutes: v.GetInt("sync.stock_interval_minutes"),
			OrderIntervalMinutes: v.GetInt("sync.order_interval_minutes"),
			RunHistorySize:       v.GetInt("sync.run_history_size"),
		},
		Mapping: MappingConfig{
			ProductFile:      v.GetString("mapping.product_file"),
			OrderFile:        v.GetString("mapping.order_file"),
			LockPollInterval: v.GetDuration("mapping.lock_poll_interval"),
			LockTimeout:      v.GetDuration("mapping.lock_timeout"),
		},
		Webhook: WebhookConfig{
			Token:             v.GetString("webhook.token"),
			ExpectedUserAgent: v.GetString("webhook.expected_user_agent"),
			AllowedResources:  v.GetStringSlice("webhook.allowed_resources"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		History: HistoryConfig{
			Enabled: v.GetBool("history.enabled"),
			Path:    v.GetString("history.path"),
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			TracingEnabled:    v.GetBool("telemetry.tracing_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "channelsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Inventory.BaseURL == "" {
		cfg.Inventory.BaseURL = "http://localhost:8081"
	}
	if cfg.Inventory.RequestTimeout == 0 {
		cfg.Inventory.RequestTimeout = 30 * time.Second
	}
	if cfg.Marketplace.BaseURL == "" {
		cfg.Marketplace.BaseURL = "http://localhost:8082"
	}
	if cfg.Marketplace.RequestTimeout == 0 {
		cfg.Marketplace.RequestTimeout = 30 * time.Second
	}
	if cfg.Marketplace.MaxRetries == 0 {
		cfg.Marketplace.MaxRetries = 3
	}
	if cfg.Marketplace.PushRetryBaseDelay == 0 {
		cfg.Marketplace.PushRetryBaseDelay = time.Second
	}
	if cfg.Marketplace.PollRetryBaseDelay == 0 {
		cfg.Marketplace.PollRetryBaseDelay = 2 * time.Second
	}
	if cfg.Sync.StockIntervalMinutes == 0 {
		cfg.Sync.StockIntervalMinutes = 60
	}
	if cfg.Sync.OrderIntervalMinutes == 0 {
		cfg.Sync.OrderIntervalMinutes = 15
	}
	if cfg.Sync.RunHistorySize == 0 {
		cfg.Sync.RunHistorySize = 50
	}
	if cfg.Mapping.ProductFile == "" {
		cfg.Mapping.ProductFile = "data/product_mappings.json"
	}
	if cfg.Mapping.OrderFile == "" {
		cfg.Mapping.OrderFile = "data/order_mappings.json"
	}
	if cfg.Mapping.LockPollInterval == 0 {
		cfg.Mapping.LockPollInterval = 50 * time.Millisecond
	}
	if cfg.Mapping.LockTimeout == 0 {
		cfg.Mapping.LockTimeout = 5 * time.Second
	}
	if len(cfg.Webhook.AllowedResources) == 0 {
		cfg.Webhook.AllowedResources = []string{"stock", "product"}
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/sync_runs.db"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.PyroscopeAddress == "" {
		cfg.Telemetry.PyroscopeAddress = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Sync.StockIntervalMinutes < 1 {
		return fmt.Errorf("sync.stock_interval_minutes must be at least 1, got %d", c.Sync.StockIntervalMinutes)
	}
	if c.Sync.OrderIntervalMinutes < 1 {
		return fmt.Errorf("sync.order_interval_minutes must be at least 1, got %d", c.Sync.OrderIntervalMinutes)
	}
	if c.Marketplace.MaxRetries < 0 {
		return fmt.Errorf("marketplace.max_retries cannot be negative")
	}
	if c.Mapping.LockPollInterval <= 0 {
		return fmt.Errorf("mapping.lock_poll_interval must be positive")
	}
	if c.Mapping.LockTimeout < c.Mapping.LockPollInterval {
		return fmt.Errorf("mapping.lock_timeout (%s) cannot be shorter than mapping.lock_poll_interval (%s)",
			c.Mapping.LockTimeout, c.Mapping.LockPollInterval)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Marketplace.APIKey == "" {
			return fmt.Errorf("marketplace.api_key is required in production")
		}
		if c.Inventory.APIKey == "" {
			return fmt.Errorf("inventory.api_key is required in production")
		}
		if c.Webhook.Token == "" {
			return fmt.Errorf("webhook.token is required in production")
		}
	}

	return nil
}

// StockSyncInterval returns the stock sweep interval as a duration.
func (c *SyncConfig) StockSyncInterval() time.Duration {
	return time.Duration(c.StockIntervalMinutes) * time.Minute
}

// OrderPollInterval returns the order poll interval as a duration.
func (c *SyncConfig) OrderPollInterval() time.Duration {
	return time.Duration(c.OrderIntervalMinutes) * time.Minute
}

// Addr returns the Redis connection address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
