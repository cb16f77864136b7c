package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/channelsync/internal/domain/integration"
)

// defaultKeyPrefix namespaces processed-order markers in Redis.
const defaultKeyPrefix = "channelsync:processed:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisProcessedOrderStore implements ProcessedOrderStore on Redis, for
// deployments where multiple instances must share de-dup state.
type RedisProcessedOrderStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisProcessedOrderStore connects to Redis and verifies the connection.
func NewRedisProcessedOrderStore(cfg RedisConfig) (*RedisProcessedOrderStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProcessedOrderStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisProcessedOrderStoreWithClient wraps an existing client, mainly for
// tests and shared connection pools.
func NewRedisProcessedOrderStoreWithClient(client *redis.Client, keyPrefix string) *RedisProcessedOrderStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisProcessedOrderStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed sets the marker atomically with SETNX so concurrent pollers
// agree on who handled the order first.
func (s *RedisProcessedOrderStore) MarkProcessed(ctx context.Context, externalOrderID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+externalOrderID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark order as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed checks whether a marker exists.
func (s *RedisProcessedOrderStore) IsProcessed(ctx context.Context, externalOrderID string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+externalOrderID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed marker: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client.
func (s *RedisProcessedOrderStore) Close() error {
	return s.client.Close()
}

// Ensure RedisProcessedOrderStore implements ProcessedOrderStore.
var _ integration.ProcessedOrderStore = (*RedisProcessedOrderStore)(nil)
