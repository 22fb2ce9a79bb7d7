// Package cache holds the claim stores that deduplicate inbound order events
// and the Redis client they share with the HTTP rate limiter.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	claimKeyPrefix = "payouts:event:"
	pingTimeout    = 5 * time.Second
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens a client and pings it. An empty address returns a nil
// client and no error: Redis is optional.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewIdempotencyStore claims keys in Redis when client is set, so every
// instance and the backfill command see the same claims. Without a client
// claims live in process memory. The ledger's unique order line key still
// rejects a second accrual, so the memory store only costs redundant work
// across instances.
func NewIdempotencyStore(client *redis.Client, logger *zap.Logger) shared.IdempotencyStore {
	if client == nil {
		logger.Info("Event claims kept in memory")
		return NewMemoryStore()
	}
	logger.Info("Event claims kept in Redis", zap.String("addr", client.Options().Addr))
	return &RedisStore{client: client, prefix: claimKeyPrefix}
}

// RedisStore claims keys with SET NX so concurrent deliveries race on one key.
// The client belongs to the caller.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the owner of the client closes it.
func (s *RedisStore) Close() error { return nil }

var _ shared.IdempotencyStore = (*RedisStore)(nil)
