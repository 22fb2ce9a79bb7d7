package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketplace/payouts/internal/interfaces/http/dto"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimitConfig configures a rate limited route group
type RateLimitConfig struct {
	// Name separates the counters of different route groups
	Name     string
	Requests int
	Window   time.Duration
	// Redis shares the counters across instances; nil keeps them in memory
	Redis  redis.UniversalClient
	Logger *zap.Logger
	// KeyFunc identifies the caller, the client IP by default
	KeyFunc func(*gin.Context) string
}

// NewRateLimitStore returns the counter store for cfg
func NewRateLimitStore(cfg RateLimitConfig) (limiter.Store, error) {
	opts := limiter.StoreOptions{
		Prefix:          "payouts:ratelimit:" + cfg.Name,
		MaxRetry:        3,
		CleanUpInterval: cfg.Window,
	}
	if cfg.Redis == nil {
		return memory.NewStoreWithOptions(opts), nil
	}
	store, err := redisstore.NewStoreWithOptions(cfg.Redis, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis rate limit store for %s: %w", cfg.Name, err)
	}
	return store, nil
}

// RateLimit limits requests per caller. X-RateLimit-* headers are set on
// every response.
func RateLimit(cfg RateLimitConfig) (gin.HandlerFunc, error) {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit %q needs positive requests and window", cfg.Name)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	store, err := NewRateLimitStore(cfg)
	if err != nil {
		return nil, err
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	rate := limiter.Rate{Period: cfg.Window, Limit: int64(cfg.Requests)}

	return ginlimiter.NewMiddleware(limiter.New(store, rate),
		ginlimiter.WithKeyGetter(keyFunc),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, dto.Fail(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				GetRequestID(c),
			))
		}),
		// a broken store must not take the event intake down with it
		ginlimiter.WithErrorHandler(func(c *gin.Context, err error) {
			cfg.Logger.Warn("Rate limit store failed, letting request through",
				zap.String("limiter", cfg.Name),
				zap.Error(err),
			)
			c.Next()
		}),
	), nil
}
