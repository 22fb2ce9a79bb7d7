package payoutexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds the call rate and duration of executor calls
type RateLimitConfig struct {
	RequestsPerSecond float64       // <= 0 disables limiting
	Burst             int           // default 1
	Timeout           time.Duration // per call, <= 0 disables
}

// RateLimitedExecutor throttles calls to the wrapped executor and bounds each
// call with a timeout. A timed out call returns ErrExecutorTimeout, which the
// payout service treats as an unknown outcome.
type RateLimitedExecutor struct {
	next    finance.PayoutExecutor
	limiter *rate.Limiter
	timeout time.Duration
}

// NewRateLimitedExecutor wraps next
func NewRateLimitedExecutor(next finance.PayoutExecutor, cfg RateLimitConfig) *RateLimitedExecutor {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedExecutor{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
	}
}

// Transfer implements finance.PayoutExecutor
func (e *RateLimitedExecutor) Transfer(ctx context.Context, req finance.TransferRequest) (finance.TransferResult, error) {
	return call(ctx, e, func(ctx context.Context) (finance.TransferResult, error) {
		return e.next.Transfer(ctx, req)
	})
}

// Status implements finance.PayoutExecutor
func (e *RateLimitedExecutor) Status(ctx context.Context, payoutID uuid.UUID) (finance.TransferResult, error) {
	return call(ctx, e, func(ctx context.Context) (finance.TransferResult, error) {
		return e.next.Status(ctx, payoutID)
	})
}

func call(ctx context.Context, e *RateLimitedExecutor, fn func(context.Context) (finance.TransferResult, error)) (finance.TransferResult, error) {
	// waiting for a token happens before the request is sent, so a
	// cancellation here cannot have moved funds
	if err := e.limiter.Wait(ctx); err != nil {
		return finance.TransferResult{}, finance.NewTransientExecutorError(
			finance.FailureProviderUnavailable, "executor rate limit wait aborted", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	result, err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return result, fmt.Errorf("%w: %w", ErrExecutorTimeout, err)
	}
	return result, err
}

var _ finance.PayoutExecutor = (*RateLimitedExecutor)(nil)
