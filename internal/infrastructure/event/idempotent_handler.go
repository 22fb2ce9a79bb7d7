package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts what an IdempotentHandler did with its deliveries
type IdempotencyStats struct {
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// IdempotentHandler guards a handler against at-least-once delivery. The
// order platform redelivers until acked, and the backfill command replays
// whole exports, so an event key is claimed before the inner handler runs
// and released again if it fails.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	window  time.Duration
	logger  *zap.Logger

	processed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithDedupeWindow sets how long a handled key stays claimed. A window of
// zero or less turns deduplication off.
func WithDedupeWindow(window time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.window = window
	}
}

// NewIdempotentHandler wraps handler with a check against store
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		window:  shared.DefaultDedupeWindow,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IdempotencyKey is the store key for event. Keys are scoped by event type
// so a return and the sale it reverses never collide.
func IdempotencyKey(event shared.DomainEvent) string {
	return event.EventType() + ":" + event.EventID().String()
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle runs the wrapped handler unless the event was already handled.
// A store outage does not block delivery: the ledger's unique order line
// key still rejects a second accrual.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.window <= 0 {
		return h.handler.Handle(ctx, event)
	}

	key := IdempotencyKey(event)
	log := h.logger.With(
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	)

	claimed, err := h.store.Claim(ctx, key, h.window)
	switch {
	case err != nil:
		log.Warn("Idempotency check failed, handling anyway", zap.Error(err))
	case !claimed:
		h.duplicates.Add(1)
		log.Debug("Duplicate delivery skipped")
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		log.Error("Event handling failed", zap.String("code", shared.CodeOf(err)), zap.Error(err))
		if releaseErr := h.store.Release(ctx, key); releaseErr != nil {
			log.Warn("Failed to release idempotency key", zap.Error(releaseErr))
		}
		return err
	}

	h.processed.Add(1)
	return nil
}

// Stats returns a snapshot of the counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed:  h.processed.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

// Unwrap returns the guarded handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.handler
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
