package event

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus fans domain events out to in-process handlers. Outbox
// relays use Publish, which logs handler failures and moves on; inbound order
// events use Dispatch so a failure goes back to the producer for redelivery.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
	logger   *zap.Logger
	started  atomic.Bool
}

// NewInMemoryEventBus creates an event bus with no subscribers
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		byType: make(map[string][]shared.EventHandler),
		logger: logger,
	}
}

// Subscribe registers handler for eventTypes, or for the handler's own
// EventTypes when none are given. A handler with no types receives every
// event. Subscribing the same handler twice to a type has no effect.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		if !slices.Contains(b.wildcard, handler) {
			b.wildcard = append(b.wildcard, handler)
		}
		b.logger.Debug("Handler subscribed to all events")
		return
	}
	for _, t := range eventTypes {
		if !slices.Contains(b.byType[t], handler) {
			b.byType[t] = append(b.byType[t], handler)
		}
	}
	b.logger.Debug("Handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes handler from every event type
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcard = slices.DeleteFunc(b.wildcard, func(h shared.EventHandler) bool { return h == handler })
	for t, handlers := range b.byType {
		handlers = slices.DeleteFunc(handlers, func(h shared.EventHandler) bool { return h == handler })
		if len(handlers) == 0 {
			delete(b.byType, t)
			continue
		}
		b.byType[t] = handlers
	}
}

// SubscribedTypes returns the event types with at least one typed handler, sorted
func (b *InMemoryEventBus) SubscribedTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.byType))
	for t := range b.byType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// handlersFor returns typed handlers first, then wildcard handlers
func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]shared.EventHandler, 0, len(b.byType[eventType])+len(b.wildcard))
	out = append(out, b.byType[eventType]...)
	return append(out, b.wildcard...)
}

// Publish delivers events to their handlers. Handler failures are logged
// and never returned, since the outbox entry has already been committed.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, handler := range b.handlersFor(event.EventType()) {
			if err := b.deliver(ctx, handler, event); err != nil {
				b.logger.Error("Event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("aggregate_type", event.AggregateType()),
					zap.String("aggregate_id", event.AggregateID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Dispatch delivers one event and returns the joined handler errors. An
// event type nobody subscribed to is an error, so the producer redelivers
// instead of the sale being dropped.
func (b *InMemoryEventBus) Dispatch(ctx context.Context, event shared.DomainEvent) error {
	handlers := b.handlersFor(event.EventType())
	if len(handlers) == 0 {
		return fmt.Errorf("no handler subscribed to %s", event.EventType())
	}

	var errs []error
	for _, handler := range handlers {
		if err := b.deliver(ctx, handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start logs the subscriptions; delivery is synchronous so there is nothing to spawn
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.started.Store(true)
	b.logger.Info("Event bus started", zap.Strings("event_types", b.SubscribedTypes()))
	return nil
}

// Stop marks the bus stopped
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	if b.started.Swap(false) {
		b.logger.Info("Event bus stopped")
	}
	return nil
}

// deliver runs one handler and turns a panic into an error
func (b *InMemoryEventBus) deliver(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked on %s: %v", event.EventType(), r)
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
