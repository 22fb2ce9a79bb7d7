package event

import (
	"context"
	"fmt"

	"github.com/marketplace/payouts/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events as outbox rows inside the caller's
// transaction, so an event exists exactly when the ledger or payout change
// that raised it commits
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

// OutboxPublisherOption configures an OutboxPublisher
type OutboxPublisherOption func(*OutboxPublisher)

// WithMaxRetries sets the delivery attempts of new entries. Non-positive values keep the default.
func WithMaxRetries(n int) OutboxPublisherOption {
	return func(p *OutboxPublisher) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// NewOutboxPublisher creates a publisher encoding events with serializer
func NewOutboxPublisher(serializer *EventSerializer, opts ...OutboxPublisherOption) *OutboxPublisher {
	p := &OutboxPublisher{serializer: serializer, maxRetries: shared.DefaultMaxRetries}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishWithTx inserts one outbox row per event using tx
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	entries, err := p.newEntries(events)
	if err != nil || len(entries) == 0 {
		return err
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

// SaveEvents implements shared.OutboxEventSaver; txProvider must be the *gorm.DB transaction
func (p *OutboxPublisher) SaveEvents(ctx context.Context, txProvider any, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("outbox needs a *gorm.DB transaction, got %T", txProvider)
	}
	return p.PublishWithTx(ctx, tx, events...)
}

func (p *OutboxPublisher) newEntries(events []shared.DomainEvent) ([]*shared.OutboxEntry, error) {
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", event.EventType(), err)
		}
		entry := shared.NewOutboxEntry(event, payload)
		entry.MaxRetries = p.maxRetries
		entries = append(entries, entry)
	}
	return entries, nil
}

var _ shared.OutboxEventSaver = (*OutboxPublisher)(nil)
