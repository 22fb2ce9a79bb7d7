package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is a ledger aggregate whose pending events are recorded to the
// outbox in the same transaction as its row
type AggregateRoot interface {
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot carries identity, UTC audit timestamps and the optimistic
// lock version shared by vendors, commission entries and payouts.
//
// Version starts at 1 and advances once per state change; repositories update
// with WHERE version = Version-1 and report a concurrency conflict otherwise.
type BaseAggregateRoot struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int
	domainEvents []DomainEvent
}

// NewBaseAggregateRoot creates an unsaved aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now().UTC()
	return BaseAggregateRoot{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Touch records a state change made at now
func (a *BaseAggregateRoot) Touch(now time.Time) {
	a.UpdatedAt = now.UTC()
	a.Version++
}

// AddDomainEvent queues an event for the outbox
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns the queued events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents drops the queued events once they are recorded
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
