package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by a vendor, commission or payout aggregate
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// BaseDomainEvent is embedded by every payout domain event
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	AggID     uuid.UUID `json:"aggregate_id"`
	AggType   string    `json:"aggregate_type"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggID }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggType }

// NewBaseDomainEvent stamps a fresh event id and the current time
func NewBaseDomainEvent(eventType, aggType string, aggID uuid.UUID) BaseDomainEvent {
	return NewBaseDomainEventWithID(uuid.Nil, eventType, aggType, aggID, time.Time{})
}

// NewBaseDomainEventWithID keeps a producer-assigned id so redelivered
// integration events deduplicate. A nil id or zero time is filled in.
func NewBaseDomainEventWithID(id uuid.UUID, eventType, aggType string, aggID uuid.UUID, occurredAt time.Time) BaseDomainEvent {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return BaseDomainEvent{ID: id, Type: eventType, Timestamp: occurredAt, AggID: aggID, AggType: aggType}
}
