package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// DefaultMaxRetries is the delivery attempts an entry gets before it is dead-lettered
const DefaultMaxRetries = 5

// maxLastErrorLen bounds the stored failure text
const maxLastErrorLen = 2000

// OutboxBackoff spaces redelivery attempts: Base doubles per failed attempt up to Max
type OutboxBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultOutboxBackoff waits 1s, 2s, 4s... and never more than five minutes
var DefaultOutboxBackoff = OutboxBackoff{Base: time.Second, Max: 5 * time.Minute}

// Delay returns the wait before retry number attempt (1-based)
func (b OutboxBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt && (b.Max <= 0 || d < b.Max); i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// OutboxEntry is a domain event stored in the same transaction as the ledger
// or payout rows that raised it, and relayed to handlers afterwards
type OutboxEntry struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string       `gorm:"type:varchar(100);not null;index"`
	AggregateID   uuid.UUID    `gorm:"type:uuid;not null;index"`
	AggregateType string       `gorm:"type:varchar(100);not null"`
	Payload       []byte       `gorm:"not null"`
	Status        OutboxStatus `gorm:"type:varchar(20);not null;index"`
	RetryCount    int          `gorm:"not null;default:0"`
	MaxRetries    int          `gorm:"not null;default:5"`
	LastError     string       `gorm:"type:text"`
	NextRetryAt   *time.Time   `gorm:"index"`
	ProcessedAt   *time.Time   `gorm:"index"`
	CreatedAt     time.Time    `gorm:"not null"`
	UpdatedAt     time.Time    `gorm:"not null"`
}

// TableName pins the table name used by the migrations
func (OutboxEntry) TableName() string {
	return "outbox_entries"
}

// NewOutboxEntry wraps an encoded event for the outbox
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now().UTC()
	return &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsDue reports whether the relay may pick the entry up at now
func (e *OutboxEntry) IsDue(now time.Time) bool {
	switch e.Status {
	case OutboxStatusPending:
		return true
	case OutboxStatusFailed:
		return e.NextRetryAt == nil || !e.NextRetryAt.After(now)
	default:
		return false
	}
}

// IsDead reports whether the entry has been dead-lettered
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// MarkSent records a successful relay
func (e *OutboxEntry) MarkSent(now time.Time) {
	now = now.UTC()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
	e.NextRetryAt = nil
	e.UpdatedAt = now
}

// MarkFailed records a failed relay. The entry is rescheduled after the
// backoff delay, or dead-lettered once MaxRetries attempts have failed.
func (e *OutboxEntry) MarkFailed(cause string, now time.Time, backoff OutboxBackoff) {
	e.RetryCount++
	e.LastError = truncateError(cause)
	e.UpdatedAt = now.UTC()

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	next := e.UpdatedAt.Add(backoff.Delay(e.RetryCount))
	e.Status = OutboxStatusFailed
	e.NextRetryAt = &next
}

// MarkDead dead-letters the entry without further attempts. Used for
// payloads that can never be decoded.
func (e *OutboxEntry) MarkDead(cause string, now time.Time) {
	e.RetryCount++
	e.LastError = truncateError(cause)
	e.Status = OutboxStatusDead
	e.NextRetryAt = nil
	e.UpdatedAt = now.UTC()
}

// Requeue puts a dead-lettered entry back in the queue with a fresh retry budget
func (e *OutboxEntry) Requeue(now time.Time) error {
	if e.Status != OutboxStatusDead {
		return NewDomainError(CodeInvalidStateTransition, "Only dead-lettered outbox entries can be requeued")
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = now.UTC()
	return nil
}

func truncateError(s string) string {
	if len(s) <= maxLastErrorLen {
		return s
	}
	return s[:maxLastErrorLen]
}

// OutboxRepository stores outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// ClaimDue moves up to limit due entries (pending, or failed with a
	// passed retry time) to PROCESSING and returns them, oldest first.
	// Entries claimed by a concurrent relay are skipped.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
	// RequeueStale returns entries left in PROCESSING since before cutoff to PENDING
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
	// PurgeSent deletes entries relayed before cutoff
	PurgeSent(ctx context.Context, cutoff time.Time) (int64, error)
}
