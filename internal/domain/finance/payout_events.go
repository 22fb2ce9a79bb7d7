package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypePayout = "Payout"

// Event type constants
const (
	EventTypePayoutCreated   = "PayoutCreated"
	EventTypePayoutSubmitted = "PayoutSubmitted"
	EventTypePayoutCompleted = "PayoutCompleted"
	EventTypePayoutFailed    = "PayoutFailed"
	EventTypePayoutCancelled = "PayoutCancelled"
)

// PayoutCreatedEvent is published when a batch freezes commissions into a payout
type PayoutCreatedEvent struct {
	shared.BaseDomainEvent
	PayoutID        uuid.UUID `json:"payout_id"`
	VendorID        uuid.UUID `json:"vendor_id"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	CommissionTotal int64     `json:"commission_total"`
	NetAmount       int64     `json:"net_amount"`
	EntryCount      int       `json:"entry_count"`
}

// NewPayoutCreatedEvent creates a new PayoutCreatedEvent
func NewPayoutCreatedEvent(p *Payout) *PayoutCreatedEvent {
	return &PayoutCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePayoutCreated, AggregateTypePayout, p.ID),
		PayoutID:        p.ID,
		VendorID:        p.VendorID,
		PeriodStart:     p.PeriodStart,
		PeriodEnd:       p.PeriodEnd,
		CommissionTotal: p.CommissionTotal,
		NetAmount:       p.NetAmount,
		EntryCount:      len(p.Items),
	}
}

// PayoutSubmittedEvent is published each time a payout is handed to the executor
type PayoutSubmittedEvent struct {
	shared.BaseDomainEvent
	PayoutID  uuid.UUID `json:"payout_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	NetAmount int64     `json:"net_amount"`
	Attempt   int       `json:"attempt"`
}

// NewPayoutSubmittedEvent creates a new PayoutSubmittedEvent
func NewPayoutSubmittedEvent(p *Payout) *PayoutSubmittedEvent {
	return &PayoutSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePayoutSubmitted, AggregateTypePayout, p.ID),
		PayoutID:        p.ID,
		VendorID:        p.VendorID,
		NetAmount:       p.NetAmount,
		Attempt:         p.AttemptCount,
	}
}

// PayoutCompletedEvent is published when funds reached the vendor
type PayoutCompletedEvent struct {
	shared.BaseDomainEvent
	PayoutID          uuid.UUID `json:"payout_id"`
	VendorID          uuid.UUID `json:"vendor_id"`
	NetAmount         int64     `json:"net_amount"`
	Currency          string    `json:"currency"`
	ExecutorReference string    `json:"executor_reference"`
	Attempts          int       `json:"attempts"`
}

// NewPayoutCompletedEvent creates a new PayoutCompletedEvent
func NewPayoutCompletedEvent(p *Payout) *PayoutCompletedEvent {
	return &PayoutCompletedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePayoutCompleted, AggregateTypePayout, p.ID),
		PayoutID:          p.ID,
		VendorID:          p.VendorID,
		NetAmount:         p.NetAmount,
		Currency:          p.Currency.String(),
		ExecutorReference: p.ExecutorReference,
		Attempts:          p.AttemptCount,
	}
}

// PayoutFailedEvent is published when the executor rejects a transfer
type PayoutFailedEvent struct {
	shared.BaseDomainEvent
	PayoutID      uuid.UUID  `json:"payout_id"`
	VendorID      uuid.UUID  `json:"vendor_id"`
	NetAmount     int64      `json:"net_amount"`
	FailureCode   string     `json:"failure_code"`
	FailureDetail string     `json:"failure_detail"`
	Permanent     bool       `json:"permanent"`
	Attempts      int        `json:"attempts"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
}

// NewPayoutFailedEvent creates a new PayoutFailedEvent
func NewPayoutFailedEvent(p *Payout) *PayoutFailedEvent {
	return &PayoutFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePayoutFailed, AggregateTypePayout, p.ID),
		PayoutID:        p.ID,
		VendorID:        p.VendorID,
		NetAmount:       p.NetAmount,
		FailureCode:     p.FailureCode,
		FailureDetail:   p.FailureDetail,
		Permanent:       p.PermanentFailure,
		Attempts:        p.AttemptCount,
		NextRetryAt:     p.NextRetryAt,
	}
}

// PayoutCancelledEvent is published when a pending payout is cancelled
type PayoutCancelledEvent struct {
	shared.BaseDomainEvent
	PayoutID uuid.UUID `json:"payout_id"`
	VendorID uuid.UUID `json:"vendor_id"`
	Reason   string    `json:"reason"`
}

// NewPayoutCancelledEvent creates a new PayoutCancelledEvent
func NewPayoutCancelledEvent(p *Payout, reason string) *PayoutCancelledEvent {
	return &PayoutCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePayoutCancelled, AggregateTypePayout, p.ID),
		PayoutID:        p.ID,
		VendorID:        p.VendorID,
		Reason:          reason,
	}
}
