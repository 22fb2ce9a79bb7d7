package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeCommissionEntry = "CommissionEntry"

// Event type constants
const (
	EventTypeCommissionAccrued  = "CommissionAccrued"
	EventTypeCommissionApproved = "CommissionApproved"
	EventTypeCommissionDisputed = "CommissionDisputed"
	EventTypeCommissionReversed = "CommissionReversed"
)

// CommissionAccruedEvent is published when an order line accrues commission
type CommissionAccruedEvent struct {
	shared.BaseDomainEvent
	EntryID          uuid.UUID `json:"entry_id"`
	VendorID         uuid.UUID `json:"vendor_id"`
	OrderID          string    `json:"order_id"`
	OrderItemID      string    `json:"order_item_id"`
	SaleAmount       int64     `json:"sale_amount"`
	CommissionAmount int64     `json:"commission_amount"`
	Currency         string    `json:"currency"`
	AccruedAt        time.Time `json:"accrued_at"`
}

// NewCommissionAccruedEvent creates a new CommissionAccruedEvent
func NewCommissionAccruedEvent(e *CommissionEntry) *CommissionAccruedEvent {
	return &CommissionAccruedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCommissionAccrued, AggregateTypeCommissionEntry, e.ID),
		EntryID:          e.ID,
		VendorID:         e.VendorID,
		OrderID:          e.OrderID,
		OrderItemID:      e.OrderItemID,
		SaleAmount:       e.SaleAmount,
		CommissionAmount: e.CommissionAmount,
		Currency:         e.Currency.String(),
		AccruedAt:        e.AccruedAt,
	}
}

// CommissionApprovedEvent is published when an entry becomes eligible for payout
type CommissionApprovedEvent struct {
	shared.BaseDomainEvent
	EntryID          uuid.UUID `json:"entry_id"`
	VendorID         uuid.UUID `json:"vendor_id"`
	CommissionAmount int64     `json:"commission_amount"`
}

// NewCommissionApprovedEvent creates a new CommissionApprovedEvent
func NewCommissionApprovedEvent(e *CommissionEntry) *CommissionApprovedEvent {
	return &CommissionApprovedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCommissionApproved, AggregateTypeCommissionEntry, e.ID),
		EntryID:          e.ID,
		VendorID:         e.VendorID,
		CommissionAmount: e.CommissionAmount,
	}
}

// CommissionDisputedEvent is published when a return or chargeback hits an unpaid entry
type CommissionDisputedEvent struct {
	shared.BaseDomainEvent
	EntryID  uuid.UUID  `json:"entry_id"`
	VendorID uuid.UUID  `json:"vendor_id"`
	PayoutID *uuid.UUID `json:"payout_id,omitempty"`
	Reason   string     `json:"reason"`
	Deferred bool       `json:"deferred"`
}

// NewCommissionDisputedEvent creates a new CommissionDisputedEvent
func NewCommissionDisputedEvent(e *CommissionEntry, deferred bool) *CommissionDisputedEvent {
	return &CommissionDisputedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCommissionDisputed, AggregateTypeCommissionEntry, e.ID),
		EntryID:         e.ID,
		VendorID:        e.VendorID,
		PayoutID:        e.PayoutID,
		Reason:          e.DisputeReason,
		Deferred:        deferred,
	}
}

// CommissionReversedEvent is published when a paid entry receives a reversal
type CommissionReversedEvent struct {
	shared.BaseDomainEvent
	ReversalID       uuid.UUID `json:"reversal_id"`
	OriginalID       uuid.UUID `json:"original_id"`
	VendorID         uuid.UUID `json:"vendor_id"`
	CommissionAmount int64     `json:"commission_amount"`
	Reason           string    `json:"reason"`
}

// NewCommissionReversedEvent creates a new CommissionReversedEvent
func NewCommissionReversedEvent(reversal, original *CommissionEntry) *CommissionReversedEvent {
	return &CommissionReversedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCommissionReversed, AggregateTypeCommissionEntry, reversal.ID),
		ReversalID:       reversal.ID,
		OriginalID:       original.ID,
		VendorID:         reversal.VendorID,
		CommissionAmount: reversal.CommissionAmount,
		Reason:           reversal.DisputeReason,
	}
}
