package event

import (
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
)

// RegisterAllEvents registers all domain event types with the serializer.
// The OutboxProcessor needs them to deserialize entries read back from the outbox table.
func RegisterAllEvents(serializer *EventSerializer) {
	// Partner domain - Vendor events
	serializer.Register(partner.EventTypeVendorRegistered, &partner.VendorRegisteredEvent{})
	serializer.Register(partner.EventTypeVendorStatusChanged, &partner.VendorStatusChangedEvent{})
	serializer.Register(partner.EventTypeVendorPolicyChanged, &partner.VendorPolicyChangedEvent{})

	// Finance domain - Commission ledger events
	serializer.Register(finance.EventTypeCommissionAccrued, &finance.CommissionAccruedEvent{})
	serializer.Register(finance.EventTypeCommissionApproved, &finance.CommissionApprovedEvent{})
	serializer.Register(finance.EventTypeCommissionDisputed, &finance.CommissionDisputedEvent{})
	serializer.Register(finance.EventTypeCommissionReversed, &finance.CommissionReversedEvent{})

	// Finance domain - Payout events
	serializer.Register(finance.EventTypePayoutCreated, &finance.PayoutCreatedEvent{})
	serializer.Register(finance.EventTypePayoutSubmitted, &finance.PayoutSubmittedEvent{})
	serializer.Register(finance.EventTypePayoutCompleted, &finance.PayoutCompletedEvent{})
	serializer.Register(finance.EventTypePayoutFailed, &finance.PayoutFailedEvent{})
	serializer.Register(finance.EventTypePayoutCancelled, &finance.PayoutCancelledEvent{})

	// Inbound integration events from the order platform
	serializer.Register(finance.EventTypeOrderCompleted, &finance.OrderCompletedEvent{})
	serializer.Register(finance.EventTypeReturnOrChargeback, &finance.ReturnOrChargebackEvent{})
}
