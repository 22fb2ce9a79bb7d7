package partner

import (
	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeVendor = "Vendor"

// Event type constants
const (
	EventTypeVendorRegistered    = "VendorRegistered"
	EventTypeVendorStatusChanged = "VendorStatusChanged"
	EventTypeVendorPolicyChanged = "VendorPolicyChanged"
)

// VendorRegisteredEvent is published when a vendor registers
type VendorRegisteredEvent struct {
	shared.BaseDomainEvent
	VendorID     uuid.UUID `json:"vendor_id"`
	BusinessName string    `json:"business_name"`
	Email        string    `json:"email"`
}

// NewVendorRegisteredEvent creates a new VendorRegisteredEvent
func NewVendorRegisteredEvent(v *Vendor) *VendorRegisteredEvent {
	return &VendorRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVendorRegistered, AggregateTypeVendor, v.ID),
		VendorID:        v.ID,
		BusinessName:    v.BusinessName,
		Email:           v.Contact.Email,
	}
}

// VendorStatusChangedEvent is published on approval, suspension, rejection and reinstatement
type VendorStatusChangedEvent struct {
	shared.BaseDomainEvent
	VendorID  uuid.UUID    `json:"vendor_id"`
	OldStatus VendorStatus `json:"old_status"`
	NewStatus VendorStatus `json:"new_status"`
	Reason    string       `json:"reason,omitempty"`
}

// NewVendorStatusChangedEvent creates a new VendorStatusChangedEvent
func NewVendorStatusChangedEvent(v *Vendor, oldStatus, newStatus VendorStatus, reason string) *VendorStatusChangedEvent {
	return &VendorStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVendorStatusChanged, AggregateTypeVendor, v.ID),
		VendorID:        v.ID,
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
		Reason:          reason,
	}
}

// VendorPolicyChangedEvent is published when the commission policy changes
type VendorPolicyChangedEvent struct {
	shared.BaseDomainEvent
	VendorID          uuid.UUID       `json:"vendor_id"`
	OldCommissionType CommissionType  `json:"old_commission_type"`
	OldCommissionRate decimal.Decimal `json:"old_commission_rate"`
	NewCommissionType CommissionType  `json:"new_commission_type"`
	NewCommissionRate decimal.Decimal `json:"new_commission_rate"`
	MinimumPayout     int64           `json:"minimum_payout"`
	PayoutSchedule    PayoutSchedule  `json:"payout_schedule"`
}

// NewVendorPolicyChangedEvent creates a new VendorPolicyChangedEvent
func NewVendorPolicyChangedEvent(v *Vendor, old Policy) *VendorPolicyChangedEvent {
	return &VendorPolicyChangedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeVendorPolicyChanged, AggregateTypeVendor, v.ID),
		VendorID:          v.ID,
		OldCommissionType: old.CommissionType,
		OldCommissionRate: old.CommissionRate,
		NewCommissionType: v.Policy.CommissionType,
		NewCommissionRate: v.Policy.CommissionRate,
		MinimumPayout:     v.Policy.MinimumPayout,
		PayoutSchedule:    v.Policy.PayoutSchedule,
	}
}
