package partner

import (
	"regexp"
	"strings"
	"time"

	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// VendorStatus represents the lifecycle state of a vendor
type VendorStatus string

const (
	VendorStatusPending   VendorStatus = "PENDING"
	VendorStatusApproved  VendorStatus = "APPROVED"
	VendorStatusSuspended VendorStatus = "SUSPENDED"
	VendorStatusRejected  VendorStatus = "REJECTED"
)

// IsValid checks if the status is a valid value
func (s VendorStatus) IsValid() bool {
	switch s {
	case VendorStatusPending, VendorStatusApproved, VendorStatusSuspended, VendorStatusRejected:
		return true
	}
	return false
}

// String returns the string representation
func (s VendorStatus) String() string {
	return string(s)
}

// VendorEvent is an input of the vendor lifecycle
type VendorEvent string

const (
	VendorEventApprove VendorEvent = "approve"
	VendorEventReject  VendorEvent = "reject"
	VendorEventSuspend VendorEvent = "suspend"
)

type vendorTransition = shared.Transition[VendorStatus, VendorEvent]

// VendorLifecycle is the vendor approval workflow. Approving a suspended
// vendor reinstates it.
var VendorLifecycle = shared.NewStateMachine("vendor",
	vendorTransition{From: VendorStatusPending, Event: VendorEventApprove, To: VendorStatusApproved},
	vendorTransition{From: VendorStatusPending, Event: VendorEventReject, To: VendorStatusRejected},
	vendorTransition{From: VendorStatusApproved, Event: VendorEventSuspend, To: VendorStatusSuspended},
	vendorTransition{From: VendorStatusSuspended, Event: VendorEventApprove, To: VendorStatusApproved},
)

// CommissionType determines how commission is computed from a sale
type CommissionType string

const (
	CommissionTypePercentage CommissionType = "PERCENTAGE"
	CommissionTypeFixed      CommissionType = "FIXED"
)

// IsValid checks if the commission type is a valid value
func (t CommissionType) IsValid() bool {
	return t == CommissionTypePercentage || t == CommissionTypeFixed
}

// PayoutSchedule is the cadence at which a vendor is paid
type PayoutSchedule string

const (
	PayoutScheduleWeekly   PayoutSchedule = "WEEKLY"
	PayoutScheduleBiweekly PayoutSchedule = "BIWEEKLY"
	PayoutScheduleMonthly  PayoutSchedule = "MONTHLY"
)

// IsValid checks if the schedule is a valid value
func (s PayoutSchedule) IsValid() bool {
	switch s {
	case PayoutScheduleWeekly, PayoutScheduleBiweekly, PayoutScheduleMonthly:
		return true
	}
	return false
}

// NextPeriodEnd returns the end of the payout period that starts at start
func (s PayoutSchedule) NextPeriodEnd(start time.Time) time.Time {
	switch s {
	case PayoutScheduleWeekly:
		return start.AddDate(0, 0, 7)
	case PayoutScheduleBiweekly:
		return start.AddDate(0, 0, 14)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// Policy is the commission policy of a vendor.
// For FIXED policies CommissionRate holds a whole amount in minor units.
type Policy struct {
	CommissionType CommissionType
	CommissionRate decimal.Decimal
	MinimumPayout  int64
	PayoutSchedule PayoutSchedule
}

// Validate checks the policy invariants
func (p Policy) Validate() error {
	if !p.CommissionType.IsValid() {
		return shared.NewValidationError("Commission type must be PERCENTAGE or FIXED")
	}
	switch p.CommissionType {
	case CommissionTypePercentage:
		if !p.CommissionRate.IsPositive() || p.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
			return shared.NewValidationError("Percentage commission rate must be in (0, 1]")
		}
	case CommissionTypeFixed:
		if !p.CommissionRate.IsPositive() {
			return shared.NewValidationError("Fixed commission amount must be greater than zero")
		}
		if !p.CommissionRate.Equal(p.CommissionRate.Truncate(0)) {
			return shared.NewValidationError("Fixed commission amount must be a whole number of minor units")
		}
	}
	if p.MinimumPayout < 0 {
		return shared.NewValidationError("Minimum payout cannot be negative")
	}
	if !p.PayoutSchedule.IsValid() {
		return shared.NewValidationError("Payout schedule must be WEEKLY, BIWEEKLY or MONTHLY")
	}
	return nil
}

// Contact holds the vendor's contact person
type Contact struct {
	Name  string
	Email string
	Phone string
}

// BankDetails is where a vendor's payouts are sent
type BankDetails struct {
	AccountHolder string
	AccountNumber string
	RoutingCode   string
	BankName      string
}

// IsComplete reports whether the details are enough to issue a transfer
func (b BankDetails) IsComplete() bool {
	return b.AccountHolder != "" && b.AccountNumber != "" && b.RoutingCode != ""
}

// MaskedAccountNumber returns the account number with all but the last four digits hidden
func (b BankDetails) MaskedAccountNumber() string {
	n := len(b.AccountNumber)
	if n <= 4 {
		return b.AccountNumber
	}
	return strings.Repeat("*", n-4) + b.AccountNumber[n-4:]
}

// Profile is the identity part of a vendor registration
type Profile struct {
	BusinessName string
	LegalName    string
	TaxID        string
	Contact      Contact
	Bank         BankDetails
	Currency     valueobject.Currency
}

// Vendor is the aggregate root of the vendor registry.
// Vendors are never deleted; suspension and rejection are states.
type Vendor struct {
	shared.BaseAggregateRoot
	BusinessName string
	LegalName    string
	TaxID        string
	Contact      Contact
	Bank         BankDetails
	Currency     valueobject.Currency
	Policy       Policy
	Status       VendorStatus
	StatusReason string
	ApprovedAt   *time.Time
}

// NewVendor registers a vendor in PENDING state
func NewVendor(profile Profile, policy Policy) (*Vendor, error) {
	profile.BusinessName = strings.TrimSpace(profile.BusinessName)
	profile.TaxID = strings.TrimSpace(profile.TaxID)
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	currency := profile.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	v := &Vendor{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BusinessName:      profile.BusinessName,
		LegalName:         strings.TrimSpace(profile.LegalName),
		TaxID:             profile.TaxID,
		Contact:           profile.Contact,
		Bank:              profile.Bank,
		Currency:          currency,
		Policy:            policy,
		Status:            VendorStatusPending,
	}
	if v.LegalName == "" {
		v.LegalName = v.BusinessName
	}

	v.AddDomainEvent(NewVendorRegisteredEvent(v))
	return v, nil
}

// Approve moves a pending vendor to APPROVED, or reinstates a suspended one
func (v *Vendor) Approve() error {
	return v.transition(VendorEventApprove, "")
}

// Suspend blocks future accrual and payouts. Existing entries and payouts are untouched.
func (v *Vendor) Suspend(reason string) error {
	return v.transition(VendorEventSuspend, reason)
}

// Reject declines a pending registration
func (v *Vendor) Reject(reason string) error {
	return v.transition(VendorEventReject, reason)
}

func (v *Vendor) transition(event VendorEvent, reason string) error {
	next, err := VendorLifecycle.Next(v.Status, event)
	if err != nil {
		return err
	}
	old := v.Status
	now := time.Now()
	v.Status = next
	v.StatusReason = reason
	if next == VendorStatusApproved && v.ApprovedAt == nil {
		v.ApprovedAt = &now
	}
	v.Touch(now)

	v.AddDomainEvent(NewVendorStatusChangedEvent(v, old, next, reason))
	return nil
}

// UpdatePolicy replaces the commission policy. Only future accruals see it,
// since every commission entry snapshots the policy in force at sale time.
func (v *Vendor) UpdatePolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	old := v.Policy
	v.Policy = policy
	v.Touch(time.Now())

	v.AddDomainEvent(NewVendorPolicyChangedEvent(v, old))
	return nil
}

// UpdateBankDetails replaces the payout destination
func (v *Vendor) UpdateBankDetails(bank BankDetails) error {
	if !bank.IsComplete() {
		return shared.NewValidationError("Bank details require account holder, account number and routing code")
	}
	v.Bank = bank
	v.Touch(time.Now())
	return nil
}

// CanAccrue reports whether new sales may accrue commission for the vendor
func (v *Vendor) CanAccrue() bool {
	return v.Status == VendorStatusApproved
}

// CanReceivePayout reports whether a payout may be created for the vendor
func (v *Vendor) CanReceivePayout() bool {
	return v.Status == VendorStatusApproved
}

// HasTaxID reports whether the vendor supplied a tax identification number
func (v *Vendor) HasTaxID() bool {
	return v.TaxID != ""
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-\(\)\+]+$`)
)

func validateProfile(p Profile) error {
	if p.BusinessName == "" {
		return shared.NewValidationError("Business name is required")
	}
	if len(p.BusinessName) > 200 {
		return shared.NewValidationError("Business name cannot exceed 200 characters")
	}
	if len(p.TaxID) > 50 {
		return shared.NewValidationError("Tax ID cannot exceed 50 characters")
	}
	if strings.TrimSpace(p.Contact.Name) == "" {
		return shared.NewValidationError("Contact name is required")
	}
	if p.Contact.Email == "" {
		return shared.NewValidationError("Contact email is required")
	}
	if len(p.Contact.Email) > 200 || !emailPattern.MatchString(p.Contact.Email) {
		return shared.NewValidationError("Invalid email format")
	}
	if p.Contact.Phone != "" && (len(p.Contact.Phone) > 50 || !phonePattern.MatchString(p.Contact.Phone)) {
		return shared.NewValidationError("Invalid phone number format")
	}
	if p.Currency != "" && !p.Currency.IsValid() {
		return shared.NewValidationError("Invalid currency code")
	}
	return nil
}
