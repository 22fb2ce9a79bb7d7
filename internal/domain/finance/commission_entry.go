package finance

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Column widths of commission_entries, counted in characters
const (
	maxOrderRefLength     = 64
	maxProductTitleLength = 300
)

// CommissionStatus represents the lifecycle state of a commission entry
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "PENDING"
	CommissionStatusApproved CommissionStatus = "APPROVED"
	CommissionStatusPaid     CommissionStatus = "PAID"
	CommissionStatusDisputed CommissionStatus = "DISPUTED"
)

// IsValid checks if the status is a valid CommissionStatus
func (s CommissionStatus) IsValid() bool {
	switch s {
	case CommissionStatusPending, CommissionStatusApproved, CommissionStatusPaid, CommissionStatusDisputed:
		return true
	}
	return false
}

// String returns the string representation of CommissionStatus
func (s CommissionStatus) String() string {
	return string(s)
}

// CommissionEvent is an input of the commission lifecycle
type CommissionEvent string

const (
	CommissionEventApprove CommissionEvent = "approve"
	CommissionEventPay     CommissionEvent = "pay"
	CommissionEventDispute CommissionEvent = "dispute"
)

type commissionTransition = shared.Transition[CommissionStatus, CommissionEvent]

// CommissionLifecycle is the commission entry state machine.
// PAID and DISPUTED have no outgoing edges: paid entries are corrected by
// reversal entries, never by mutation.
var CommissionLifecycle = shared.NewStateMachine("commission",
	commissionTransition{From: CommissionStatusPending, Event: CommissionEventApprove, To: CommissionStatusApproved},
	commissionTransition{From: CommissionStatusApproved, Event: CommissionEventPay, To: CommissionStatusPaid},
	commissionTransition{From: CommissionStatusPending, Event: CommissionEventDispute, To: CommissionStatusDisputed},
	commissionTransition{From: CommissionStatusApproved, Event: CommissionEventDispute, To: CommissionStatusDisputed},
)

// EntryKind distinguishes original accruals from compensating reversals
type EntryKind string

const (
	EntryKindAccrual  EntryKind = "ACCRUAL"
	EntryKindReversal EntryKind = "REVERSAL"
)

// CommissionType determines how commission is computed from a sale
type CommissionType string

const (
	CommissionTypePercentage CommissionType = "PERCENTAGE"
	CommissionTypeFixed      CommissionType = "FIXED"
)

// CommissionTerms is the vendor policy snapshot applied to one sale.
// For FIXED terms Rate is a whole amount in minor units.
type CommissionTerms struct {
	Type CommissionType  `json:"type"`
	Rate decimal.Decimal `json:"rate"`
}

// Validate checks the terms can be applied
func (t CommissionTerms) Validate() error {
	switch t.Type {
	case CommissionTypePercentage:
		if !t.Rate.IsPositive() || t.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return shared.NewValidationError("Percentage commission rate must be in (0, 1]")
		}
	case CommissionTypeFixed:
		if !t.Rate.IsPositive() {
			return shared.NewValidationError("Fixed commission amount must be greater than zero")
		}
	default:
		return shared.NewValidationError("Commission type must be PERCENTAGE or FIXED")
	}
	return nil
}

// Compute returns the commission for a sale amount, clamped to [0, sale]
func (t CommissionTerms) Compute(saleAmount int64) int64 {
	var amount int64
	switch t.Type {
	case CommissionTypePercentage:
		amount = valueobject.ApplyRate(saleAmount, t.Rate)
	case CommissionTypeFixed:
		amount = t.Rate.IntPart()
	}
	return valueobject.ClampAmount(amount, 0, saleAmount)
}

// DisputeOutcome describes what a dispute did to an entry
type DisputeOutcome string

const (
	// DisputeOutcomeDisputed: the entry moved to DISPUTED and is excluded from payouts
	DisputeOutcomeDisputed DisputeOutcome = "DISPUTED"
	// DisputeOutcomeDeferred: the entry is frozen into an open payout; the
	// dispute is applied when that payout completes or is cancelled
	DisputeOutcomeDeferred DisputeOutcome = "DEFERRED"
	// DisputeOutcomeReversal: the entry is paid and a reversal entry is required
	DisputeOutcomeReversal DisputeOutcome = "REVERSAL"
	// DisputeOutcomeUnchanged: the entry was already disputed
	DisputeOutcomeUnchanged DisputeOutcome = "UNCHANGED"
)

// CommissionEntry is one line of the commission ledger: the commission owed
// to a vendor for a single order line, or the reversal of such a line.
//
// The ledger owns the financial fields; PayoutID and the paid transition
// belong to the payout batcher.
type CommissionEntry struct {
	shared.BaseAggregateRoot
	VendorID           uuid.UUID            `json:"vendor_id"`
	OrderID            string               `json:"order_id"`
	OrderItemID        string               `json:"order_item_id"`
	ProductID          string               `json:"product_id"`
	ProductTitle       string               `json:"product_title"`
	Kind               EntryKind            `json:"kind"`
	ReversalOf         *uuid.UUID           `json:"reversal_of,omitempty"`
	SaleAmount         int64                `json:"sale_amount"`
	CommissionAmount   int64                `json:"commission_amount"`
	Terms              CommissionTerms      `json:"terms"`
	Currency           valueobject.Currency `json:"currency"`
	Status             CommissionStatus     `json:"status"`
	PayoutID           *uuid.UUID           `json:"payout_id,omitempty"`
	AccruedAt          time.Time            `json:"accrued_at"`
	ApprovedAt         *time.Time           `json:"approved_at,omitempty"`
	PaidAt             *time.Time           `json:"paid_at,omitempty"`
	DisputedAt         *time.Time           `json:"disputed_at,omitempty"`
	DisputeReason      string               `json:"dispute_reason,omitempty"`
	DisputeRequestedAt *time.Time           `json:"dispute_requested_at,omitempty"`
}

// AccrualInput carries a completed order line into the ledger
type AccrualInput struct {
	VendorID     uuid.UUID
	OrderID      string
	OrderItemID  string
	ProductID    string
	ProductTitle string
	SaleAmount   int64
	Currency     valueobject.Currency
	Terms        CommissionTerms
	AccruedAt    time.Time
}

// NewAccrual creates a PENDING commission entry for a completed order line
func NewAccrual(in AccrualInput) (*CommissionEntry, error) {
	if in.VendorID == uuid.Nil {
		return nil, shared.NewValidationError("Vendor ID cannot be empty")
	}
	if err := validateOrderRef(in.OrderID, in.OrderItemID); err != nil {
		return nil, err
	}
	if in.SaleAmount < 0 {
		return nil, shared.NewValidationError("Sale amount cannot be negative")
	}
	if err := in.Terms.Validate(); err != nil {
		return nil, err
	}
	in.ProductTitle = truncateRunes(in.ProductTitle, maxProductTitleLength)
	if in.Currency == "" {
		in.Currency = valueobject.DefaultCurrency
	}
	if in.AccruedAt.IsZero() {
		in.AccruedAt = time.Now()
	}

	e := &CommissionEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VendorID:          in.VendorID,
		OrderID:           in.OrderID,
		OrderItemID:       in.OrderItemID,
		ProductID:         in.ProductID,
		ProductTitle:      in.ProductTitle,
		Kind:              EntryKindAccrual,
		SaleAmount:        in.SaleAmount,
		CommissionAmount:  in.Terms.Compute(in.SaleAmount),
		Terms:             in.Terms,
		Currency:          in.Currency,
		Status:            CommissionStatusPending,
		AccruedAt:         in.AccruedAt,
	}

	e.AddDomainEvent(NewCommissionAccruedEvent(e))
	return e, nil
}

// NewReversal creates the compensating entry for a paid accrual. It is
// APPROVED immediately so the next payout cycle deducts it.
func NewReversal(original *CommissionEntry, reason string, now time.Time) (*CommissionEntry, error) {
	if original.Kind != EntryKindAccrual {
		return nil, shared.NewValidationError("Only accrual entries can be reversed")
	}
	if original.Status != CommissionStatusPaid {
		return nil, shared.NewDomainError(shared.CodeInvalidStateTransition, "Only paid entries are reversed")
	}
	originalID := original.ID
	e := &CommissionEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VendorID:          original.VendorID,
		OrderID:           original.OrderID,
		OrderItemID:       original.OrderItemID,
		ProductID:         original.ProductID,
		ProductTitle:      original.ProductTitle,
		Kind:              EntryKindReversal,
		ReversalOf:        &originalID,
		SaleAmount:        -original.SaleAmount,
		CommissionAmount:  -original.CommissionAmount,
		Terms:             original.Terms,
		Currency:          original.Currency,
		Status:            CommissionStatusApproved,
		AccruedAt:         now,
		ApprovedAt:        &now,
		DisputeReason:     reason,
	}

	e.AddDomainEvent(NewCommissionReversedEvent(e, original))
	return e, nil
}

// Approve moves a PENDING entry to APPROVED
func (e *CommissionEntry) Approve(now time.Time) error {
	next, err := CommissionLifecycle.Next(e.Status, CommissionEventApprove)
	if err != nil {
		return err
	}
	e.Status = next
	e.ApprovedAt = &now
	e.Touch(now)

	e.AddDomainEvent(NewCommissionApprovedEvent(e))
	return nil
}

// MarkPaid moves an APPROVED entry linked to a payout to PAID
func (e *CommissionEntry) MarkPaid(now time.Time) error {
	if e.PayoutID == nil {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, "Entry is not linked to a payout")
	}
	next, err := CommissionLifecycle.Next(e.Status, CommissionEventPay)
	if err != nil {
		return err
	}
	e.Status = next
	e.PaidAt = &now
	e.Touch(now)
	return nil
}

// Dispute applies a return or chargeback to the entry. See DisputeOutcome.
func (e *CommissionEntry) Dispute(reason string, now time.Time) (DisputeOutcome, error) {
	if e.Kind == EntryKindReversal {
		return "", shared.NewValidationError("Reversal entries cannot be disputed")
	}
	switch {
	case e.Status == CommissionStatusDisputed:
		return DisputeOutcomeUnchanged, nil
	case e.Status == CommissionStatusPaid:
		return DisputeOutcomeReversal, nil
	case e.Status == CommissionStatusApproved && e.PayoutID != nil:
		if e.DisputeRequestedAt == nil {
			e.DisputeRequestedAt = &now
			e.DisputeReason = reason
			e.Touch(now)
			e.AddDomainEvent(NewCommissionDisputedEvent(e, true))
		}
		return DisputeOutcomeDeferred, nil
	}

	next, err := CommissionLifecycle.Next(e.Status, CommissionEventDispute)
	if err != nil {
		return "", err
	}
	e.Status = next
	e.DisputedAt = &now
	e.DisputeReason = reason
	e.Touch(now)

	e.AddDomainEvent(NewCommissionDisputedEvent(e, false))
	return DisputeOutcomeDisputed, nil
}

// HasDeferredDispute reports whether a dispute is waiting on the entry's payout
func (e *CommissionEntry) HasDeferredDispute() bool {
	return e.DisputeRequestedAt != nil && e.Status == CommissionStatusApproved && e.PayoutID != nil
}

// IsLinked reports whether the entry is frozen into a payout
func (e *CommissionEntry) IsLinked() bool {
	return e.PayoutID != nil
}

// IsEligibleForPayout reports whether a batch may pick the entry up
func (e *CommissionEntry) IsEligibleForPayout() bool {
	return e.Status == CommissionStatusApproved && e.PayoutID == nil
}

// AmountWithinBounds checks the commission lies between zero and the sale
// amount (both negated for reversals)
func (e *CommissionEntry) AmountWithinBounds() bool {
	if e.Kind == EntryKindReversal {
		return e.CommissionAmount <= 0 && e.CommissionAmount >= e.SaleAmount
	}
	return e.CommissionAmount >= 0 && e.CommissionAmount <= e.SaleAmount
}

func validateOrderRef(orderID, orderItemID string) error {
	if orderID == "" {
		return shared.NewValidationError("Order ID cannot be empty")
	}
	if orderItemID == "" {
		return shared.NewValidationError("Order item ID cannot be empty")
	}
	if utf8.RuneCountInString(orderID) > maxOrderRefLength || utf8.RuneCountInString(orderItemID) > maxOrderRefLength {
		return shared.NewValidationError("Order references cannot exceed 64 characters")
	}
	return nil
}

// truncateRunes cuts s to at most n characters, never inside a multi-byte one
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
