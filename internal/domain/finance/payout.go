package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
)

// PayoutStatus represents the lifecycle state of a payout
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
	PayoutStatusCancelled  PayoutStatus = "CANCELLED"
)

// IsValid checks if the status is a valid PayoutStatus
func (s PayoutStatus) IsValid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusCompleted,
		PayoutStatusFailed, PayoutStatusCancelled:
		return true
	}
	return false
}

// AllPayoutStatuses returns every payout status in lifecycle order
func AllPayoutStatuses() []PayoutStatus {
	return []PayoutStatus{
		PayoutStatusPending, PayoutStatusProcessing, PayoutStatusCompleted,
		PayoutStatusFailed, PayoutStatusCancelled,
	}
}

// String returns the string representation of PayoutStatus
func (s PayoutStatus) String() string {
	return string(s)
}

// IsTerminal returns true for states that never change again
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusCancelled
}

// PayoutEvent is an input of the payout lifecycle
type PayoutEvent string

const (
	PayoutEventSubmit  PayoutEvent = "submit"
	PayoutEventSucceed PayoutEvent = "succeed"
	PayoutEventFail    PayoutEvent = "fail"
	PayoutEventCancel  PayoutEvent = "cancel"
)

type payoutTransition = shared.Transition[PayoutStatus, PayoutEvent]

// PayoutLifecycle is the payout state machine. FAILED -> PROCESSING is a
// retry of the same payout with the same frozen commission set.
var PayoutLifecycle = shared.NewStateMachine("payout",
	payoutTransition{From: PayoutStatusPending, Event: PayoutEventSubmit, To: PayoutStatusProcessing},
	payoutTransition{From: PayoutStatusFailed, Event: PayoutEventSubmit, To: PayoutStatusProcessing},
	payoutTransition{From: PayoutStatusProcessing, Event: PayoutEventSucceed, To: PayoutStatusCompleted},
	payoutTransition{From: PayoutStatusProcessing, Event: PayoutEventFail, To: PayoutStatusFailed},
	payoutTransition{From: PayoutStatusPending, Event: PayoutEventCancel, To: PayoutStatusCancelled},
)

// PayoutItem is one member of a payout's frozen commission set
type PayoutItem struct {
	CommissionEntryID uuid.UUID `json:"commission_entry_id"`
	CommissionAmount  int64     `json:"commission_amount"`
}

// Payout is an aggregated settlement of approved commissions for one vendor
// over a half-open period [PeriodStart, PeriodEnd).
type Payout struct {
	shared.BaseAggregateRoot
	VendorID          uuid.UUID            `json:"vendor_id"`
	PeriodStart       time.Time            `json:"period_start"`
	PeriodEnd         time.Time            `json:"period_end"`
	Currency          valueobject.Currency `json:"currency"`
	CommissionTotal   int64                `json:"commission_total"`
	FeesDeducted      int64                `json:"fees_deducted"`
	TaxDeducted       int64                `json:"tax_deducted"`
	NetAmount         int64                `json:"net_amount"`
	Items             []PayoutItem         `json:"items"`
	Status            PayoutStatus         `json:"status"`
	AttemptCount      int                  `json:"attempt_count"`
	ExecutorReference string               `json:"executor_reference,omitempty"`
	SubmittedAt       *time.Time           `json:"submitted_at,omitempty"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
	FailedAt          *time.Time           `json:"failed_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	NextRetryAt       *time.Time           `json:"next_retry_at,omitempty"`
	FailureCode       string               `json:"failure_code,omitempty"`
	FailureDetail     string               `json:"-"`
	PermanentFailure  bool                 `json:"permanent_failure"`
	StatementKey      string               `json:"statement_key,omitempty"`
}

// PayoutDraft is the aggregation result a payout is created from
type PayoutDraft struct {
	VendorID    uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Currency    valueobject.Currency
	Entries     []*CommissionEntry
	Fees        int64
	Tax         int64
}

// NewPayout freezes the drafted entries into a PENDING payout.
// Every entry must belong to the vendor, be APPROVED and not yet linked.
func NewPayout(d PayoutDraft) (*Payout, error) {
	if d.VendorID == uuid.Nil {
		return nil, shared.NewValidationError("Vendor ID cannot be empty")
	}
	if !d.PeriodEnd.After(d.PeriodStart) {
		return nil, shared.NewValidationError("Payout period end must be after period start")
	}
	if len(d.Entries) == 0 {
		return nil, shared.NewValidationError("Payout requires at least one commission entry")
	}
	if d.Fees < 0 || d.Tax < 0 {
		return nil, shared.NewValidationError("Fees and tax cannot be negative")
	}

	items := make([]PayoutItem, 0, len(d.Entries))
	seen := make(map[uuid.UUID]bool, len(d.Entries))
	var total int64
	for _, e := range d.Entries {
		if e.VendorID != d.VendorID {
			return nil, shared.NewValidationError(fmt.Sprintf("Commission entry %s belongs to another vendor", e.ID))
		}
		if !e.IsEligibleForPayout() {
			return nil, shared.NewDomainError(shared.CodeInvalidStateTransition,
				fmt.Sprintf("Commission entry %s is not eligible for payout", e.ID))
		}
		if seen[e.ID] {
			return nil, shared.NewValidationError(fmt.Sprintf("Commission entry %s listed twice", e.ID))
		}
		seen[e.ID] = true
		items = append(items, PayoutItem{CommissionEntryID: e.ID, CommissionAmount: e.CommissionAmount})
		total += e.CommissionAmount
	}

	net := total - d.Fees - d.Tax
	if net < 0 {
		return nil, shared.NewDomainError(shared.CodeNegativeNetAmount,
			fmt.Sprintf("Net amount %d is negative (commission %d, fees %d, tax %d)", net, total, d.Fees, d.Tax))
	}
	currency := d.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	p := &Payout{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VendorID:          d.VendorID,
		PeriodStart:       d.PeriodStart,
		PeriodEnd:         d.PeriodEnd,
		Currency:          currency,
		CommissionTotal:   total,
		FeesDeducted:      d.Fees,
		TaxDeducted:       d.Tax,
		NetAmount:         net,
		Items:             items,
		Status:            PayoutStatusPending,
	}

	p.AddDomainEvent(NewPayoutCreatedEvent(p))
	return p, nil
}

// CommissionIDs returns the frozen commission set
func (p *Payout) CommissionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(p.Items))
	for i, item := range p.Items {
		ids[i] = item.CommissionEntryID
	}
	return ids
}

// ItemsTotal sums the frozen item amounts
func (p *Payout) ItemsTotal() int64 {
	var total int64
	for _, item := range p.Items {
		total += item.CommissionAmount
	}
	return total
}

// Submit moves a PENDING or FAILED payout to PROCESSING. The transition is
// what guarantees a single in-flight transfer per payout.
func (p *Payout) Submit(now time.Time) error {
	if p.Status == PayoutStatusFailed && p.PermanentFailure {
		return shared.NewDomainError(shared.CodeInvalidStateTransition,
			"Payout failed permanently and needs operator review before resubmission")
	}
	if err := p.apply(PayoutEventSubmit, now); err != nil {
		return err
	}
	p.AttemptCount++
	p.SubmittedAt = &now
	p.NextRetryAt = nil
	p.FailureCode = ""
	p.FailureDetail = ""

	p.AddDomainEvent(NewPayoutSubmittedEvent(p))
	return nil
}

// ClearPermanentFailure lets an operator resubmit a payout after fixing
// the cause of a permanent failure, e.g. corrected bank details.
// It is followed by Submit in the same unit of work, which bumps the version.
func (p *Payout) ClearPermanentFailure() error {
	if p.Status != PayoutStatusFailed {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, "Only failed payouts can be released for retry")
	}
	p.PermanentFailure = false
	return nil
}

// RecordReference stores the executor's reference for an accepted transfer
func (p *Payout) RecordReference(reference string, now time.Time) {
	if reference == "" || reference == p.ExecutorReference {
		return
	}
	p.ExecutorReference = reference
	p.Touch(now)
}

// Complete moves a PROCESSING payout to COMPLETED
func (p *Payout) Complete(reference string, now time.Time) error {
	if err := p.apply(PayoutEventSucceed, now); err != nil {
		return err
	}
	if reference != "" {
		p.ExecutorReference = reference
	}
	p.CompletedAt = &now

	p.AddDomainEvent(NewPayoutCompletedEvent(p))
	return nil
}

// Fail moves a PROCESSING payout to FAILED. failureCode is the vendor-visible
// reason; detail stays internal. nextRetryAt is nil when no automatic retry
// should happen.
func (p *Payout) Fail(failureCode, detail string, permanent bool, nextRetryAt *time.Time, now time.Time) error {
	if err := p.apply(PayoutEventFail, now); err != nil {
		return err
	}
	p.FailureCode = VendorFailureCode(failureCode)
	p.FailureDetail = detail
	p.PermanentFailure = permanent
	p.FailedAt = &now
	if permanent {
		nextRetryAt = nil
	}
	p.NextRetryAt = nextRetryAt

	p.AddDomainEvent(NewPayoutFailedEvent(p))
	return nil
}

// Cancel moves a PENDING payout to CANCELLED. The caller unlinks the entries.
func (p *Payout) Cancel(reason string, now time.Time) error {
	if err := p.apply(PayoutEventCancel, now); err != nil {
		return err
	}
	p.CancelledAt = &now

	p.AddDomainEvent(NewPayoutCancelledEvent(p, reason))
	return nil
}

// CanAutoRetry reports whether the retry job may resubmit the payout now
func (p *Payout) CanAutoRetry(maxAttempts int, now time.Time) bool {
	if p.Status != PayoutStatusFailed || p.PermanentFailure {
		return false
	}
	if maxAttempts > 0 && p.AttemptCount >= maxAttempts {
		return false
	}
	return p.NextRetryAt == nil || !now.Before(*p.NextRetryAt)
}

// Overlaps reports whether [start, end) intersects the payout period
func (p *Payout) Overlaps(start, end time.Time) bool {
	return start.Before(p.PeriodEnd) && p.PeriodStart.Before(end)
}

// SetStatementKey records where the payout statement was archived
func (p *Payout) SetStatementKey(key string) {
	p.StatementKey = key
}

func (p *Payout) apply(event PayoutEvent, now time.Time) error {
	next, err := PayoutLifecycle.Next(p.Status, event)
	if err != nil {
		return err
	}
	p.Status = next
	p.Touch(now)
	return nil
}
