package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Commission DTOs
// =============================================================================

// AccrueCommand carries a completed order line into the ledger. An empty
// Currency means the sale was made in the vendor's currency.
type AccrueCommand struct {
	OrderID      string
	OrderItemID  string
	VendorID     uuid.UUID
	SaleAmount   int64
	Currency     string
	ProductID    string
	ProductTitle string
	OccurredAt   time.Time
}

// OrderCompletedRequest is the inbound OrderCompleted event body
type OrderCompletedRequest struct {
	EventID      uuid.UUID  `json:"event_id"`
	OrderID      string     `json:"order_id" binding:"required,max=64"`
	OrderItemID  string     `json:"order_item_id" binding:"required,max=64"`
	VendorID     uuid.UUID  `json:"vendor_id" binding:"required"`
	SaleAmount   int64      `json:"sale_amount" binding:"min=0"`
	Currency     string     `json:"currency" binding:"omitempty,currency"`
	ProductID    string     `json:"product_id" binding:"max=64"`
	ProductTitle string     `json:"product_title" binding:"max=300"`
	OccurredAt   *time.Time `json:"occurred_at"`
}

// ToEvent converts the request to the integration event
func (r OrderCompletedRequest) ToEvent() *finance.OrderCompletedEvent {
	var occurredAt time.Time
	if r.OccurredAt != nil {
		occurredAt = *r.OccurredAt
	}
	ev := finance.NewOrderCompletedEvent(r.EventID, r.OrderID, r.OrderItemID, r.VendorID, r.SaleAmount, occurredAt)
	ev.Currency = r.Currency
	ev.ProductID = r.ProductID
	ev.ProductTitle = r.ProductTitle
	return ev
}

// ReturnOrChargebackRequest is the inbound ReturnOrChargeback event body
type ReturnOrChargebackRequest struct {
	EventID     uuid.UUID  `json:"event_id"`
	OrderID     string     `json:"order_id" binding:"required,max=64"`
	OrderItemID string     `json:"order_item_id" binding:"required,max=64"`
	Reason      string     `json:"reason" binding:"max=500"`
	OccurredAt  *time.Time `json:"occurred_at"`
}

// ToEvent converts the request to the integration event
func (r ReturnOrChargebackRequest) ToEvent() *finance.ReturnOrChargebackEvent {
	var occurredAt time.Time
	if r.OccurredAt != nil {
		occurredAt = *r.OccurredAt
	}
	return finance.NewReturnOrChargebackEvent(r.EventID, r.OrderID, r.OrderItemID, r.Reason, occurredAt)
}

// DisputeRequest represents a manual dispute of a commission entry
type DisputeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// CommissionResponse represents a commission entry in API responses
type CommissionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	VendorID           uuid.UUID       `json:"vendor_id"`
	OrderID            string          `json:"order_id"`
	OrderItemID        string          `json:"order_item_id"`
	ProductID          string          `json:"product_id,omitempty"`
	ProductTitle       string          `json:"product_title,omitempty"`
	Kind               string          `json:"kind"`
	ReversalOf         *uuid.UUID      `json:"reversal_of,omitempty"`
	SaleAmount         int64           `json:"sale_amount"`
	CommissionAmount   int64           `json:"commission_amount"`
	CommissionType     string          `json:"commission_type"`
	CommissionRate     decimal.Decimal `json:"commission_rate"`
	Currency           string          `json:"currency"`
	Status             string          `json:"status"`
	PayoutID           *uuid.UUID      `json:"payout_id,omitempty"`
	AccruedAt          time.Time       `json:"accrued_at"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	DisputedAt         *time.Time      `json:"disputed_at,omitempty"`
	DisputeReason      string          `json:"dispute_reason,omitempty"`
	DisputeRequestedAt *time.Time      `json:"dispute_requested_at,omitempty"`
	Version            int             `json:"version"`
}

// DisputeResponse reports what a dispute did
type DisputeResponse struct {
	Outcome  string              `json:"outcome"`
	Entry    CommissionResponse  `json:"entry"`
	Reversal *CommissionResponse `json:"reversal,omitempty"`
}

// CommissionListFilter represents commission list query parameters
type CommissionListFilter struct {
	VendorID string     `form:"vendor_id" binding:"omitempty,uuid"`
	PayoutID string     `form:"payout_id" binding:"omitempty,uuid"`
	Status   string     `form:"status" binding:"omitempty,oneof=PENDING APPROVED PAID DISPUTED"`
	Kind     string     `form:"kind" binding:"omitempty,oneof=ACCRUAL REVERSAL"`
	OrderID  string     `form:"order_id" binding:"max=64"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page" binding:"min=0"`
	PageSize int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy  string     `form:"order_by" binding:"omitempty,oneof=accrued_at created_at commission_amount"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// EarningsResponse represents a vendor's derived earnings
type EarningsResponse struct {
	finance.EarningsSummary
	Currency string `json:"currency"`
}

// ToCommissionResponse converts a domain entry to a response
func ToCommissionResponse(e *finance.CommissionEntry) CommissionResponse {
	return CommissionResponse{
		ID:                 e.ID,
		VendorID:           e.VendorID,
		OrderID:            e.OrderID,
		OrderItemID:        e.OrderItemID,
		ProductID:          e.ProductID,
		ProductTitle:       e.ProductTitle,
		Kind:               string(e.Kind),
		ReversalOf:         e.ReversalOf,
		SaleAmount:         e.SaleAmount,
		CommissionAmount:   e.CommissionAmount,
		CommissionType:     string(e.Terms.Type),
		CommissionRate:     e.Terms.Rate,
		Currency:           e.Currency.String(),
		Status:             e.Status.String(),
		PayoutID:           e.PayoutID,
		AccruedAt:          e.AccruedAt,
		ApprovedAt:         e.ApprovedAt,
		PaidAt:             e.PaidAt,
		DisputedAt:         e.DisputedAt,
		DisputeReason:      e.DisputeReason,
		DisputeRequestedAt: e.DisputeRequestedAt,
		Version:            e.Version,
	}
}

// ToCommissionResponses converts a slice of entries
func ToCommissionResponses(entries []finance.CommissionEntry) []CommissionResponse {
	responses := make([]CommissionResponse, len(entries))
	for i := range entries {
		responses[i] = ToCommissionResponse(&entries[i])
	}
	return responses
}

// =============================================================================
// Payout DTOs
// =============================================================================

// CreateBatchRequest asks for a payout batch closing at PeriodEnd
type CreateBatchRequest struct {
	VendorID  uuid.UUID `json:"vendor_id" binding:"required"`
	PeriodEnd time.Time `json:"period_end" binding:"required"`
}

// ExecutorResultRequest is the executor callback body
type ExecutorResultRequest struct {
	Reference     string `json:"reference" binding:"max=128"`
	Status        string `json:"status" binding:"required,oneof=PENDING SUCCEEDED FAILED UNKNOWN"`
	FailureCode   string `json:"failure_code" binding:"max=64"`
	FailureDetail string `json:"failure_detail" binding:"max=2000"`
	Permanent     bool   `json:"permanent"`
}

// ToResult converts the callback to a transfer result
func (r ExecutorResultRequest) ToResult() finance.TransferResult {
	return finance.TransferResult{
		Reference:     r.Reference,
		Status:        finance.TransferStatus(r.Status),
		FailureCode:   r.FailureCode,
		FailureDetail: r.FailureDetail,
		Permanent:     r.Permanent,
	}
}

// RetryPayoutRequest asks to resubmit a failed payout
type RetryPayoutRequest struct {
	// Force overrides the retry limit and permanent failure hold
	Force bool `json:"force"`
}

// CancelPayoutRequest carries the reason of a cancellation
type CancelPayoutRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ReconcileRequest selects PROCESSING payouts submitted before now - OlderThan.
// OlderThan is a Go duration string such as "30m"; empty uses the configured default.
type ReconcileRequest struct {
	OlderThan string `json:"older_than" binding:"max=32"`
}

// PayoutItemResponse is one frozen commission of a payout
type PayoutItemResponse struct {
	CommissionEntryID uuid.UUID `json:"commission_entry_id"`
	CommissionAmount  int64     `json:"commission_amount"`
}

// PayoutResponse is the operator view of a payout
type PayoutResponse struct {
	ID                uuid.UUID            `json:"id"`
	VendorID          uuid.UUID            `json:"vendor_id"`
	PeriodStart       time.Time            `json:"period_start"`
	PeriodEnd         time.Time            `json:"period_end"`
	Currency          string               `json:"currency"`
	CommissionTotal   int64                `json:"commission_total"`
	FeesDeducted      int64                `json:"fees_deducted"`
	TaxDeducted       int64                `json:"tax_deducted"`
	NetAmount         int64                `json:"net_amount"`
	Items             []PayoutItemResponse `json:"items"`
	Status            string               `json:"status"`
	AttemptCount      int                  `json:"attempt_count"`
	ExecutorReference string               `json:"executor_reference,omitempty"`
	SubmittedAt       *time.Time           `json:"submitted_at,omitempty"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
	FailedAt          *time.Time           `json:"failed_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	NextRetryAt       *time.Time           `json:"next_retry_at,omitempty"`
	FailureCode       string               `json:"failure_code,omitempty"`
	FailureDetail     string               `json:"failure_detail,omitempty"`
	PermanentFailure  bool                 `json:"permanent_failure"`
	StatementKey      string               `json:"statement_key,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	Version           int                  `json:"version"`
}

// VendorPayoutResponse is the vendor-safe view of a payout: no internal
// failure detail and no executor bookkeeping
type VendorPayoutResponse struct {
	ID              uuid.UUID  `json:"id"`
	VendorID        uuid.UUID  `json:"vendor_id"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	Currency        string     `json:"currency"`
	CommissionTotal int64      `json:"commission_total"`
	FeesDeducted    int64      `json:"fees_deducted"`
	TaxDeducted     int64      `json:"tax_deducted"`
	NetAmount       int64      `json:"net_amount"`
	EntryCount      int        `json:"entry_count"`
	Status          string     `json:"status"`
	FailureCode     string     `json:"failure_code,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PayoutListFilter represents payout list query parameters
type PayoutListFilter struct {
	VendorID string     `form:"vendor_id" binding:"omitempty,uuid"`
	Status   string     `form:"status" binding:"omitempty,oneof=PENDING PROCESSING COMPLETED FAILED CANCELLED"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page" binding:"min=0"`
	PageSize int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy  string     `form:"order_by" binding:"omitempty,oneof=period_start period_end created_at net_amount"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// Batch skip reasons
const (
	SkipReasonBelowMinimum      = "BELOW_MINIMUM"
	SkipReasonNoEligibleEntries = "NO_ELIGIBLE_ENTRIES"
	SkipReasonNotDue            = "NOT_DUE"
)

// BatchResult reports the outcome of a batch run for one vendor
type BatchResult struct {
	VendorID        uuid.UUID       `json:"vendor_id"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	EntryCount      int             `json:"entry_count"`
	CommissionTotal int64           `json:"commission_total"`
	Skipped         bool            `json:"skipped"`
	Reason          string          `json:"reason,omitempty"`
	Payout          *PayoutResponse `json:"payout,omitempty"`
}

// ReconcileResult summarizes a reconciliation pass
type ReconcileResult struct {
	Checked    int `json:"checked"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Unresolved int `json:"unresolved"`
}

// BatchRunSummary summarizes a scheduled batch run over all due vendors
type BatchRunSummary struct {
	Vendors   int `json:"vendors"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Submitted int `json:"submitted"`
	Errors    int `json:"errors"`
}

// ToPayoutResponse converts a domain payout to the operator view
func ToPayoutResponse(p *finance.Payout) PayoutResponse {
	items := make([]PayoutItemResponse, len(p.Items))
	for i, item := range p.Items {
		items[i] = PayoutItemResponse{CommissionEntryID: item.CommissionEntryID, CommissionAmount: item.CommissionAmount}
	}
	return PayoutResponse{
		ID:                p.ID,
		VendorID:          p.VendorID,
		PeriodStart:       p.PeriodStart,
		PeriodEnd:         p.PeriodEnd,
		Currency:          p.Currency.String(),
		CommissionTotal:   p.CommissionTotal,
		FeesDeducted:      p.FeesDeducted,
		TaxDeducted:       p.TaxDeducted,
		NetAmount:         p.NetAmount,
		Items:             items,
		Status:            p.Status.String(),
		AttemptCount:      p.AttemptCount,
		ExecutorReference: p.ExecutorReference,
		SubmittedAt:       p.SubmittedAt,
		CompletedAt:       p.CompletedAt,
		FailedAt:          p.FailedAt,
		CancelledAt:       p.CancelledAt,
		NextRetryAt:       p.NextRetryAt,
		FailureCode:       p.FailureCode,
		FailureDetail:     p.FailureDetail,
		PermanentFailure:  p.PermanentFailure,
		StatementKey:      p.StatementKey,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
}

// ToVendorPayoutResponse converts a domain payout to the vendor view
func ToVendorPayoutResponse(p *finance.Payout) VendorPayoutResponse {
	return VendorPayoutResponse{
		ID:              p.ID,
		VendorID:        p.VendorID,
		PeriodStart:     p.PeriodStart,
		PeriodEnd:       p.PeriodEnd,
		Currency:        p.Currency.String(),
		CommissionTotal: p.CommissionTotal,
		FeesDeducted:    p.FeesDeducted,
		TaxDeducted:     p.TaxDeducted,
		NetAmount:       p.NetAmount,
		EntryCount:      len(p.Items),
		Status:          p.Status.String(),
		FailureCode:     p.FailureCode,
		CompletedAt:     p.CompletedAt,
		CreatedAt:       p.CreatedAt,
	}
}

// ToVendorPayoutResponses converts a slice of payouts to vendor views
func ToVendorPayoutResponses(payouts []finance.Payout) []VendorPayoutResponse {
	responses := make([]VendorPayoutResponse, len(payouts))
	for i := range payouts {
		responses[i] = ToVendorPayoutResponse(&payouts[i])
	}
	return responses
}

// ToPayoutResponses converts a slice of payouts to operator views
func ToPayoutResponses(payouts []finance.Payout) []PayoutResponse {
	responses := make([]PayoutResponse, len(payouts))
	for i := range payouts {
		responses[i] = ToPayoutResponse(&payouts[i])
	}
	return responses
}
