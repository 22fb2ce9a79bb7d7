package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReviewKind classifies items raised for manual review
type ReviewKind string

const (
	ReviewKindNegativeNet       ReviewKind = "NEGATIVE_NET_AMOUNT"
	ReviewKindPermanentFailure  ReviewKind = "PERMANENT_TRANSFER_FAILURE"
	ReviewKindRetriesExhausted  ReviewKind = "RETRIES_EXHAUSTED"
	ReviewKindReconcileMismatch ReviewKind = "RECONCILIATION_MISMATCH"
)

// ReviewItem is a payout problem an operator has to resolve
type ReviewItem struct {
	Kind            ReviewKind `json:"kind"`
	VendorID        uuid.UUID  `json:"vendor_id"`
	PayoutID        *uuid.UUID `json:"payout_id,omitempty"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	Currency        string     `json:"currency"`
	CommissionTotal int64      `json:"commission_total"`
	FeesDeducted    int64      `json:"fees_deducted"`
	TaxDeducted     int64      `json:"tax_deducted"`
	NetAmount       int64      `json:"net_amount"`
	Reason          string     `json:"reason"`
	RaisedAt        time.Time  `json:"raised_at"`
}

// OperatorQueue receives items that automation will not retry
type OperatorQueue interface {
	Enqueue(ctx context.Context, item ReviewItem) error
}

// ReviewItemForPayout builds a review item describing a payout
func ReviewItemForPayout(kind ReviewKind, p *Payout, reason string, now time.Time) ReviewItem {
	id := p.ID
	return ReviewItem{
		Kind:            kind,
		VendorID:        p.VendorID,
		PayoutID:        &id,
		PeriodStart:     p.PeriodStart,
		PeriodEnd:       p.PeriodEnd,
		Currency:        p.Currency.String(),
		CommissionTotal: p.CommissionTotal,
		FeesDeducted:    p.FeesDeducted,
		TaxDeducted:     p.TaxDeducted,
		NetAmount:       p.NetAmount,
		Reason:          reason,
		RaisedAt:        now,
	}
}
