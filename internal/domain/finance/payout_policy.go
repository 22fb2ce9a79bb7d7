package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PayoutTerms is what fee and tax policies see of a batch
type PayoutTerms struct {
	VendorID        uuid.UUID
	Currency        valueobject.Currency
	CommissionTotal int64
	HasTaxID        bool
}

// FeePolicy computes the processing fees deducted from a payout
type FeePolicy interface {
	Fees(ctx context.Context, terms PayoutTerms) (int64, error)
}

// TaxPolicy computes the tax withheld from a payout
type TaxPolicy interface {
	Tax(ctx context.Context, terms PayoutTerms) (int64, error)
}

// FeePolicyFunc adapts a function to FeePolicy
type FeePolicyFunc func(ctx context.Context, terms PayoutTerms) (int64, error)

// Fees implements FeePolicy
func (f FeePolicyFunc) Fees(ctx context.Context, terms PayoutTerms) (int64, error) {
	return f(ctx, terms)
}

// TaxPolicyFunc adapts a function to TaxPolicy
type TaxPolicyFunc func(ctx context.Context, terms PayoutTerms) (int64, error)

// Tax implements TaxPolicy
func (f TaxPolicyFunc) Tax(ctx context.Context, terms PayoutTerms) (int64, error) {
	return f(ctx, terms)
}

// PercentageFeePolicy charges Rate of the commission total plus a flat fee
// per payout. Nothing is charged on an empty or negative total.
type PercentageFeePolicy struct {
	Rate decimal.Decimal
	Flat int64
}

// Fees implements FeePolicy
func (p PercentageFeePolicy) Fees(_ context.Context, terms PayoutTerms) (int64, error) {
	if terms.CommissionTotal <= 0 {
		return 0, nil
	}
	return valueobject.ApplyRate(terms.CommissionTotal, p.Rate) + p.Flat, nil
}

// WithholdingTaxPolicy withholds Rate of the commission total from vendors
// that have not supplied a tax id
type WithholdingTaxPolicy struct {
	Rate decimal.Decimal
}

// Tax implements TaxPolicy
func (p WithholdingTaxPolicy) Tax(_ context.Context, terms PayoutTerms) (int64, error) {
	if terms.HasTaxID || terms.CommissionTotal <= 0 {
		return 0, nil
	}
	return valueobject.ApplyRate(terms.CommissionTotal, p.Rate), nil
}

// RetryPolicy bounds automatic resubmission of transiently failed payouts
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the retry policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: 5 * time.Minute,
		MaxBackoff:  24 * time.Hour,
	}
}

// NextRetryAt returns when attempt number `attempt` (1-based, already made)
// may be followed by another, or nil once the attempts are exhausted
func (r RetryPolicy) NextRetryAt(attempt int, now time.Time) *time.Time {
	if r.Exhausted(attempt) {
		return nil
	}
	if attempt < 1 {
		attempt = 1
	}
	backoff := r.BaseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if r.MaxBackoff > 0 && backoff >= r.MaxBackoff {
			backoff = r.MaxBackoff
			break
		}
	}
	if r.MaxBackoff > 0 && backoff > r.MaxBackoff {
		backoff = r.MaxBackoff
	}
	next := now.Add(backoff)
	return &next
}

// Exhausted reports whether no automatic attempt remains
func (r RetryPolicy) Exhausted(attempts int) bool {
	return r.MaxAttempts > 0 && attempts >= r.MaxAttempts
}

// ApprovalPolicy decides when a pending entry may be approved for payout
type ApprovalPolicy interface {
	IsApprovable(entry *CommissionEntry, now time.Time) bool
	// MaturedBefore returns the accrual cutoff: entries accrued before it are approvable
	MaturedBefore(now time.Time) time.Time
}

// ReturnWindowPolicy approves entries once the buyer's return window has closed
type ReturnWindowPolicy struct {
	Window time.Duration
}

// IsApprovable implements ApprovalPolicy
func (p ReturnWindowPolicy) IsApprovable(entry *CommissionEntry, now time.Time) bool {
	return !entry.AccruedAt.Add(p.Window).After(now)
}

// MaturedBefore implements ApprovalPolicy
func (p ReturnWindowPolicy) MaturedBefore(now time.Time) time.Time {
	return now.Add(-p.Window)
}
