package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	eventapp "github.com/marketplace/payouts/internal/application/event"
	financeapp "github.com/marketplace/payouts/internal/application/finance"
	partnerapp "github.com/marketplace/payouts/internal/application/partner"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
)

// VendorService is the part of partnerapp.VendorService the handlers use
type VendorService interface {
	RegisterVendor(ctx context.Context, req partnerapp.RegisterVendorRequest) (*partnerapp.VendorResponse, error)
	Approve(ctx context.Context, id uuid.UUID) (*partnerapp.VendorResponse, error)
	Suspend(ctx context.Context, id uuid.UUID, reason string) (*partnerapp.VendorResponse, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*partnerapp.VendorResponse, error)
	UpdatePolicy(ctx context.Context, id uuid.UUID, req partnerapp.PolicyRequest) (*partnerapp.VendorResponse, error)
	UpdateBankDetails(ctx context.Context, id uuid.UUID, req partnerapp.BankDetailsRequest) (*partnerapp.VendorResponse, error)
	GetPolicy(ctx context.Context, id uuid.UUID) (*partnerapp.PolicyResponse, error)
	GetVendor(ctx context.Context, id uuid.UUID) (*partnerapp.VendorResponse, error)
	ListVendors(ctx context.Context, filter partnerapp.VendorListFilter) ([]partnerapp.VendorResponse, int64, error)
}

// CommissionService is the part of financeapp.CommissionService the handlers use
type CommissionService interface {
	ApproveForPayout(ctx context.Context, id uuid.UUID) (*financeapp.CommissionResponse, error)
	ApproveMatured(ctx context.Context, asOf time.Time) (int, error)
	Dispute(ctx context.Context, id uuid.UUID, reason string) (*financeapp.DisputeResponse, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*financeapp.CommissionResponse, error)
	ListEntries(ctx context.Context, filter financeapp.CommissionListFilter) ([]financeapp.CommissionResponse, int64, error)
	GetEarnings(ctx context.Context, vendorID uuid.UUID) (*financeapp.EarningsResponse, error)
}

// PayoutService is the part of financeapp.PayoutService the handlers use
type PayoutService interface {
	CreateBatch(ctx context.Context, vendorID uuid.UUID, periodEnd time.Time) (*financeapp.BatchResult, error)
	Submit(ctx context.Context, id uuid.UUID) (*financeapp.PayoutResponse, error)
	Retry(ctx context.Context, id uuid.UUID, force bool) (*financeapp.PayoutResponse, error)
	OnExecutorResult(ctx context.Context, id uuid.UUID, result finance.TransferResult) (*financeapp.PayoutResponse, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*financeapp.PayoutResponse, error)
	Reconcile(ctx context.Context, olderThan time.Duration) (*financeapp.ReconcileResult, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*financeapp.PayoutResponse, error)
	GetVendorPayout(ctx context.Context, id uuid.UUID) (*financeapp.VendorPayoutResponse, error)
	ListPayouts(ctx context.Context, filter financeapp.PayoutListFilter) ([]finance.Payout, int64, error)
}

// OutboxService is the part of eventapp.OutboxService the handlers use
type OutboxService interface {
	DeadLetters(ctx context.Context, filter eventapp.OutboxFilter) (*shared.Paginated[eventapp.OutboxEntryDTO], error)
	Entry(ctx context.Context, id uuid.UUID) (*eventapp.OutboxEntryDTO, error)
	Requeue(ctx context.Context, id uuid.UUID) (*eventapp.OutboxEntryDTO, error)
	RequeueAllDead(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*eventapp.OutboxStatsDTO, error)
}

// EventDispatcher delivers one inbound event to its subscribers and reports
// their errors
type EventDispatcher interface {
	Dispatch(ctx context.Context, event shared.DomainEvent) error
}

var (
	_ VendorService     = (*partnerapp.VendorService)(nil)
	_ CommissionService = (*financeapp.CommissionService)(nil)
	_ PayoutService     = (*financeapp.PayoutService)(nil)
	_ OutboxService     = (*eventapp.OutboxService)(nil)
)
