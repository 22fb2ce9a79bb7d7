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
	"github.com/stretchr/testify/mock"
)

type MockVendorService struct {
	mock.Mock
}

func (m *MockVendorService) vendor(args mock.Arguments) (*partnerapp.VendorResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partnerapp.VendorResponse), args.Error(1)
}

func (m *MockVendorService) RegisterVendor(ctx context.Context, req partnerapp.RegisterVendorRequest) (*partnerapp.VendorResponse, error) {
	return m.vendor(m.Called(ctx, req))
}

func (m *MockVendorService) Approve(ctx context.Context, id uuid.UUID) (*partnerapp.VendorResponse, error) {
	return m.vendor(m.Called(ctx, id))
}

func (m *MockVendorService) Suspend(ctx context.Context, id uuid.UUID, reason string) (*partnerapp.VendorResponse, error) {
	return m.vendor(m.Called(ctx, id, reason))
}

func (m *MockVendorService) Reject(ctx context.Context, id uuid.UUID, reason string) (*partnerapp.VendorResponse, error) {
	return m.vendor(m.Called(ctx, id, reason))
}

func (m *MockVendorService) UpdatePolicy(ctx context.Context, id uuid.UUID, req partnerapp.PolicyRequest) (*partnerapp.VendorResponse, error) {
	return m.vendor(m.Called(ctx, id, req))
}

func (m *MockVendorService) UpdateBankDetails(ctx context.Context, id uuid.UUID, req partnerapp.BankDetailsRequest) (*partnerapp.VendorResponse, error) {
	return m.vendor(m.Called(ctx, id, req))
}

func (m *MockVendorService) GetPolicy(ctx context.Context, id uuid.UUID) (*partnerapp.PolicyResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partnerapp.PolicyResponse), args.Error(1)
}

func (m *MockVendorService) GetVendor(ctx context.Context, id uuid.UUID) (*partnerapp.VendorResponse, error) {
	return m.vendor(m.Called(ctx, id))
}

func (m *MockVendorService) ListVendors(ctx context.Context, filter partnerapp.VendorListFilter) ([]partnerapp.VendorResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]partnerapp.VendorResponse), args.Get(1).(int64), args.Error(2)
}

type MockCommissionService struct {
	mock.Mock
}

func (m *MockCommissionService) entry(args mock.Arguments) (*financeapp.CommissionResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.CommissionResponse), args.Error(1)
}

func (m *MockCommissionService) ApproveForPayout(ctx context.Context, id uuid.UUID) (*financeapp.CommissionResponse, error) {
	return m.entry(m.Called(ctx, id))
}

func (m *MockCommissionService) ApproveMatured(ctx context.Context, asOf time.Time) (int, error) {
	args := m.Called(ctx, asOf)
	return args.Int(0), args.Error(1)
}

func (m *MockCommissionService) Dispute(ctx context.Context, id uuid.UUID, reason string) (*financeapp.DisputeResponse, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.DisputeResponse), args.Error(1)
}

func (m *MockCommissionService) GetEntry(ctx context.Context, id uuid.UUID) (*financeapp.CommissionResponse, error) {
	return m.entry(m.Called(ctx, id))
}

func (m *MockCommissionService) ListEntries(ctx context.Context, filter financeapp.CommissionListFilter) ([]financeapp.CommissionResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]financeapp.CommissionResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommissionService) GetEarnings(ctx context.Context, vendorID uuid.UUID) (*financeapp.EarningsResponse, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.EarningsResponse), args.Error(1)
}

type MockPayoutService struct {
	mock.Mock
}

func (m *MockPayoutService) payout(args mock.Arguments) (*financeapp.PayoutResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.PayoutResponse), args.Error(1)
}

func (m *MockPayoutService) CreateBatch(ctx context.Context, vendorID uuid.UUID, periodEnd time.Time) (*financeapp.BatchResult, error) {
	args := m.Called(ctx, vendorID, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.BatchResult), args.Error(1)
}

func (m *MockPayoutService) Submit(ctx context.Context, id uuid.UUID) (*financeapp.PayoutResponse, error) {
	return m.payout(m.Called(ctx, id))
}

func (m *MockPayoutService) Retry(ctx context.Context, id uuid.UUID, force bool) (*financeapp.PayoutResponse, error) {
	return m.payout(m.Called(ctx, id, force))
}

func (m *MockPayoutService) OnExecutorResult(ctx context.Context, id uuid.UUID, result finance.TransferResult) (*financeapp.PayoutResponse, error) {
	return m.payout(m.Called(ctx, id, result))
}

func (m *MockPayoutService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*financeapp.PayoutResponse, error) {
	return m.payout(m.Called(ctx, id, reason))
}

func (m *MockPayoutService) Reconcile(ctx context.Context, olderThan time.Duration) (*financeapp.ReconcileResult, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.ReconcileResult), args.Error(1)
}

func (m *MockPayoutService) GetPayout(ctx context.Context, id uuid.UUID) (*financeapp.PayoutResponse, error) {
	return m.payout(m.Called(ctx, id))
}

func (m *MockPayoutService) GetVendorPayout(ctx context.Context, id uuid.UUID) (*financeapp.VendorPayoutResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.VendorPayoutResponse), args.Error(1)
}

func (m *MockPayoutService) ListPayouts(ctx context.Context, filter financeapp.PayoutListFilter) ([]finance.Payout, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]finance.Payout), args.Get(1).(int64), args.Error(2)
}

type MockOutboxService struct {
	mock.Mock
}

func (m *MockOutboxService) DeadLetters(ctx context.Context, filter eventapp.OutboxFilter) (*shared.Paginated[eventapp.OutboxEntryDTO], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[eventapp.OutboxEntryDTO]), args.Error(1)
}

func (m *MockOutboxService) Entry(ctx context.Context, id uuid.UUID) (*eventapp.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventapp.OutboxEntryDTO), args.Error(1)
}

func (m *MockOutboxService) Requeue(ctx context.Context, id uuid.UUID) (*eventapp.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventapp.OutboxEntryDTO), args.Error(1)
}

func (m *MockOutboxService) RequeueAllDead(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxService) Stats(ctx context.Context) (*eventapp.OutboxStatsDTO, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventapp.OutboxStatsDTO), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, event shared.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}
