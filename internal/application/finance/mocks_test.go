package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockVendorRepository is a mock implementation of VendorRepository
type MockVendorRepository struct {
	mock.Mock
}

func (m *MockVendorRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Vendor), args.Error(1)
}

func (m *MockVendorRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*partner.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Vendor), args.Error(1)
}

func (m *MockVendorRepository) FindByTaxID(ctx context.Context, taxID string) (*partner.Vendor, error) {
	args := m.Called(ctx, taxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Vendor), args.Error(1)
}

func (m *MockVendorRepository) ExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	args := m.Called(ctx, taxID)
	return args.Bool(0), args.Error(1)
}

func (m *MockVendorRepository) FindAll(ctx context.Context, filter partner.VendorFilter) ([]partner.Vendor, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]partner.Vendor), args.Get(1).(int64), args.Error(2)
}

func (m *MockVendorRepository) FindIDsByStatus(ctx context.Context, status partner.VendorStatus) ([]uuid.UUID, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockVendorRepository) Save(ctx context.Context, vendor *partner.Vendor) error {
	return m.Called(ctx, vendor).Error(0)
}

func (m *MockVendorRepository) SaveWithLock(ctx context.Context, vendor *partner.Vendor) error {
	return m.Called(ctx, vendor).Error(0)
}

// MockCommissionEntryRepository is a mock implementation of CommissionEntryRepository
type MockCommissionEntryRepository struct {
	mock.Mock
}

func (m *MockCommissionEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.CommissionEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.CommissionEntry), args.Error(1)
}

func (m *MockCommissionEntryRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.CommissionEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.CommissionEntry), args.Error(1)
}

func (m *MockCommissionEntryRepository) FindByOrderLine(ctx context.Context, orderID, orderItemID string, kind finance.EntryKind) (*finance.CommissionEntry, error) {
	args := m.Called(ctx, orderID, orderItemID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.CommissionEntry), args.Error(1)
}

func (m *MockCommissionEntryRepository) FindAll(ctx context.Context, filter finance.CommissionEntryFilter) ([]finance.CommissionEntry, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]finance.CommissionEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommissionEntryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]finance.CommissionEntry, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]finance.CommissionEntry), args.Error(1)
}

func (m *MockCommissionEntryRepository) CreateIfAbsent(ctx context.Context, entry *finance.CommissionEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommissionEntryRepository) SaveWithLock(ctx context.Context, entry *finance.CommissionEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockCommissionEntryRepository) LockEligibleForPayout(ctx context.Context, vendorID uuid.UUID, from, to time.Time, carryOver bool) ([]*finance.CommissionEntry, error) {
	args := m.Called(ctx, vendorID, from, to, carryOver)
	return args.Get(0).([]*finance.CommissionEntry), args.Error(1)
}

func (m *MockCommissionEntryRepository) LinkToPayout(ctx context.Context, payoutID uuid.UUID, entryIDs []uuid.UUID) (int64, error) {
	args := m.Called(ctx, payoutID, entryIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommissionEntryRepository) UnlinkFromPayout(ctx context.Context, payoutID uuid.UUID) (int64, error) {
	args := m.Called(ctx, payoutID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommissionEntryRepository) MarkPaidByPayout(ctx context.Context, payoutID uuid.UUID, paidAt time.Time) (int64, error) {
	args := m.Called(ctx, payoutID, paidAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommissionEntryRepository) FindMaturedPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockCommissionEntryRepository) FindDeferredDisputes(ctx context.Context, payoutID uuid.UUID) ([]*finance.CommissionEntry, error) {
	args := m.Called(ctx, payoutID)
	return args.Get(0).([]*finance.CommissionEntry), args.Error(1)
}

func (m *MockCommissionEntryRepository) EarningsSummary(ctx context.Context, vendorID uuid.UUID) (*finance.EarningsSummary, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.EarningsSummary), args.Error(1)
}

// MockPayoutRepository is a mock implementation of PayoutRepository
type MockPayoutRepository struct {
	mock.Mock
}

func (m *MockPayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Payout), args.Error(1)
}

func (m *MockPayoutRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Payout), args.Error(1)
}

func (m *MockPayoutRepository) FindAll(ctx context.Context, filter finance.PayoutFilter) ([]finance.Payout, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]finance.Payout), args.Get(1).(int64), args.Error(2)
}

func (m *MockPayoutRepository) FindLatestActiveByVendor(ctx context.Context, vendorID uuid.UUID) (*finance.Payout, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Payout), args.Error(1)
}

func (m *MockPayoutRepository) ExistsOverlapping(ctx context.Context, vendorID uuid.UUID, start, end time.Time) (bool, error) {
	args := m.Called(ctx, vendorID, start, end)
	return args.Bool(0), args.Error(1)
}

func (m *MockPayoutRepository) Create(ctx context.Context, payout *finance.Payout) error {
	return m.Called(ctx, payout).Error(0)
}

func (m *MockPayoutRepository) SaveWithLock(ctx context.Context, payout *finance.Payout) error {
	return m.Called(ctx, payout).Error(0)
}

func (m *MockPayoutRepository) FindDueForRetry(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, asOf, limit)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockPayoutRepository) FindStuckProcessing(ctx context.Context, submittedBefore time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, submittedBefore, limit)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockPayoutRepository) SetStatementKey(ctx context.Context, id uuid.UUID, key string) error {
	return m.Called(ctx, id, key).Error(0)
}

// MockPayoutExecutor is a mock implementation of PayoutExecutor
type MockPayoutExecutor struct {
	mock.Mock
}

func (m *MockPayoutExecutor) Transfer(ctx context.Context, req finance.TransferRequest) (finance.TransferResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(finance.TransferResult), args.Error(1)
}

func (m *MockPayoutExecutor) Status(ctx context.Context, payoutID uuid.UUID) (finance.TransferResult, error) {
	args := m.Called(ctx, payoutID)
	return args.Get(0).(finance.TransferResult), args.Error(1)
}

// MockOperatorQueue is a mock implementation of OperatorQueue
type MockOperatorQueue struct {
	mock.Mock
}

func (m *MockOperatorQueue) Enqueue(ctx context.Context, item finance.ReviewItem) error {
	return m.Called(ctx, item).Error(0)
}

// MockStatementArchive is a mock implementation of StatementArchive
type MockStatementArchive struct {
	mock.Mock
}

func (m *MockStatementArchive) Store(ctx context.Context, statement finance.Statement) (string, error) {
	args := m.Called(ctx, statement)
	return args.String(0), args.Error(1)
}

type recordedEvents struct {
	events []shared.DomainEvent
}

func (r *recordedEvents) Record(_ context.Context, events ...shared.DomainEvent) error {
	r.events = append(r.events, events...)
	return nil
}

func (r *recordedEvents) types() []string {
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType()
	}
	return types
}
