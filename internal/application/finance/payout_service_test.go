package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type payoutFixture struct {
	svc      *PayoutService
	vendors  *MockVendorRepository
	entries  *MockCommissionEntryRepository
	payouts  *MockPayoutRepository
	executor *MockPayoutExecutor
	queue    *MockOperatorQueue
	events   *recordedEvents
}

func newPayoutFixture(fees, tax int64) *payoutFixture {
	f := &payoutFixture{
		vendors:  new(MockVendorRepository),
		entries:  new(MockCommissionEntryRepository),
		payouts:  new(MockPayoutRepository),
		executor: new(MockPayoutExecutor),
		queue:    new(MockOperatorQueue),
		events:   &recordedEvents{},
	}
	f.svc = NewPayoutService(PayoutServiceConfig{
		TxScope:    NewNoOpTransactionScope(f.vendors, f.entries, f.payouts, f.events),
		PayoutRepo: f.payouts,
		EntryRepo:  f.entries,
		VendorRepo: f.vendors,
		Executor:   f.executor,
		FeePolicy: finance.FeePolicyFunc(func(context.Context, finance.PayoutTerms) (int64, error) {
			return fees, nil
		}),
		TaxPolicy: finance.TaxPolicyFunc(func(context.Context, finance.PayoutTerms) (int64, error) {
			return tax, nil
		}),
		RetryPolicy: finance.RetryPolicy{
			MaxAttempts: 3,
			BaseBackoff: 10 * time.Minute,
			MaxBackoff:  time.Hour,
		},
		OperatorQueue:   f.queue,
		CarryOver:       true,
		ExecutorTimeout: time.Second,
		Clock:           func() time.Time { return testNow },
	})
	return f
}

// newLinkedPayout builds a PENDING payout over two approved entries (1000 + 500)
func newLinkedPayout(t *testing.T, vendorID uuid.UUID) (*finance.Payout, []*finance.CommissionEntry) {
	t.Helper()
	entries := []*finance.CommissionEntry{
		newEntryInState(t, vendorID, 10000, finance.CommissionStatusApproved),
		newEntryInState(t, vendorID, 5000, finance.CommissionStatusApproved),
	}
	p, err := finance.NewPayout(finance.PayoutDraft{
		VendorID:    vendorID,
		PeriodStart: testNow.AddDate(0, 0, -7),
		PeriodEnd:   testNow,
		Entries:     entries,
		Fees:        30,
		Tax:         20,
	})
	require.NoError(t, err)
	p.ClearDomainEvents()
	for _, e := range entries {
		e.PayoutID = &p.ID
	}
	return p, entries
}

func TestPayoutService_CreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("freezes eligible entries into a payout", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		entries := []*finance.CommissionEntry{
			newEntryInState(t, vendor.ID, 10000, finance.CommissionStatusApproved),
			newEntryInState(t, vendor.ID, 5000, finance.CommissionStatusApproved),
		}
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)
		f.payouts.On("FindLatestActiveByVendor", ctx, vendor.ID).Return(nil, shared.ErrNotFound)
		f.payouts.On("ExistsOverlapping", ctx, vendor.ID, vendor.CreatedAt, testNow).Return(false, nil)
		f.entries.On("LockEligibleForPayout", ctx, vendor.ID, vendor.CreatedAt, testNow, true).Return(entries, nil)
		f.payouts.On("Create", ctx, mock.AnythingOfType("*finance.Payout")).Return(nil)
		f.entries.On("LinkToPayout", ctx, mock.AnythingOfType("uuid.UUID"), []uuid.UUID{entries[0].ID, entries[1].ID}).Return(int64(2), nil)

		result, err := f.svc.CreateBatch(ctx, vendor.ID, testNow)
		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.Equal(t, 2, result.EntryCount)
		require.NotNil(t, result.Payout)
		assert.Equal(t, int64(1500), result.Payout.CommissionTotal)
		assert.Equal(t, int64(30), result.Payout.FeesDeducted)
		assert.Equal(t, int64(20), result.Payout.TaxDeducted)
		assert.Equal(t, int64(1450), result.Payout.NetAmount)
		assert.Equal(t, "PENDING", result.Payout.Status)
		assert.Len(t, result.Payout.Items, 2)
		assert.Equal(t, []string{finance.EventTypePayoutCreated}, f.events.types())
	})

	t.Run("period starts at the end of the latest payout", func(t *testing.T) {
		f := newPayoutFixture(0, 0)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		previous, _ := newLinkedPayout(t, vendor.ID)
		previous.PeriodEnd = testNow.AddDate(0, 0, -7)
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)
		f.payouts.On("FindLatestActiveByVendor", ctx, vendor.ID).Return(previous, nil)
		f.payouts.On("ExistsOverlapping", ctx, vendor.ID, previous.PeriodEnd, testNow).Return(false, nil)
		f.entries.On("LockEligibleForPayout", ctx, vendor.ID, previous.PeriodEnd, testNow, true).Return([]*finance.CommissionEntry{}, nil)

		result, err := f.svc.CreateBatch(ctx, vendor.ID, testNow)
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Equal(t, SkipReasonNoEligibleEntries, result.Reason)
		assert.Equal(t, previous.PeriodEnd, result.PeriodStart)
	})

	t.Run("below minimum payout", func(t *testing.T) {
		f := newPayoutFixture(0, 0)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		entries := []*finance.CommissionEntry{newEntryInState(t, vendor.ID, 5000, finance.CommissionStatusApproved)}
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)
		f.payouts.On("FindLatestActiveByVendor", ctx, vendor.ID).Return(nil, shared.ErrNotFound)
		f.payouts.On("ExistsOverlapping", ctx, vendor.ID, mock.Anything, mock.Anything).Return(false, nil)
		f.entries.On("LockEligibleForPayout", ctx, vendor.ID, mock.Anything, mock.Anything, true).Return(entries, nil)

		result, err := f.svc.CreateBatch(ctx, vendor.ID, testNow)
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Equal(t, SkipReasonBelowMinimum, result.Reason)
		assert.Equal(t, int64(500), result.CommissionTotal)
		f.payouts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("negative net goes to operator review", func(t *testing.T) {
		f := newPayoutFixture(2000, 0)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		entries := []*finance.CommissionEntry{newEntryInState(t, vendor.ID, 15000, finance.CommissionStatusApproved)}
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)
		f.payouts.On("FindLatestActiveByVendor", ctx, vendor.ID).Return(nil, shared.ErrNotFound)
		f.payouts.On("ExistsOverlapping", ctx, vendor.ID, mock.Anything, mock.Anything).Return(false, nil)
		f.entries.On("LockEligibleForPayout", ctx, vendor.ID, mock.Anything, mock.Anything, true).Return(entries, nil)
		f.queue.On("Enqueue", ctx, mock.MatchedBy(func(item finance.ReviewItem) bool {
			return item.Kind == finance.ReviewKindNegativeNet && item.VendorID == vendor.ID &&
				item.CommissionTotal == 1500 && item.NetAmount == -500
		})).Return(nil)

		_, err := f.svc.CreateBatch(ctx, vendor.ID, testNow)
		assert.Equal(t, shared.CodeNegativeNetAmount, shared.CodeOf(err))
		f.queue.AssertExpectations(t)
		f.payouts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("entries claimed by a concurrent batch", func(t *testing.T) {
		f := newPayoutFixture(0, 0)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		entries := []*finance.CommissionEntry{
			newEntryInState(t, vendor.ID, 10000, finance.CommissionStatusApproved),
			newEntryInState(t, vendor.ID, 10000, finance.CommissionStatusApproved),
		}
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)
		f.payouts.On("FindLatestActiveByVendor", ctx, vendor.ID).Return(nil, shared.ErrNotFound)
		f.payouts.On("ExistsOverlapping", ctx, vendor.ID, mock.Anything, mock.Anything).Return(false, nil)
		f.entries.On("LockEligibleForPayout", ctx, vendor.ID, mock.Anything, mock.Anything, true).Return(entries, nil)
		f.payouts.On("Create", ctx, mock.Anything).Return(nil)
		f.entries.On("LinkToPayout", ctx, mock.Anything, mock.Anything).Return(int64(1), nil)

		_, err := f.svc.CreateBatch(ctx, vendor.ID, testNow)
		assert.Equal(t, shared.CodeConcurrencyConflict, shared.CodeOf(err))
	})

	t.Run("overlapping payout", func(t *testing.T) {
		f := newPayoutFixture(0, 0)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)
		f.payouts.On("FindLatestActiveByVendor", ctx, vendor.ID).Return(nil, shared.ErrNotFound)
		f.payouts.On("ExistsOverlapping", ctx, vendor.ID, mock.Anything, mock.Anything).Return(true, nil)

		_, err := f.svc.CreateBatch(ctx, vendor.ID, testNow)
		assert.Equal(t, shared.CodeAlreadyExists, shared.CodeOf(err))
	})

	t.Run("period end not after start", func(t *testing.T) {
		f := newPayoutFixture(0, 0)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)
		f.payouts.On("FindLatestActiveByVendor", ctx, vendor.ID).Return(nil, shared.ErrNotFound)

		_, err := f.svc.CreateBatch(ctx, vendor.ID, vendor.CreatedAt)
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
	})

	t.Run("suspended vendor", func(t *testing.T) {
		f := newPayoutFixture(0, 0)
		vendor := newTestVendor(t, partner.VendorStatusSuspended)
		f.vendors.On("FindByIDForUpdate", ctx, vendor.ID).Return(vendor, nil)

		_, err := f.svc.CreateBatch(ctx, vendor.ID, testNow)
		assert.Equal(t, shared.CodeVendorNotEligible, shared.CodeOf(err))
	})
}

func TestPayoutService_Submit(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*payoutFixture, *finance.Payout, *partner.Vendor) {
		f := newPayoutFixture(30, 20)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		p, _ := newLinkedPayout(t, vendor.ID)
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
		f.payouts.On("SaveWithLock", ctx, p).Return(nil)
		f.vendors.On("FindByID", ctx, vendor.ID).Return(vendor, nil)
		return f, p, vendor
	}

	t.Run("completes on immediate success", func(t *testing.T) {
		f, p, vendor := setup(t)
		f.executor.On("Transfer", mock.Anything, mock.MatchedBy(func(req finance.TransferRequest) bool {
			return req.PayoutID == p.ID && req.NetAmount == 1450 &&
				req.Bank.AccountNumber == vendor.Bank.AccountNumber
		})).Return(finance.TransferResult{Reference: "TRF-1", Status: finance.TransferStatusSucceeded}, nil)
		f.entries.On("MarkPaidByPayout", ctx, p.ID, testNow).Return(int64(2), nil)
		f.entries.On("FindDeferredDisputes", ctx, p.ID).Return([]*finance.CommissionEntry{}, nil)

		resp, err := f.svc.Submit(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", resp.Status)
		assert.Equal(t, "TRF-1", resp.ExecutorReference)
		assert.Equal(t, 1, resp.AttemptCount)
		assert.Equal(t, []string{finance.EventTypePayoutSubmitted, finance.EventTypePayoutCompleted}, f.events.types())
	})

	t.Run("accepted transfer stays processing", func(t *testing.T) {
		f, p, _ := setup(t)
		f.executor.On("Transfer", mock.Anything, mock.Anything).
			Return(finance.TransferResult{Reference: "TRF-2", Status: finance.TransferStatusPending}, nil)

		resp, err := f.svc.Submit(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "PROCESSING", resp.Status)
		assert.Equal(t, "TRF-2", resp.ExecutorReference)
	})

	t.Run("transient failure schedules a retry", func(t *testing.T) {
		f, p, _ := setup(t)
		f.executor.On("Transfer", mock.Anything, mock.Anything).Return(finance.TransferResult{},
			finance.NewTransientExecutorError(finance.FailureProviderUnavailable, "bank offline", nil))

		resp, err := f.svc.Submit(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "FAILED", resp.Status)
		assert.False(t, resp.PermanentFailure)
		assert.Equal(t, finance.FailureProviderUnavailable, resp.FailureCode)
		require.NotNil(t, resp.NextRetryAt)
		assert.Equal(t, testNow.Add(10*time.Minute), *resp.NextRetryAt)
	})

	t.Run("permanent failure needs an operator", func(t *testing.T) {
		f, p, _ := setup(t)
		f.executor.On("Transfer", mock.Anything, mock.Anything).Return(finance.TransferResult{},
			finance.NewPermanentExecutorError(finance.FailureAccountClosed, "account closed", nil))

		resp, err := f.svc.Submit(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "FAILED", resp.Status)
		assert.True(t, resp.PermanentFailure)
		assert.Nil(t, resp.NextRetryAt)
		assert.Contains(t, f.events.types(), finance.EventTypePayoutFailed)
	})

	t.Run("timeout leaves payout processing", func(t *testing.T) {
		f, p, _ := setup(t)
		f.executor.On("Transfer", mock.Anything, mock.Anything).Return(finance.TransferResult{}, context.DeadlineExceeded)
		f.payouts.On("FindByID", ctx, p.ID).Return(p, nil)

		resp, err := f.svc.Submit(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "PROCESSING", resp.Status)
		assert.Equal(t, []string{finance.EventTypePayoutSubmitted}, f.events.types())
	})

	t.Run("processing payout cannot be submitted twice", func(t *testing.T) {
		f, p, _ := setup(t)
		require.NoError(t, p.Submit(testNow))

		_, err := f.svc.Submit(ctx, p.ID)
		assert.Equal(t, shared.CodeInvalidStateTransition, shared.CodeOf(err))
		f.executor.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	t.Run("vendor suspended after batching is not paid", func(t *testing.T) {
		f, p, vendor := setup(t)
		require.NoError(t, vendor.Suspend("fraud review"))

		_, err := f.svc.Submit(ctx, p.ID)
		assert.Equal(t, shared.CodeVendorNotEligible, shared.CodeOf(err))
		assert.Equal(t, finance.PayoutStatusPending, p.Status)
		assert.Zero(t, p.AttemptCount)
		f.executor.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
		f.payouts.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})
}

func TestPayoutService_OnExecutorResult(t *testing.T) {
	ctx := context.Background()

	t.Run("success reverses deferred disputes", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		vendorID := uuid.New()
		p, entries := newLinkedPayout(t, vendorID)
		require.NoError(t, p.Submit(testNow.Add(-time.Hour)))
		p.ClearDomainEvents()

		deferred := entries[1]
		requested := testNow.Add(-30 * time.Minute)
		deferred.DisputeRequestedAt = &requested
		deferred.DisputeReason = "chargeback"
		deferred.Status = finance.CommissionStatusPaid

		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
		f.payouts.On("SaveWithLock", ctx, p).Return(nil)
		f.entries.On("MarkPaidByPayout", ctx, p.ID, testNow).Return(int64(2), nil)
		f.entries.On("FindDeferredDisputes", ctx, p.ID).Return([]*finance.CommissionEntry{deferred}, nil)
		f.entries.On("CreateIfAbsent", ctx, mock.MatchedBy(func(e *finance.CommissionEntry) bool {
			return e.Kind == finance.EntryKindReversal && e.CommissionAmount == -500 && *e.ReversalOf == deferred.ID
		})).Return(true, nil)

		resp, err := f.svc.OnExecutorResult(ctx, p.ID, finance.TransferResult{Reference: "TRF-9", Status: finance.TransferStatusSucceeded})
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", resp.Status)
		assert.Equal(t, []string{finance.EventTypeCommissionReversed, finance.EventTypePayoutCompleted}, f.events.types())
		f.entries.AssertExpectations(t)
	})

	t.Run("repeated success is a no-op", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		p, _ := newLinkedPayout(t, uuid.New())
		require.NoError(t, p.Submit(testNow))
		require.NoError(t, p.Complete("TRF-9", testNow))
		p.ClearDomainEvents()
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)

		resp, err := f.svc.OnExecutorResult(ctx, p.ID, finance.TransferResult{Reference: "TRF-9", Status: finance.TransferStatusSucceeded})
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", resp.Status)
		f.payouts.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
		f.entries.AssertNotCalled(t, "MarkPaidByPayout", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("paid count mismatch rolls back", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		p, _ := newLinkedPayout(t, uuid.New())
		require.NoError(t, p.Submit(testNow))
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
		f.payouts.On("SaveWithLock", ctx, p).Return(nil)
		f.entries.On("MarkPaidByPayout", ctx, p.ID, testNow).Return(int64(1), nil)

		_, err := f.svc.OnExecutorResult(ctx, p.ID, finance.TransferResult{Status: finance.TransferStatusSucceeded})
		assert.Equal(t, shared.CodeConcurrencyConflict, shared.CodeOf(err))
	})

	t.Run("last attempt failing exhausts retries", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		p, _ := newLinkedPayout(t, uuid.New())
		require.NoError(t, p.Submit(testNow))
		p.AttemptCount = 3
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
		f.payouts.On("SaveWithLock", ctx, p).Return(nil)

		resp, err := f.svc.OnExecutorResult(ctx, p.ID, finance.TransferResult{
			Status:        finance.TransferStatusFailed,
			FailureCode:   "BANK_SAYS_NO",
			FailureDetail: "raw provider message",
		})
		require.NoError(t, err)
		assert.Equal(t, "FAILED", resp.Status)
		assert.Nil(t, resp.NextRetryAt)
		assert.Equal(t, finance.FailureTransferRejected, resp.FailureCode)
		assert.Equal(t, "raw provider message", resp.FailureDetail)
	})

	t.Run("success after cancellation is rejected", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		p, _ := newLinkedPayout(t, uuid.New())
		require.NoError(t, p.Cancel("operator", testNow))
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)

		_, err := f.svc.OnExecutorResult(ctx, p.ID, finance.TransferResult{Status: finance.TransferStatusSucceeded})
		assert.Equal(t, shared.CodeInvalidStateTransition, shared.CodeOf(err))
	})
}

func TestPayoutService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("releases entries and applies deferred disputes", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		p, entries := newLinkedPayout(t, uuid.New())
		deferred := entries[0]
		requested := testNow.Add(-time.Hour)
		deferred.DisputeRequestedAt = &requested
		deferred.DisputeReason = "returned"

		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
		f.payouts.On("SaveWithLock", ctx, p).Return(nil)
		f.entries.On("FindDeferredDisputes", ctx, p.ID).Return([]*finance.CommissionEntry{deferred}, nil)
		f.entries.On("SaveWithLock", ctx, deferred).Return(nil)
		f.entries.On("UnlinkFromPayout", ctx, p.ID).Return(int64(1), nil)

		resp, err := f.svc.Cancel(ctx, p.ID, "wrong period")
		require.NoError(t, err)
		assert.Equal(t, "CANCELLED", resp.Status)
		assert.Len(t, resp.Items, 2)
		assert.Equal(t, finance.CommissionStatusDisputed, deferred.Status)
		assert.Nil(t, deferred.PayoutID)
		assert.Equal(t, []string{finance.EventTypeCommissionDisputed, finance.EventTypePayoutCancelled}, f.events.types())
	})

	t.Run("processing payout cannot be cancelled", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		p, _ := newLinkedPayout(t, uuid.New())
		require.NoError(t, p.Submit(testNow))
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)

		_, err := f.svc.Cancel(ctx, p.ID, "too late")
		assert.Equal(t, shared.CodeInvalidStateTransition, shared.CodeOf(err))
		f.entries.AssertNotCalled(t, "UnlinkFromPayout", mock.Anything, mock.Anything)
	})
}

func TestPayoutService_Retry(t *testing.T) {
	ctx := context.Background()

	failedPayout := func(t *testing.T, permanent bool, attempts int) (*payoutFixture, *finance.Payout) {
		f := newPayoutFixture(30, 20)
		vendor := newTestVendor(t, partner.VendorStatusApproved)
		p, _ := newLinkedPayout(t, vendor.ID)
		require.NoError(t, p.Submit(testNow.Add(-time.Hour)))
		require.NoError(t, p.Fail(finance.FailureAccountClosed, "closed", permanent, nil, testNow.Add(-time.Hour)))
		p.AttemptCount = attempts
		p.ClearDomainEvents()
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
		f.payouts.On("SaveWithLock", ctx, p).Return(nil)
		f.vendors.On("FindByID", ctx, vendor.ID).Return(vendor, nil)
		return f, p
	}

	t.Run("permanent failure requires force", func(t *testing.T) {
		f, p := failedPayout(t, true, 1)
		_, err := f.svc.Retry(ctx, p.ID, false)
		assert.Equal(t, shared.CodeInvalidStateTransition, shared.CodeOf(err))
	})

	t.Run("exhausted retries require force", func(t *testing.T) {
		f, p := failedPayout(t, false, 3)
		_, err := f.svc.Retry(ctx, p.ID, false)
		assert.Equal(t, shared.CodeInvalidStateTransition, shared.CodeOf(err))
	})

	t.Run("forced retry resubmits frozen set", func(t *testing.T) {
		f, p := failedPayout(t, true, 3)
		version := p.Version
		f.executor.On("Transfer", mock.Anything, mock.MatchedBy(func(req finance.TransferRequest) bool {
			return req.PayoutID == p.ID && req.NetAmount == 1450
		})).Return(finance.TransferResult{Reference: "TRF-3", Status: finance.TransferStatusPending}, nil)

		resp, err := f.svc.Retry(ctx, p.ID, true)
		require.NoError(t, err)
		assert.Equal(t, "PROCESSING", resp.Status)
		assert.Equal(t, 4, resp.AttemptCount)
		assert.False(t, resp.PermanentFailure)
		assert.Len(t, resp.Items, 2)
		// submit and reference each bump the version once
		assert.Equal(t, version+2, resp.Version)
	})

	t.Run("forced retry refuses a suspended vendor", func(t *testing.T) {
		f := newPayoutFixture(30, 20)
		vendor := newTestVendor(t, partner.VendorStatusSuspended)
		p, _ := newLinkedPayout(t, vendor.ID)
		require.NoError(t, p.Submit(testNow.Add(-time.Hour)))
		require.NoError(t, p.Fail(finance.FailureProviderUnavailable, "offline", false, nil, testNow.Add(-time.Hour)))
		f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
		f.vendors.On("FindByID", ctx, vendor.ID).Return(vendor, nil)

		_, err := f.svc.Retry(ctx, p.ID, true)
		assert.Equal(t, shared.CodeVendorNotEligible, shared.CodeOf(err))
		f.executor.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})
}

func TestPayoutService_Reconcile(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture(30, 20)

	settled, _ := newLinkedPayout(t, uuid.New())
	require.NoError(t, settled.Submit(testNow.Add(-2*time.Hour)))
	unknown, _ := newLinkedPayout(t, uuid.New())
	require.NoError(t, unknown.Submit(testNow.Add(-2*time.Hour)))

	f.payouts.On("FindStuckProcessing", ctx, testNow.Add(-time.Hour), maintenanceBatchSize).
		Return([]uuid.UUID{settled.ID, unknown.ID}, nil)
	f.executor.On("Status", mock.Anything, settled.ID).
		Return(finance.TransferResult{Reference: "TRF-7", Status: finance.TransferStatusSucceeded}, nil)
	f.executor.On("Status", mock.Anything, unknown.ID).
		Return(finance.TransferResult{}, errors.New("connection reset"))
	f.payouts.On("FindByIDForUpdate", ctx, settled.ID).Return(settled, nil)
	f.payouts.On("SaveWithLock", ctx, settled).Return(nil)
	f.entries.On("MarkPaidByPayout", ctx, settled.ID, testNow).Return(int64(2), nil)
	f.entries.On("FindDeferredDisputes", ctx, settled.ID).Return([]*finance.CommissionEntry{}, nil)

	result, err := f.svc.Reconcile(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, &ReconcileResult{Checked: 2, Completed: 1, Unresolved: 1}, result)
	assert.Equal(t, finance.PayoutStatusProcessing, unknown.Status)
}

func TestPayoutService_DueVendors(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture(0, 0)

	due := newTestVendor(t, partner.VendorStatusApproved)
	notDue := newTestVendor(t, partner.VendorStatusApproved)
	recent, _ := newLinkedPayout(t, notDue.ID)
	recent.PeriodEnd = testNow.AddDate(0, 0, -2)

	f.vendors.On("FindIDsByStatus", ctx, partner.VendorStatusApproved).Return([]uuid.UUID{due.ID, notDue.ID}, nil)
	f.vendors.On("FindByID", ctx, due.ID).Return(due, nil)
	f.vendors.On("FindByID", ctx, notDue.ID).Return(notDue, nil)
	f.payouts.On("FindLatestActiveByVendor", ctx, due.ID).Return(nil, shared.ErrNotFound)
	f.payouts.On("FindLatestActiveByVendor", ctx, notDue.ID).Return(recent, nil)

	ids, err := f.svc.DueVendors(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{due.ID}, ids)
}

func TestPayoutService_RetryFailed(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture(30, 20)
	vendor := newTestVendor(t, partner.VendorStatusApproved)
	p, _ := newLinkedPayout(t, vendor.ID)
	require.NoError(t, p.Submit(testNow.Add(-time.Hour)))
	retryAt := testNow.Add(-time.Minute)
	require.NoError(t, p.Fail(finance.FailureProviderUnavailable, "offline", false, &retryAt, testNow.Add(-time.Hour)))

	f.payouts.On("FindDueForRetry", ctx, testNow, maintenanceBatchSize).Return([]uuid.UUID{p.ID}, nil)
	f.payouts.On("FindByIDForUpdate", ctx, p.ID).Return(p, nil)
	f.payouts.On("SaveWithLock", ctx, p).Return(nil)
	f.vendors.On("FindByID", ctx, vendor.ID).Return(vendor, nil)
	f.executor.On("Transfer", mock.Anything, mock.Anything).
		Return(finance.TransferResult{Reference: "TRF-4", Status: finance.TransferStatusPending}, nil)

	retried, err := f.svc.RetryFailed(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, retried)
	assert.Equal(t, 2, p.AttemptCount)
	assert.Equal(t, finance.PayoutStatusProcessing, p.Status)
}
