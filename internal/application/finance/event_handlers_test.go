package finance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrderCompletedHandler_Handle(t *testing.T) {
	ctx := context.Background()
	f := newCommissionFixture()
	handler := NewOrderCompletedHandler(f.svc, zap.NewNop())
	assert.Equal(t, []string{finance.EventTypeOrderCompleted}, handler.EventTypes())

	vendor := newTestVendor(t, partner.VendorStatusApproved)
	occurredAt := testNow.Add(-time.Hour)
	f.vendors.On("FindByID", ctx, vendor.ID).Return(vendor, nil)
	f.entries.On("CreateIfAbsent", ctx, mock.MatchedBy(func(e *finance.CommissionEntry) bool {
		return e.OrderID == "ORD-1" && e.SaleAmount == 2000 && e.AccruedAt.Equal(occurredAt)
	})).Return(true, nil)

	event := finance.NewOrderCompletedEvent(uuid.New(), "ORD-1", "ITEM-1", vendor.ID, 2000, occurredAt)
	require.NoError(t, handler.Handle(ctx, event))
	f.entries.AssertExpectations(t)

	wrong := finance.NewReturnOrChargebackEvent(uuid.New(), "ORD-1", "ITEM-1", "returned", testNow)
	assert.Error(t, handler.Handle(ctx, wrong))
}

func TestOrderCompletedHandler_ForeignCurrency(t *testing.T) {
	ctx := context.Background()
	f := newCommissionFixture()
	handler := NewOrderCompletedHandler(f.svc, zap.NewNop())

	vendor := newTestVendor(t, partner.VendorStatusApproved)
	vendor.Currency = valueobject.JPY
	f.vendors.On("FindByID", ctx, vendor.ID).Return(vendor, nil)

	event := finance.NewOrderCompletedEvent(uuid.New(), "ORD-1", "ITEM-1", vendor.ID, 2000, testNow)
	event.Currency = "USD"
	err := handler.Handle(ctx, event)
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
	f.entries.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}

func TestReturnOrChargebackHandler_Handle(t *testing.T) {
	ctx := context.Background()
	f := newCommissionFixture()
	handler := NewReturnOrChargebackHandler(f.svc, zap.NewNop())

	entry := newEntryInState(t, uuid.New(), 1000, finance.CommissionStatusPending)
	f.entries.On("FindByOrderLine", ctx, entry.OrderID, entry.OrderItemID, finance.EntryKindAccrual).Return(entry, nil)
	f.entries.On("FindByIDForUpdate", ctx, entry.ID).Return(entry, nil)
	f.entries.On("SaveWithLock", ctx, entry).Return(nil)

	event := finance.NewReturnOrChargebackEvent(uuid.New(), entry.OrderID, entry.OrderItemID, "returned", testNow)
	require.NoError(t, handler.Handle(ctx, event))
	assert.Equal(t, finance.CommissionStatusDisputed, entry.Status)
}

func TestPayoutCompletedHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("archives statement once", func(t *testing.T) {
		payouts := new(MockPayoutRepository)
		entries := new(MockCommissionEntryRepository)
		vendors := new(MockVendorRepository)
		archive := new(MockStatementArchive)
		handler := NewPayoutCompletedHandler(payouts, entries, vendors, archive, zap.NewNop())

		vendor := newTestVendor(t, partner.VendorStatusApproved)
		p, linked := newLinkedPayout(t, vendor.ID)
		require.NoError(t, p.Submit(testNow))
		require.NoError(t, p.Complete("TRF-1", testNow))

		payouts.On("FindByID", ctx, p.ID).Return(p, nil)
		vendors.On("FindByID", ctx, vendor.ID).Return(vendor, nil)
		entries.On("FindByIDs", ctx, p.CommissionIDs()).Return([]finance.CommissionEntry{*linked[0], *linked[1]}, nil)
		archive.On("Store", ctx, mock.MatchedBy(func(s finance.Statement) bool {
			return s.Payout == p && s.VendorName == vendor.BusinessName && len(s.Entries) == 2
		})).Return("statements/key.csv", nil)
		payouts.On("SetStatementKey", ctx, p.ID, "statements/key.csv").Return(nil)

		require.NoError(t, handler.Handle(ctx, finance.NewPayoutCompletedEvent(p)))
		archive.AssertExpectations(t)
		payouts.AssertExpectations(t)
	})

	t.Run("skips archived payout", func(t *testing.T) {
		payouts := new(MockPayoutRepository)
		archive := new(MockStatementArchive)
		handler := NewPayoutCompletedHandler(payouts, nil, nil, archive, zap.NewNop())

		p, _ := newLinkedPayout(t, uuid.New())
		p.SetStatementKey("statements/existing.csv")
		payouts.On("FindByID", ctx, p.ID).Return(p, nil)

		require.NoError(t, handler.Handle(ctx, finance.NewPayoutCompletedEvent(p)))
		archive.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
	})
}

func TestPayoutFailedHandler_Handle(t *testing.T) {
	ctx := context.Background()

	failed := func(t *testing.T, permanent bool, nextRetryAt *time.Time) *finance.Payout {
		p, _ := newLinkedPayout(t, uuid.New())
		require.NoError(t, p.Submit(testNow))
		require.NoError(t, p.Fail(finance.FailureInvalidBankAccount, "iban checksum", permanent, nextRetryAt, testNow))
		return p
	}

	t.Run("permanent failure is queued", func(t *testing.T) {
		payouts := new(MockPayoutRepository)
		queue := new(MockOperatorQueue)
		handler := NewPayoutFailedHandler(payouts, queue, zap.NewNop())
		p := failed(t, true, nil)
		payouts.On("FindByID", ctx, p.ID).Return(p, nil)
		queue.On("Enqueue", ctx, mock.MatchedBy(func(item finance.ReviewItem) bool {
			return item.Kind == finance.ReviewKindPermanentFailure && *item.PayoutID == p.ID && item.NetAmount == 1450
		})).Return(nil)

		require.NoError(t, handler.Handle(ctx, finance.NewPayoutFailedEvent(p)))
		queue.AssertExpectations(t)
	})

	t.Run("exhausted retries are queued", func(t *testing.T) {
		payouts := new(MockPayoutRepository)
		queue := new(MockOperatorQueue)
		handler := NewPayoutFailedHandler(payouts, queue, zap.NewNop())
		p := failed(t, false, nil)
		payouts.On("FindByID", ctx, p.ID).Return(p, nil)
		queue.On("Enqueue", ctx, mock.MatchedBy(func(item finance.ReviewItem) bool {
			return item.Kind == finance.ReviewKindRetriesExhausted
		})).Return(nil)

		require.NoError(t, handler.Handle(ctx, finance.NewPayoutFailedEvent(p)))
		queue.AssertExpectations(t)
	})

	t.Run("scheduled retry is not queued", func(t *testing.T) {
		payouts := new(MockPayoutRepository)
		queue := new(MockOperatorQueue)
		handler := NewPayoutFailedHandler(payouts, queue, zap.NewNop())
		retryAt := testNow.Add(time.Hour)
		p := failed(t, false, &retryAt)

		require.NoError(t, handler.Handle(ctx, finance.NewPayoutFailedEvent(p)))
		payouts.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})
}
