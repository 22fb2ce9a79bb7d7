package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	appfinance "github.com/marketplace/payouts/internal/application/finance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayoutOps struct {
	cycleResult    *appfinance.BatchResult
	cycleErr       error
	cycleVendor    uuid.UUID
	cycleAsOf      time.Time
	retried        int
	reconcile      *appfinance.ReconcileResult
	reconcileAfter time.Duration
}

func (f *fakePayoutOps) DueVendors(context.Context, time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakePayoutOps) RunVendorCycle(_ context.Context, vendorID uuid.UUID, asOf time.Time) (*appfinance.BatchResult, error) {
	f.cycleVendor = vendorID
	f.cycleAsOf = asOf
	return f.cycleResult, f.cycleErr
}

func (f *fakePayoutOps) RetryFailed(context.Context, time.Time) (int, error) {
	return f.retried, nil
}

func (f *fakePayoutOps) Reconcile(_ context.Context, olderThan time.Duration) (*appfinance.ReconcileResult, error) {
	f.reconcileAfter = olderThan
	return f.reconcile, nil
}

type fakeCommissionOps struct {
	approved int
	asOf     time.Time
}

func (f *fakeCommissionOps) ApproveMatured(_ context.Context, asOf time.Time) (int, error) {
	f.asOf = asOf
	return f.approved, nil
}

type recordingObserver struct {
	jobType   string
	processed int
	err       error
}

func (r *recordingObserver) RecordJob(_ context.Context, jobType string, processed int, _ time.Duration, err error) {
	r.jobType, r.processed, r.err = jobType, processed, err
}

func TestPayoutJobExecutor_Dispatch(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	vendorID := uuid.New()

	payouts := &fakePayoutOps{
		cycleResult: &appfinance.BatchResult{VendorID: vendorID, EntryCount: 12},
		retried:     3,
		reconcile:   &appfinance.ReconcileResult{Checked: 5, Completed: 2, Failed: 1, Unresolved: 2},
	}
	commissions := &fakeCommissionOps{approved: 9}
	observer := &recordingObserver{}
	executor := NewPayoutJobExecutor(payouts, commissions, time.Hour, observer, newTestLogger())
	ctx := context.Background()

	n, err := executor.Execute(ctx, testJob(JobTypePayoutBatch, &vendorID, asOf))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, vendorID, payouts.cycleVendor)
	assert.Equal(t, asOf, payouts.cycleAsOf)
	assert.Equal(t, "payout_batch", observer.jobType)
	assert.Equal(t, 12, observer.processed)

	n, err = executor.Execute(ctx, testJob(JobTypeCommissionAging, nil, asOf))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, asOf, commissions.asOf)

	n, err = executor.Execute(ctx, testJob(JobTypePayoutRetry, nil, asOf))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = executor.Execute(ctx, testJob(JobTypePayoutReconcile, nil, asOf))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "settled payouts count as processed")
	assert.Equal(t, time.Hour, payouts.reconcileAfter)
}

func TestPayoutJobExecutor_BatchEdgeCases(t *testing.T) {
	ctx := context.Background()
	vendorID := uuid.New()

	t.Run("missing vendor", func(t *testing.T) {
		executor := NewPayoutJobExecutor(&fakePayoutOps{}, &fakeCommissionOps{}, time.Hour, nil, newTestLogger())
		_, err := executor.Execute(ctx, testJob(JobTypePayoutBatch, nil, time.Now()))
		assert.ErrorIs(t, err, ErrMissingVendor)
	})

	t.Run("skipped batch processes nothing", func(t *testing.T) {
		payouts := &fakePayoutOps{cycleResult: &appfinance.BatchResult{Skipped: true, Reason: appfinance.SkipReasonBelowMinimum, EntryCount: 4}}
		executor := NewPayoutJobExecutor(payouts, &fakeCommissionOps{}, time.Hour, nil, newTestLogger())
		n, err := executor.Execute(ctx, testJob(JobTypePayoutBatch, &vendorID, time.Now()))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("cycle failure is reported to the observer", func(t *testing.T) {
		payouts := &fakePayoutOps{cycleErr: errors.New("executor unavailable")}
		observer := &recordingObserver{}
		executor := NewPayoutJobExecutor(payouts, &fakeCommissionOps{}, time.Hour, observer, newTestLogger())
		_, err := executor.Execute(ctx, testJob(JobTypePayoutBatch, &vendorID, time.Now()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), vendorID.String())
		assert.Error(t, observer.err)
	})

	t.Run("zero as-of defaults to now", func(t *testing.T) {
		payouts := &fakePayoutOps{cycleResult: &appfinance.BatchResult{}}
		executor := NewPayoutJobExecutor(payouts, &fakeCommissionOps{}, time.Hour, nil, newTestLogger())
		_, err := executor.Execute(ctx, testJob(JobTypePayoutBatch, &vendorID, time.Time{}))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), payouts.cycleAsOf, time.Minute)
	})

	t.Run("unknown type", func(t *testing.T) {
		executor := NewPayoutJobExecutor(&fakePayoutOps{}, &fakeCommissionOps{}, time.Hour, nil, newTestLogger())
		_, err := executor.Execute(ctx, &Job{Type: JobType("daily_report")})
		assert.ErrorIs(t, err, ErrInvalidJobType)
	})
}
