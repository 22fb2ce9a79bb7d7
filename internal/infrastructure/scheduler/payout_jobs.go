package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	appfinance "github.com/marketplace/payouts/internal/application/finance"
	"go.uber.org/zap"
)

// PayoutOperations is the slice of the payout service driven by scheduled jobs
type PayoutOperations interface {
	DueVendors(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	RunVendorCycle(ctx context.Context, vendorID uuid.UUID, asOf time.Time) (*appfinance.BatchResult, error)
	RetryFailed(ctx context.Context, asOf time.Time) (int, error)
	Reconcile(ctx context.Context, olderThan time.Duration) (*appfinance.ReconcileResult, error)
}

// CommissionOperations is the slice of the commission service driven by scheduled jobs
type CommissionOperations interface {
	ApproveMatured(ctx context.Context, asOf time.Time) (int, error)
}

// JobObserver receives the outcome of every executed job
type JobObserver interface {
	RecordJob(ctx context.Context, jobType string, processed int, duration time.Duration, err error)
}

// PayoutJobExecutor dispatches scheduled jobs to the ledger services
type PayoutJobExecutor struct {
	payouts        PayoutOperations
	commissions    CommissionOperations
	reconcileAfter time.Duration
	observer       JobObserver
	logger         *zap.Logger
}

// NewPayoutJobExecutor creates the executor. observer may be nil.
func NewPayoutJobExecutor(
	payouts PayoutOperations,
	commissions CommissionOperations,
	reconcileAfter time.Duration,
	observer JobObserver,
	logger *zap.Logger,
) *PayoutJobExecutor {
	return &PayoutJobExecutor{
		payouts:        payouts,
		commissions:    commissions,
		reconcileAfter: reconcileAfter,
		observer:       observer,
		logger:         logger,
	}
}

// Execute implements JobExecutor
func (e *PayoutJobExecutor) Execute(ctx context.Context, job *Job) (int, error) {
	start := time.Now()
	processed, err := e.execute(ctx, job)
	if e.observer != nil {
		e.observer.RecordJob(ctx, string(job.Type), processed, time.Since(start), err)
	}
	return processed, err
}

func (e *PayoutJobExecutor) execute(ctx context.Context, job *Job) (int, error) {
	asOf := job.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	switch job.Type {
	case JobTypePayoutBatch:
		if job.VendorID == nil {
			return 0, ErrMissingVendor
		}
		result, err := e.payouts.RunVendorCycle(ctx, *job.VendorID, asOf)
		if err != nil {
			return 0, fmt.Errorf("payout cycle for vendor %s: %w", job.VendorID, err)
		}
		if result.Skipped {
			e.logger.Debug("Payout batch skipped",
				zap.String("vendor_id", job.VendorID.String()),
				zap.String("reason", result.Reason),
			)
			return 0, nil
		}
		return result.EntryCount, nil

	case JobTypeCommissionAging:
		return e.commissions.ApproveMatured(ctx, asOf)

	case JobTypePayoutRetry:
		return e.payouts.RetryFailed(ctx, asOf)

	case JobTypePayoutReconcile:
		result, err := e.payouts.Reconcile(ctx, e.reconcileAfter)
		if err != nil {
			return 0, err
		}
		return result.Completed + result.Failed, nil
	}
	return 0, ErrInvalidJobType
}
