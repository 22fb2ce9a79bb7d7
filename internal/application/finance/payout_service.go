package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	defaultExecutorTimeout = 30 * time.Second
	maintenanceBatchSize   = 200
)

// PayoutService is the payout batcher: it aggregates approved commissions into
// payouts, drives them through the executor and finalizes the ledger
type PayoutService struct {
	txScope         TransactionScope
	payoutRepo      finance.PayoutRepository
	entryRepo       finance.CommissionEntryRepository
	vendorRepo      partner.VendorRepository
	executor        finance.PayoutExecutor
	feePolicy       finance.FeePolicy
	taxPolicy       finance.TaxPolicy
	retryPolicy     finance.RetryPolicy
	operatorQueue   finance.OperatorQueue
	carryOver       bool
	executorTimeout time.Duration
	now             func() time.Time
	logger          *zap.Logger
}

// PayoutServiceConfig holds the dependencies and settings of PayoutService
type PayoutServiceConfig struct {
	TxScope       TransactionScope
	PayoutRepo    finance.PayoutRepository
	EntryRepo     finance.CommissionEntryRepository
	VendorRepo    partner.VendorRepository
	Executor      finance.PayoutExecutor
	FeePolicy     finance.FeePolicy
	TaxPolicy     finance.TaxPolicy
	RetryPolicy   finance.RetryPolicy
	OperatorQueue finance.OperatorQueue
	// CarryOver includes approved, unlinked entries accrued before the period
	// start, e.g. late approvals and reversals
	CarryOver       bool
	ExecutorTimeout time.Duration
	Clock           func() time.Time
	Logger          *zap.Logger
}

// NewPayoutService creates a new PayoutService
func NewPayoutService(cfg PayoutServiceConfig) *PayoutService {
	s := &PayoutService{
		txScope:         cfg.TxScope,
		payoutRepo:      cfg.PayoutRepo,
		entryRepo:       cfg.EntryRepo,
		vendorRepo:      cfg.VendorRepo,
		executor:        cfg.Executor,
		feePolicy:       cfg.FeePolicy,
		taxPolicy:       cfg.TaxPolicy,
		retryPolicy:     cfg.RetryPolicy,
		operatorQueue:   cfg.OperatorQueue,
		carryOver:       cfg.CarryOver,
		executorTimeout: cfg.ExecutorTimeout,
		now:             cfg.Clock,
		logger:          cfg.Logger,
	}
	if s.feePolicy == nil {
		s.feePolicy = finance.FeePolicyFunc(func(context.Context, finance.PayoutTerms) (int64, error) { return 0, nil })
	}
	if s.taxPolicy == nil {
		s.taxPolicy = finance.TaxPolicyFunc(func(context.Context, finance.PayoutTerms) (int64, error) { return 0, nil })
	}
	if s.retryPolicy == (finance.RetryPolicy{}) {
		s.retryPolicy = finance.DefaultRetryPolicy()
	}
	if s.executorTimeout <= 0 {
		s.executorTimeout = defaultExecutorTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateBatch aggregates the vendor's approved, unlinked commissions accrued
// before periodEnd into a PENDING payout. The vendor row lock serializes
// batches of the same vendor; the guarded link update makes double
// aggregation of an entry impossible.
func (s *PayoutService) CreateBatch(ctx context.Context, vendorID uuid.UUID, periodEnd time.Time) (*BatchResult, error) {
	periodEnd = periodEnd.UTC()
	result := &BatchResult{VendorID: vendorID, PeriodEnd: periodEnd}

	var (
		payout *finance.Payout
		review *finance.ReviewItem
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		vendor, err := repos.VendorRepo().FindByIDForUpdate(ctx, vendorID)
		if err != nil {
			return err
		}
		if !vendor.CanReceivePayout() {
			return shared.NewDomainError(shared.CodeVendorNotEligible,
				fmt.Sprintf("Vendor is %s and cannot receive payouts", vendor.Status))
		}

		periodStart, err := currentPeriodStart(ctx, repos.PayoutRepo(), vendor)
		if err != nil {
			return err
		}
		result.PeriodStart = periodStart
		if !periodEnd.After(periodStart) {
			return shared.NewValidationError(fmt.Sprintf("Period end %s must be after period start %s",
				periodEnd.Format(time.RFC3339), periodStart.Format(time.RFC3339)))
		}
		overlapping, err := repos.PayoutRepo().ExistsOverlapping(ctx, vendor.ID, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if overlapping {
			return shared.NewDomainError(shared.CodeAlreadyExists, "A payout already covers part of this period")
		}

		entries, err := repos.EntryRepo().LockEligibleForPayout(ctx, vendor.ID, periodStart, periodEnd, s.carryOver)
		if err != nil {
			return err
		}
		var total int64
		for _, e := range entries {
			total += e.CommissionAmount
		}
		result.EntryCount = len(entries)
		result.CommissionTotal = total

		if len(entries) == 0 {
			result.Skipped, result.Reason = true, SkipReasonNoEligibleEntries
			return nil
		}
		if total < vendor.Policy.MinimumPayout || total <= 0 {
			result.Skipped, result.Reason = true, SkipReasonBelowMinimum
			return nil
		}

		terms := finance.PayoutTerms{
			VendorID:        vendor.ID,
			Currency:        vendor.Currency,
			CommissionTotal: total,
			HasTaxID:        vendor.HasTaxID(),
		}
		fees, err := s.feePolicy.Fees(ctx, terms)
		if err != nil {
			return fmt.Errorf("failed to compute payout fees: %w", err)
		}
		tax, err := s.taxPolicy.Tax(ctx, terms)
		if err != nil {
			return fmt.Errorf("failed to compute payout tax: %w", err)
		}

		payout, err = finance.NewPayout(finance.PayoutDraft{
			VendorID:    vendor.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Currency:    vendor.Currency,
			Entries:     entries,
			Fees:        fees,
			Tax:         tax,
		})
		if err != nil {
			if shared.CodeOf(err) == shared.CodeNegativeNetAmount {
				review = &finance.ReviewItem{
					Kind:            finance.ReviewKindNegativeNet,
					VendorID:        vendor.ID,
					PeriodStart:     periodStart,
					PeriodEnd:       periodEnd,
					Currency:        vendor.Currency.String(),
					CommissionTotal: total,
					FeesDeducted:    fees,
					TaxDeducted:     tax,
					NetAmount:       total - fees - tax,
					Reason:          err.Error(),
					RaisedAt:        s.now(),
				}
			}
			return err
		}

		if err := repos.PayoutRepo().Create(ctx, payout); err != nil {
			return err
		}
		linked, err := repos.EntryRepo().LinkToPayout(ctx, payout.ID, payout.CommissionIDs())
		if err != nil {
			return err
		}
		if linked != int64(len(entries)) {
			return shared.NewDomainError(shared.CodeConcurrencyConflict,
				fmt.Sprintf("Linked %d of %d commission entries; another batch claimed some", linked, len(entries)))
		}
		return repos.Events().Record(ctx, shared.PendingEvents(payout)...)
	})
	if err != nil {
		if review != nil {
			s.enqueueReview(ctx, *review)
		}
		s.logger.Warn("payout batch not created",
			zap.String("vendor_id", vendorID.String()),
			zap.Time("period_end", periodEnd),
			zap.Error(err),
		)
		return nil, err
	}

	if result.Skipped {
		s.logger.Info("payout batch skipped",
			zap.String("vendor_id", vendorID.String()),
			zap.String("reason", result.Reason),
			zap.Int64("commission_total", result.CommissionTotal),
			zap.Int("entry_count", result.EntryCount),
		)
		return result, nil
	}

	s.logger.Info("payout batch created",
		zap.String("payout_id", payout.ID.String()),
		zap.String("vendor_id", vendorID.String()),
		zap.Time("period_start", payout.PeriodStart),
		zap.Time("period_end", payout.PeriodEnd),
		zap.Int64("commission_total", payout.CommissionTotal),
		zap.Int64("net_amount", payout.NetAmount),
		zap.Int("entry_count", len(payout.Items)),
	)
	response := ToPayoutResponse(payout)
	result.Payout = &response
	return result, nil
}

// Submit hands a PENDING payout to the executor. Use Retry for FAILED payouts.
func (s *PayoutService) Submit(ctx context.Context, payoutID uuid.UUID) (*PayoutResponse, error) {
	return s.submit(ctx, payoutID, func(p *finance.Payout) error {
		if p.Status != finance.PayoutStatusPending {
			return shared.NewDomainError(shared.CodeInvalidStateTransition,
				fmt.Sprintf("payout: cannot submit in state %s; failed payouts are retried", p.Status))
		}
		return nil
	})
}

// Retry resubmits a FAILED payout with its frozen commission set. Without
// force, permanently failed payouts and exhausted retry budgets are refused.
func (s *PayoutService) Retry(ctx context.Context, payoutID uuid.UUID, force bool) (*PayoutResponse, error) {
	return s.submit(ctx, payoutID, func(p *finance.Payout) error {
		if p.Status != finance.PayoutStatusFailed {
			return shared.NewDomainError(shared.CodeInvalidStateTransition,
				fmt.Sprintf("payout: cannot retry in state %s", p.Status))
		}
		if force {
			return p.ClearPermanentFailure()
		}
		if p.PermanentFailure {
			return shared.NewDomainError(shared.CodeInvalidStateTransition,
				"Payout failed permanently; an operator must force the retry")
		}
		if s.retryPolicy.Exhausted(p.AttemptCount) {
			return shared.NewDomainError(shared.CodeInvalidStateTransition,
				fmt.Sprintf("Payout reached the retry limit of %d attempts", s.retryPolicy.MaxAttempts))
		}
		return nil
	})
}

// submit moves the payout to PROCESSING in its own transaction, then calls the
// executor outside of it. The PROCESSING transition is the in-flight lock: a
// concurrent submit fails the transition instead of issuing a second transfer.
func (s *PayoutService) submit(ctx context.Context, payoutID uuid.UUID, check func(p *finance.Payout) error) (*PayoutResponse, error) {
	now := s.now()
	var req finance.TransferRequest
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		p, err := repos.PayoutRepo().FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		if err := check(p); err != nil {
			return err
		}
		vendor, err := repos.VendorRepo().FindByID(ctx, p.VendorID)
		if err != nil {
			return err
		}
		// suspension after batching still blocks the transfer
		if !vendor.CanReceivePayout() {
			return shared.NewDomainError(shared.CodeVendorNotEligible,
				fmt.Sprintf("Vendor is %s and cannot receive payouts", vendor.Status))
		}
		if err := p.Submit(now); err != nil {
			return err
		}
		if err := repos.PayoutRepo().SaveWithLock(ctx, p); err != nil {
			return err
		}
		req = finance.TransferRequest{
			PayoutID:  p.ID,
			VendorID:  p.VendorID,
			NetAmount: p.NetAmount,
			Currency:  p.Currency,
			Bank: finance.BankAccount{
				AccountHolder: vendor.Bank.AccountHolder,
				AccountNumber: vendor.Bank.AccountNumber,
				RoutingCode:   vendor.Bank.RoutingCode,
				BankName:      vendor.Bank.BankName,
			},
		}
		return repos.Events().Record(ctx, shared.PendingEvents(p)...)
	})
	if err != nil {
		if shared.CodeOf(err) == shared.CodeInvalidStateTransition {
			s.logger.Warn("payout submission rejected",
				zap.String("payout_id", payoutID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("payout submitted",
		zap.String("payout_id", payoutID.String()),
		zap.String("vendor_id", req.VendorID.String()),
		zap.Int64("net_amount", req.NetAmount),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.executorTimeout)
	result, callErr := s.executor.Transfer(callCtx, req)
	cancel()

	return s.applyTransferOutcome(ctx, payoutID, result, callErr)
}

// applyTransferOutcome maps the executor's answer to a payout transition
func (s *PayoutService) applyTransferOutcome(ctx context.Context, payoutID uuid.UUID, result finance.TransferResult, callErr error) (*PayoutResponse, error) {
	if callErr != nil {
		var execErr *finance.ExecutorError
		if errors.As(callErr, &execErr) {
			return s.OnExecutorResult(ctx, payoutID, finance.TransferResult{
				Reference:     result.Reference,
				Status:        finance.TransferStatusFailed,
				FailureCode:   execErr.Code,
				FailureDetail: execErr.Error(),
				Permanent:     execErr.Permanent,
			})
		}
		// Timeouts and unclassified errors may have moved funds: leave the
		// payout PROCESSING for reconciliation.
		s.logger.Warn("payout transfer outcome unknown, awaiting reconciliation",
			zap.String("payout_id", payoutID.String()),
			zap.Error(callErr),
		)
		return s.GetPayout(ctx, payoutID)
	}
	return s.OnExecutorResult(ctx, payoutID, result)
}

// OnExecutorResult applies an executor verdict to a PROCESSING payout.
// On success every frozen entry becomes PAID in the same transaction and
// deferred disputes turn into reversals. Repeating an applied verdict is a no-op.
func (s *PayoutService) OnExecutorResult(ctx context.Context, payoutID uuid.UUID, result finance.TransferResult) (*PayoutResponse, error) {
	now := s.now()
	var (
		payout    *finance.Payout
		reversals int
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payout, err = repos.PayoutRepo().FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}

		switch result.Status {
		case finance.TransferStatusSucceeded:
			if payout.Status == finance.PayoutStatusCompleted {
				return nil
			}
			reversals, err = s.completePayout(ctx, repos, payout, result.Reference, now)
			return err

		case finance.TransferStatusFailed:
			if payout.Status == finance.PayoutStatusFailed {
				return nil
			}
			var nextRetryAt *time.Time
			if !result.Permanent {
				nextRetryAt = s.retryPolicy.NextRetryAt(payout.AttemptCount, now)
			}
			if result.Reference != "" {
				payout.ExecutorReference = result.Reference
			}
			if err := payout.Fail(result.FailureCode, result.FailureDetail, result.Permanent, nextRetryAt, now); err != nil {
				return err
			}
			if err := repos.PayoutRepo().SaveWithLock(ctx, payout); err != nil {
				return err
			}
			return repos.Events().Record(ctx, shared.PendingEvents(payout)...)

		default:
			if payout.Status != finance.PayoutStatusProcessing || result.Reference == "" || result.Reference == payout.ExecutorReference {
				return nil
			}
			payout.RecordReference(result.Reference, now)
			return repos.PayoutRepo().SaveWithLock(ctx, payout)
		}
	})
	if err != nil {
		if shared.CodeOf(err) == shared.CodeInvalidStateTransition {
			s.logger.Warn("executor result rejected",
				zap.String("payout_id", payoutID.String()),
				zap.String("transfer_status", string(result.Status)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	switch payout.Status {
	case finance.PayoutStatusCompleted:
		s.logger.Info("payout completed",
			zap.String("payout_id", payout.ID.String()),
			zap.String("vendor_id", payout.VendorID.String()),
			zap.String("executor_reference", payout.ExecutorReference),
			zap.Int("reversals", reversals),
		)
	case finance.PayoutStatusFailed:
		s.logger.Warn("payout failed",
			zap.String("payout_id", payout.ID.String()),
			zap.String("vendor_id", payout.VendorID.String()),
			zap.String("failure_code", payout.FailureCode),
			zap.Bool("permanent", payout.PermanentFailure),
			zap.Int("attempts", payout.AttemptCount),
		)
	}
	response := ToPayoutResponse(payout)
	return &response, nil
}

func (s *PayoutService) completePayout(ctx context.Context, repos TransactionalRepositories, payout *finance.Payout, reference string, now time.Time) (int, error) {
	if err := payout.Complete(reference, now); err != nil {
		return 0, err
	}
	if err := repos.PayoutRepo().SaveWithLock(ctx, payout); err != nil {
		return 0, err
	}
	paid, err := repos.EntryRepo().MarkPaidByPayout(ctx, payout.ID, now)
	if err != nil {
		return 0, err
	}
	if paid != int64(len(payout.Items)) {
		return 0, shared.NewDomainError(shared.CodeConcurrencyConflict,
			fmt.Sprintf("Marked %d of %d frozen commission entries as paid", paid, len(payout.Items)))
	}

	deferred, err := repos.EntryRepo().FindDeferredDisputes(ctx, payout.ID)
	if err != nil {
		return 0, err
	}
	for _, entry := range deferred {
		if _, err := appendReversal(ctx, repos, entry, entry.DisputeReason, now); err != nil {
			return 0, err
		}
	}
	if err := repos.Events().Record(ctx, shared.PendingEvents(payout)...); err != nil {
		return 0, err
	}
	return len(deferred), nil
}

// Cancel cancels a PENDING payout and returns its entries to the pool.
// Deferred disputes are applied as the entries are released. The frozen
// items stay as history.
func (s *PayoutService) Cancel(ctx context.Context, payoutID uuid.UUID, reason string) (*PayoutResponse, error) {
	now := s.now()
	var (
		payout   *finance.Payout
		released int64
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payout, err = repos.PayoutRepo().FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		if err := payout.Cancel(reason, now); err != nil {
			return err
		}
		if err := repos.PayoutRepo().SaveWithLock(ctx, payout); err != nil {
			return err
		}

		deferred, err := repos.EntryRepo().FindDeferredDisputes(ctx, payout.ID)
		if err != nil {
			return err
		}
		for _, entry := range deferred {
			entry.PayoutID = nil
			if _, err := entry.Dispute(entry.DisputeReason, now); err != nil {
				return err
			}
			if err := repos.EntryRepo().SaveWithLock(ctx, entry); err != nil {
				return err
			}
			if err := repos.Events().Record(ctx, shared.PendingEvents(entry)...); err != nil {
				return err
			}
		}

		released, err = repos.EntryRepo().UnlinkFromPayout(ctx, payout.ID)
		if err != nil {
			return err
		}
		return repos.Events().Record(ctx, shared.PendingEvents(payout)...)
	})
	if err != nil {
		if shared.CodeOf(err) == shared.CodeInvalidStateTransition {
			s.logger.Warn("payout cancellation rejected",
				zap.String("payout_id", payoutID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("payout cancelled",
		zap.String("payout_id", payout.ID.String()),
		zap.String("vendor_id", payout.VendorID.String()),
		zap.Int64("released_entries", released),
		zap.String("reason", reason),
	)
	response := ToPayoutResponse(payout)
	return &response, nil
}

// Reconcile asks the executor about PROCESSING payouts submitted before
// now - olderThan and applies every final status it reports
func (s *PayoutService) Reconcile(ctx context.Context, olderThan time.Duration) (*ReconcileResult, error) {
	cutoff := s.now().Add(-olderThan)
	ids, err := s.payoutRepo.FindStuckProcessing(ctx, cutoff, maintenanceBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing payouts: %w", err)
	}

	result := &ReconcileResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		callCtx, cancel := context.WithTimeout(ctx, s.executorTimeout)
		status, err := s.executor.Status(callCtx, id)
		cancel()
		if err != nil || !status.Status.IsFinal() {
			result.Unresolved++
			if err != nil {
				s.logger.Warn("payout status query failed",
					zap.String("payout_id", id.String()),
					zap.Error(err),
				)
			}
			continue
		}

		payout, err := s.OnExecutorResult(ctx, id, status)
		if err != nil {
			result.Unresolved++
			s.logger.Error("failed to apply reconciled payout status",
				zap.String("payout_id", id.String()),
				zap.Error(err),
			)
			if shared.CodeOf(err) == shared.CodeInvalidStateTransition {
				s.raiseMismatch(ctx, id, status)
			}
			continue
		}
		switch payout.Status {
		case finance.PayoutStatusCompleted.String():
			result.Completed++
		case finance.PayoutStatusFailed.String():
			result.Failed++
		}
	}

	if result.Checked > 0 {
		s.logger.Info("payout reconciliation finished",
			zap.Int("checked", result.Checked),
			zap.Int("completed", result.Completed),
			zap.Int("failed", result.Failed),
			zap.Int("unresolved", result.Unresolved),
		)
	}
	return result, nil
}

// DueVendors lists approved vendors whose next payout period closed by asOf
func (s *PayoutService) DueVendors(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	ids, err := s.vendorRepo.FindIDsByStatus(ctx, partner.VendorStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved vendors: %w", err)
	}
	due := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		vendor, err := s.vendorRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, ok, err := s.duePeriodEnd(ctx, vendor, asOf); err != nil {
			return nil, err
		} else if ok {
			due = append(due, id)
		}
	}
	return due, nil
}

// RunVendorCycle creates the vendor's batch for every schedule period closed
// by asOf and submits it
func (s *PayoutService) RunVendorCycle(ctx context.Context, vendorID uuid.UUID, asOf time.Time) (*BatchResult, error) {
	vendor, err := s.vendorRepo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	periodEnd, ok, err := s.duePeriodEnd(ctx, vendor, asOf)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &BatchResult{VendorID: vendorID, Skipped: true, Reason: SkipReasonNotDue}, nil
	}

	result, err := s.CreateBatch(ctx, vendorID, periodEnd)
	if err != nil || result.Payout == nil {
		return result, err
	}
	submitted, err := s.Submit(ctx, result.Payout.ID)
	if err != nil {
		return result, err
	}
	result.Payout = submitted
	return result, nil
}

// ProcessDueBatches runs the payout cycle of every due vendor in turn
func (s *PayoutService) ProcessDueBatches(ctx context.Context, asOf time.Time) (*BatchRunSummary, error) {
	vendors, err := s.DueVendors(ctx, asOf)
	if err != nil {
		return nil, err
	}
	summary := &BatchRunSummary{Vendors: len(vendors)}
	for _, vendorID := range vendors {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := s.RunVendorCycle(ctx, vendorID, asOf)
		if result != nil {
			switch {
			case result.Skipped:
				summary.Skipped++
			case result.Payout != nil:
				summary.Created++
				if result.Payout.Status != finance.PayoutStatusPending.String() {
					summary.Submitted++
				}
			}
		}
		if err != nil {
			summary.Errors++
			s.logger.Error("payout cycle failed",
				zap.String("vendor_id", vendorID.String()),
				zap.Error(err),
			)
		}
	}
	return summary, nil
}

// RetryFailed resubmits transiently failed payouts whose backoff elapsed
func (s *PayoutService) RetryFailed(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.payoutRepo.FindDueForRetry(ctx, asOf, maintenanceBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list payouts due for retry: %w", err)
	}
	retried := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return retried, err
		}
		if _, err := s.Retry(ctx, id, false); err != nil {
			s.logger.Warn("automatic payout retry skipped",
				zap.String("payout_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		retried++
	}
	return retried, nil
}

// GetPayout retrieves the operator view of a payout
func (s *PayoutService) GetPayout(ctx context.Context, id uuid.UUID) (*PayoutResponse, error) {
	payout, err := s.payoutRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToPayoutResponse(payout)
	return &response, nil
}

// GetVendorPayout retrieves the vendor-safe view of a payout
func (s *PayoutService) GetVendorPayout(ctx context.Context, id uuid.UUID) (*VendorPayoutResponse, error) {
	payout, err := s.payoutRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToVendorPayoutResponse(payout)
	return &response, nil
}

// ListPayouts retrieves payouts with filtering and pagination
func (s *PayoutService) ListPayouts(ctx context.Context, filter PayoutListFilter) ([]finance.Payout, int64, error) {
	domainFilter := finance.PayoutFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		Status: finance.PayoutStatus(filter.Status),
		Period: toPeriod(filter.From, filter.To),
	}
	if domainFilter.OrderBy == "" {
		domainFilter.OrderBy = "period_start"
	}
	domainFilter.Normalize()
	var err error
	if domainFilter.VendorID, err = parseOptionalUUID(filter.VendorID); err != nil {
		return nil, 0, err
	}
	return s.payoutRepo.FindAll(ctx, domainFilter)
}

// duePeriodEnd returns the latest schedule boundary reached by asOf, counted
// from the vendor's current period start
func (s *PayoutService) duePeriodEnd(ctx context.Context, vendor *partner.Vendor, asOf time.Time) (time.Time, bool, error) {
	start, err := currentPeriodStart(ctx, s.payoutRepo, vendor)
	if err != nil {
		return time.Time{}, false, err
	}
	schedule := vendor.Policy.PayoutSchedule
	end := schedule.NextPeriodEnd(start)
	if end.After(asOf) {
		return time.Time{}, false, nil
	}
	for next := schedule.NextPeriodEnd(end); !next.After(asOf); next = schedule.NextPeriodEnd(end) {
		end = next
	}
	return end, true, nil
}

// raiseMismatch reports an executor status that contradicts the ledger,
// e.g. a transfer that succeeded after the payout was cancelled
func (s *PayoutService) raiseMismatch(ctx context.Context, payoutID uuid.UUID, status finance.TransferResult) {
	payout, err := s.payoutRepo.FindByID(ctx, payoutID)
	if err != nil {
		s.logger.Error("failed to load payout for review",
			zap.String("payout_id", payoutID.String()),
			zap.Error(err),
		)
		return
	}
	reason := fmt.Sprintf("Executor reports %s (reference %q) for a %s payout", status.Status, status.Reference, payout.Status)
	s.enqueueReview(ctx, finance.ReviewItemForPayout(finance.ReviewKindReconcileMismatch, payout, reason, s.now()))
}

func (s *PayoutService) enqueueReview(ctx context.Context, item finance.ReviewItem) {
	if s.operatorQueue == nil {
		return
	}
	if err := s.operatorQueue.Enqueue(ctx, item); err != nil {
		s.logger.Error("failed to enqueue payout review",
			zap.String("kind", string(item.Kind)),
			zap.String("vendor_id", item.VendorID.String()),
			zap.Error(err),
		)
	}
}

// currentPeriodStart is the end of the vendor's latest non-cancelled payout,
// or the vendor's creation time before the first payout
func currentPeriodStart(ctx context.Context, payouts finance.PayoutRepository, vendor *partner.Vendor) (time.Time, error) {
	latest, err := payouts.FindLatestActiveByVendor(ctx, vendor.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return vendor.CreatedAt.UTC(), nil
		}
		return time.Time{}, err
	}
	return latest.PeriodEnd.UTC(), nil
}
