package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

const (
	defaultDisputeReason = "return_or_chargeback"
	agingBatchSize       = 500
)

// CommissionService maintains the commission ledger: accrual, approval for
// payout and disputes
type CommissionService struct {
	txScope    TransactionScope
	entryRepo  finance.CommissionEntryRepository
	vendorRepo partner.VendorRepository
	approval   finance.ApprovalPolicy
	now        func() time.Time
	logger     *zap.Logger
}

// CommissionServiceConfig holds the dependencies of CommissionService
type CommissionServiceConfig struct {
	TxScope        TransactionScope
	EntryRepo      finance.CommissionEntryRepository
	VendorRepo     partner.VendorRepository
	ApprovalPolicy finance.ApprovalPolicy
	Clock          func() time.Time
	Logger         *zap.Logger
}

// NewCommissionService creates a new CommissionService
func NewCommissionService(cfg CommissionServiceConfig) *CommissionService {
	s := &CommissionService{
		txScope:    cfg.TxScope,
		entryRepo:  cfg.EntryRepo,
		vendorRepo: cfg.VendorRepo,
		approval:   cfg.ApprovalPolicy,
		now:        cfg.Clock,
		logger:     cfg.Logger,
	}
	if s.approval == nil {
		s.approval = finance.ReturnWindowPolicy{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Accrue records the commission of a completed order line. Redelivery of the
// same (order, item) returns the existing entry; created reports whether a
// new entry was written.
func (s *CommissionService) Accrue(ctx context.Context, cmd AccrueCommand) (resp *CommissionResponse, created bool, err error) {
	if cmd.SaleAmount < 0 {
		return nil, false, shared.NewValidationError("Sale amount cannot be negative")
	}

	var entry *finance.CommissionEntry
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		vendor, err := repos.VendorRepo().FindByID(ctx, cmd.VendorID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError(shared.CodeVendorNotEligible, "Vendor is not registered")
			}
			return err
		}
		if !vendor.CanAccrue() {
			return shared.NewDomainError(shared.CodeVendorNotEligible,
				fmt.Sprintf("Vendor is %s and cannot accrue commission", vendor.Status))
		}
		if err := checkSaleCurrency(cmd.Currency, vendor.Currency); err != nil {
			return err
		}

		entry, err = finance.NewAccrual(finance.AccrualInput{
			VendorID:     vendor.ID,
			OrderID:      cmd.OrderID,
			OrderItemID:  cmd.OrderItemID,
			ProductID:    cmd.ProductID,
			ProductTitle: cmd.ProductTitle,
			SaleAmount:   cmd.SaleAmount,
			Currency:     vendor.Currency,
			Terms:        termsFromPolicy(vendor.Policy),
			AccruedAt:    s.accrualTime(cmd.OccurredAt),
		})
		if err != nil {
			return err
		}

		created, err = repos.EntryRepo().CreateIfAbsent(ctx, entry)
		if err != nil {
			return err
		}
		if !created {
			entry, err = repos.EntryRepo().FindByOrderLine(ctx, cmd.OrderID, cmd.OrderItemID, finance.EntryKindAccrual)
			return err
		}
		return repos.Events().Record(ctx, shared.PendingEvents(entry)...)
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("commission accrued",
			zap.String("entry_id", entry.ID.String()),
			zap.String("vendor_id", entry.VendorID.String()),
			zap.String("order_id", entry.OrderID),
			zap.String("order_item_id", entry.OrderItemID),
			zap.Int64("sale_amount", entry.SaleAmount),
			zap.Int64("commission_amount", entry.CommissionAmount),
		)
	} else {
		if entry.VendorID != cmd.VendorID {
			s.logger.Warn("redelivered order line names a different vendor",
				zap.String("entry_id", entry.ID.String()),
				zap.String("vendor_id", entry.VendorID.String()),
				zap.String("event_vendor_id", cmd.VendorID.String()),
			)
		}
		s.logger.Debug("order line already accrued",
			zap.String("entry_id", entry.ID.String()),
			zap.String("order_id", entry.OrderID),
			zap.String("order_item_id", entry.OrderItemID),
		)
	}

	response := ToCommissionResponse(entry)
	return &response, created, nil
}

// ApproveForPayout approves a PENDING entry once the approval policy allows it
func (s *CommissionService) ApproveForPayout(ctx context.Context, entryID uuid.UUID) (*CommissionResponse, error) {
	now := s.now()
	var entry *finance.CommissionEntry
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, err = repos.EntryRepo().FindByIDForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status == finance.CommissionStatusPending && !s.approval.IsApprovable(entry, now) {
			return shared.NewDomainError(shared.CodeReturnWindowOpen, "Return window is still open for this order line")
		}
		if err := entry.Approve(now); err != nil {
			return err
		}
		if err := repos.EntryRepo().SaveWithLock(ctx, entry); err != nil {
			return err
		}
		return repos.Events().Record(ctx, shared.PendingEvents(entry)...)
	})
	if err != nil {
		if shared.CodeOf(err) == shared.CodeInvalidStateTransition {
			s.logger.Warn("commission approval rejected",
				zap.String("entry_id", entryID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("commission approved for payout",
		zap.String("entry_id", entry.ID.String()),
		zap.String("vendor_id", entry.VendorID.String()),
	)
	response := ToCommissionResponse(entry)
	return &response, nil
}

// ApproveMatured approves every PENDING accrual whose approval window closed
// by asOf. Each entry is approved in its own transaction.
func (s *CommissionService) ApproveMatured(ctx context.Context, asOf time.Time) (int, error) {
	cutoff := s.approval.MaturedBefore(asOf)
	approved := 0
	for {
		ids, err := s.entryRepo.FindMaturedPending(ctx, cutoff, agingBatchSize)
		if err != nil {
			return approved, fmt.Errorf("failed to list matured commissions: %w", err)
		}
		progress := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return approved, err
			}
			if _, err := s.ApproveForPayout(ctx, id); err != nil {
				if shared.CodeOf(err) == "" {
					s.logger.Error("failed to approve matured commission",
						zap.String("entry_id", id.String()),
						zap.Error(err),
					)
				}
				continue
			}
			progress++
		}
		approved += progress
		if len(ids) < agingBatchSize || progress == 0 {
			break
		}
	}
	return approved, nil
}

// Dispute applies a return or chargeback to an entry:
//   - PENDING, or APPROVED and not in a payout: the entry becomes DISPUTED
//   - APPROVED and frozen into an open payout: the dispute is deferred until
//     the payout completes (reversal) or is cancelled (DISPUTED)
//   - PAID: a reversal entry is appended; the original is untouched
//   - DISPUTED: nothing changes
func (s *CommissionService) Dispute(ctx context.Context, entryID uuid.UUID, reason string) (*DisputeResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultDisputeReason
	}
	now := s.now()

	var (
		entry    *finance.CommissionEntry
		reversal *finance.CommissionEntry
		outcome  finance.DisputeOutcome
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, err = repos.EntryRepo().FindByIDForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		outcome, err = entry.Dispute(reason, now)
		if err != nil {
			return err
		}

		switch outcome {
		case finance.DisputeOutcomeUnchanged:
			return nil
		case finance.DisputeOutcomeReversal:
			reversal, err = appendReversal(ctx, repos, entry, reason, now)
			return err
		default:
			if err := repos.EntryRepo().SaveWithLock(ctx, entry); err != nil {
				return err
			}
			return repos.Events().Record(ctx, shared.PendingEvents(entry)...)
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("commission disputed",
		zap.String("entry_id", entry.ID.String()),
		zap.String("vendor_id", entry.VendorID.String()),
		zap.String("outcome", string(outcome)),
		zap.String("reason", reason),
	)

	response := &DisputeResponse{
		Outcome: string(outcome),
		Entry:   ToCommissionResponse(entry),
	}
	if reversal != nil {
		r := ToCommissionResponse(reversal)
		response.Reversal = &r
	}
	return response, nil
}

// DisputeOrderLine resolves the accrual of an order line and disputes it
func (s *CommissionService) DisputeOrderLine(ctx context.Context, orderID, orderItemID, reason string) (*DisputeResponse, error) {
	entry, err := s.entryRepo.FindByOrderLine(ctx, orderID, orderItemID, finance.EntryKindAccrual)
	if err != nil {
		return nil, err
	}
	return s.Dispute(ctx, entry.ID, reason)
}

// GetEntry retrieves a commission entry by ID
func (s *CommissionService) GetEntry(ctx context.Context, id uuid.UUID) (*CommissionResponse, error) {
	entry, err := s.entryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToCommissionResponse(entry)
	return &response, nil
}

// ListEntries retrieves commission entries with filtering and pagination
func (s *CommissionService) ListEntries(ctx context.Context, filter CommissionListFilter) ([]CommissionResponse, int64, error) {
	domainFilter := finance.CommissionEntryFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		Status:  finance.CommissionStatus(filter.Status),
		Kind:    finance.EntryKind(filter.Kind),
		OrderID: filter.OrderID,
		Period:  toPeriod(filter.From, filter.To),
	}
	if domainFilter.OrderBy == "" {
		domainFilter.OrderBy = "accrued_at"
	}
	domainFilter.Normalize()
	var err error
	if domainFilter.VendorID, err = parseOptionalUUID(filter.VendorID); err != nil {
		return nil, 0, err
	}
	if domainFilter.PayoutID, err = parseOptionalUUID(filter.PayoutID); err != nil {
		return nil, 0, err
	}

	entries, total, err := s.entryRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToCommissionResponses(entries), total, nil
}

// GetEarnings returns the vendor's ledger aggregates, derived at read time
func (s *CommissionService) GetEarnings(ctx context.Context, vendorID uuid.UUID) (*EarningsResponse, error) {
	vendor, err := s.vendorRepo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	summary, err := s.entryRepo.EarningsSummary(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return &EarningsResponse{EarningsSummary: *summary, Currency: vendor.Currency.String()}, nil
}

func (s *CommissionService) accrualTime(occurredAt time.Time) time.Time {
	if occurredAt.IsZero() {
		return s.now()
	}
	return occurredAt.UTC()
}

// appendReversal writes the reversal of a paid entry, or returns the one
// already written for the same order line
func appendReversal(ctx context.Context, repos TransactionalRepositories, original *finance.CommissionEntry, reason string, now time.Time) (*finance.CommissionEntry, error) {
	reversal, err := finance.NewReversal(original, reason, now)
	if err != nil {
		return nil, err
	}
	created, err := repos.EntryRepo().CreateIfAbsent(ctx, reversal)
	if err != nil {
		return nil, err
	}
	if !created {
		return repos.EntryRepo().FindByOrderLine(ctx, original.OrderID, original.OrderItemID, finance.EntryKindReversal)
	}
	if err := repos.Events().Record(ctx, shared.PendingEvents(reversal)...); err != nil {
		return nil, err
	}
	return reversal, nil
}

func termsFromPolicy(p partner.Policy) finance.CommissionTerms {
	return finance.CommissionTerms{
		Type: finance.CommissionType(p.CommissionType),
		Rate: p.CommissionRate,
	}
}

func toPeriod(from, to *time.Time) shared.Period {
	var p shared.Period
	if from != nil {
		p.From = *from
	}
	if to != nil {
		p.To = *to
	}
	return p
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, shared.NewValidationError("Invalid UUID: " + s)
	}
	return &id, nil
}

// checkSaleCurrency rejects a sale booked in another currency than the
// vendor's ledger. Amounts are minor units, so there is nothing to convert.
func checkSaleCurrency(sale string, ledger valueobject.Currency) error {
	if sale == "" {
		return nil
	}
	c, err := valueobject.ParseCurrency(sale)
	if err != nil {
		return shared.NewValidationError(err.Error())
	}
	if c != ledger {
		return shared.NewValidationError(
			fmt.Sprintf("Sale currency %s does not match the vendor currency %s", c, ledger))
	}
	return nil
}
