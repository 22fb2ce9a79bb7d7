package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// PayoutCompletedHandler handles PayoutCompletedEvent
// and archives the payout statement
type PayoutCompletedHandler struct {
	payoutRepo finance.PayoutRepository
	entryRepo  finance.CommissionEntryRepository
	vendorRepo partner.VendorRepository
	archive    finance.StatementArchive
	logger     *zap.Logger
}

// NewPayoutCompletedHandler creates a new handler for payout completed events
func NewPayoutCompletedHandler(
	payoutRepo finance.PayoutRepository,
	entryRepo finance.CommissionEntryRepository,
	vendorRepo partner.VendorRepository,
	archive finance.StatementArchive,
	logger *zap.Logger,
) *PayoutCompletedHandler {
	return &PayoutCompletedHandler{
		payoutRepo: payoutRepo,
		entryRepo:  entryRepo,
		vendorRepo: vendorRepo,
		archive:    archive,
		logger:     logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *PayoutCompletedHandler) EventTypes() []string {
	return []string{finance.EventTypePayoutCompleted}
}

// Handle stores the statement of the completed payout and records its key.
// A payout that already has a statement is skipped.
func (h *PayoutCompletedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	completed, ok := event.(*finance.PayoutCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypePayoutCompleted, event.EventType())
	}

	payout, err := h.payoutRepo.FindByID(ctx, completed.PayoutID)
	if err != nil {
		return fmt.Errorf("failed to load payout: %w", err)
	}
	if payout.StatementKey != "" {
		h.logger.Debug("payout statement already archived, skipping",
			zap.String("payout_id", payout.ID.String()),
			zap.String("statement_key", payout.StatementKey),
		)
		return nil
	}

	vendor, err := h.vendorRepo.FindByID(ctx, payout.VendorID)
	if err != nil {
		return fmt.Errorf("failed to load vendor: %w", err)
	}
	entries, err := h.entryRepo.FindByIDs(ctx, payout.CommissionIDs())
	if err != nil {
		return fmt.Errorf("failed to load payout entries: %w", err)
	}

	key, err := h.archive.Store(ctx, finance.Statement{
		Payout:      payout,
		VendorName:  vendor.BusinessName,
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to archive payout statement",
			zap.String("payout_id", payout.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to archive payout statement: %w", err)
	}
	if err := h.payoutRepo.SetStatementKey(ctx, payout.ID, key); err != nil {
		return fmt.Errorf("failed to record statement key: %w", err)
	}

	h.logger.Info("payout statement archived",
		zap.String("payout_id", payout.ID.String()),
		zap.String("statement_key", key),
		zap.Int("entries", len(entries)),
	)
	return nil
}

var _ shared.EventHandler = (*PayoutCompletedHandler)(nil)
