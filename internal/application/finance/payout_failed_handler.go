package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// PayoutFailedHandler handles PayoutFailedEvent and raises an operator
// review when no automatic retry will follow
type PayoutFailedHandler struct {
	payoutRepo finance.PayoutRepository
	queue      finance.OperatorQueue
	logger     *zap.Logger
}

// NewPayoutFailedHandler creates a new handler for payout failed events
func NewPayoutFailedHandler(payoutRepo finance.PayoutRepository, queue finance.OperatorQueue, logger *zap.Logger) *PayoutFailedHandler {
	return &PayoutFailedHandler{
		payoutRepo: payoutRepo,
		queue:      queue,
		logger:     logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *PayoutFailedHandler) EventTypes() []string {
	return []string{finance.EventTypePayoutFailed}
}

// Handle processes a PayoutFailedEvent
func (h *PayoutFailedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	failed, ok := event.(*finance.PayoutFailedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypePayoutFailed, event.EventType())
	}
	if !failed.Permanent && failed.NextRetryAt != nil {
		return nil
	}

	payout, err := h.payoutRepo.FindByID(ctx, failed.PayoutID)
	if err != nil {
		return fmt.Errorf("failed to load payout: %w", err)
	}
	// A later attempt may already have moved the payout on
	if payout.Status != finance.PayoutStatusFailed || payout.AttemptCount != failed.Attempts {
		return nil
	}

	kind := finance.ReviewKindRetriesExhausted
	reason := fmt.Sprintf("Transfer failed %d times, last with %s", payout.AttemptCount, payout.FailureCode)
	if failed.Permanent {
		kind = finance.ReviewKindPermanentFailure
		reason = fmt.Sprintf("Transfer rejected permanently with %s: %s", payout.FailureCode, payout.FailureDetail)
	}

	if err := h.queue.Enqueue(ctx, finance.ReviewItemForPayout(kind, payout, reason, time.Now().UTC())); err != nil {
		h.logger.Error("failed to enqueue payout review",
			zap.String("payout_id", payout.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to enqueue payout review: %w", err)
	}

	h.logger.Warn("payout raised for operator review",
		zap.String("payout_id", payout.ID.String()),
		zap.String("vendor_id", payout.VendorID.String()),
		zap.String("kind", string(kind)),
	)
	return nil
}

var _ shared.EventHandler = (*PayoutFailedHandler)(nil)
