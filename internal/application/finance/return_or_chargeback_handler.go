package finance

import (
	"context"
	"fmt"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// ReturnOrChargebackHandler handles ReturnOrChargebackEvent
// and disputes the commission of the affected order line
type ReturnOrChargebackHandler struct {
	commissionService *CommissionService
	logger            *zap.Logger
}

// NewReturnOrChargebackHandler creates a new handler for return and chargeback events
func NewReturnOrChargebackHandler(commissionService *CommissionService, logger *zap.Logger) *ReturnOrChargebackHandler {
	return &ReturnOrChargebackHandler{
		commissionService: commissionService,
		logger:            logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *ReturnOrChargebackHandler) EventTypes() []string {
	return []string{finance.EventTypeReturnOrChargeback}
}

// Handle processes a ReturnOrChargebackEvent by disputing the order line
func (h *ReturnOrChargebackHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	returned, ok := event.(*finance.ReturnOrChargebackEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", finance.EventTypeReturnOrChargeback),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypeReturnOrChargeback, event.EventType())
	}

	result, err := h.commissionService.DisputeOrderLine(ctx, returned.OrderID, returned.OrderItemID, returned.Reason)
	if err != nil {
		h.logger.Error("failed to dispute commission",
			zap.String("order_id", returned.OrderID),
			zap.String("order_item_id", returned.OrderItemID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to dispute commission: %w", err)
	}

	h.logger.Info("order line disputed",
		zap.String("order_id", returned.OrderID),
		zap.String("order_item_id", returned.OrderItemID),
		zap.String("outcome", result.Outcome),
	)
	return nil
}

var _ shared.EventHandler = (*ReturnOrChargebackHandler)(nil)
