package finance

import (
	"context"
	"fmt"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderCompletedHandler handles OrderCompletedEvent
// and accrues the vendor commission of the completed order line
type OrderCompletedHandler struct {
	commissionService *CommissionService
	logger            *zap.Logger
}

// NewOrderCompletedHandler creates a new handler for order completed events
func NewOrderCompletedHandler(commissionService *CommissionService, logger *zap.Logger) *OrderCompletedHandler {
	return &OrderCompletedHandler{
		commissionService: commissionService,
		logger:            logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderCompletedHandler) EventTypes() []string {
	return []string{finance.EventTypeOrderCompleted}
}

// Handle processes an OrderCompletedEvent by accruing commission
func (h *OrderCompletedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	completed, ok := event.(*finance.OrderCompletedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", finance.EventTypeOrderCompleted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypeOrderCompleted, event.EventType())
	}

	h.logger.Info("processing order completed event for commission accrual",
		zap.String("event_id", completed.EventID().String()),
		zap.String("order_id", completed.OrderID),
		zap.String("order_item_id", completed.OrderItemID),
		zap.String("vendor_id", completed.VendorID.String()),
		zap.Int64("sale_amount", completed.SaleAmount),
	)

	_, _, err := h.commissionService.Accrue(ctx, AccrueCommand{
		OrderID:      completed.OrderID,
		OrderItemID:  completed.OrderItemID,
		VendorID:     completed.VendorID,
		SaleAmount:   completed.SaleAmount,
		Currency:     completed.Currency,
		ProductID:    completed.ProductID,
		ProductTitle: completed.ProductTitle,
		OccurredAt:   completed.OccurredAt(),
	})
	if err != nil {
		h.logger.Error("failed to accrue commission",
			zap.String("order_id", completed.OrderID),
			zap.String("order_item_id", completed.OrderItemID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to accrue commission: %w", err)
	}
	return nil
}

var _ shared.EventHandler = (*OrderCompletedHandler)(nil)
