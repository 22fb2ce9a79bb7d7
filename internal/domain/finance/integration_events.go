package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
)

// Inbound integration events from the order system
const (
	AggregateTypeOrder          = "Order"
	EventTypeOrderCompleted     = "OrderCompleted"
	EventTypeReturnOrChargeback = "ReturnOrChargeback"
)

// OrderCompletedEvent reports a completed order line. It is delivered at
// least once; accrual is idempotent on (OrderID, OrderItemID).
type OrderCompletedEvent struct {
	shared.BaseDomainEvent
	OrderID      string    `json:"order_id"`
	OrderItemID  string    `json:"order_item_id"`
	VendorID     uuid.UUID `json:"vendor_id"`
	SaleAmount   int64     `json:"sale_amount"`
	Currency     string    `json:"currency,omitempty"`
	ProductID    string    `json:"product_id,omitempty"`
	ProductTitle string    `json:"product_title,omitempty"`
}

// NewOrderCompletedEvent wraps an order line completion. eventID is the
// producer's id and may be uuid.Nil.
func NewOrderCompletedEvent(eventID uuid.UUID, orderID, orderItemID string, vendorID uuid.UUID, saleAmount int64, occurredAt time.Time) *OrderCompletedEvent {
	return &OrderCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEventWithID(eventID, EventTypeOrderCompleted, AggregateTypeOrder, vendorID, occurredAt),
		OrderID:         orderID,
		OrderItemID:     orderItemID,
		VendorID:        vendorID,
		SaleAmount:      saleAmount,
	}
}

// ReturnOrChargebackEvent reports that an order line was returned or charged back
type ReturnOrChargebackEvent struct {
	shared.BaseDomainEvent
	OrderID     string `json:"order_id"`
	OrderItemID string `json:"order_item_id"`
	Reason      string `json:"reason"`
}

// NewReturnOrChargebackEvent wraps a return or chargeback notification
func NewReturnOrChargebackEvent(eventID uuid.UUID, orderID, orderItemID, reason string, occurredAt time.Time) *ReturnOrChargebackEvent {
	return &ReturnOrChargebackEvent{
		BaseDomainEvent: shared.NewBaseDomainEventWithID(eventID, EventTypeReturnOrChargeback, AggregateTypeOrder, uuid.Nil, occurredAt),
		OrderID:         orderID,
		OrderItemID:     orderItemID,
		Reason:          reason,
	}
}
