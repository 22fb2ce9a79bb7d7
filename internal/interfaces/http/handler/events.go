package handler

import (
	"github.com/gin-gonic/gin"
	financeapp "github.com/marketplace/payouts/internal/application/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// EventHandler receives order events over HTTP and hands them to the
// subscribers on the event bus
type EventHandler struct {
	dispatcher EventDispatcher
	logger     *zap.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(dispatcher EventDispatcher, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{dispatcher: dispatcher, logger: logger}
}

// EventAcceptedResponse acknowledges an inbound event
type EventAcceptedResponse struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

// OrderCompleted handles POST /events/order-completed
func (h *EventHandler) OrderCompleted(c *gin.Context) {
	var req financeapp.OrderCompletedRequest
	if !bindJSON(c, &req) {
		return
	}
	h.dispatch(c, req.ToEvent())
}

// ReturnOrChargeback handles POST /events/return-or-chargeback
func (h *EventHandler) ReturnOrChargeback(c *gin.Context) {
	var req financeapp.ReturnOrChargebackRequest
	if !bindJSON(c, &req) {
		return
	}
	h.dispatch(c, req.ToEvent())
}

// dispatch answers 202 once every subscriber handled the event. Any failure
// is returned so the producer redelivers.
func (h *EventHandler) dispatch(c *gin.Context, event shared.DomainEvent) {
	if err := h.dispatcher.Dispatch(c.Request.Context(), event); err != nil {
		h.logger.Warn("Inbound event rejected",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}
	writeAccepted(c, EventAcceptedResponse{
		EventID:   event.EventID().String(),
		EventType: event.EventType(),
	})
}
