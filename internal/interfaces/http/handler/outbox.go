package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	eventapp "github.com/marketplace/payouts/internal/application/event"
)

// OutboxHandler serves the operator endpoints under /admin/outbox
type OutboxHandler struct {
	outbox OutboxService
}

func NewOutboxHandler(outbox OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// RequeuedResponse is the body of a bulk requeue
type RequeuedResponse struct {
	Count int64 `json:"count"`
}

// Stats handles GET /admin/outbox/stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, stats)
}

// DeadLetters handles GET /admin/outbox/dead
func (h *OutboxHandler) DeadLetters(c *gin.Context) {
	var filter eventapp.OutboxFilter
	if !bindQuery(c, &filter) {
		return
	}
	page, err := h.outbox.DeadLetters(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Entry handles GET /admin/outbox/:id
func (h *OutboxHandler) Entry(c *gin.Context) {
	h.withEntryID(c, h.outbox.Entry)
}

// Requeue handles POST /admin/outbox/dead/:id/retry
func (h *OutboxHandler) Requeue(c *gin.Context) {
	h.withEntryID(c, h.outbox.Requeue)
}

// RequeueAll handles POST /admin/outbox/dead/retry-all
func (h *OutboxHandler) RequeueAll(c *gin.Context) {
	n, err := h.outbox.RequeueAllDead(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, RequeuedResponse{Count: n})
}

func (h *OutboxHandler) withEntryID(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*eventapp.OutboxEntryDTO, error)) {
	id, ok := pathID(c, "entry")
	if !ok {
		return
	}
	entry, err := fn(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, entry)
}
