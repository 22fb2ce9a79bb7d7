package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	financeapp "github.com/marketplace/payouts/internal/application/finance"
)

// CommissionHandler serves the commission ledger
type CommissionHandler struct {
	commissionService CommissionService
	now               func() time.Time
}

// NewCommissionHandler creates a new CommissionHandler
func NewCommissionHandler(commissionService CommissionService) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
		now:               time.Now,
	}
}

// ApproveMaturedResponse reports how many accruals an aging pass approved
type ApproveMaturedResponse struct {
	Approved int       `json:"approved"`
	AsOf     time.Time `json:"as_of"`
}

// Approve handles POST /admin/commissions/:id/approve
func (h *CommissionHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "commission")
	if !ok {
		return
	}

	entry, err := h.commissionService.ApproveForPayout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, entry)
}

// ApproveMatured handles POST /admin/commissions/approve-matured. It runs the
// aging job on demand.
func (h *CommissionHandler) ApproveMatured(c *gin.Context) {
	asOf := h.now()
	approved, err := h.commissionService.ApproveMatured(c.Request.Context(), asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, ApproveMaturedResponse{Approved: approved, AsOf: asOf})
}

// Dispute handles POST /admin/commissions/:id/dispute
func (h *CommissionHandler) Dispute(c *gin.Context) {
	id, ok := pathID(c, "commission")
	if !ok {
		return
	}
	var req financeapp.DisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.commissionService.Dispute(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, result)
}

// GetEntry handles GET /commissions/:id
func (h *CommissionHandler) GetEntry(c *gin.Context) {
	id, ok := pathID(c, "commission")
	if !ok {
		return
	}

	entry, err := h.commissionService.GetEntry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, entry)
}

// ListEntries handles GET /commissions
func (h *CommissionHandler) ListEntries(c *gin.Context) {
	var filter financeapp.CommissionListFilter
	if !bindQuery(c, &filter) {
		return
	}

	entries, total, err := h.commissionService.ListEntries(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, entries, total, filter.Page, filter.PageSize)
}

// GetEarnings handles GET /vendors/:id/earnings
func (h *CommissionHandler) GetEarnings(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	earnings, err := h.commissionService.GetEarnings(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, earnings)
}
