package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	financeapp "github.com/marketplace/payouts/internal/application/finance"
)

// PayoutHandler serves payouts: the vendor-safe read model, the operator
// console and the executor callback
type PayoutHandler struct {
	payoutService    PayoutService
	reconcileDefault time.Duration
}

// NewPayoutHandler creates a new PayoutHandler. reconcileDefault applies when
// a reconcile request names no age.
func NewPayoutHandler(payoutService PayoutService, reconcileDefault time.Duration) *PayoutHandler {
	return &PayoutHandler{
		payoutService:    payoutService,
		reconcileDefault: reconcileDefault,
	}
}

// ListPayouts handles GET /payouts with the vendor-safe view
func (h *PayoutHandler) ListPayouts(c *gin.Context) {
	var filter financeapp.PayoutListFilter
	if !bindQuery(c, &filter) {
		return
	}

	payouts, total, err := h.payoutService.ListPayouts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, financeapp.ToVendorPayoutResponses(payouts), total, filter.Page, filter.PageSize)
}

// GetPayout handles GET /payouts/:id with the vendor-safe view
func (h *PayoutHandler) GetPayout(c *gin.Context) {
	id, ok := pathID(c, "payout")
	if !ok {
		return
	}

	payout, err := h.payoutService.GetVendorPayout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, payout)
}

// AdminListPayouts handles GET /admin/payouts with the operator view
func (h *PayoutHandler) AdminListPayouts(c *gin.Context) {
	var filter financeapp.PayoutListFilter
	if !bindQuery(c, &filter) {
		return
	}

	payouts, total, err := h.payoutService.ListPayouts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, financeapp.ToPayoutResponses(payouts), total, filter.Page, filter.PageSize)
}

// AdminGetPayout handles GET /admin/payouts/:id with the operator view
func (h *PayoutHandler) AdminGetPayout(c *gin.Context) {
	id, ok := pathID(c, "payout")
	if !ok {
		return
	}

	payout, err := h.payoutService.GetPayout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, payout)
}

// CreateBatch handles POST /admin/payouts/batch. A skipped batch is a 200
// carrying the skip reason; a created payout is a 201.
func (h *PayoutHandler) CreateBatch(c *gin.Context) {
	var req financeapp.CreateBatchRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.payoutService.CreateBatch(c.Request.Context(), req.VendorID, req.PeriodEnd)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.Skipped {
		writeOK(c, result)
		return
	}
	writeCreated(c, result)
}

// Submit handles POST /admin/payouts/:id/submit
func (h *PayoutHandler) Submit(c *gin.Context) {
	id, ok := pathID(c, "payout")
	if !ok {
		return
	}

	payout, err := h.payoutService.Submit(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, payout)
}

// Retry handles POST /admin/payouts/:id/retry
func (h *PayoutHandler) Retry(c *gin.Context) {
	id, ok := pathID(c, "payout")
	if !ok {
		return
	}
	var req financeapp.RetryPayoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	payout, err := h.payoutService.Retry(c.Request.Context(), id, req.Force)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, payout)
}

// Cancel handles POST /admin/payouts/:id/cancel
func (h *PayoutHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "payout")
	if !ok {
		return
	}
	var req financeapp.CancelPayoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	payout, err := h.payoutService.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, payout)
}

// Reconcile handles POST /admin/payouts/reconcile
func (h *PayoutHandler) Reconcile(c *gin.Context) {
	var req financeapp.ReconcileRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	olderThan := h.reconcileDefault
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil || d < 0 {
			writeBadRequest(c, "older_than must be a non-negative duration such as 30m")
			return
		}
		olderThan = d
	}

	result, err := h.payoutService.Reconcile(c.Request.Context(), olderThan)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, result)
}

// ExecutorResult handles POST /payouts/:id/executor-result, the callback the
// payout executor makes once a transfer settles. Replays of a result the
// payout already reflects are accepted.
func (h *PayoutHandler) ExecutorResult(c *gin.Context) {
	id, ok := pathID(c, "payout")
	if !ok {
		return
	}
	var req financeapp.ExecutorResultRequest
	if !bindJSON(c, &req) {
		return
	}

	payout, err := h.payoutService.OnExecutorResult(c.Request.Context(), id, req.ToResult())
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, payout)
}
