package handler

import (
	"github.com/gin-gonic/gin"
	partnerapp "github.com/marketplace/payouts/internal/application/partner"
)

// VendorHandler serves the vendor registry
type VendorHandler struct {
	vendorService VendorService
}

// NewVendorHandler creates a new VendorHandler
func NewVendorHandler(vendorService VendorService) *VendorHandler {
	return &VendorHandler{vendorService: vendorService}
}

// Register handles POST /admin/vendors
func (h *VendorHandler) Register(c *gin.Context) {
	var req partnerapp.RegisterVendorRequest
	if !bindJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.RegisterVendor(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeCreated(c, vendor)
}

// Approve handles POST /admin/vendors/:id/approve
func (h *VendorHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	vendor, err := h.vendorService.Approve(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vendor)
}

// Suspend handles POST /admin/vendors/:id/suspend
func (h *VendorHandler) Suspend(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}
	var req partnerapp.StatusChangeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.Suspend(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vendor)
}

// Reject handles POST /admin/vendors/:id/reject
func (h *VendorHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}
	var req partnerapp.StatusChangeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vendor)
}

// UpdatePolicy handles PUT /admin/vendors/:id/policy. The new policy applies
// to accruals from now on; existing entries keep their snapshot.
func (h *VendorHandler) UpdatePolicy(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}
	var req partnerapp.PolicyRequest
	if !bindJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.UpdatePolicy(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vendor)
}

// UpdateBankDetails handles PUT /admin/vendors/:id/bank
func (h *VendorHandler) UpdateBankDetails(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}
	var req partnerapp.BankDetailsRequest
	if !bindJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.UpdateBankDetails(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vendor)
}

// GetVendor handles GET /vendors/:id
func (h *VendorHandler) GetVendor(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	vendor, err := h.vendorService.GetVendor(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vendor)
}

// GetPolicy handles GET /vendors/:id/policy
func (h *VendorHandler) GetPolicy(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	policy, err := h.vendorService.GetPolicy(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, policy)
}

// ListVendors handles GET /vendors
func (h *VendorHandler) ListVendors(c *gin.Context) {
	var filter partnerapp.VendorListFilter
	if !bindQuery(c, &filter) {
		return
	}

	vendors, total, err := h.vendorService.ListVendors(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, vendors, total, filter.Page, filter.PageSize)
}
