// Package handler holds the gin handlers of the payout service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/interfaces/http/dto"
	"github.com/marketplace/payouts/internal/interfaces/http/middleware"
)

func writeOK(c *gin.Context, data any)       { c.JSON(http.StatusOK, dto.OK(data)) }
func writeCreated(c *gin.Context, data any)  { c.JSON(http.StatusCreated, dto.OK(data)) }
func writeAccepted(c *gin.Context, data any) { c.JSON(http.StatusAccepted, dto.OK(data)) }

func writePage(c *gin.Context, items any, total int64, page, size int) {
	c.JSON(http.StatusOK, dto.Page(items, total, page, size))
}

func writeFailure(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.Fail(code, message, middleware.GetRequestID(c)))
}

func writeBadRequest(c *gin.Context, message string) {
	writeFailure(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// writeError maps a domain error to its code and status. Anything else is
// recorded on the gin context and answered with a bare 500, so driver and
// executor messages never reach the client.
func writeError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		writeFailure(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}
	_ = c.Error(err)
	writeFailure(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body and leaves obj untouched
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, obj)
}

func bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// pathID parses the :id parameter; what names the resource in the 400
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeBadRequest(c, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}
