package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/marketplace/payouts/internal/application/finance"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testReconcileDefault = 30 * time.Minute

func newPayoutRouter(svc *MockPayoutService) *gin.Engine {
	h := NewPayoutHandler(svc, testReconcileDefault)
	r := gin.New()
	r.GET("/payouts", h.ListPayouts)
	r.GET("/payouts/:id", h.GetPayout)
	r.POST("/payouts/:id/executor-result", h.ExecutorResult)
	r.GET("/admin/payouts", h.AdminListPayouts)
	r.GET("/admin/payouts/:id", h.AdminGetPayout)
	r.POST("/admin/payouts/batch", h.CreateBatch)
	r.POST("/admin/payouts/reconcile", h.Reconcile)
	r.POST("/admin/payouts/:id/submit", h.Submit)
	r.POST("/admin/payouts/:id/retry", h.Retry)
	r.POST("/admin/payouts/:id/cancel", h.Cancel)
	return r
}

func failedPayout() finance.Payout {
	p := finance.Payout{
		VendorID:      uuid.New(),
		Currency:      "EUR",
		NetAmount:     9000,
		Status:        finance.PayoutStatusFailed,
		FailureCode:   "ACCOUNT_CLOSED",
		FailureDetail: "bank says: account 1234 closed on 2026-01-02",
		Items:         []finance.PayoutItem{{CommissionEntryID: uuid.New(), CommissionAmount: 9000}},
	}
	p.ID = uuid.New()
	return p
}

func TestPayoutHandler_VendorViewsHideInternals(t *testing.T) {
	payout := failedPayout()
	svc := new(MockPayoutService)
	svc.On("ListPayouts", mock.Anything, financeapp.PayoutListFilter{VendorID: payout.VendorID.String()}).
		Return([]finance.Payout{payout}, int64(1), nil)
	vendorView := financeapp.ToVendorPayoutResponse(&payout)
	svc.On("GetVendorPayout", mock.Anything, payout.ID).Return(&vendorView, nil)
	r := newPayoutRouter(svc)

	w := performRequest(r, http.MethodGet, "/payouts?vendor_id="+payout.VendorID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ACCOUNT_CLOSED")
	assert.NotContains(t, w.Body.String(), "account 1234 closed")
	assert.NotContains(t, w.Body.String(), "attempt_count")

	var list []financeapp.VendorPayoutResponse
	decodeData(t, decodeResponse(t, w), &list)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].EntryCount)

	w = performRequest(r, http.MethodGet, "/payouts/"+payout.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "account 1234 closed")
	svc.AssertExpectations(t)
}

func TestPayoutHandler_AdminViewsShowDetail(t *testing.T) {
	payout := failedPayout()
	svc := new(MockPayoutService)
	svc.On("ListPayouts", mock.Anything, financeapp.PayoutListFilter{Status: "FAILED"}).
		Return([]finance.Payout{payout}, int64(1), nil)
	r := newPayoutRouter(svc)

	w := performRequest(r, http.MethodGet, "/admin/payouts?status=FAILED", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "account 1234 closed")

	w = performRequest(r, http.MethodGet, "/admin/payouts?status=LOST", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayoutHandler_CreateBatch(t *testing.T) {
	vendorID := uuid.New()
	periodEnd := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	body := `{"vendor_id":"` + vendorID.String() + `","period_end":"2026-04-30T00:00:00Z"}`

	t.Run("created", func(t *testing.T) {
		svc := new(MockPayoutService)
		svc.On("CreateBatch", mock.Anything, vendorID, periodEnd).Return(&financeapp.BatchResult{
			VendorID:   vendorID,
			EntryCount: 3,
			Payout:     &financeapp.PayoutResponse{ID: uuid.New(), Status: "PENDING"},
		}, nil)

		w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/batch", body)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("skipped below minimum", func(t *testing.T) {
		svc := new(MockPayoutService)
		svc.On("CreateBatch", mock.Anything, vendorID, periodEnd).Return(&financeapp.BatchResult{
			VendorID: vendorID,
			Skipped:  true,
			Reason:   financeapp.SkipReasonBelowMinimum,
		}, nil)

		w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/batch", body)
		require.Equal(t, http.StatusOK, w.Code)
		var got financeapp.BatchResult
		decodeData(t, decodeResponse(t, w), &got)
		assert.True(t, got.Skipped)
		assert.Equal(t, financeapp.SkipReasonBelowMinimum, got.Reason)
	})

	t.Run("negative net amount", func(t *testing.T) {
		svc := new(MockPayoutService)
		svc.On("CreateBatch", mock.Anything, vendorID, periodEnd).Return(nil, shared.ErrNegativeNetAmount)

		w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/batch", body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeNegativeNetAmount, decodeResponse(t, w).Error.Code)
	})

	t.Run("missing period end", func(t *testing.T) {
		svc := new(MockPayoutService)
		w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/batch", `{"vendor_id":"`+vendorID.String()+`"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPayoutHandler_Lifecycle(t *testing.T) {
	id := uuid.New()
	svc := new(MockPayoutService)
	svc.On("Submit", mock.Anything, id).Return(&financeapp.PayoutResponse{ID: id, Status: "PROCESSING"}, nil)
	svc.On("Retry", mock.Anything, id, true).Return(&financeapp.PayoutResponse{ID: id, Status: "PROCESSING"}, nil)
	svc.On("Cancel", mock.Anything, id, "duplicate").Return(&financeapp.PayoutResponse{ID: id, Status: "CANCELLED"}, nil)
	r := newPayoutRouter(svc)

	assert.Equal(t, http.StatusOK, performRequest(r, http.MethodPost, "/admin/payouts/"+id.String()+"/submit", "").Code)
	assert.Equal(t, http.StatusOK, performRequest(r, http.MethodPost, "/admin/payouts/"+id.String()+"/retry", `{"force":true}`).Code)
	assert.Equal(t, http.StatusOK, performRequest(r, http.MethodPost, "/admin/payouts/"+id.String()+"/cancel", `{"reason":"duplicate"}`).Code)
	svc.AssertExpectations(t)
}

func TestPayoutHandler_SubmitExecutorErrors(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"transient", shared.NewDomainError(shared.CodeExecutorTransient, "Executor unavailable"), http.StatusServiceUnavailable},
		{"permanent", shared.NewDomainError(shared.CodeExecutorPermanent, "Transfer rejected"), http.StatusBadGateway},
		{"wrong state", shared.ErrInvalidStateTransition, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPayoutService)
			svc.On("Submit", mock.Anything, id).Return(nil, tt.err)

			w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/"+id.String()+"/submit", "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestPayoutHandler_Reconcile(t *testing.T) {
	result := &financeapp.ReconcileResult{Checked: 2, Completed: 1, Unresolved: 1}

	t.Run("default age", func(t *testing.T) {
		svc := new(MockPayoutService)
		svc.On("Reconcile", mock.Anything, testReconcileDefault).Return(result, nil)
		w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/reconcile", "")
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("explicit age", func(t *testing.T) {
		svc := new(MockPayoutService)
		svc.On("Reconcile", mock.Anything, 2*time.Hour).Return(result, nil)
		w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/reconcile", `{"older_than":"2h"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("bad duration", func(t *testing.T) {
		svc := new(MockPayoutService)
		w := performRequest(newPayoutRouter(svc), http.MethodPost, "/admin/payouts/reconcile", `{"older_than":"soon"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
	})
}

func TestPayoutHandler_ExecutorResult(t *testing.T) {
	id := uuid.New()
	svc := new(MockPayoutService)
	svc.On("OnExecutorResult", mock.Anything, id, finance.TransferResult{
		Reference:   "tr_42",
		Status:      finance.TransferStatusFailed,
		FailureCode: "ACCOUNT_CLOSED",
		Permanent:   true,
	}).Return(&financeapp.PayoutResponse{ID: id, Status: "FAILED"}, nil)
	r := newPayoutRouter(svc)

	w := performRequest(r, http.MethodPost, "/payouts/"+id.String()+"/executor-result",
		`{"reference":"tr_42","status":"FAILED","failure_code":"ACCOUNT_CLOSED","permanent":true}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodPost, "/payouts/"+id.String()+"/executor-result", `{"status":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNumberOfCalls(t, "OnExecutorResult", 1)
}
