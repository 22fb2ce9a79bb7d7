package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEventRouter(d *MockDispatcher) *gin.Engine {
	h := NewEventHandler(d, zap.NewNop())
	r := gin.New()
	r.POST("/events/order-completed", h.OrderCompleted)
	r.POST("/events/return-or-chargeback", h.ReturnOrChargeback)
	return r
}

func TestEventHandler_OrderCompleted(t *testing.T) {
	eventID := uuid.New()
	vendorID := uuid.New()
	d := new(MockDispatcher)
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(e shared.DomainEvent) bool {
		ev, ok := e.(*finance.OrderCompletedEvent)
		return ok && ev.EventID() == eventID && ev.VendorID == vendorID &&
			ev.OrderItemID == "line-1" && ev.SaleAmount == 10000 && ev.ProductTitle == "Lamp"
	})).Return(nil)

	body := `{"event_id":"` + eventID.String() + `","order_id":"o-1","order_item_id":"line-1","vendor_id":"` +
		vendorID.String() + `","sale_amount":10000,"product_title":"Lamp","occurred_at":"2026-04-01T10:00:00Z"}`
	w := performRequest(newEventRouter(d), http.MethodPost, "/events/order-completed", body)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var got EventAcceptedResponse
	decodeData(t, decodeResponse(t, w), &got)
	assert.Equal(t, eventID.String(), got.EventID)
	assert.Equal(t, finance.EventTypeOrderCompleted, got.EventType)
	d.AssertExpectations(t)
}

func TestEventHandler_OrderCompleted_Invalid(t *testing.T) {
	d := new(MockDispatcher)
	r := newEventRouter(d)

	w := performRequest(r, http.MethodPost, "/events/order-completed", `{"order_id":"o-1","sale_amount":-5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/events/order-completed", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)

	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestEventHandler_DispatchErrors(t *testing.T) {
	body := `{"order_id":"o-1","order_item_id":"line-1","vendor_id":"` + uuid.New().String() + `","sale_amount":100}`

	t.Run("domain error keeps its status", func(t *testing.T) {
		d := new(MockDispatcher)
		d.On("Dispatch", mock.Anything, mock.Anything).Return(shared.ErrVendorNotEligible)

		w := performRequest(newEventRouter(d), http.MethodPost, "/events/order-completed", body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("infrastructure error asks for redelivery", func(t *testing.T) {
		d := new(MockDispatcher)
		d.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("database is down"))

		w := performRequest(newEventRouter(d), http.MethodPost, "/events/order-completed", body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "database is down")
	})
}

func TestEventHandler_ReturnOrChargeback(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(e shared.DomainEvent) bool {
		ev, ok := e.(*finance.ReturnOrChargebackEvent)
		return ok && ev.OrderID == "o-1" && ev.OrderItemID == "line-1" && ev.Reason == "chargeback"
	})).Return(nil)

	w := performRequest(newEventRouter(d), http.MethodPost, "/events/return-or-chargeback",
		`{"order_id":"o-1","order_item_id":"line-1","reason":"chargeback"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	d.AssertExpectations(t)
}
