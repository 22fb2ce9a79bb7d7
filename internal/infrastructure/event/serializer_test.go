package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serializerTestEvent is a test event for serializer tests
type serializerTestEvent struct {
	shared.BaseDomainEvent
	Data    string `json:"data"`
	Counter int    `json:"counter"`
}

func newSerializerTestEvent() *serializerTestEvent {
	return &serializerTestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SerializerTestEvent", "TestAggregate", uuid.New()),
		Data:            "test data",
		Counter:         42,
	}
}

type otherSerializerEvent struct {
	shared.BaseDomainEvent
}

func TestEventSerializer_Register(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("SerializerTestEvent", &serializerTestEvent{})
	serializer.Register("AnotherName", &serializerTestEvent{})

	assert.True(t, serializer.IsRegistered("SerializerTestEvent"))
	assert.False(t, serializer.IsRegistered("UnknownEvent"))
	assert.Equal(t, []string{"AnotherName", "SerializerTestEvent"}, serializer.RegisteredTypes())

	assert.NotPanics(t, func() {
		serializer.Register("SerializerTestEvent", &serializerTestEvent{})
	}, "re-registering the same type is harmless")
	assert.PanicsWithValue(t,
		"event type SerializerTestEvent already registered as event.serializerTestEvent",
		func() { serializer.Register("SerializerTestEvent", &otherSerializerEvent{}) },
	)
}

func TestEventSerializer_Serialize(t *testing.T) {
	serializer := NewEventSerializer()

	data, err := serializer.Serialize(newSerializerTestEvent())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data":"test data"`)
	assert.Contains(t, string(data), `"counter":42`)
	assert.Contains(t, string(data), `"type":"SerializerTestEvent"`)

	_, err = serializer.Serialize(nil)
	assert.Error(t, err)
}

func TestEventSerializer_Deserialize(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("SerializerTestEvent", &serializerTestEvent{})

	original := &serializerTestEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:        uuid.New(),
			Type:      "SerializerTestEvent",
			Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			AggID:     uuid.New(),
			AggType:   "Payout",
		},
		Data:    "important data",
		Counter: 99,
	}
	data, err := serializer.Serialize(original)
	require.NoError(t, err)

	decoded, err := serializer.Deserialize("SerializerTestEvent", data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEventSerializer_DeserializeErrors(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("SerializerTestEvent", &serializerTestEvent{})
	serializer.Register("PayoutFailed", &serializerTestEvent{})

	tests := []struct {
		name      string
		eventType string
		data      string
		wantErr   string
	}{
		{"unknown type", "UnknownEvent", `{}`, "unknown event type: UnknownEvent"},
		{"invalid json", "SerializerTestEvent", `invalid json`, "failed to unmarshal SerializerTestEvent"},
		{"payload type mismatch", "PayoutFailed", `{"type":"SerializerTestEvent"}`, "payload is a SerializerTestEvent event, expected PayoutFailed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serializer.Deserialize(tt.eventType, []byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("payload without a type name is accepted", func(t *testing.T) {
		decoded, err := serializer.Deserialize("PayoutFailed", []byte(`{"data":"legacy row"}`))
		require.NoError(t, err)
		assert.Equal(t, "legacy row", decoded.(*serializerTestEvent).Data)
	})
}

func TestRegisterAllEvents(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	for _, eventType := range []string{
		partner.EventTypeVendorRegistered,
		partner.EventTypeVendorStatusChanged,
		partner.EventTypeVendorPolicyChanged,
		finance.EventTypeCommissionAccrued,
		finance.EventTypeCommissionApproved,
		finance.EventTypeCommissionDisputed,
		finance.EventTypeCommissionReversed,
		finance.EventTypePayoutCreated,
		finance.EventTypePayoutSubmitted,
		finance.EventTypePayoutCompleted,
		finance.EventTypePayoutFailed,
		finance.EventTypePayoutCancelled,
		finance.EventTypeOrderCompleted,
		finance.EventTypeReturnOrChargeback,
	} {
		assert.True(t, serializer.IsRegistered(eventType), eventType)
	}
	assert.Len(t, serializer.RegisteredTypes(), 14)
}

func TestEventSerializer_RoundTrip_OrderCompleted(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	eventID := uuid.New()
	original := finance.NewOrderCompletedEvent(eventID, "order-77", "line-2", uuid.New(), 4999,
		time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	original.ProductTitle = "Ceramic mug"

	data, err := serializer.Serialize(original)
	require.NoError(t, err)

	decoded, err := serializer.Deserialize(finance.EventTypeOrderCompleted, data)
	require.NoError(t, err)

	event, ok := decoded.(*finance.OrderCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, eventID, event.EventID())
	assert.Equal(t, "order-77", event.OrderID)
	assert.Equal(t, int64(4999), event.SaleAmount)
	assert.Equal(t, "Ceramic mug", event.ProductTitle)
	assert.True(t, original.OccurredAt().Equal(event.OccurredAt()))
}
