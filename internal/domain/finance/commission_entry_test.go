package finance

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func percentageTerms(rate string) CommissionTerms {
	return CommissionTerms{Type: CommissionTypePercentage, Rate: decimal.RequireFromString(rate)}
}

func newTestAccrual(t *testing.T, vendorID uuid.UUID, sale int64) *CommissionEntry {
	t.Helper()
	e, err := NewAccrual(AccrualInput{
		VendorID:    vendorID,
		OrderID:     "ord-1",
		OrderItemID: uuid.NewString(),
		SaleAmount:  sale,
		Terms:       percentageTerms("0.10"),
		AccruedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return e
}

func TestCommissionTerms_Compute(t *testing.T) {
	tests := []struct {
		name  string
		terms CommissionTerms
		sale  int64
		want  int64
	}{
		{"ten percent", percentageTerms("0.10"), 10000, 1000},
		{"rounds half up", percentageTerms("0.15"), 333, 50},
		{"half a minor unit", percentageTerms("0.10"), 5, 1},
		{"rounds down below half", percentageTerms("0.12"), 104, 12},
		{"zero sale", percentageTerms("0.10"), 0, 0},
		{"full rate", percentageTerms("1"), 777, 777},
		{"fixed", CommissionTerms{Type: CommissionTypeFixed, Rate: decimal.NewFromInt(250)}, 10000, 250},
		{"fixed clamped to sale", CommissionTerms{Type: CommissionTypeFixed, Rate: decimal.NewFromInt(500)}, 300, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.terms.Compute(tt.sale))
		})
	}
}

func TestNewAccrual(t *testing.T) {
	vendorID := uuid.New()
	e := newTestAccrual(t, vendorID, 12345)

	assert.Equal(t, CommissionStatusPending, e.Status)
	assert.Equal(t, EntryKindAccrual, e.Kind)
	assert.Equal(t, int64(1235), e.CommissionAmount)
	assert.Equal(t, "USD", e.Currency.String())
	assert.Nil(t, e.PayoutID)
	assert.True(t, e.AmountWithinBounds())
	require.Len(t, e.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeCommissionAccrued, e.GetDomainEvents()[0].EventType())
}

func TestNewAccrual_Validation(t *testing.T) {
	base := func() AccrualInput {
		return AccrualInput{
			VendorID:    uuid.New(),
			OrderID:     "ord-1",
			OrderItemID: "line-1",
			SaleAmount:  100,
			Terms:       percentageTerms("0.10"),
		}
	}
	tests := []struct {
		name   string
		mutate func(in *AccrualInput)
	}{
		{"negative sale", func(in *AccrualInput) { in.SaleAmount = -1 }},
		{"missing vendor", func(in *AccrualInput) { in.VendorID = uuid.Nil }},
		{"missing order", func(in *AccrualInput) { in.OrderID = "" }},
		{"missing order item", func(in *AccrualInput) { in.OrderItemID = "" }},
		{"order ref too long", func(in *AccrualInput) { in.OrderID = string(make([]byte, 65)) }},
		{"zero rate", func(in *AccrualInput) { in.Terms = percentageTerms("0") }},
		{"rate above one", func(in *AccrualInput) { in.Terms = percentageTerms("1.01") }},
		{"unknown type", func(in *AccrualInput) { in.Terms.Type = "TIERED" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(&in)
			_, err := NewAccrual(in)
			require.Error(t, err)
			assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
		})
	}
}

func TestNewAccrual_CharacterLimits(t *testing.T) {
	in := AccrualInput{
		VendorID:     uuid.New(),
		OrderID:      strings.Repeat("ü", 64),
		OrderItemID:  "line-1",
		ProductTitle: "a" + strings.Repeat("€", 300),
		SaleAmount:   100,
		Terms:        percentageTerms("0.10"),
	}
	e, err := NewAccrual(in)
	require.NoError(t, err, "64 two-byte characters fit the order id column")
	assert.True(t, utf8.ValidString(e.ProductTitle))
	assert.Equal(t, 300, utf8.RuneCountInString(e.ProductTitle))
	assert.Equal(t, "a"+strings.Repeat("€", 299), e.ProductTitle)

	in.ProductTitle = "a" + strings.Repeat("€", 100)
	e, err = NewAccrual(in)
	require.NoError(t, err)
	assert.Equal(t, in.ProductTitle, e.ProductTitle, "titles under the limit are kept whole")

	in.OrderID = strings.Repeat("ü", 65)
	_, err = NewAccrual(in)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
	assert.Equal(t, "", truncateRunes("語", 0))
}

func TestCommissionLifecycle_AllPairs(t *testing.T) {
	states := []CommissionStatus{CommissionStatusPending, CommissionStatusApproved, CommissionStatusPaid, CommissionStatusDisputed}
	events := []CommissionEvent{CommissionEventApprove, CommissionEventPay, CommissionEventDispute}
	legal := map[CommissionStatus]map[CommissionEvent]CommissionStatus{
		CommissionStatusPending: {
			CommissionEventApprove: CommissionStatusApproved,
			CommissionEventDispute: CommissionStatusDisputed,
		},
		CommissionStatusApproved: {
			CommissionEventPay:     CommissionStatusPaid,
			CommissionEventDispute: CommissionStatusDisputed,
		},
	}

	for _, s := range states {
		for _, ev := range events {
			next, err := CommissionLifecycle.Next(s, ev)
			if want, ok := legal[s][ev]; ok {
				require.NoError(t, err, "%s --%s-->", s, ev)
				assert.Equal(t, want, next)
			} else {
				assert.ErrorIs(t, err, shared.ErrInvalidStateTransition, "%s --%s-->", s, ev)
			}
		}
	}
}

func TestCommissionEntry_ApproveAndPay(t *testing.T) {
	e := newTestAccrual(t, uuid.New(), 1000)
	now := time.Now()

	require.NoError(t, e.Approve(now))
	assert.Equal(t, CommissionStatusApproved, e.Status)
	assert.True(t, e.IsEligibleForPayout())

	err := e.Approve(now)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)

	err = e.MarkPaid(now)
	require.Error(t, err, "unlinked entries cannot be paid")

	payoutID := uuid.New()
	e.PayoutID = &payoutID
	assert.False(t, e.IsEligibleForPayout())
	require.NoError(t, e.MarkPaid(now))
	assert.Equal(t, CommissionStatusPaid, e.Status)
	assert.NotNil(t, e.PaidAt)
}

func TestCommissionEntry_Dispute(t *testing.T) {
	now := time.Now()

	t.Run("pending moves to disputed", func(t *testing.T) {
		e := newTestAccrual(t, uuid.New(), 1000)
		outcome, err := e.Dispute("return", now)
		require.NoError(t, err)
		assert.Equal(t, DisputeOutcomeDisputed, outcome)
		assert.Equal(t, CommissionStatusDisputed, e.Status)
		assert.Equal(t, "return", e.DisputeReason)

		outcome, err = e.Dispute("again", now)
		require.NoError(t, err)
		assert.Equal(t, DisputeOutcomeUnchanged, outcome)
		assert.Equal(t, "return", e.DisputeReason)
	})

	t.Run("approved and unlinked moves to disputed", func(t *testing.T) {
		e := newTestAccrual(t, uuid.New(), 1000)
		require.NoError(t, e.Approve(now))
		outcome, err := e.Dispute("chargeback", now)
		require.NoError(t, err)
		assert.Equal(t, DisputeOutcomeDisputed, outcome)
		assert.False(t, e.IsEligibleForPayout())
	})

	t.Run("approved and linked is deferred", func(t *testing.T) {
		e := newTestAccrual(t, uuid.New(), 1000)
		require.NoError(t, e.Approve(now))
		payoutID := uuid.New()
		e.PayoutID = &payoutID
		e.ClearDomainEvents()

		outcome, err := e.Dispute("return", now)
		require.NoError(t, err)
		assert.Equal(t, DisputeOutcomeDeferred, outcome)
		assert.Equal(t, CommissionStatusApproved, e.Status)
		assert.True(t, e.HasDeferredDispute())
		require.Len(t, e.GetDomainEvents(), 1)

		outcome, err = e.Dispute("return", now)
		require.NoError(t, err)
		assert.Equal(t, DisputeOutcomeDeferred, outcome)
		assert.Len(t, e.GetDomainEvents(), 1, "repeated deferral records nothing new")
	})

	t.Run("paid needs a reversal", func(t *testing.T) {
		e := newTestAccrual(t, uuid.New(), 1000)
		require.NoError(t, e.Approve(now))
		payoutID := uuid.New()
		e.PayoutID = &payoutID
		require.NoError(t, e.MarkPaid(now))

		outcome, err := e.Dispute("chargeback", now)
		require.NoError(t, err)
		assert.Equal(t, DisputeOutcomeReversal, outcome)
		assert.Equal(t, CommissionStatusPaid, e.Status, "paid entries are never mutated")
	})
}

func TestNewReversal(t *testing.T) {
	now := time.Now()
	original := newTestAccrual(t, uuid.New(), 2000)

	_, err := NewReversal(original, "chargeback", now)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)

	require.NoError(t, original.Approve(now))
	payoutID := uuid.New()
	original.PayoutID = &payoutID
	require.NoError(t, original.MarkPaid(now))

	rev, err := NewReversal(original, "chargeback", now)
	require.NoError(t, err)
	assert.Equal(t, EntryKindReversal, rev.Kind)
	assert.Equal(t, CommissionStatusApproved, rev.Status)
	assert.Equal(t, int64(-2000), rev.SaleAmount)
	assert.Equal(t, int64(-200), rev.CommissionAmount)
	assert.Equal(t, original.ID, *rev.ReversalOf)
	assert.Equal(t, original.OrderItemID, rev.OrderItemID)
	assert.Nil(t, rev.PayoutID)
	assert.True(t, rev.IsEligibleForPayout())
	assert.True(t, rev.AmountWithinBounds())

	_, err = NewReversal(rev, "again", now)
	assert.Error(t, err, "reversals are not reversed")

	_, err = rev.Dispute("again", now)
	assert.Error(t, err)
}
