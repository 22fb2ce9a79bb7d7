package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CommissionEntryModel is the persistence model for a commission ledger line.
// The unique order line index is what makes accrual idempotent.
type CommissionEntryModel struct {
	AggregateModel
	VendorID           uuid.UUID                `gorm:"type:uuid;not null;index:idx_commission_vendor_status,priority:1"`
	OrderID            string                   `gorm:"type:varchar(64);not null;uniqueIndex:idx_commission_order_line,priority:1"`
	OrderItemID        string                   `gorm:"type:varchar(64);not null;uniqueIndex:idx_commission_order_line,priority:2"`
	Kind               finance.EntryKind        `gorm:"type:varchar(20);not null;uniqueIndex:idx_commission_order_line,priority:3"`
	ProductID          string                   `gorm:"type:varchar(64)"`
	ProductTitle       string                   `gorm:"type:varchar(300)"`
	ReversalOf         *uuid.UUID               `gorm:"type:uuid"`
	SaleAmount         int64                    `gorm:"not null"`
	CommissionAmount   int64                    `gorm:"not null"`
	CommissionType     finance.CommissionType   `gorm:"type:varchar(20);not null"`
	CommissionRate     decimal.Decimal          `gorm:"type:decimal(18,6);not null"`
	Currency           string                   `gorm:"type:varchar(3);not null"`
	Status             finance.CommissionStatus `gorm:"type:varchar(20);not null;index:idx_commission_vendor_status,priority:2"`
	PayoutID           *uuid.UUID               `gorm:"type:uuid;index"`
	AccruedAt          time.Time                `gorm:"not null;index"`
	ApprovedAt         *time.Time
	PaidAt             *time.Time
	DisputedAt         *time.Time
	DisputeReason      string `gorm:"type:text"`
	DisputeRequestedAt *time.Time
}

// TableName returns the table name for GORM
func (CommissionEntryModel) TableName() string {
	return "commission_entries"
}

// ToDomain converts the persistence model to a domain CommissionEntry
func (m *CommissionEntryModel) ToDomain() *finance.CommissionEntry {
	return &finance.CommissionEntry{
		BaseAggregateRoot: m.ToAggregateRoot(),
		VendorID:          m.VendorID,
		OrderID:           m.OrderID,
		OrderItemID:       m.OrderItemID,
		ProductID:         m.ProductID,
		ProductTitle:      m.ProductTitle,
		Kind:              m.Kind,
		ReversalOf:        m.ReversalOf,
		SaleAmount:        m.SaleAmount,
		CommissionAmount:  m.CommissionAmount,
		Terms: finance.CommissionTerms{
			Type: m.CommissionType,
			Rate: m.CommissionRate,
		},
		Currency:           valueobject.Currency(m.Currency),
		Status:             m.Status,
		PayoutID:           m.PayoutID,
		AccruedAt:          m.AccruedAt,
		ApprovedAt:         m.ApprovedAt,
		PaidAt:             m.PaidAt,
		DisputedAt:         m.DisputedAt,
		DisputeReason:      m.DisputeReason,
		DisputeRequestedAt: m.DisputeRequestedAt,
	}
}

// FromDomain populates the persistence model from a domain CommissionEntry
func (m *CommissionEntryModel) FromDomain(e *finance.CommissionEntry) {
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	m.VendorID = e.VendorID
	m.OrderID = e.OrderID
	m.OrderItemID = e.OrderItemID
	m.Kind = e.Kind
	m.ProductID = e.ProductID
	m.ProductTitle = e.ProductTitle
	m.ReversalOf = e.ReversalOf
	m.SaleAmount = e.SaleAmount
	m.CommissionAmount = e.CommissionAmount
	m.CommissionType = e.Terms.Type
	m.CommissionRate = e.Terms.Rate
	m.Currency = e.Currency.String()
	m.Status = e.Status
	m.PayoutID = e.PayoutID
	m.AccruedAt = e.AccruedAt
	m.ApprovedAt = e.ApprovedAt
	m.PaidAt = e.PaidAt
	m.DisputedAt = e.DisputedAt
	m.DisputeReason = e.DisputeReason
	m.DisputeRequestedAt = e.DisputeRequestedAt
}

// CommissionEntryModelFromDomain creates a new persistence model from a domain CommissionEntry
func CommissionEntryModelFromDomain(e *finance.CommissionEntry) *CommissionEntryModel {
	m := &CommissionEntryModel{}
	m.FromDomain(e)
	return m
}

// PayoutModel is the persistence model for the Payout aggregate.
// The frozen commission set is stored separately in payout_items.
type PayoutModel struct {
	AggregateModel
	VendorID          uuid.UUID            `gorm:"type:uuid;not null;index:idx_payouts_vendor_period,priority:1"`
	PeriodStart       time.Time            `gorm:"not null;index:idx_payouts_vendor_period,priority:2"`
	PeriodEnd         time.Time            `gorm:"not null;index:idx_payouts_vendor_period,priority:3"`
	Currency          string               `gorm:"type:varchar(3);not null"`
	CommissionTotal   int64                `gorm:"not null"`
	FeesDeducted      int64                `gorm:"not null;default:0"`
	TaxDeducted       int64                `gorm:"not null;default:0"`
	NetAmount         int64                `gorm:"not null"`
	Status            finance.PayoutStatus `gorm:"type:varchar(20);not null;index:idx_payouts_vendor_period,priority:4"`
	AttemptCount      int                  `gorm:"not null;default:0"`
	ExecutorReference string               `gorm:"type:varchar(128)"`
	SubmittedAt       *time.Time
	CompletedAt       *time.Time
	FailedAt          *time.Time
	CancelledAt       *time.Time
	NextRetryAt       *time.Time `gorm:"index"`
	FailureCode       string     `gorm:"type:varchar(50)"`
	FailureDetail     string     `gorm:"type:text"`
	PermanentFailure  bool       `gorm:"not null;default:false"`
	StatementKey      string     `gorm:"type:varchar(512)"`
}

// TableName returns the table name for GORM
func (PayoutModel) TableName() string {
	return "payouts"
}

// ToDomain converts the persistence model and its items to a domain Payout
func (m *PayoutModel) ToDomain(items []PayoutItemModel) *finance.Payout {
	p := &finance.Payout{
		BaseAggregateRoot: m.ToAggregateRoot(),
		VendorID:          m.VendorID,
		PeriodStart:       m.PeriodStart,
		PeriodEnd:         m.PeriodEnd,
		Currency:          valueobject.Currency(m.Currency),
		CommissionTotal:   m.CommissionTotal,
		FeesDeducted:      m.FeesDeducted,
		TaxDeducted:       m.TaxDeducted,
		NetAmount:         m.NetAmount,
		Items:             make([]finance.PayoutItem, 0, len(items)),
		Status:            m.Status,
		AttemptCount:      m.AttemptCount,
		ExecutorReference: m.ExecutorReference,
		SubmittedAt:       m.SubmittedAt,
		CompletedAt:       m.CompletedAt,
		FailedAt:          m.FailedAt,
		CancelledAt:       m.CancelledAt,
		NextRetryAt:       m.NextRetryAt,
		FailureCode:       m.FailureCode,
		FailureDetail:     m.FailureDetail,
		PermanentFailure:  m.PermanentFailure,
		StatementKey:      m.StatementKey,
	}
	for _, item := range items {
		p.Items = append(p.Items, finance.PayoutItem{
			CommissionEntryID: item.CommissionEntryID,
			CommissionAmount:  item.CommissionAmount,
		})
	}
	return p
}

// FromDomain populates the persistence model from a domain Payout
func (m *PayoutModel) FromDomain(p *finance.Payout) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.VendorID = p.VendorID
	m.PeriodStart = p.PeriodStart
	m.PeriodEnd = p.PeriodEnd
	m.Currency = p.Currency.String()
	m.CommissionTotal = p.CommissionTotal
	m.FeesDeducted = p.FeesDeducted
	m.TaxDeducted = p.TaxDeducted
	m.NetAmount = p.NetAmount
	m.Status = p.Status
	m.AttemptCount = p.AttemptCount
	m.ExecutorReference = p.ExecutorReference
	m.SubmittedAt = p.SubmittedAt
	m.CompletedAt = p.CompletedAt
	m.FailedAt = p.FailedAt
	m.CancelledAt = p.CancelledAt
	m.NextRetryAt = p.NextRetryAt
	m.FailureCode = p.FailureCode
	m.FailureDetail = p.FailureDetail
	m.PermanentFailure = p.PermanentFailure
	m.StatementKey = p.StatementKey
}

// PayoutModelFromDomain creates a new persistence model from a domain Payout
func PayoutModelFromDomain(p *finance.Payout) *PayoutModel {
	m := &PayoutModel{}
	m.FromDomain(p)
	return m
}

// PayoutItemModel is one row of a payout's frozen commission set.
// Rows are written once with the payout and kept after cancellation as audit history.
type PayoutItemModel struct {
	PayoutID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CommissionEntryID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CommissionAmount  int64     `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PayoutItemModel) TableName() string {
	return "payout_items"
}

// PayoutItemModelsFromDomain builds the item rows of a payout
func PayoutItemModelsFromDomain(p *finance.Payout) []PayoutItemModel {
	items := make([]PayoutItemModel, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, PayoutItemModel{
			PayoutID:          p.ID,
			CommissionEntryID: item.CommissionEntryID,
			CommissionAmount:  item.CommissionAmount,
			CreatedAt:         p.CreatedAt,
		})
	}
	return items
}
