package models

import (
	"time"

	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// VendorModel is the persistence model for the Vendor aggregate
type VendorModel struct {
	AggregateModel
	BusinessName   string                 `gorm:"type:varchar(200);not null"`
	LegalName      string                 `gorm:"type:varchar(200);not null"`
	TaxID          *string                `gorm:"type:varchar(50);uniqueIndex:idx_vendors_tax_id"`
	ContactName    string                 `gorm:"type:varchar(100);not null"`
	Email          string                 `gorm:"type:varchar(200);not null;index"`
	Phone          string                 `gorm:"type:varchar(50)"`
	AccountHolder  string                 `gorm:"type:varchar(200)"`
	AccountNumber  string                 `gorm:"type:varchar(64)"`
	RoutingCode    string                 `gorm:"type:varchar(64)"`
	BankName       string                 `gorm:"type:varchar(200)"`
	Currency       string                 `gorm:"type:varchar(3);not null"`
	CommissionType partner.CommissionType `gorm:"type:varchar(20);not null"`
	CommissionRate decimal.Decimal        `gorm:"type:decimal(18,6);not null"`
	MinimumPayout  int64                  `gorm:"not null;default:0"`
	PayoutSchedule partner.PayoutSchedule `gorm:"type:varchar(20);not null"`
	Status         partner.VendorStatus   `gorm:"type:varchar(20);not null;index"`
	StatusReason   string                 `gorm:"type:text"`
	ApprovedAt     *time.Time
}

// TableName returns the table name for GORM
func (VendorModel) TableName() string {
	return "vendors"
}

// ToDomain converts the persistence model to a domain Vendor
func (m *VendorModel) ToDomain() *partner.Vendor {
	v := &partner.Vendor{
		BaseAggregateRoot: m.ToAggregateRoot(),
		BusinessName:      m.BusinessName,
		LegalName:         m.LegalName,
		Contact: partner.Contact{
			Name:  m.ContactName,
			Email: m.Email,
			Phone: m.Phone,
		},
		Bank: partner.BankDetails{
			AccountHolder: m.AccountHolder,
			AccountNumber: m.AccountNumber,
			RoutingCode:   m.RoutingCode,
			BankName:      m.BankName,
		},
		Currency: valueobject.Currency(m.Currency),
		Policy: partner.Policy{
			CommissionType: m.CommissionType,
			CommissionRate: m.CommissionRate,
			MinimumPayout:  m.MinimumPayout,
			PayoutSchedule: m.PayoutSchedule,
		},
		Status:       m.Status,
		StatusReason: m.StatusReason,
		ApprovedAt:   m.ApprovedAt,
	}
	if m.TaxID != nil {
		v.TaxID = *m.TaxID
	}
	return v
}

// FromDomain populates the persistence model from a domain Vendor
func (m *VendorModel) FromDomain(v *partner.Vendor) {
	m.FromDomainAggregateRoot(v.BaseAggregateRoot)
	m.BusinessName = v.BusinessName
	m.LegalName = v.LegalName
	m.TaxID = nil
	if v.TaxID != "" {
		taxID := v.TaxID
		m.TaxID = &taxID
	}
	m.ContactName = v.Contact.Name
	m.Email = v.Contact.Email
	m.Phone = v.Contact.Phone
	m.AccountHolder = v.Bank.AccountHolder
	m.AccountNumber = v.Bank.AccountNumber
	m.RoutingCode = v.Bank.RoutingCode
	m.BankName = v.Bank.BankName
	m.Currency = v.Currency.String()
	m.CommissionType = v.Policy.CommissionType
	m.CommissionRate = v.Policy.CommissionRate
	m.MinimumPayout = v.Policy.MinimumPayout
	m.PayoutSchedule = v.Policy.PayoutSchedule
	m.Status = v.Status
	m.StatusReason = v.StatusReason
	m.ApprovedAt = v.ApprovedAt
}

// VendorModelFromDomain creates a new persistence model from a domain Vendor
func VendorModelFromDomain(v *partner.Vendor) *VendorModel {
	m := &VendorModel{}
	m.FromDomain(v)
	return m
}
