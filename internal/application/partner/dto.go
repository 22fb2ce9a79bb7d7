package partner

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PolicyRequest carries a vendor commission policy
type PolicyRequest struct {
	CommissionType string          `json:"commission_type" binding:"required,oneof=PERCENTAGE FIXED"`
	CommissionRate decimal.Decimal `json:"commission_rate" binding:"decimal_rate"`
	MinimumPayout  int64           `json:"minimum_payout" binding:"min=0"`
	PayoutSchedule string          `json:"payout_schedule" binding:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
}

// ToDomain converts the request to a domain policy
func (r PolicyRequest) ToDomain() partner.Policy {
	return partner.Policy{
		CommissionType: partner.CommissionType(r.CommissionType),
		CommissionRate: r.CommissionRate,
		MinimumPayout:  r.MinimumPayout,
		PayoutSchedule: partner.PayoutSchedule(r.PayoutSchedule),
	}
}

// BankDetailsRequest carries payout destination details
type BankDetailsRequest struct {
	AccountHolder string `json:"account_holder" binding:"required,max=200"`
	AccountNumber string `json:"account_number" binding:"required,max=64"`
	RoutingCode   string `json:"routing_code" binding:"required,max=64"`
	BankName      string `json:"bank_name" binding:"max=200"`
}

// ToDomain converts the request to domain bank details
func (r BankDetailsRequest) ToDomain() partner.BankDetails {
	return partner.BankDetails{
		AccountHolder: r.AccountHolder,
		AccountNumber: r.AccountNumber,
		RoutingCode:   r.RoutingCode,
		BankName:      r.BankName,
	}
}

// RegisterVendorRequest represents a vendor registration
type RegisterVendorRequest struct {
	BusinessName string              `json:"business_name" binding:"required,max=200"`
	LegalName    string              `json:"legal_name" binding:"max=200"`
	TaxID        string              `json:"tax_id" binding:"max=50"`
	ContactName  string              `json:"contact_name" binding:"required,max=100"`
	Email        string              `json:"email" binding:"required,email,max=200"`
	Phone        string              `json:"phone" binding:"max=50"`
	Currency     string              `json:"currency" binding:"omitempty,currency"`
	Bank         *BankDetailsRequest `json:"bank"`
	Policy       PolicyRequest       `json:"policy" binding:"required"`
}

// Profile converts the request to a domain profile
func (r RegisterVendorRequest) Profile() partner.Profile {
	p := partner.Profile{
		BusinessName: r.BusinessName,
		LegalName:    r.LegalName,
		TaxID:        r.TaxID,
		Contact: partner.Contact{
			Name:  r.ContactName,
			Email: r.Email,
			Phone: r.Phone,
		},
		Currency: valueobject.Currency(r.Currency),
	}
	if r.Bank != nil {
		p.Bank = r.Bank.ToDomain()
	}
	return p
}

// StatusChangeRequest carries the reason of a suspension or rejection
type StatusChangeRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// PolicyResponse represents a vendor commission policy in API responses
type PolicyResponse struct {
	CommissionType string          `json:"commission_type"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	MinimumPayout  int64           `json:"minimum_payout"`
	PayoutSchedule string          `json:"payout_schedule"`
}

// VendorResponse represents a vendor in API responses. Bank account numbers are masked.
type VendorResponse struct {
	ID            uuid.UUID      `json:"id"`
	BusinessName  string         `json:"business_name"`
	LegalName     string         `json:"legal_name"`
	TaxID         string         `json:"tax_id,omitempty"`
	ContactName   string         `json:"contact_name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone,omitempty"`
	Currency      string         `json:"currency"`
	AccountHolder string         `json:"account_holder,omitempty"`
	AccountNumber string         `json:"account_number,omitempty"`
	BankName      string         `json:"bank_name,omitempty"`
	Policy        PolicyResponse `json:"policy"`
	Status        string         `json:"status"`
	StatusReason  string         `json:"status_reason,omitempty"`
	ApprovedAt    *time.Time     `json:"approved_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Version       int            `json:"version"`
}

// VendorListFilter represents vendor list query parameters
type VendorListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=PENDING APPROVED SUSPENDED REJECTED"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=business_name created_at updated_at status"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToPolicyResponse converts a domain policy to a response
func ToPolicyResponse(p partner.Policy) PolicyResponse {
	return PolicyResponse{
		CommissionType: string(p.CommissionType),
		CommissionRate: p.CommissionRate,
		MinimumPayout:  p.MinimumPayout,
		PayoutSchedule: string(p.PayoutSchedule),
	}
}

// ToVendorResponse converts a domain vendor to a response
func ToVendorResponse(v *partner.Vendor) VendorResponse {
	return VendorResponse{
		ID:            v.ID,
		BusinessName:  v.BusinessName,
		LegalName:     v.LegalName,
		TaxID:         v.TaxID,
		ContactName:   v.Contact.Name,
		Email:         v.Contact.Email,
		Phone:         v.Contact.Phone,
		Currency:      v.Currency.String(),
		AccountHolder: v.Bank.AccountHolder,
		AccountNumber: v.Bank.MaskedAccountNumber(),
		BankName:      v.Bank.BankName,
		Policy:        ToPolicyResponse(v.Policy),
		Status:        v.Status.String(),
		StatusReason:  v.StatusReason,
		ApprovedAt:    v.ApprovedAt,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		Version:       v.Version,
	}
}

// ToVendorResponses converts a slice of vendors
func ToVendorResponses(vendors []partner.Vendor) []VendorResponse {
	responses := make([]VendorResponse, len(vendors))
	for i := range vendors {
		responses[i] = ToVendorResponse(&vendors[i])
	}
	return responses
}
