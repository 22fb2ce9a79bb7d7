package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// VendorService handles the vendor registry: registration, approval workflow
// and commission policy
type VendorService struct {
	vendorRepo partner.VendorRepository
	txScope    TransactionScope
	logger     *zap.Logger
}

// NewVendorService creates a new VendorService
func NewVendorService(vendorRepo partner.VendorRepository, txScope TransactionScope, logger *zap.Logger) *VendorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VendorService{
		vendorRepo: vendorRepo,
		txScope:    txScope,
		logger:     logger,
	}
}

// RegisterVendor registers a vendor in PENDING state
func (s *VendorService) RegisterVendor(ctx context.Context, req RegisterVendorRequest) (*VendorResponse, error) {
	vendor, err := partner.NewVendor(req.Profile(), req.Policy.ToDomain())
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if vendor.HasTaxID() {
			exists, err := repos.VendorRepo().ExistsByTaxID(ctx, vendor.TaxID)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError(shared.CodeAlreadyExists, "Vendor with this tax ID already exists")
			}
		}
		if err := repos.VendorRepo().Save(ctx, vendor); err != nil {
			return err
		}
		return repos.Events().Record(ctx, shared.PendingEvents(vendor)...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("vendor registered",
		zap.String("vendor_id", vendor.ID.String()),
		zap.String("business_name", vendor.BusinessName),
	)
	response := ToVendorResponse(vendor)
	return &response, nil
}

// Approve approves a pending vendor or reinstates a suspended one
func (s *VendorService) Approve(ctx context.Context, id uuid.UUID) (*VendorResponse, error) {
	return s.mutate(ctx, id, "approve", func(v *partner.Vendor) error {
		return v.Approve()
	})
}

// Suspend suspends an approved vendor. Existing entries and payouts are untouched.
func (s *VendorService) Suspend(ctx context.Context, id uuid.UUID, reason string) (*VendorResponse, error) {
	return s.mutate(ctx, id, "suspend", func(v *partner.Vendor) error {
		return v.Suspend(reason)
	})
}

// Reject rejects a pending vendor
func (s *VendorService) Reject(ctx context.Context, id uuid.UUID, reason string) (*VendorResponse, error) {
	return s.mutate(ctx, id, "reject", func(v *partner.Vendor) error {
		return v.Reject(reason)
	})
}

// UpdatePolicy replaces the vendor's commission policy. Entries already
// accrued keep the policy snapshot they were created with.
func (s *VendorService) UpdatePolicy(ctx context.Context, id uuid.UUID, req PolicyRequest) (*VendorResponse, error) {
	return s.mutate(ctx, id, "update_policy", func(v *partner.Vendor) error {
		return v.UpdatePolicy(req.ToDomain())
	})
}

// UpdateBankDetails replaces the vendor's payout destination
func (s *VendorService) UpdateBankDetails(ctx context.Context, id uuid.UUID, req BankDetailsRequest) (*VendorResponse, error) {
	return s.mutate(ctx, id, "update_bank_details", func(v *partner.Vendor) error {
		return v.UpdateBankDetails(req.ToDomain())
	})
}

// GetPolicy returns the vendor's current commission policy, read from the store
func (s *VendorService) GetPolicy(ctx context.Context, id uuid.UUID) (*PolicyResponse, error) {
	vendor, err := s.vendorRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToPolicyResponse(vendor.Policy)
	return &response, nil
}

// GetVendor retrieves a vendor by ID
func (s *VendorService) GetVendor(ctx context.Context, id uuid.UUID) (*VendorResponse, error) {
	vendor, err := s.vendorRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToVendorResponse(vendor)
	return &response, nil
}

// ListVendors retrieves vendors with filtering and pagination
func (s *VendorService) ListVendors(ctx context.Context, filter VendorListFilter) ([]VendorResponse, int64, error) {
	domainFilter := partner.VendorFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		Status: partner.VendorStatus(filter.Status),
	}
	if domainFilter.OrderBy == "" {
		domainFilter.OrderBy = "created_at"
	}
	domainFilter.Normalize()

	vendors, total, err := s.vendorRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToVendorResponses(vendors), total, nil
}

// mutate loads the vendor under lock, applies fn and saves it with its events
func (s *VendorService) mutate(ctx context.Context, id uuid.UUID, action string, fn func(v *partner.Vendor) error) (*VendorResponse, error) {
	var vendor *partner.Vendor
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		vendor, err = repos.VendorRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(vendor); err != nil {
			return err
		}
		if err := repos.VendorRepo().SaveWithLock(ctx, vendor); err != nil {
			return err
		}
		return repos.Events().Record(ctx, shared.PendingEvents(vendor)...)
	})
	if err != nil {
		if shared.CodeOf(err) == shared.CodeInvalidStateTransition {
			s.logger.Warn("vendor transition rejected",
				zap.String("vendor_id", id.String()),
				zap.String("action", action),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("vendor updated",
		zap.String("vendor_id", vendor.ID.String()),
		zap.String("action", action),
		zap.String("status", vendor.Status.String()),
	)
	response := ToVendorResponse(vendor)
	return &response, nil
}
