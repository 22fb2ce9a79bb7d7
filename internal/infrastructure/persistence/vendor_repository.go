package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormVendorRepository implements VendorRepository using GORM
type GormVendorRepository struct {
	db *gorm.DB
}

// NewGormVendorRepository creates a new GormVendorRepository
func NewGormVendorRepository(db *gorm.DB) *GormVendorRepository {
	return &GormVendorRepository{db: db}
}

// FindByID finds a vendor by its ID
func (r *GormVendorRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Vendor, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds a vendor by ID and locks its row until the transaction ends
func (r *GormVendorRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*partner.Vendor, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindByTaxID finds a vendor by its tax identification number
func (r *GormVendorRepository) FindByTaxID(ctx context.Context, taxID string) (*partner.Vendor, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return nil, shared.ErrNotFound
	}
	return r.first(r.db.WithContext(ctx).Where("tax_id = ?", taxID))
}

// ExistsByTaxID checks if a vendor with the tax ID is registered
func (r *GormVendorRepository) ExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.VendorModel{}).
		Where("tax_id = ?", taxID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll finds vendors matching the filter and returns the total count
func (r *GormVendorRepository) FindAll(ctx context.Context, filter partner.VendorFilter) ([]partner.Vendor, int64, error) {
	filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.VendorModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("LOWER(business_name) LIKE LOWER(?) OR LOWER(legal_name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.VendorModel
	if err := r.applyPaging(query, filter.Filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	vendors := make([]partner.Vendor, len(rows))
	for i := range rows {
		vendors[i] = *rows[i].ToDomain()
	}
	return vendors, total, nil
}

// FindIDsByStatus lists the ids of all vendors in the given state
func (r *GormVendorRepository) FindIDsByStatus(ctx context.Context, status partner.VendorStatus) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.VendorModel{}).
		Where("status = ?", status).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or replaces a vendor
func (r *GormVendorRepository) Save(ctx context.Context, vendor *partner.Vendor) error {
	model := models.VendorModelFromDomain(vendor)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return translateWriteError(err, "Vendor with this tax ID already exists")
	}
	return nil
}

// SaveWithLock updates a vendor only if the stored version is the one it was loaded at
func (r *GormVendorRepository) SaveWithLock(ctx context.Context, vendor *partner.Vendor) error {
	model := models.VendorModelFromDomain(vendor)
	result := r.db.WithContext(ctx).Model(&models.VendorModel{}).
		Where("id = ? AND version = ?", vendor.ID, vendor.Version-1).
		Updates(map[string]any{
			"business_name":   model.BusinessName,
			"legal_name":      model.LegalName,
			"tax_id":          model.TaxID,
			"contact_name":    model.ContactName,
			"email":           model.Email,
			"phone":           model.Phone,
			"account_holder":  model.AccountHolder,
			"account_number":  model.AccountNumber,
			"routing_code":    model.RoutingCode,
			"bank_name":       model.BankName,
			"currency":        model.Currency,
			"commission_type": model.CommissionType,
			"commission_rate": model.CommissionRate,
			"minimum_payout":  model.MinimumPayout,
			"payout_schedule": model.PayoutSchedule,
			"status":          model.Status,
			"status_reason":   model.StatusReason,
			"approved_at":     model.ApprovedAt,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return translateWriteError(result.Error, "Vendor with this tax ID already exists")
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormVendorRepository) first(query *gorm.DB) (*partner.Vendor, error) {
	var model models.VendorModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// applyPaging applies ordering and pagination
func (r *GormVendorRepository) applyPaging(query *gorm.DB, filter shared.Filter) *gorm.DB {
	return query.Order(orderBy(filter, vendorSortColumns, "created_at")).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

// Ensure GormVendorRepository implements VendorRepository
var _ partner.VendorRepository = (*GormVendorRepository)(nil)
