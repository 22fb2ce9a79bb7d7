package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCommissionEntryRepository implements CommissionEntryRepository using GORM
type GormCommissionEntryRepository struct {
	db *gorm.DB
}

// NewGormCommissionEntryRepository creates a new GormCommissionEntryRepository
func NewGormCommissionEntryRepository(db *gorm.DB) *GormCommissionEntryRepository {
	return &GormCommissionEntryRepository{db: db}
}

// FindByID finds a commission entry by its ID
func (r *GormCommissionEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.CommissionEntry, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds a commission entry by ID and locks its row
func (r *GormCommissionEntryRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.CommissionEntry, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindByOrderLine finds the entry of a kind recorded for an order line
func (r *GormCommissionEntryRepository) FindByOrderLine(ctx context.Context, orderID, orderItemID string, kind finance.EntryKind) (*finance.CommissionEntry, error) {
	return r.first(r.db.WithContext(ctx).
		Where("order_id = ? AND order_item_id = ? AND kind = ?", orderID, orderItemID, kind))
}

// FindAll finds entries matching the filter and returns the total count
func (r *GormCommissionEntryRepository) FindAll(ctx context.Context, filter finance.CommissionEntryFilter) ([]finance.CommissionEntry, int64, error) {
	filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.CommissionEntryModel{})
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.PayoutID != nil {
		query = query.Where("payout_id = ?", *filter.PayoutID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if !filter.Period.From.IsZero() {
		query = query.Where("accrued_at >= ?", filter.Period.From)
	}
	if !filter.Period.To.IsZero() {
		query = query.Where("accrued_at < ?", filter.Period.To)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("LOWER(product_title) LIKE LOWER(?) OR order_id LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CommissionEntryModel
	if err := query.Order(orderBy(filter.Filter, commissionSortColumns, "accrued_at")).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	entries := make([]finance.CommissionEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, total, nil
}

// FindByIDs finds multiple entries by their IDs
func (r *GormCommissionEntryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]finance.CommissionEntry, error) {
	if len(ids) == 0 {
		return []finance.CommissionEntry{}, nil
	}
	var rows []models.CommissionEntryModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("accrued_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]finance.CommissionEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, nil
}

// CreateIfAbsent inserts the entry unless its order line already has an entry of the same kind
func (r *GormCommissionEntryRepository) CreateIfAbsent(ctx context.Context, entry *finance.CommissionEntry) (bool, error) {
	model := models.CommissionEntryModelFromDomain(entry)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "order_item_id"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveWithLock writes the mutable ledger fields with an optimistic version check.
// Amounts, terms and order references are immutable once written.
func (r *GormCommissionEntryRepository) SaveWithLock(ctx context.Context, entry *finance.CommissionEntry) error {
	result := r.db.WithContext(ctx).Model(&models.CommissionEntryModel{}).
		Where("id = ? AND version = ?", entry.ID, entry.Version-1).
		Updates(map[string]any{
			"status":               entry.Status,
			"payout_id":            entry.PayoutID,
			"approved_at":          entry.ApprovedAt,
			"paid_at":              entry.PaidAt,
			"disputed_at":          entry.DisputedAt,
			"dispute_reason":       entry.DisputeReason,
			"dispute_requested_at": entry.DisputeRequestedAt,
			"version":              entry.Version,
			"updated_at":           entry.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// LockEligibleForPayout selects and row-locks the vendor's approved, unlinked
// entries accrued before to (and not before from unless carryOver is set)
func (r *GormCommissionEntryRepository) LockEligibleForPayout(ctx context.Context, vendorID uuid.UUID, from, to time.Time, carryOver bool) ([]*finance.CommissionEntry, error) {
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ? AND status = ? AND payout_id IS NULL AND accrued_at < ?",
			vendorID, finance.CommissionStatusApproved, to)
	if !carryOver {
		query = query.Where("accrued_at >= ?", from)
	}

	var rows []models.CommissionEntryModel
	if err := query.Order("accrued_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntryPointers(rows), nil
}

// LinkToPayout assigns the payout to entries that are still approved and unlinked
func (r *GormCommissionEntryRepository) LinkToPayout(ctx context.Context, payoutID uuid.UUID, entryIDs []uuid.UUID) (int64, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.CommissionEntryModel{}).
		Where("id IN ? AND payout_id IS NULL AND status = ?", entryIDs, finance.CommissionStatusApproved).
		Updates(map[string]any{
			"payout_id":  payoutID,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// UnlinkFromPayout returns the payout's approved entries to the eligible pool
func (r *GormCommissionEntryRepository) UnlinkFromPayout(ctx context.Context, payoutID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.CommissionEntryModel{}).
		Where("payout_id = ? AND status = ?", payoutID, finance.CommissionStatusApproved).
		Updates(map[string]any{
			"payout_id":  nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// MarkPaidByPayout moves the payout's approved entries to PAID
func (r *GormCommissionEntryRepository) MarkPaidByPayout(ctx context.Context, payoutID uuid.UUID, paidAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.CommissionEntryModel{}).
		Where("payout_id = ? AND status = ?", payoutID, finance.CommissionStatusApproved).
		Updates(map[string]any{
			"status":     finance.CommissionStatusPaid,
			"paid_at":    paidAt,
			"version":    gorm.Expr("version + 1"),
			"updated_at": paidAt,
		})
	return result.RowsAffected, result.Error
}

// FindMaturedPending lists pending accruals recorded before cutoff, oldest first
func (r *GormCommissionEntryRepository) FindMaturedPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.CommissionEntryModel{}).
		Where("status = ? AND kind = ? AND accrued_at <= ?",
			finance.CommissionStatusPending, finance.EntryKindAccrual, cutoff).
		Order("accrued_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindDeferredDisputes row-locks the payout's accruals waiting on a dispute
func (r *GormCommissionEntryRepository) FindDeferredDisputes(ctx context.Context, payoutID uuid.UUID) ([]*finance.CommissionEntry, error) {
	var rows []models.CommissionEntryModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payout_id = ? AND kind = ? AND dispute_requested_at IS NOT NULL AND status <> ?",
			payoutID, finance.EntryKindAccrual, finance.CommissionStatusDisputed).
		Order("accrued_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntryPointers(rows), nil
}

// EarningsSummary aggregates a vendor's ledger at read time
func (r *GormCommissionEntryRepository) EarningsSummary(ctx context.Context, vendorID uuid.UUID) (*finance.EarningsSummary, error) {
	var row struct {
		EntryCount       int64
		TotalSales       int64
		TotalCommission  int64
		Pending          int64
		ApprovedUnlinked int64
		InPayout         int64
		Paid             int64
		Disputed         int64
		Reversed         int64
	}
	err := r.db.WithContext(ctx).Model(&models.CommissionEntryModel{}).
		Select(`COUNT(*) AS entry_count,
			COALESCE(SUM(CASE WHEN status <> ? THEN sale_amount ELSE 0 END), 0) AS total_sales,
			COALESCE(SUM(CASE WHEN status <> ? THEN commission_amount ELSE 0 END), 0) AS total_commission,
			COALESCE(SUM(CASE WHEN status = ? THEN commission_amount ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = ? AND payout_id IS NULL THEN commission_amount ELSE 0 END), 0) AS approved_unlinked,
			COALESCE(SUM(CASE WHEN status = ? AND payout_id IS NOT NULL THEN commission_amount ELSE 0 END), 0) AS in_payout,
			COALESCE(SUM(CASE WHEN status = ? THEN commission_amount ELSE 0 END), 0) AS paid,
			COALESCE(SUM(CASE WHEN status = ? THEN commission_amount ELSE 0 END), 0) AS disputed,
			COALESCE(SUM(CASE WHEN kind = ? THEN -commission_amount ELSE 0 END), 0) AS reversed`,
			finance.CommissionStatusDisputed,
			finance.CommissionStatusDisputed,
			finance.CommissionStatusPending,
			finance.CommissionStatusApproved,
			finance.CommissionStatusApproved,
			finance.CommissionStatusPaid,
			finance.CommissionStatusDisputed,
			finance.EntryKindReversal,
		).
		Where("vendor_id = ?", vendorID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &finance.EarningsSummary{
		VendorID:         vendorID,
		EntryCount:       row.EntryCount,
		TotalSales:       row.TotalSales,
		TotalCommission:  row.TotalCommission,
		Pending:          row.Pending,
		ApprovedUnlinked: row.ApprovedUnlinked,
		InPayout:         row.InPayout,
		Paid:             row.Paid,
		Disputed:         row.Disputed,
		Reversed:         row.Reversed,
	}, nil
}

func (r *GormCommissionEntryRepository) first(query *gorm.DB) (*finance.CommissionEntry, error) {
	var model models.CommissionEntryModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func toEntryPointers(rows []models.CommissionEntryModel) []*finance.CommissionEntry {
	entries := make([]*finance.CommissionEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries
}

// Ensure GormCommissionEntryRepository implements CommissionEntryRepository
var _ finance.CommissionEntryRepository = (*GormCommissionEntryRepository)(nil)
