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

// payoutItemBatchSize bounds the rows per INSERT when freezing a payout
const payoutItemBatchSize = 500

// GormPayoutRepository implements PayoutRepository using GORM
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewGormPayoutRepository creates a new GormPayoutRepository
func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// FindByID finds a payout with its frozen items
func (r *GormPayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Payout, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds a payout and locks its row until the transaction ends
func (r *GormPayoutRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Payout, error) {
	return r.first(ctx, r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindAll finds payouts matching the filter and returns the total count
func (r *GormPayoutRepository) FindAll(ctx context.Context, filter finance.PayoutFilter) ([]finance.Payout, int64, error) {
	filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PayoutModel{})
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.Period.From.IsZero() {
		query = query.Where("period_end > ?", filter.Period.From)
	}
	if !filter.Period.To.IsZero() {
		query = query.Where("period_start < ?", filter.Period.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PayoutModel
	if err := query.Order(orderBy(filter.Filter, payoutSortColumns, "period_start")).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items, err := r.loadItems(ctx, rows...)
	if err != nil {
		return nil, 0, err
	}
	payouts := make([]finance.Payout, len(rows))
	for i := range rows {
		payouts[i] = *rows[i].ToDomain(items[rows[i].ID])
	}
	return payouts, total, nil
}

// FindLatestActiveByVendor returns the vendor's non-cancelled payout with the latest period end
func (r *GormPayoutRepository) FindLatestActiveByVendor(ctx context.Context, vendorID uuid.UUID) (*finance.Payout, error) {
	return r.first(ctx, r.db.WithContext(ctx).
		Where("vendor_id = ? AND status <> ?", vendorID, finance.PayoutStatusCancelled).
		Order("period_end DESC"))
}

// ExistsOverlapping reports whether a non-cancelled payout of the vendor intersects [start, end)
func (r *GormPayoutRepository) ExistsOverlapping(ctx context.Context, vendorID uuid.UUID, start, end time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PayoutModel{}).
		Where("vendor_id = ? AND status <> ? AND period_start < ? AND period_end > ?",
			vendorID, finance.PayoutStatusCancelled, end, start).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts the payout together with its frozen items
func (r *GormPayoutRepository) Create(ctx context.Context, payout *finance.Payout) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(models.PayoutModelFromDomain(payout)).Error; err != nil {
		return translateWriteError(err, "Payout already exists")
	}
	items := models.PayoutItemModelsFromDomain(payout)
	if len(items) == 0 {
		return nil
	}
	if err := db.CreateInBatches(items, payoutItemBatchSize).Error; err != nil {
		return translateWriteError(err, "Commission entry is already frozen into this payout")
	}
	return nil
}

// SaveWithLock updates the payout header with an optimistic version check.
// Items are written once by Create and never touched again.
func (r *GormPayoutRepository) SaveWithLock(ctx context.Context, payout *finance.Payout) error {
	model := models.PayoutModelFromDomain(payout)
	result := r.db.WithContext(ctx).Model(&models.PayoutModel{}).
		Where("id = ? AND version = ?", payout.ID, payout.Version-1).
		Updates(map[string]any{
			"status":             model.Status,
			"attempt_count":      model.AttemptCount,
			"executor_reference": model.ExecutorReference,
			"submitted_at":       model.SubmittedAt,
			"completed_at":       model.CompletedAt,
			"failed_at":          model.FailedAt,
			"cancelled_at":       model.CancelledAt,
			"next_retry_at":      model.NextRetryAt,
			"failure_code":       model.FailureCode,
			"failure_detail":     model.FailureDetail,
			"permanent_failure":  model.PermanentFailure,
			"statement_key":      model.StatementKey,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindDueForRetry lists transiently failed payouts whose retry time has passed
func (r *GormPayoutRepository) FindDueForRetry(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.PayoutModel{}).
		Where("status = ? AND permanent_failure = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			finance.PayoutStatusFailed, false, asOf).
		Order("next_retry_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindStuckProcessing lists PROCESSING payouts submitted before the cutoff
func (r *GormPayoutRepository) FindStuckProcessing(ctx context.Context, submittedBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.PayoutModel{}).
		Where("status = ? AND submitted_at < ?", finance.PayoutStatusProcessing, submittedBefore).
		Order("submitted_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SetStatementKey records the archived statement location. It does not bump
// the version: the key is metadata written after the payout is final.
func (r *GormPayoutRepository) SetStatementKey(ctx context.Context, id uuid.UUID, key string) error {
	result := r.db.WithContext(ctx).Model(&models.PayoutModel{}).
		Where("id = ?", id).
		Update("statement_key", key)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormPayoutRepository) first(ctx context.Context, query *gorm.DB) (*finance.Payout, error) {
	var model models.PayoutModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	items, err := r.loadItems(ctx, model)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(items[model.ID]), nil
}

// loadItems fetches the frozen items of the given payouts grouped by payout id
func (r *GormPayoutRepository) loadItems(ctx context.Context, payouts ...models.PayoutModel) (map[uuid.UUID][]models.PayoutItemModel, error) {
	grouped := make(map[uuid.UUID][]models.PayoutItemModel, len(payouts))
	if len(payouts) == 0 {
		return grouped, nil
	}
	ids := make([]uuid.UUID, len(payouts))
	for i, p := range payouts {
		ids[i] = p.ID
	}
	var items []models.PayoutItemModel
	if err := r.db.WithContext(ctx).
		Where("payout_id IN ?", ids).
		Order("created_at ASC, commission_entry_id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		grouped[item.PayoutID] = append(grouped[item.PayoutID], item)
	}
	return grouped, nil
}

// Ensure GormPayoutRepository implements PayoutRepository
var _ finance.PayoutRepository = (*GormPayoutRepository)(nil)
