package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository stores outbox entries in the outbox_entries table
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates an outbox repository on db
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Save inserts entries. Callers pass the transaction of the change that raised the events.
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

// ClaimDue locks due rows with FOR UPDATE SKIP LOCKED, so relays running in
// several server replicas never deliver the same entry concurrently
func (r *GormOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND next_retry_at <= ?)",
				shared.OutboxStatusPending, shared.OutboxStatusFailed, now).
			Order("created_at").
			Limit(limit).
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(claimed))
		for i, e := range claimed {
			ids[i] = e.ID
			e.Status = shared.OutboxStatusProcessing
			e.UpdatedAt = now
		}
		return tx.Model(&shared.OutboxEntry{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update writes back the delivery state of entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	return r.db.WithContext(ctx).
		Model(entry).
		Select("status", "retry_count", "max_retries", "last_error", "next_retry_at", "processed_at", "updated_at").
		Updates(entry).Error
}

// FindByID returns shared.ErrNotFound when no entry has id
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var entry shared.OutboxEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindDead pages through dead-lettered entries, most recently failed first
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	dead := r.db.WithContext(ctx).Model(&shared.OutboxEntry{}).Where("status = ?", shared.OutboxStatusDead)

	var total int64
	if err := dead.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []*shared.OutboxEntry
	if err := dead.Session(&gorm.Session{}).
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// CountByStatus returns the number of entries per status. Statuses without entries are absent.
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var rows []struct {
		Status shared.OutboxStatus
		N      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&shared.OutboxEntry{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

// RequeueStale releases claims a crashed relay left behind
func (r *GormOutboxRepository) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&shared.OutboxEntry{}).
		Where("status = ? AND updated_at < ?", shared.OutboxStatusProcessing, cutoff).
		Updates(map[string]any{"status": shared.OutboxStatusPending, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// PurgeSent deletes entries relayed before cutoff. Dead entries are kept for operators.
func (r *GormOutboxRepository) PurgeSent(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, cutoff).
		Delete(&shared.OutboxEntry{})
	return res.RowsAffected, res.Error
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
