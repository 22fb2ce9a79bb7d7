package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLedgerStatsProvider implements LedgerStatsProvider with aggregate queries
// over the payouts and commission_entries tables.
type GormLedgerStatsProvider struct {
	db *gorm.DB
}

// NewGormLedgerStatsProvider creates a new GormLedgerStatsProvider.
func NewGormLedgerStatsProvider(db *gorm.DB) *GormLedgerStatsProvider {
	return &GormLedgerStatsProvider{db: db}
}

// PayoutCountsByStatus returns the number of payouts per status.
func (p *GormLedgerStatsProvider) PayoutCountsByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := p.db.WithContext(ctx).
		Table("payouts").
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// OpenCommissionByStatus sums commission that has not been paid yet.
func (p *GormLedgerStatsProvider) OpenCommissionByStatus(ctx context.Context) ([]CommissionBalance, error) {
	var balances []CommissionBalance
	err := p.db.WithContext(ctx).
		Table("commission_entries").
		Select("status, currency, COALESCE(SUM(commission_amount), 0) AS amount").
		Where("status <> ?", "PAID").
		Group("status, currency").
		Order("status, currency").
		Scan(&balances).Error
	return balances, err
}
