package persistence

import (
	"slices"
	"strings"

	"github.com/marketplace/payouts/internal/domain/shared"
	"gorm.io/gorm/clause"
)

// sortColumns lists the columns a list query may be ordered by
type sortColumns []string

var (
	vendorSortColumns = sortColumns{
		"business_name", "created_at", "updated_at", "status",
		"commission_rate", "payout_schedule", "currency",
	}
	commissionSortColumns = sortColumns{
		"accrued_at", "approved_at", "paid_at", "created_at", "updated_at",
		"status", "kind", "sale_amount", "commission_amount", "order_id",
	}
	payoutSortColumns = sortColumns{
		"period_start", "period_end", "created_at", "updated_at", "status",
		"commission_total", "net_amount", "attempt_count", "next_retry_at", "completed_at",
	}
)

// orderBy builds the ORDER BY of a list query. Columns outside allowed fall
// back to fallback, and id breaks ties so consecutive pages never overlap.
func orderBy(filter shared.Filter, allowed sortColumns, fallback string) clause.OrderBy {
	column := strings.TrimSpace(filter.OrderBy)
	if !slices.Contains(allowed, column) {
		column = fallback
	}
	desc := !strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
