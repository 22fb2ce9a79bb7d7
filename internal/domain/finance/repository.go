package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
)

// CommissionEntryFilter narrows commission list queries
type CommissionEntryFilter struct {
	shared.Filter
	VendorID *uuid.UUID
	PayoutID *uuid.UUID
	Status   CommissionStatus
	Kind     EntryKind
	OrderID  string
	Period   shared.Period // on accrued_at
}

// PayoutFilter narrows payout list queries
type PayoutFilter struct {
	shared.Filter
	VendorID *uuid.UUID
	Status   PayoutStatus
	Period   shared.Period // on period_start/period_end
}

// EarningsSummary holds a vendor's derived ledger aggregates, in minor units
type EarningsSummary struct {
	VendorID         uuid.UUID `json:"vendor_id"`
	EntryCount       int64     `json:"entry_count"`
	TotalSales       int64     `json:"total_sales"`
	TotalCommission  int64     `json:"total_commission"`
	Pending          int64     `json:"pending"`
	ApprovedUnlinked int64     `json:"approved_unlinked"`
	InPayout         int64     `json:"in_payout"`
	Paid             int64     `json:"paid"`
	Disputed         int64     `json:"disputed"`
	Reversed         int64     `json:"reversed"`
}

// CommissionEntryRepository defines persistence for the commission ledger
type CommissionEntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CommissionEntry, error)

	// FindByIDForUpdate loads the entry under a row lock held until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CommissionEntry, error)

	// FindByOrderLine returns the entry of a given kind for an order line
	FindByOrderLine(ctx context.Context, orderID, orderItemID string, kind EntryKind) (*CommissionEntry, error)

	FindAll(ctx context.Context, filter CommissionEntryFilter) ([]CommissionEntry, int64, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]CommissionEntry, error)

	// CreateIfAbsent inserts the entry unless one already exists for the same
	// (order_id, order_item_id, kind). created is false when nothing was written.
	CreateIfAbsent(ctx context.Context, entry *CommissionEntry) (created bool, err error)

	// SaveWithLock saves ledger-owned fields with an optimistic version check
	SaveWithLock(ctx context.Context, entry *CommissionEntry) error

	// LockEligibleForPayout selects and row-locks APPROVED, unlinked entries of
	// a vendor accrued in [from, to). With carryOver, entries accrued before
	// from are included too.
	LockEligibleForPayout(ctx context.Context, vendorID uuid.UUID, from, to time.Time, carryOver bool) ([]*CommissionEntry, error)

	// LinkToPayout sets payout_id on the given entries, guarded by
	// payout_id IS NULL AND status = APPROVED. Returns the affected row count.
	LinkToPayout(ctx context.Context, payoutID uuid.UUID, entryIDs []uuid.UUID) (int64, error)

	// UnlinkFromPayout clears payout_id of the payout's APPROVED entries
	UnlinkFromPayout(ctx context.Context, payoutID uuid.UUID) (int64, error)

	// MarkPaidByPayout moves the payout's APPROVED entries to PAID
	MarkPaidByPayout(ctx context.Context, payoutID uuid.UUID, paidAt time.Time) (int64, error)

	// FindMaturedPending lists PENDING accruals accrued before cutoff
	FindMaturedPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)

	// FindDeferredDisputes row-locks the payout's accruals that carry a
	// deferred dispute marker and are not DISPUTED
	FindDeferredDisputes(ctx context.Context, payoutID uuid.UUID) ([]*CommissionEntry, error)

	EarningsSummary(ctx context.Context, vendorID uuid.UUID) (*EarningsSummary, error)
}

// PayoutRepository defines persistence for payouts and their frozen items
type PayoutRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payout, error)

	// FindByIDForUpdate loads the payout under a row lock held until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payout, error)

	FindAll(ctx context.Context, filter PayoutFilter) ([]Payout, int64, error)

	// FindLatestActiveByVendor returns the non-cancelled payout with the
	// latest period end, or shared.ErrNotFound
	FindLatestActiveByVendor(ctx context.Context, vendorID uuid.UUID) (*Payout, error)

	// ExistsOverlapping reports whether a non-cancelled payout of the vendor
	// intersects [start, end)
	ExistsOverlapping(ctx context.Context, vendorID uuid.UUID, start, end time.Time) (bool, error)

	// Create inserts the payout together with its frozen items
	Create(ctx context.Context, payout *Payout) error

	// SaveWithLock updates the payout with an optimistic version check.
	// Items are never rewritten.
	SaveWithLock(ctx context.Context, payout *Payout) error

	// FindDueForRetry lists transiently failed payouts whose next_retry_at has passed
	FindDueForRetry(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error)

	// FindStuckProcessing lists PROCESSING payouts submitted before the cutoff
	FindStuckProcessing(ctx context.Context, submittedBefore time.Time, limit int) ([]uuid.UUID, error)

	SetStatementKey(ctx context.Context, id uuid.UUID, key string) error
}
