package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
)

// VendorFilter narrows vendor list queries
type VendorFilter struct {
	shared.Filter
	Status VendorStatus
}

// VendorRepository defines the interface for vendor persistence
type VendorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Vendor, error)

	// FindByIDForUpdate loads the vendor and holds a row lock until the
	// surrounding transaction ends. Batch creation serializes on this lock.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Vendor, error)

	FindByTaxID(ctx context.Context, taxID string) (*Vendor, error)
	ExistsByTaxID(ctx context.Context, taxID string) (bool, error)

	FindAll(ctx context.Context, filter VendorFilter) ([]Vendor, int64, error)

	// FindIDsByStatus lists the ids of vendors in a state, for scheduled jobs
	FindIDsByStatus(ctx context.Context, status VendorStatus) ([]uuid.UUID, error)

	Save(ctx context.Context, vendor *Vendor) error

	// SaveWithLock saves with an optimistic version check
	SaveWithLock(ctx context.Context, vendor *Vendor) error
}
