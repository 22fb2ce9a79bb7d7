package finance

import (
	"context"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
)

// TransactionScope runs ledger and payout changes in one database transaction.
// Repositories handed to fn share the transaction, so row locks taken through
// them are held until fn returns.
type TransactionScope interface {
	// Execute runs fn within a transaction. An error from fn rolls it back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to repositories bound to the current transaction
type TransactionalRepositories interface {
	VendorRepo() partner.VendorRepository
	EntryRepo() finance.CommissionEntryRepository
	PayoutRepo() finance.PayoutRepository
	// Events writes domain events to the outbox of the current transaction
	Events() shared.EventRecorder
}

// NoOpTransactionScope runs fn directly against the given repositories.
// Used in tests and where transactions are not available.
type NoOpTransactionScope struct {
	vendorRepo partner.VendorRepository
	entryRepo  finance.CommissionEntryRepository
	payoutRepo finance.PayoutRepository
	events     shared.EventRecorder
}

// NewNoOpTransactionScope creates a NoOpTransactionScope. events may be nil.
func NewNoOpTransactionScope(
	vendorRepo partner.VendorRepository,
	entryRepo finance.CommissionEntryRepository,
	payoutRepo finance.PayoutRepository,
	events shared.EventRecorder,
) *NoOpTransactionScope {
	if events == nil {
		events = discardRecorder{}
	}
	return &NoOpTransactionScope{
		vendorRepo: vendorRepo,
		entryRepo:  entryRepo,
		payoutRepo: payoutRepo,
		events:     events,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// VendorRepo returns the vendor repository
func (s *NoOpTransactionScope) VendorRepo() partner.VendorRepository {
	return s.vendorRepo
}

// EntryRepo returns the commission entry repository
func (s *NoOpTransactionScope) EntryRepo() finance.CommissionEntryRepository {
	return s.entryRepo
}

// PayoutRepo returns the payout repository
func (s *NoOpTransactionScope) PayoutRepo() finance.PayoutRepository {
	return s.payoutRepo
}

// Events returns the event recorder
func (s *NoOpTransactionScope) Events() shared.EventRecorder {
	return s.events
}

type discardRecorder struct{}

func (discardRecorder) Record(context.Context, ...shared.DomainEvent) error { return nil }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
